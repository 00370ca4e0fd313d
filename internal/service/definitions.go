package service

// ToolDefinition is an OpenAI function-calling tool entry handed to the
// chat layer so the model can choose among the closed tool set.
type ToolDefinition struct {
	Type     string       `json:"type"`
	Function FunctionSpec `json:"function"`
}

type FunctionSpec struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Parameters  ParameterSpec `json:"parameters"`
}

type ParameterSpec struct {
	Type       string                  `json:"type"`
	Properties map[string]PropertySpec `json:"properties"`
	Required   []string                `json:"required"`
}

type PropertySpec struct {
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Default     interface{} `json:"default,omitempty"`
}

// ToolDefinitions lists every dispatchable tool. The set here must stay
// in lockstep with the handler table in ExecuteTool.
func ToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Type: "function",
			Function: FunctionSpec{
				Name: ToolGetRecentActivities,
				Description: "查詢近期活動（發布日期在今天到未來 N 天內）。" +
					"用於回答「最近有什麼活動」「近期活動」「接下來有什麼」等問題。",
				Parameters: ParameterSpec{
					Type: "object",
					Properties: map[string]PropertySpec{
						"days_ahead": {
							Type:        "integer",
							Description: "往後查詢的天數，例如 90 表示未來 3 個月",
							Default:     DefaultDaysAhead,
						},
						"limit": {
							Type:        "integer",
							Description: "最多返回幾筆活動",
							Default:     DefaultLimit,
						},
					},
					Required: []string{},
				},
			},
		},
		{
			Type: "function",
			Function: FunctionSpec{
				Name: ToolGetPastActivities,
				Description: "查詢過去的活動（發布日期在今天之前）。" +
					"用於回答「過去有什麼活動」「之前辦過什麼」等問題。",
				Parameters: ParameterSpec{
					Type: "object",
					Properties: map[string]PropertySpec{
						"days_back": {
							Type:        "integer",
							Description: "往前查詢的天數，例如 30 表示過去 30 天",
							Default:     DefaultDaysBack,
						},
						"limit": {
							Type:        "integer",
							Description: "最多返回幾筆活動",
							Default:     DefaultLimit,
						},
					},
					Required: []string{},
				},
			},
		},
		{
			Type: "function",
			Function: FunctionSpec{
				Name: ToolGetCurrentTimeInfo,
				Description: "Get current time in Taipei timezone. Returns today, yesterday, " +
					"tomorrow, and common date ranges. Use for 'now', 'recent', 'upcoming' queries.",
				Parameters: ParameterSpec{
					Type:       "object",
					Properties: map[string]PropertySpec{},
					Required:   []string{},
				},
			},
		},
		{
			Type: "function",
			Function: FunctionSpec{
				Name: ToolCalculateDateRange,
				Description: "Calculate date range from base date with day offsets. " +
					"Examples: 'next 3 months' = (0, 90), 'past week' = (-7, 0).",
				Parameters: ParameterSpec{
					Type: "object",
					Properties: map[string]PropertySpec{
						"base_date": {
							Type:        "string",
							Description: "Base date: 'today', 'yesterday', or 'YYYY/MM/DD'",
							Default:     "today",
						},
						"start_offset_days": {
							Type:        "integer",
							Description: "Start offset in days (negative=past, positive=future)",
							Default:     0,
						},
						"end_offset_days": {
							Type:        "integer",
							Description: "End offset in days (same convention)",
							Default:     0,
						},
					},
					Required: []string{},
				},
			},
		},
	}
}
