package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/weihan/activity_service/internal/timewindow"
)

// Tool names form a closed set. Dispatch is a lookup table keyed by
// these constants; anything else is an UnknownToolError.
const (
	ToolGetRecentActivities = "get_recent_activities"
	ToolGetPastActivities   = "get_past_activities"
	ToolGetCurrentTimeInfo  = "get_current_time_info"
	ToolCalculateDateRange  = "calculate_date_range"
)

// activityArgs are the arguments of the two activity query tools.
// Pointer fields distinguish "absent" (apply the documented default)
// from an explicit zero, which must be rejected, not defaulted.
type activityArgs struct {
	DaysAhead *int `json:"days_ahead"`
	DaysBack  *int `json:"days_back"`
	Limit     *int `json:"limit"`
}

type dateRangeArgs struct {
	BaseDate        string `json:"base_date"`
	StartOffsetDays int    `json:"start_offset_days"`
	EndOffsetDays   int    `json:"end_offset_days"`
}

func orDefault(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// ExecuteTool dispatches an LLM-chosen function name to its handler.
// rawArgs is the JSON argument object produced by the model.
func (s *Service) ExecuteTool(ctx context.Context, name string, rawArgs json.RawMessage) (interface{}, error) {
	if len(rawArgs) == 0 {
		rawArgs = json.RawMessage("{}")
	}

	type handler func(context.Context, json.RawMessage) (interface{}, error)
	handlers := map[string]handler{
		ToolGetRecentActivities: s.execRecent,
		ToolGetPastActivities:   s.execPast,
		ToolGetCurrentTimeInfo:  s.execTimeInfo,
		ToolCalculateDateRange:  s.execDateRange,
	}

	h, ok := handlers[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	return h(ctx, rawArgs)
}

func (s *Service) execRecent(ctx context.Context, rawArgs json.RawMessage) (interface{}, error) {
	var args activityArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return nil, fmt.Errorf("decode %s arguments: %w", ToolGetRecentActivities, err)
	}
	return s.GetRecentActivities(ctx,
		orDefault(args.DaysAhead, DefaultDaysAhead),
		orDefault(args.Limit, DefaultLimit))
}

func (s *Service) execPast(ctx context.Context, rawArgs json.RawMessage) (interface{}, error) {
	var args activityArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return nil, fmt.Errorf("decode %s arguments: %w", ToolGetPastActivities, err)
	}
	return s.GetPastActivities(ctx,
		orDefault(args.DaysBack, DefaultDaysBack),
		orDefault(args.Limit, DefaultLimit))
}

func (s *Service) execTimeInfo(ctx context.Context, rawArgs json.RawMessage) (interface{}, error) {
	return s.TimeInfo(), nil
}

func (s *Service) execDateRange(ctx context.Context, rawArgs json.RawMessage) (interface{}, error) {
	var args dateRangeArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return nil, fmt.Errorf("decode %s arguments: %w", ToolCalculateDateRange, err)
	}
	return timewindow.CalculateDateRange(s.Now(), args.BaseDate, args.StartOffsetDays, args.EndOffsetDays)
}
