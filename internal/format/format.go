// Package format serializes query results into the JSON contract
// consumed by the chat tool-invocation layer.
package format

import (
	"github.com/weihan/activity_service/internal/timewindow"
	"github.com/weihan/activity_service/pkg/models"
)

// ContentBudget is the character budget for the content field. Bodies
// over the budget are cut and marked; truncation counts runes so a
// multibyte sequence is never split.
const ContentBudget = 200

// TruncationMarker is appended to any cut body so downstream consumers
// know content was dropped.
const TruncationMarker = "..."

// FormattedActivity is one record in the tool response.
type FormattedActivity struct {
	Source      string   `json:"source"`
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	PublishDate string   `json:"publish_date"`
	URL         string   `json:"url"`
	Tags        []string `json:"tags"`
}

// TimeRange echoes the resolved window back to the caller so it can
// render "no results between X and Y" distinctly from a failure.
type TimeRange struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Description string `json:"description"`
}

// Envelope wraps a query result. An empty window yields TotalCount 0
// and an empty (non-nil) Activities slice.
type Envelope struct {
	Success    bool                `json:"success"`
	QueryType  string              `json:"query_type"`
	TimeRange  TimeRange           `json:"time_range"`
	TotalCount int                 `json:"total_count"`
	Activities []FormattedActivity `json:"activities"`
}

// Truncate cuts s to the rune budget and appends the marker. Strings at
// or under the budget pass through unchanged.
func Truncate(s string, budget int) string {
	runes := []rune(s)
	if len(runes) <= budget {
		return s
	}
	return string(runes[:budget]) + TruncationMarker
}

// Record maps one stored activity to its wire form.
func Record(a *models.Activity) FormattedActivity {
	tags := []string(a.Tags)
	if tags == nil {
		tags = []string{}
	}
	return FormattedActivity{
		Source:      a.Source,
		Title:       a.Title,
		Content:     Truncate(a.Content, ContentBudget),
		PublishDate: a.PublishDate.In(timewindow.Location).Format(timewindow.DateTimeFormat),
		URL:         a.URL,
		Tags:        tags,
	}
}

// Results assembles the full envelope for a query.
func Results(queryType string, w timewindow.Window, activities []*models.Activity) Envelope {
	formatted := make([]FormattedActivity, 0, len(activities))
	for _, a := range activities {
		formatted = append(formatted, Record(a))
	}
	return Envelope{
		Success:   true,
		QueryType: queryType,
		TimeRange: TimeRange{
			From:        w.FromString(),
			To:          w.ToString(),
			Description: w.Description,
		},
		TotalCount: len(formatted),
		Activities: formatted,
	}
}
