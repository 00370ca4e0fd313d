// Package timewindow computes the canonical [from, to] date ranges used
// by the activity query tools. All calculations run in a fixed civil
// timezone (Asia/Taipei); callers pass the reference "now" explicitly so
// the package stays testable without clock mocking.
package timewindow

import (
	"fmt"
	"time"
)

// Location is the fixed civil timezone every window is computed in.
var Location = mustLoadLocation("Asia/Taipei")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("timewindow: load location %s: %v", name, err))
	}
	return loc
}

const (
	// DateFormat is the only date layout emitted or accepted at the
	// public boundary.
	DateFormat = "2006/01/02"

	// DateTimeFormat extends DateFormat with minutes for record output.
	DateTimeFormat = "2006/01/02 15:04"

	dateFormatDash = "2006-01-02"
)

// Direction distinguishes forward-looking from backward-looking windows.
type Direction string

const (
	DirectionRecent Direction = "recent"
	DirectionPast   Direction = "past"
)

// Window is an inclusive [From, To] range plus a human-readable
// description for the calling agent.
type Window struct {
	From        time.Time `json:"-"`
	To          time.Time `json:"-"`
	Description string    `json:"description"`
}

// FromString renders the lower bound in the wire date format.
func (w Window) FromString() string { return w.From.In(Location).Format(DateFormat) }

// ToString renders the upper bound in the wire date format.
func (w Window) ToString() string { return w.To.In(Location).Format(DateFormat) }

// Contains reports whether t falls inside the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// InvalidRangeError reports a degenerate day offset. The caller is an
// LLM tool invocation; it must learn its arguments were malformed
// rather than receive an empty result it would read as "no activities".
type InvalidRangeError struct {
	Param string
	Value int
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range: %s must be positive, got %d", e.Param, e.Value)
}

// DayStart truncates now to 00:00 in the fixed timezone.
func DayStart(now time.Time) time.Time {
	local := now.In(Location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, Location)
}

// ResolveRecent builds the window [today 00:00, today 00:00 + daysAhead].
func ResolveRecent(now time.Time, daysAhead int) (Window, error) {
	if daysAhead <= 0 {
		return Window{}, &InvalidRangeError{Param: "days_ahead", Value: daysAhead}
	}
	from := DayStart(now)
	to := from.AddDate(0, 0, daysAhead)
	return Window{
		From: from,
		To:   to,
		Description: fmt.Sprintf("%s 到 %s（未來 %d 天）",
			from.Format(DateFormat), to.Format(DateFormat), daysAhead),
	}, nil
}

// ResolvePast builds the window [today 00:00 - daysBack, today 00:00].
func ResolvePast(now time.Time, daysBack int) (Window, error) {
	if daysBack <= 0 {
		return Window{}, &InvalidRangeError{Param: "days_back", Value: daysBack}
	}
	to := DayStart(now)
	from := to.AddDate(0, 0, -daysBack)
	return Window{
		From: from,
		To:   to,
		Description: fmt.Sprintf("%s 到 %s（過去 %d 天）",
			from.Format(DateFormat), to.Format(DateFormat), daysBack),
	}, nil
}
