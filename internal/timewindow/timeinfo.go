package timewindow

import (
	"fmt"
	"time"
)

// weekdaysZH maps time.Weekday to the Chinese day names used in
// replies. time.Weekday starts at Sunday.
var weekdaysZH = [7]string{"星期日", "星期一", "星期二", "星期三", "星期四", "星期五", "星期六"}

// TimeInfo is the payload of the get_current_time_info tool: today plus
// the anchor dates the chat model most often reasons about.
type TimeInfo struct {
	CurrentDate       string `json:"current_date"`
	CurrentDateTime   string `json:"current_datetime"`
	Yesterday         string `json:"yesterday"`
	Tomorrow          string `json:"tomorrow"`
	OneWeekLater      string `json:"one_week_later"`
	OneMonthLater     string `json:"one_month_later"`
	ThreeMonthsLater  string `json:"three_months_later"`
	Weekday           string `json:"weekday"`
	Timezone          string `json:"timezone"`
}

// CurrentTimeInfo reports the reference time in the fixed timezone.
func CurrentTimeInfo(now time.Time) TimeInfo {
	local := now.In(Location)
	return TimeInfo{
		CurrentDate:      local.Format(DateFormat),
		CurrentDateTime:  local.Format(DateFormat + " 15:04:05"),
		Yesterday:        local.AddDate(0, 0, -1).Format(DateFormat),
		Tomorrow:         local.AddDate(0, 0, 1).Format(DateFormat),
		OneWeekLater:     local.AddDate(0, 0, 7).Format(DateFormat),
		OneMonthLater:    local.AddDate(0, 0, 30).Format(DateFormat),
		ThreeMonthsLater: local.AddDate(0, 0, 90).Format(DateFormat),
		Weekday:          weekdaysZH[local.Weekday()],
		Timezone:         Location.String(),
	}
}

// DateRange is the payload of the calculate_date_range tool.
type DateRange struct {
	BaseDate    string `json:"base_date"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Description string `json:"description"`
	DaysInRange int    `json:"days_in_range"`
}

// parseBaseDate resolves the tool's base_date argument. Accepted forms:
// "today", "yesterday", YYYY/MM/DD, YYYY-MM-DD.
func parseBaseDate(base string, now time.Time) (time.Time, error) {
	switch base {
	case "", "today":
		return now.In(Location), nil
	case "yesterday":
		return now.In(Location).AddDate(0, 0, -1), nil
	}
	for _, layout := range []string{DateFormat, dateFormatDash} {
		if t, err := time.ParseInLocation(layout, base, Location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable base date: %q", base)
}

func rangeDescription(startOffset, endOffset int, start, end time.Time) string {
	switch {
	case startOffset == 0 && endOffset > 0:
		return fmt.Sprintf("今天起%d天內", endOffset)
	case startOffset < 0 && endOffset == 0:
		return fmt.Sprintf("過去%d天", -startOffset)
	case startOffset < 0 && endOffset > 0:
		return fmt.Sprintf("過去%d天到未來%d天", -startOffset, endOffset)
	}
	return fmt.Sprintf("%s 到 %s", start.Format(DateFormat), end.Format(DateFormat))
}

// CalculateDateRange offsets the base date by start and end day counts,
// swapping the bounds if they arrive inverted. days_in_range counts
// both endpoints.
func CalculateDateRange(now time.Time, baseDate string, startOffsetDays, endOffsetDays int) (DateRange, error) {
	base, err := parseBaseDate(baseDate, now)
	if err != nil {
		return DateRange{}, err
	}

	start := base.AddDate(0, 0, startOffsetDays)
	end := base.AddDate(0, 0, endOffsetDays)
	if start.After(end) {
		start, end = end, start
	}

	return DateRange{
		BaseDate:    base.Format(DateFormat),
		StartDate:   start.Format(DateFormat),
		EndDate:     end.Format(DateFormat),
		Description: rangeDescription(startOffsetDays, endOffsetDays, start, end),
		DaysInRange: int(end.Sub(start).Hours()/24) + 1,
	}, nil
}
