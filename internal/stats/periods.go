package stats

import (
	"fmt"
	"time"
)

// Period names accepted by the done and progress reports.
const (
	PeriodThisSprint = "this-sprint"
	PeriodToday      = "today"
	PeriodYesterday  = "yesterday"
	PeriodThisWeek   = "this-week"
	PeriodLast7Days  = "last-7-days"
	PeriodThisMonth  = "this-month"
	PeriodLastMonth  = "last-month"

	DefaultPeriod = PeriodLast7Days
)

// Periods lists every period in menu order.
var Periods = []string{
	PeriodThisSprint, PeriodToday, PeriodYesterday, PeriodThisWeek,
	PeriodLast7Days, PeriodThisMonth, PeriodLastMonth,
}

var periodLabels = map[string]string{
	PeriodThisSprint: "This sprint",
	PeriodToday:      "Today",
	PeriodYesterday:  "Yesterday",
	PeriodThisWeek:   "This week",
	PeriodLast7Days:  "Last 7 days",
	PeriodThisMonth:  "This month",
	PeriodLastMonth:  "Last month",
}

// PeriodLabel is the display name of a period, or the period itself when unknown.
func PeriodLabel(period string) string {
	if l, ok := periodLabels[period]; ok {
		return l
	}
	return period
}

// UnknownPeriodError is returned for a period name outside Periods.
type UnknownPeriodError struct {
	Period string
}

func (e *UnknownPeriodError) Error() string {
	return fmt.Sprintf("unknown period %q", e.Period)
}

// Window is a resolved [Start, End] time range.
type Window struct {
	Period string    `json:"period"`
	Label  string    `json:"label"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// Contains reports Start <= t <= End.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// ResolvePeriod turns a period name into a window ending at now. now must already be in the
// reporting timezone. sprintStart is the active sprint start for this-sprint; when nil the
// window falls back to the last sprintDays days.
func ResolvePeriod(period string, now time.Time, sprintStart *time.Time, sprintDays int) (Window, error) {
	if period == "" {
		period = DefaultPeriod
	}
	w := Window{Period: period, Label: periodLabels[period], End: now}

	switch period {
	case PeriodThisSprint:
		if sprintStart != nil {
			w.Start = sprintStart.In(now.Location())
		} else {
			w.Start = SnapToStart(now.AddDate(0, 0, -sprintDays), "day")
		}
	case PeriodToday:
		w.Start = SnapToStart(now, "day")
	case PeriodYesterday:
		y := now.AddDate(0, 0, -1)
		w.Start = SnapToStart(y, "day")
		w.End = SnapToEnd(y, "day")
	case PeriodThisWeek:
		w.Start = SnapToStart(now, "week")
	case PeriodLast7Days:
		w.Start = SnapToStart(now.AddDate(0, 0, -7), "day")
	case PeriodThisMonth:
		w.Start = SnapToStart(now, "month")
	case PeriodLastMonth:
		prev := SnapToStart(now, "month").AddDate(0, -1, 0)
		w.Start = prev
		w.End = SnapToEnd(prev, "month")
	default:
		return Window{}, &UnknownPeriodError{Period: period}
	}
	return w, nil
}

// SnapToStart normalizes a timestamp to the beginning of its bucket (0:00:00).
func SnapToStart(t time.Time, bucket string) time.Time {
	if t.IsZero() {
		return t
	}
	switch bucket {
	case "month":
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	case "week":
		// Snap to Monday
		weekday := int(t.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday -> 7
		}
		return time.Date(t.Year(), t.Month(), t.Day()-(weekday-1), 0, 0, 0, 0, t.Location())
	default: // day
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
}

// SnapToEnd normalizes a timestamp to the very end of its bucket (23:59:59.999...).
func SnapToEnd(t time.Time, bucket string) time.Time {
	if t.IsZero() {
		return t
	}
	switch bucket {
	case "month":
		nextMonth := time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
		return nextMonth.Add(-time.Nanosecond)
	default: // day
		return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999999, t.Location())
	}
}

// JQLDate formats t for a JQL date comparison ("2006-01-02 15:04") in t's location.
func JQLDate(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}
