// Package bucket partitions an inclusive date range into labeled,
// non-overlapping windows under one of five bucketing policies.
package bucket

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Policy selects how a date range is split into windows.
type Policy int

const (
	Daily Policy = iota
	ThreeDays
	Weekly
	TwoWeeks
	Monthly
)

// String returns the flag-friendly name of the policy.
func (p Policy) String() string {
	switch p {
	case Daily:
		return "daily"
	case ThreeDays:
		return "3days"
	case Weekly:
		return "weekly"
	case TwoWeeks:
		return "2weeks"
	case Monthly:
		return "monthly"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy converts a user-supplied policy name into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "day":
		return Daily, nil
	case "3days", "3-days", "threedays":
		return ThreeDays, nil
	case "weekly", "week":
		return Weekly, nil
	case "2weeks", "2-weeks", "twoweeks":
		return TwoWeeks, nil
	case "monthly", "month":
		return Monthly, nil
	default:
		return 0, eris.Errorf("bucket: unknown policy %q", s)
	}
}

// Window is one contiguous sub-range of the requested period. Start and End
// are inclusive calendar dates (midnight UTC). Index starts at 1.
type Window struct {
	Index int       `json:"index"`
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days returns the number of calendar days the window covers.
func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

// Windows splits [start, end] into ordered windows per the policy. Fixed-length
// policies anchor at start; Monthly aligns to calendar month boundaries. The
// last window is always clamped to end. start after end is an input error.
func Windows(start, end time.Time, p Policy) ([]Window, error) {
	start = midnight(start)
	end = midnight(end)
	if start.After(end) {
		return nil, eris.Errorf("bucket: start %s after end %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	var span int
	switch p {
	case Daily:
		span = 1
	case ThreeDays:
		span = 3
	case Weekly:
		span = 7
	case TwoWeeks:
		span = 14
	case Monthly:
		return monthlyWindows(start, end), nil
	default:
		return nil, eris.Errorf("bucket: unknown policy %q", p)
	}

	var windows []Window
	idx := 1
	for cur := start; !cur.After(end); {
		wEnd := minDate(cur.AddDate(0, 0, span-1), end)
		windows = append(windows, Window{
			Index: idx,
			Label: label(p, idx),
			Start: cur,
			End:   wEnd,
		})
		idx++
		cur = wEnd.AddDate(0, 0, 1)
	}
	return windows, nil
}

func label(p Policy, idx int) string {
	switch p {
	case Daily:
		return fmt.Sprintf("Day %d", idx)
	case ThreeDays:
		return fmt.Sprintf("3-Day %d", idx)
	case Weekly:
		return fmt.Sprintf("Week %d", idx)
	case TwoWeeks:
		return fmt.Sprintf("2W %d", idx)
	default:
		return fmt.Sprintf("Bucket %d", idx)
	}
}

// monthlyWindows emits one window per calendar month intersecting the range,
// labeled by the month of the window's start date ("Jan 2025").
func monthlyWindows(start, end time.Time) []Window {
	var windows []Window
	idx := 1
	for cur := start; !cur.After(end); {
		monthEnd := time.Date(cur.Year(), cur.Month(), 1, 0, 0, 0, 0, time.UTC).
			AddDate(0, 1, -1)
		wEnd := minDate(monthEnd, end)
		windows = append(windows, Window{
			Index: idx,
			Label: cur.Format("Jan 2006"),
			Start: cur,
			End:   wEnd,
		})
		idx++
		cur = monthEnd.AddDate(0, 0, 1)
	}
	return windows
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func minDate(a, b time.Time) time.Time {
	if a.After(b) {
		return b
	}
	return a
}
