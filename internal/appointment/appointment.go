// Package appointment builds per-center appointment reports from one or
// two CRM calendars, grouped by day and status.
package appointment

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/echelon-media/centerboard/internal/calc"
	"github.com/echelon-media/centerboard/internal/center"
	"github.com/echelon-media/centerboard/pkg/highlevel"
)

// DayCounts is the per-day breakdown: total plus per-status counts.
type DayCounts struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

// Rates are the cumulative appointment ratios over the whole range.
// The confirmed pool for no-show and show-up rates is confirmed+showed+noshow
// so an appointment keeps counting as confirmed after its outcome is known.
type Rates struct {
	ConfirmationRate float64 `json:"confirmation_rate"`
	CancellationRate float64 `json:"cancellation_rate"`
	NoShowRate       float64 `json:"no_show_rate"`
	ShowUpRate       float64 `json:"show_up_rate"`
}

// Report is the per-center appointment result. A failed fetch fills Err
// and leaves the counts zeroed.
type Report struct {
	CenterName string               `json:"center_name"`
	City       string               `json:"city"`
	ByDay      map[string]DayCounts `json:"by_day"`
	Totals     map[string]int       `json:"totals"`
	Total      int                  `json:"total"`
	Rates      Rates                `json:"rates"`
	Err        string               `json:"error,omitempty"`
}

// HasError reports whether the fetch behind this Report failed.
func (r Report) HasError() bool {
	return r.Err != ""
}

// Group buckets appointments by day (YYYY-MM-DD of the start time) and
// lower-cased status. Appointments without a parseable start time land
// under "unknown"; a missing status is counted as "unknown" too.
func Group(appts []highlevel.Appointment) map[string]DayCounts {
	byDay := make(map[string]DayCounts)
	for _, a := range appts {
		day := a.Day()
		status := strings.ToLower(strings.TrimSpace(a.Status()))
		if status == "" {
			status = "unknown"
		}

		dc, ok := byDay[day]
		if !ok {
			dc = DayCounts{ByStatus: make(map[string]int)}
		}
		dc.Total++
		dc.ByStatus[status]++
		byDay[day] = dc
	}
	return byDay
}

// Totalize folds the per-day breakdown into cumulative per-status totals
// and computes the ratios.
func Totalize(byDay map[string]DayCounts) (map[string]int, int, Rates) {
	totals := make(map[string]int)
	total := 0
	for _, dc := range byDay {
		total += dc.Total
		for status, n := range dc.ByStatus {
			totals[status] += n
		}
	}

	confirmed := totals["confirmed"]
	cancelled := totals["cancelled"]
	noshow := totals["noshow"]
	showed := totals["showed"]
	confirmedPool := confirmed + showed + noshow

	rates := Rates{
		ConfirmationRate: calc.Round2(calc.Pct(float64(confirmedPool), float64(total))),
		CancellationRate: calc.Round2(calc.Pct(float64(cancelled), float64(total))),
		NoShowRate:       calc.Round2(calc.Pct(float64(noshow), float64(confirmedPool))),
		ShowUpRate:       calc.Round2(calc.Pct(float64(showed), float64(confirmedPool))),
	}
	return totals, total, rates
}

// Fetch pulls the center's calendars concurrently, merges their
// appointments, and builds the report. Missing or "none" calendar ids are
// skipped; a center with no calendars at all yields an empty report.
// Fail-soft: errors land in Report.Err.
func Fetch(ctx context.Context, client highlevel.Client, c center.Center, start, end time.Time) Report {
	report := Report{CenterName: c.Name, City: c.City}
	creds := highlevel.Credentials{APIKey: c.APIKey, LocationID: c.LocationID}

	var calendars []string
	for _, raw := range []string{c.CalendarID, c.CalendarID2} {
		if id := strings.TrimSpace(raw); id != "" && !strings.EqualFold(id, "none") {
			calendars = append(calendars, id)
		}
	}
	if len(calendars) == 0 {
		report.ByDay = Group(nil)
		report.Totals, report.Total, report.Rates = Totalize(report.ByDay)
		return report
	}

	var (
		mu       sync.Mutex
		merged   []highlevel.Appointment
		firstErr error
		wg       sync.WaitGroup
	)
	for _, calendarID := range calendars {
		wg.Add(1)
		go func(calendarID string) {
			defer wg.Done()
			appts, err := client.Appointments(ctx, creds, calendarID, start, end)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			merged = append(merged, appts...)
		}(calendarID)
	}
	wg.Wait()

	if firstErr != nil {
		report.Err = firstErr.Error()
		zap.L().Warn("appointment: calendar fetch failed",
			zap.String("center", c.Name), zap.Error(firstErr))
		return report
	}

	report.ByDay = Group(merged)
	report.Totals, report.Total, report.Rates = Totalize(report.ByDay)
	return report
}

// FetchAll builds reports for every center sequentially; results line up
// with centers.
func FetchAll(ctx context.Context, client highlevel.Client, centers []center.Center, start, end time.Time) []Report {
	out := make([]Report, len(centers))
	for i, c := range centers {
		out[i] = Fetch(ctx, client, c, start, end)
	}
	return out
}
