// Package ads turns raw ad-platform insight records into per-center
// acquisition metrics.
package ads

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/echelon-media/centerboard/internal/calc"
	"github.com/echelon-media/centerboard/internal/center"
	"github.com/echelon-media/centerboard/pkg/metaads"
)

// scheduleAction is the conversion action type always counted as a lead,
// on top of the center's configured lead action type.
const scheduleAction = "schedule_total"

// Metrics are the normalized ad metrics of one center over one date range.
type Metrics struct {
	Leads            int     `json:"leads"`
	Spend            float64 `json:"spend"`
	CPM              float64 `json:"cpm"`
	CTR              float64 `json:"ctr"`
	CPR              float64 `json:"cpr"`
	Impressions      int     `json:"impressions"`
	InlineLinkClicks int     `json:"inline_link_clicks"`
	Video30sWatched  int     `json:"video_30_sec_watched"`
	LandingPageViews int     `json:"landing_page_views"`
	HookRate         float64 `json:"hook_rate"`
	ConversionRate   float64 `json:"conversion_rate"`
	LPConversionRate float64 `json:"lp_conversion_rate"`
}

// Stats is the per-center ad result. Fail-soft: a missing account or a
// failed fetch fills Err and leaves Metrics zeroed.
type Stats struct {
	CenterName  string  `json:"center_name"`
	City        string  `json:"city"`
	AdAccountID string  `json:"ad_account_id,omitempty"`
	Metrics     Metrics `json:"metrics"`
	Err         string  `json:"error,omitempty"`
}

// HasError reports whether the fetch behind this Stats failed.
func (s Stats) HasError() bool {
	return s.Err != ""
}

func num(n json.Number) float64 {
	f, err := n.Float64()
	if err != nil {
		return 0
	}
	return f
}

// Extract normalizes one insight record. leadActionType names the action
// counted as a lead for this center on top of schedule_total conversions;
// empty means conversions only. When the platform reports zero inline link
// clicks the generic link_click action stands in for them.
func Extract(ins *metaads.Insights, leadActionType string) Metrics {
	var m Metrics
	if ins == nil {
		return m
	}

	m.Spend = num(ins.Spend)
	m.CPM = num(ins.CPM)
	m.CTR = num(ins.CTR)
	m.Impressions = int(num(ins.Impressions))
	m.InlineLinkClicks = int(num(ins.InlineLinkClicks))

	for _, conv := range ins.Conversions {
		if conv.ActionType == scheduleAction {
			m.Leads += conv.Count()
		}
	}

	for _, act := range ins.Actions {
		if m.InlineLinkClicks == 0 && act.ActionType == "link_click" {
			m.InlineLinkClicks += act.Count()
		}
		if act.ActionType == "landing_page_view" {
			m.LandingPageViews += act.Count()
		}
		if leadActionType != "" && act.ActionType == leadActionType {
			m.Leads += act.Count()
		}
	}

	for _, v := range ins.Video30sActions {
		m.Video30sWatched += v.Count()
	}

	m.CPR = calc.Round2(calc.Ratio(m.Spend, float64(m.Leads)))
	m.HookRate = calc.Round2(calc.Pct(float64(m.Video30sWatched), float64(m.Impressions)))
	m.ConversionRate = calc.Round2(calc.Pct(float64(m.Leads), float64(m.InlineLinkClicks)))
	m.LPConversionRate = calc.Round2(calc.Pct(float64(m.Leads), float64(m.LandingPageViews)))
	return m
}

// Fetch pulls the center's ad insights and extracts metrics. Centers with
// no configured ad account come back error-tagged without calling the API.
func Fetch(ctx context.Context, client metaads.Client, c center.Center, since, until time.Time) Stats {
	stats := Stats{CenterName: c.Name, City: c.City, AdAccountID: c.AdAccountID}

	if !c.HasAdAccount() {
		stats.Err = "no ad account configured"
		return stats
	}

	ins, err := client.Insights(ctx, c.AdAccountID, since, until)
	if err != nil {
		stats.Err = err.Error()
		zap.L().Warn("ads: insights fetch failed",
			zap.String("center", c.Name), zap.Error(err))
		return stats
	}

	stats.Metrics = Extract(ins, c.LeadActionType)
	return stats
}

// FetchAll pulls insights for every center sequentially; results line up
// with centers.
func FetchAll(ctx context.Context, client metaads.Client, centers []center.Center, since, until time.Time) []Stats {
	out := make([]Stats, len(centers))
	for i, c := range centers {
		out[i] = Fetch(ctx, client, c, since, until)
	}
	return out
}
