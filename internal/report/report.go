// Package report joins CRM funnel stats with ad metrics into combined
// per-center rows, portfolio summaries, bucketed series, and rankings.
package report

import (
	"sort"
	"strings"

	"github.com/echelon-media/centerboard/internal/ads"
	"github.com/echelon-media/centerboard/internal/bucket"
	"github.com/echelon-media/centerboard/internal/calc"
	"github.com/echelon-media/centerboard/internal/funnel"
)

// CombinedRow is one center's joint CRM + ad performance over a range.
// Error flags keep the row visible with its surviving side intact; the
// verbatim upstream error strings ride along for diagnostics.
type CombinedRow struct {
	CenterName string `json:"center_name"`
	City       string `json:"city"`

	Leads            int     `json:"leads"`
	Spend            float64 `json:"spend"`
	CPM              float64 `json:"cpm"`
	CTR              float64 `json:"ctr"`
	CPR              float64 `json:"cpr"`
	Impressions      int     `json:"impressions"`
	InlineLinkClicks int     `json:"inline_link_clicks"`
	Video30sWatched  int     `json:"video_30_sec_watched"`
	HookRate         float64 `json:"hook_rate"`
	AdConversionRate float64 `json:"ad_conversion_rate"`

	TotalPlanned     int     `json:"total_planned"`
	Concretise       int     `json:"concretise"`
	ConfirmationRate float64 `json:"confirmation_rate"`
	ConversionRate   float64 `json:"conversion_rate"`
	CancellationRate float64 `json:"cancellation_rate"`
	NoShowRate       float64 `json:"no_show_rate"`

	CPA                   float64 `json:"cpa"`
	CPL                   float64 `json:"cpl"`
	LeadToSaleRate        float64 `json:"lead_to_sale_rate"`
	LeadToAppointmentRate float64 `json:"lead_to_appointment_rate"`

	HasFunnelError bool   `json:"has_funnel_error"`
	HasAdError     bool   `json:"has_ad_error"`
	FunnelError    string `json:"funnel_error,omitempty"`
	AdError        string `json:"ad_error,omitempty"`
}

// Valid reports whether both sides of the row fetched cleanly.
func (r CombinedRow) Valid() bool {
	return !r.HasFunnelError && !r.HasAdError
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Combine joins funnel and ad stats on the normalized center name. The
// funnel side drives the row list; a center with no ad stats gets a
// zeroed ad side flagged as errored.
func Combine(funnelStats []funnel.Stats, adStats []ads.Stats) []CombinedRow {
	byKey := make(map[string]ads.Stats, len(adStats))
	for _, a := range adStats {
		byKey[key(a.CenterName)] = a
	}

	rows := make([]CombinedRow, 0, len(funnelStats))
	for _, f := range funnelStats {
		row := CombinedRow{
			CenterName:       f.CenterName,
			City:             f.City,
			TotalPlanned:     f.Metrics.TotalPlanned,
			Concretise:       f.Metrics.Concretise,
			ConfirmationRate: f.Metrics.ConfirmationRate,
			ConversionRate:   f.Metrics.ConversionRate,
			CancellationRate: f.Metrics.CancellationRate,
			NoShowRate:       f.Metrics.NoShowRate,
		}
		if f.HasError() {
			row.HasFunnelError = true
			row.FunnelError = f.Err
		}

		a, ok := byKey[key(f.CenterName)]
		switch {
		case !ok:
			row.HasAdError = true
			row.AdError = "no ad data for center"
		case a.HasError():
			row.HasAdError = true
			row.AdError = a.Err
		default:
			row.Leads = a.Metrics.Leads
			row.Spend = a.Metrics.Spend
			row.CPM = a.Metrics.CPM
			row.CTR = a.Metrics.CTR
			row.CPR = a.Metrics.CPR
			row.Impressions = a.Metrics.Impressions
			row.InlineLinkClicks = a.Metrics.InlineLinkClicks
			row.Video30sWatched = a.Metrics.Video30sWatched
			row.HookRate = a.Metrics.HookRate
			row.AdConversionRate = a.Metrics.ConversionRate
		}

		row.CPA = calc.Round2(calc.Ratio(row.Spend, float64(row.Concretise)))
		row.CPL = calc.Round2(calc.Ratio(row.Spend, float64(row.Leads)))
		row.LeadToSaleRate = calc.Round2(calc.Pct(float64(row.Concretise), float64(row.Leads)))
		row.LeadToAppointmentRate = calc.Round2(calc.Pct(float64(row.TotalPlanned), float64(row.Leads)))

		rows = append(rows, row)
	}
	return rows
}

// Summary is the portfolio rollup across error-free rows. CPM, CTR and CPR
// are spend-weighted; the funnel rates are arithmetic means because they
// have no natural common denominator across centers.
type Summary struct {
	TotalCenters     int     `json:"total_centers"`
	TotalSpend       float64 `json:"total_spend"`
	TotalImpressions int     `json:"total_impressions"`
	TotalClicks      int     `json:"total_clicks"`
	TotalVideo30s    int     `json:"total_video_30s"`
	TotalLeads       int     `json:"total_leads"`
	TotalPlanned     int     `json:"total_planned"`
	TotalConcretise  int     `json:"total_concretise"`

	AvgCPA float64 `json:"avg_cpa"`
	AvgCPL float64 `json:"avg_cpl"`
	AvgCPM float64 `json:"avg_cpm"`
	AvgCTR float64 `json:"avg_ctr"`
	AvgCPR float64 `json:"avg_cpr"`

	OverallHookRate          float64 `json:"overall_hook_rate"`
	OverallAdConversionRate  float64 `json:"overall_ad_conversion_rate"`
	OverallLeadToAppointment float64 `json:"overall_lead_to_appointment"`
	OverallLeadToSale        float64 `json:"overall_lead_to_sale"`
	OverallConversionRate    float64 `json:"overall_conversion_rate"`
	OverallConfirmationRate  float64 `json:"overall_confirmation_rate"`
	OverallCancellationRate  float64 `json:"overall_cancellation_rate"`
	OverallNoShowRate        float64 `json:"overall_no_show_rate"`

	Err string `json:"error,omitempty"`
}

// Summarize rolls up the combined rows, skipping any row with a fetch
// error on either side. No valid rows yields a zeroed Summary with Err set.
func Summarize(rows []CombinedRow) Summary {
	var valid []CombinedRow
	for _, r := range rows {
		if r.Valid() {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		return Summary{Err: "no valid data available"}
	}

	var s Summary
	s.TotalCenters = len(valid)

	var wCPM, wCTR, wCPR float64
	var sumConfirmation, sumCancellation, sumNoShow float64
	for _, r := range valid {
		s.TotalSpend += r.Spend
		s.TotalImpressions += r.Impressions
		s.TotalClicks += r.InlineLinkClicks
		s.TotalVideo30s += r.Video30sWatched
		s.TotalLeads += r.Leads
		s.TotalPlanned += r.TotalPlanned
		s.TotalConcretise += r.Concretise

		if r.Spend > 0 {
			wCPM += r.CPM * r.Spend
			wCTR += r.CTR * r.Spend
			wCPR += r.CPR * r.Spend
		}

		sumConfirmation += r.ConfirmationRate
		sumCancellation += r.CancellationRate
		sumNoShow += r.NoShowRate
	}

	s.AvgCPA = calc.Round2(calc.Ratio(s.TotalSpend, float64(s.TotalConcretise)))
	s.AvgCPL = calc.Round2(calc.Ratio(s.TotalSpend, float64(s.TotalLeads)))
	s.AvgCPM = calc.Round2(calc.Ratio(wCPM, s.TotalSpend))
	s.AvgCTR = calc.Round2(calc.Ratio(wCTR, s.TotalSpend))
	s.AvgCPR = calc.Round2(calc.Ratio(wCPR, s.TotalSpend))

	s.OverallHookRate = calc.Round2(calc.Pct(float64(s.TotalVideo30s), float64(s.TotalImpressions)))
	s.OverallAdConversionRate = calc.Round2(calc.Pct(float64(s.TotalLeads), float64(s.TotalClicks)))
	s.OverallLeadToAppointment = calc.Round2(calc.Pct(float64(s.TotalPlanned), float64(s.TotalLeads)))
	s.OverallLeadToSale = calc.Round2(calc.Pct(float64(s.TotalConcretise), float64(s.TotalLeads)))
	s.OverallConversionRate = calc.Round2(calc.Pct(float64(s.TotalConcretise), float64(s.TotalPlanned)))

	n := float64(len(valid))
	s.OverallConfirmationRate = calc.Round2(sumConfirmation / n)
	s.OverallCancellationRate = calc.Round2(sumCancellation / n)
	s.OverallNoShowRate = calc.Round2(sumNoShow / n)

	return s
}

// Point is one center's ad performance inside one time bucket. Trend runs
// emit these; the series and ranking folds consume them.
type Point struct {
	CenterName       string        `json:"center_name"`
	Window           bucket.Window `json:"window"`
	Spend            float64       `json:"spend"`
	Leads            int           `json:"leads"`
	CPR              float64       `json:"cpr"`
	LPConversionRate float64       `json:"lp_conversion_rate"`
}

// BucketAggregate is one bucket's fold across centers: raw spend and lead
// sums over every center, plus the weighted CPR sum(spend)/sum(leads)
// restricted to centers that produced leads.
type BucketAggregate struct {
	Window      bucket.Window `json:"window"`
	SpendSum    float64       `json:"spend_sum"`
	LeadsSum    int           `json:"leads_sum"`
	WeightedCPR float64       `json:"weighted_cpr"`
}

// BucketSeries folds per-center points into one aggregate per bucket,
// ordered by bucket index. Spend from zero-lead centers still counts toward
// the bucket's SpendSum, but only lead-bearing centers feed the weighted
// CPR so a spend-without-leads center cannot distort it. Buckets where no
// center produced leads are dropped.
func BucketSeries(points []Point) []BucketAggregate {
	type fold struct {
		agg        BucketAggregate
		leadsSpend float64
	}
	byIndex := make(map[int]*fold)
	for _, p := range points {
		f, ok := byIndex[p.Window.Index]
		if !ok {
			f = &fold{agg: BucketAggregate{Window: p.Window}}
			byIndex[p.Window.Index] = f
		}
		f.agg.SpendSum += p.Spend
		if p.Leads > 0 {
			f.agg.LeadsSum += p.Leads
			f.leadsSpend += p.Spend
		}
	}

	out := make([]BucketAggregate, 0, len(byIndex))
	for _, f := range byIndex {
		if f.agg.LeadsSum == 0 {
			continue
		}
		f.agg.WeightedCPR = calc.Round2(calc.Ratio(f.leadsSpend, float64(f.agg.LeadsSum)))
		out = append(out, f.agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Window.Index < out[j].Window.Index })
	return out
}

// CenterRank is one center's standing across every bucket it earned leads in.
type CenterRank struct {
	CenterName      string  `json:"center_name"`
	AvgCPR          float64 `json:"avg_cpr"`
	TotalSpend      float64 `json:"total_spend"`
	TotalLeads      int     `json:"total_leads"`
	AvgLPConversion float64 `json:"avg_lp_conversion"`
}

// RankCenters orders centers by average CPR ascending (cheapest first),
// breaking ties by total leads descending. Buckets without leads do not
// count toward a center's average; centers with no lead-bearing bucket
// are dropped entirely.
func RankCenters(points []Point) []CenterRank {
	type acc struct {
		cprSum, lpSum, spend float64
		leads, buckets       int
	}
	byCenter := make(map[string]*acc)
	order := make([]string, 0)
	for _, p := range points {
		if p.Leads <= 0 {
			continue
		}
		a, ok := byCenter[p.CenterName]
		if !ok {
			a = &acc{}
			byCenter[p.CenterName] = a
			order = append(order, p.CenterName)
		}
		a.cprSum += p.CPR
		a.lpSum += p.LPConversionRate
		a.spend += p.Spend
		a.leads += p.Leads
		a.buckets++
	}

	ranks := make([]CenterRank, 0, len(order))
	for _, name := range order {
		a := byCenter[name]
		n := float64(a.buckets)
		ranks = append(ranks, CenterRank{
			CenterName:      name,
			AvgCPR:          calc.Round2(a.cprSum / n),
			TotalSpend:      a.spend,
			TotalLeads:      a.leads,
			AvgLPConversion: calc.Round2(a.lpSum / n),
		})
	}

	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].AvgCPR != ranks[j].AvgCPR {
			return ranks[i].AvgCPR < ranks[j].AvgCPR
		}
		return ranks[i].TotalLeads > ranks[j].TotalLeads
	})
	return ranks
}

// TopN returns the first n ranks, or fewer when the list is shorter.
func TopN(ranks []CenterRank, n int) []CenterRank {
	if n > len(ranks) {
		n = len(ranks)
	}
	return ranks[:n]
}
