package funnel

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/echelon-media/centerboard/internal/bucket"
	"github.com/echelon-media/centerboard/internal/center"
	"github.com/echelon-media/centerboard/internal/stage"
	"github.com/echelon-media/centerboard/pkg/highlevel"
)

// PipelineRef identifies the pipeline a Stats was computed from.
type PipelineRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Stats is the per-center funnel result. A failed fetch fills Err and
// leaves Metrics zeroed; it never propagates as a Go error so one center's
// outage cannot sink a multi-center report.
type Stats struct {
	CenterName string                  `json:"center_name"`
	City       string                  `json:"city"`
	Pipeline   PipelineRef             `json:"pipeline,omitempty"`
	Metrics    Metrics                 `json:"metrics"`
	StageStats map[stage.Canonical]int `json:"stage_stats,omitempty"`
	Err        string                  `json:"error,omitempty"`
}

// HasError reports whether the fetch behind this Stats failed.
func (s Stats) HasError() bool {
	return s.Err != ""
}

// Fetch resolves the center's pipeline by name, pages through its
// opportunities, and extracts funnel metrics for the window.
func Fetch(ctx context.Context, client highlevel.Client, c center.Center, w bucket.Window, field DateField) Stats {
	stats, err := FetchStrict(ctx, client, c, w, field)
	if err != nil {
		stats.Err = err.Error()
	}
	return stats
}

// FetchStrict is Fetch with the failure returned as a typed error rather
// than folded into Stats.Err, so callers can classify and retry it.
func FetchStrict(ctx context.Context, client highlevel.Client, c center.Center, w bucket.Window, field DateField) (Stats, error) {
	stats := Stats{CenterName: c.Name, City: c.City}
	creds := highlevel.Credentials{APIKey: c.APIKey, LocationID: c.LocationID}

	pipelines, err := client.Pipelines(ctx, creds)
	if err != nil {
		zap.L().Warn("funnel: pipelines fetch failed",
			zap.String("center", c.Name), zap.Error(err))
		return stats, err
	}

	var target *highlevel.Pipeline
	for i := range pipelines {
		if pipelines[i].Name == c.PipelineName {
			target = &pipelines[i]
			break
		}
	}
	if target == nil {
		zap.L().Warn("funnel: pipeline not found",
			zap.String("center", c.Name), zap.String("pipeline", c.PipelineName))
		return stats, eris.New("pipeline not found: " + c.PipelineName)
	}
	stats.Pipeline = PipelineRef{ID: target.ID, Name: target.Name}

	opps, err := client.Opportunities(ctx, creds, target.ID)
	if err != nil {
		zap.L().Warn("funnel: opportunities fetch failed",
			zap.String("center", c.Name), zap.Error(err))
		return stats, err
	}

	stats.Metrics, stats.StageStats = Extract(opps, target.StageNames(), w, field)
	return stats, nil
}

// FetchAll runs Fetch for every center sequentially. Callers needing
// fan-out wrap it in their own errgroup; results line up with centers.
func FetchAll(ctx context.Context, client highlevel.Client, centers []center.Center, w bucket.Window, field DateField) []Stats {
	out := make([]Stats, len(centers))
	for i, c := range centers {
		out[i] = Fetch(ctx, client, c, w, field)
	}
	return out
}
