// Package trend runs bucketed ad-metric and funnel-rate fetches across
// centers and folds them into time series, with optional result caching.
package trend

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/echelon-media/centerboard/internal/ads"
	"github.com/echelon-media/centerboard/internal/bucket"
	"github.com/echelon-media/centerboard/internal/cache"
	"github.com/echelon-media/centerboard/internal/center"
	"github.com/echelon-media/centerboard/internal/funnel"
	"github.com/echelon-media/centerboard/internal/report"
	"github.com/echelon-media/centerboard/internal/resilience"
	"github.com/echelon-media/centerboard/pkg/highlevel"
	"github.com/echelon-media/centerboard/pkg/metaads"
)

const (
	defaultPoolSize = 10
	defaultCacheTTL = 5 * time.Minute
)

// WindowResult holds one window's per-center points. Err is set when the
// whole window failed; a partial failure keeps the surviving points and
// leaves the failed centers as zeroed entries.
type WindowResult struct {
	Window bucket.Window  `json:"window"`
	Points []report.Point `json:"points"`
	Err    string         `json:"error,omitempty"`
}

// Result is one complete trend run.
type Result struct {
	Windows   []WindowResult           `json:"windows"`
	Series    []report.BucketAggregate `json:"series"`
	Ranks     []report.CenterRank      `json:"ranks"`
	FromCache bool                     `json:"from_cache"`
}

// Runner fetches ad insights or funnel rates per (window, center) through a
// bounded worker pool with retries, then aggregates.
type Runner struct {
	client metaads.Client
	crm    highlevel.Client
	cache  cache.Cache
	pool   int
	ttl    time.Duration
	retry  resilience.RetryConfig
}

// Option configures a Runner.
type Option func(*Runner)

// WithCache attaches a result cache. A nil cache disables caching.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(r *Runner) {
		r.cache = c
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithCRMClient enables funnel-rate trend runs.
func WithCRMClient(c highlevel.Client) Option {
	return func(r *Runner) {
		r.crm = c
	}
}

// WithPoolSize bounds the number of concurrent window fetches.
func WithPoolSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.pool = n
		}
	}
}

// WithRetryConfig overrides the per-request retry behavior.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(r *Runner) {
		r.retry = cfg
	}
}

// NewRunner creates a trend runner. The default retry policy makes three
// attempts with a 300ms cooperative delay before each request.
func NewRunner(client metaads.Client, opts ...Option) *Runner {
	r := &Runner{
		client: client,
		pool:   defaultPoolSize,
		ttl:    defaultCacheTTL,
		retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 500 * time.Millisecond,
			CooldownDelay:  300 * time.Millisecond,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run splits [start, end] into windows under the policy and fetches every
// center's insights for each window. Windows fail independently; the
// returned error covers only input problems and context cancellation.
func (r *Runner) Run(ctx context.Context, centers []center.Center, start, end time.Time, policy bucket.Policy) (*Result, error) {
	windows, err := bucket.Windows(start, end, policy)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(centers))
	for i, c := range centers {
		names[i] = c.Name
	}
	key := cache.Key("ads", start, end, policy, names)

	if r.cache != nil {
		if payload, ok, err := r.cache.Get(ctx, key); err != nil {
			zap.L().Warn("trend: cache get failed", zap.Error(err))
		} else if ok {
			var results []WindowResult
			if err := json.Unmarshal(payload, &results); err == nil {
				zap.L().Debug("trend: cache hit", zap.String("key", key))
				return r.aggregate(results, true), nil
			}
			zap.L().Warn("trend: cache payload corrupt", zap.String("key", key))
		}
	}

	results := make([]WindowResult, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.pool)
	for i, w := range windows {
		g.Go(func() error {
			results[i] = r.fetchWindow(gctx, centers, w)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Window.Index < results[j].Window.Index
	})

	if r.cache != nil {
		if payload, err := json.Marshal(results); err == nil {
			if err := r.cache.Set(ctx, key, payload, r.ttl); err != nil {
				zap.L().Warn("trend: cache set failed", zap.Error(err))
			}
		}
	}

	return r.aggregate(results, false), nil
}

// fetchWindow pulls every ad-bearing center's insights for one window.
// Per-center failures leave a zeroed point; the window is flagged only
// when no center produced data.
func (r *Runner) fetchWindow(ctx context.Context, centers []center.Center, w bucket.Window) WindowResult {
	result := WindowResult{Window: w}
	failures := 0
	var firstErr error

	for _, c := range centers {
		if !c.HasAdAccount() {
			continue
		}

		cfg := r.retry
		cfg.OnRetry = resilience.RetryLogger("metaads", "insights")
		ins, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*metaads.Insights, error) {
			return r.client.Insights(ctx, c.AdAccountID, w.Start, w.End)
		})

		point := report.Point{CenterName: c.Name, Window: w}
		if err != nil {
			failures++
			if firstErr == nil {
				firstErr = err
			}
			zap.L().Warn("trend: window fetch failed",
				zap.String("center", c.Name),
				zap.Int("window", w.Index),
				zap.Error(err))
		} else {
			m := ads.Extract(ins, c.LeadActionType)
			point.Spend = m.Spend
			point.Leads = m.Leads
			point.CPR = m.CPR
			point.LPConversionRate = m.LPConversionRate
		}
		result.Points = append(result.Points, point)

		if ctx.Err() != nil {
			break
		}
	}

	if failures > 0 && failures == len(result.Points) && firstErr != nil {
		result.Err = firstErr.Error()
	}
	return result
}

// RatePoint is one center's funnel rates inside one time bucket.
type RatePoint struct {
	CenterName       string        `json:"center_name"`
	Window           bucket.Window `json:"window"`
	TotalPlanned     int           `json:"total_planned"`
	ConfirmationRate float64       `json:"confirmation_rate"`
	CancellationRate float64       `json:"cancellation_rate"`
	NoShowRate       float64       `json:"no_show_rate"`
	PresenceRate     float64       `json:"presence_rate"`
	ConversionRate   float64       `json:"conversion_rate"`
}

// RateWindow holds one window's per-center funnel rates. Err is set when
// the whole window failed.
type RateWindow struct {
	Window bucket.Window `json:"window"`
	Points []RatePoint   `json:"points"`
	Err    string        `json:"error,omitempty"`
}

// RatesResult is one complete funnel-rate trend run.
type RatesResult struct {
	Windows   []RateWindow `json:"windows"`
	FromCache bool         `json:"from_cache"`
}

// RunRates is the CRM counterpart of Run: it fetches every center's funnel
// metrics per window and keeps the per-period rates. Requires a CRM client.
func (r *Runner) RunRates(ctx context.Context, centers []center.Center, start, end time.Time, policy bucket.Policy, field funnel.DateField) (*RatesResult, error) {
	if r.crm == nil {
		return nil, eris.New("rate trend requires a CRM client")
	}
	windows, err := bucket.Windows(start, end, policy)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(centers))
	for i, c := range centers {
		names[i] = c.Name
	}
	key := cache.Key("rates:"+string(field), start, end, policy, names)

	if r.cache != nil {
		if payload, ok, err := r.cache.Get(ctx, key); err != nil {
			zap.L().Warn("trend: cache get failed", zap.Error(err))
		} else if ok {
			var results []RateWindow
			if err := json.Unmarshal(payload, &results); err == nil {
				zap.L().Debug("trend: cache hit", zap.String("key", key))
				return &RatesResult{Windows: results, FromCache: true}, nil
			}
			zap.L().Warn("trend: cache payload corrupt", zap.String("key", key))
		}
	}

	results := make([]RateWindow, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.pool)
	for i, w := range windows {
		g.Go(func() error {
			results[i] = r.fetchRateWindow(gctx, centers, w, field)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Window.Index < results[j].Window.Index
	})

	if r.cache != nil {
		if payload, err := json.Marshal(results); err == nil {
			if err := r.cache.Set(ctx, key, payload, r.ttl); err != nil {
				zap.L().Warn("trend: cache set failed", zap.Error(err))
			}
		}
	}

	return &RatesResult{Windows: results}, nil
}

// fetchRateWindow pulls every center's funnel metrics for one window.
// Failed centers leave a zeroed point; the window is flagged only when no
// center produced data.
func (r *Runner) fetchRateWindow(ctx context.Context, centers []center.Center, w bucket.Window, field funnel.DateField) RateWindow {
	result := RateWindow{Window: w}
	failures := 0
	var firstErr error

	for _, c := range centers {
		cfg := r.retry
		cfg.OnRetry = resilience.RetryLogger("highlevel", "funnel")
		stats, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (funnel.Stats, error) {
			return funnel.FetchStrict(ctx, r.crm, c, w, field)
		})

		point := RatePoint{CenterName: c.Name, Window: w}
		if err != nil {
			failures++
			if firstErr == nil {
				firstErr = err
			}
			zap.L().Warn("trend: window fetch failed",
				zap.String("center", c.Name),
				zap.Int("window", w.Index),
				zap.Error(err))
		} else {
			m := stats.Metrics
			point.TotalPlanned = m.TotalPlanned
			point.ConfirmationRate = m.ConfirmationRate
			point.CancellationRate = m.CancellationRate
			point.NoShowRate = m.NoShowRate
			point.PresenceRate = m.PresenceRate
			point.ConversionRate = m.ConversionRate
		}
		result.Points = append(result.Points, point)

		if ctx.Err() != nil {
			break
		}
	}

	if failures > 0 && failures == len(result.Points) && firstErr != nil {
		result.Err = firstErr.Error()
	}
	return result
}

func (r *Runner) aggregate(results []WindowResult, fromCache bool) *Result {
	var points []report.Point
	for _, wr := range results {
		points = append(points, wr.Points...)
	}
	return &Result{
		Windows:   results,
		Series:    report.BucketSeries(points),
		Ranks:     report.RankCenters(points),
		FromCache: fromCache,
	}
}
