package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/echelon-media/centerboard/internal/bucket"
	"github.com/echelon-media/centerboard/internal/cache"
	"github.com/echelon-media/centerboard/internal/center"
	"github.com/echelon-media/centerboard/pkg/highlevel"
	"github.com/echelon-media/centerboard/pkg/metaads"
)

const dateLayout = "2006-01-02"

// parseRange resolves the --start/--end flags. End defaults to today,
// start to thirty days before end.
func parseRange() (time.Time, time.Time, error) {
	end := time.Now().UTC().Truncate(24 * time.Hour)
	if flagEnd != "" {
		var err error
		end, err = time.Parse(dateLayout, flagEnd)
		if err != nil {
			return time.Time{}, time.Time{}, eris.Wrapf(err, "parse --end %q", flagEnd)
		}
	}

	start := end.AddDate(0, 0, -30)
	if flagStart != "" {
		var err error
		start, err = time.Parse(dateLayout, flagStart)
		if err != nil {
			return time.Time{}, time.Time{}, eris.Wrapf(err, "parse --start %q", flagStart)
		}
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, eris.Errorf("start %s is after end %s",
			start.Format(dateLayout), end.Format(dateLayout))
	}
	return start, end, nil
}

// rangeWindow wraps the whole requested range as a single window.
func rangeWindow(start, end time.Time) bucket.Window {
	return bucket.Window{
		Index: 1,
		Label: start.Format(dateLayout) + " to " + end.Format(dateLayout),
		Start: start,
		End:   end,
	}
}

// loadCenters reads the centers file and applies the --centers selection.
func loadCenters() ([]center.Center, error) {
	centers, err := center.Load(cfg.Centers)
	if err != nil {
		return nil, err
	}
	return center.Select(centers, flagCenters)
}

func newCRMClient() highlevel.Client {
	return highlevel.NewClient(
		highlevel.WithBaseURL(cfg.CRM.BaseURL),
		highlevel.WithRateLimit(rate.Limit(cfg.CRM.RatePerSecond), cfg.CRM.RateBurst),
	)
}

func newAdsClient() (metaads.Client, error) {
	if cfg.Ads.AccessToken == "" {
		return nil, eris.New("ads access token not configured (set CENTERBOARD_ADS_ACCESS_TOKEN)")
	}
	return metaads.NewClient(cfg.Ads.AccessToken,
		metaads.WithBaseURL(cfg.Ads.BaseURL),
		metaads.WithRateLimit(rate.Limit(cfg.Ads.RatePerSecond), cfg.Ads.RateBurst),
	), nil
}

// newCache builds the configured trend cache, or nil when disabled.
func newCache(ctx context.Context) (cache.Cache, error) {
	switch cfg.Cache.Driver {
	case "", "none":
		return nil, nil
	case "sqlite":
		return cache.NewSQLite(cfg.Cache.Path)
	case "postgres":
		return cache.NewPostgres(ctx, cfg.Cache.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown cache driver %q", cfg.Cache.Driver)
	}
}

// forEachCenter runs fn for every center through a bounded pool and
// returns results in center order.
func forEachCenter[T any](ctx context.Context, centers []center.Center, limit int, fn func(ctx context.Context, c center.Center) T) []T {
	out := make([]T, len(centers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, c := range centers {
		g.Go(func() error {
			out[i] = fn(gctx, c)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "encode output")
	}
	return nil
}

func logRange(op string, start, end time.Time, centers int) {
	zap.L().Info(op,
		zap.String("start", start.Format(dateLayout)),
		zap.String("end", end.Format(dateLayout)),
		zap.Int("centers", centers),
	)
}
