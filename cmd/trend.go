package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/echelon-media/centerboard/internal/bucket"
	"github.com/echelon-media/centerboard/internal/resilience"
	"github.com/echelon-media/centerboard/internal/trend"
)

var (
	trendPolicy    string
	trendMetric    string
	trendDateField string
)

var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Bucketed ad or funnel performance over time",
	Long: `Splits the range into buckets (daily, 3days, weekly, 2weeks, or
monthly) and fetches every center's metrics per bucket. With --metric ads
(the default) it reports per-center ad points, the weighted CPR series, and
the center ranking; with --metric rates it reports per-center funnel rates
per bucket instead. Results are cached so repeated runs over the same range
skip the upstream APIs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		start, end, err := parseRange()
		if err != nil {
			return err
		}
		centers, err := loadCenters()
		if err != nil {
			return err
		}
		policy, err := bucket.ParsePolicy(trendPolicy)
		if err != nil {
			return err
		}
		logRange("trend report", start, end, len(centers))

		store, err := newCache(ctx)
		if err != nil {
			zap.L().Warn("cache unavailable, continuing without", zap.Error(err))
			store = nil
		}
		if store != nil {
			defer store.Close()
		}

		opts := []trend.Option{
			trend.WithPoolSize(cfg.Fetch.PoolSize),
			trend.WithCache(store, cfg.Cache.TTL()),
			trend.WithRetryConfig(resilience.RetryConfig{
				MaxAttempts:    cfg.Fetch.Retries,
				InitialBackoff: 500 * time.Millisecond,
				CooldownDelay:  time.Duration(cfg.Fetch.CooldownMS) * time.Millisecond,
			}),
		}

		switch trendMetric {
		case "rates":
			field, err := parseDateField(trendDateField)
			if err != nil {
				return err
			}
			runner := trend.NewRunner(nil, append(opts, trend.WithCRMClient(newCRMClient()))...)
			result, err := runner.RunRates(ctx, centers, start, end, policy, field)
			if err != nil {
				return err
			}
			return printJSON(result)
		case "ads":
			client, err := newAdsClient()
			if err != nil {
				return err
			}
			result, err := trend.NewRunner(client, opts...).Run(ctx, centers, start, end, policy)
			if err != nil {
				return err
			}
			return printJSON(result)
		default:
			return eris.Errorf("unknown metric %q (want ads or rates)", trendMetric)
		}
	},
}

func init() {
	trendCmd.Flags().StringVar(&trendPolicy, "policy", "weekly", "bucketing policy (daily, 3days, weekly, 2weeks, monthly)")
	trendCmd.Flags().StringVar(&trendMetric, "metric", "ads", "trended metric family (ads or rates)")
	trendCmd.Flags().StringVar(&trendDateField, "date-field", "updated", "opportunity date field for --metric rates (created or updated)")
}
