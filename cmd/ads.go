package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/echelon-media/centerboard/internal/ads"
	"github.com/echelon-media/centerboard/internal/center"
)

var adsCmd = &cobra.Command{
	Use:   "ads",
	Short: "Per-center ad performance report",
	Long: `Fetches each center's ad insights for the range and reports spend,
leads, CPR, hook rate, and conversion rates. Centers without a configured
ad account are reported with an error field instead of being dropped.`,
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
		client, err := newAdsClient()
		if err != nil {
			return err
		}
		logRange("ads report", start, end, len(centers))

		stats := forEachCenter(ctx, centers, cfg.Fetch.PoolSize, func(ctx context.Context, c center.Center) ads.Stats {
			return ads.Fetch(ctx, client, c, start, end)
		})

		return printJSON(stats)
	},
}
