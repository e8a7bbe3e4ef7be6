package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/echelon-media/centerboard/internal/ads"
	"github.com/echelon-media/centerboard/internal/center"
	"github.com/echelon-media/centerboard/internal/funnel"
	"github.com/echelon-media/centerboard/internal/report"
)

// combinedOutput pairs the per-center rows with the portfolio summary.
type combinedOutput struct {
	Rows    []report.CombinedRow `json:"rows"`
	Summary report.Summary       `json:"summary"`
}

var combinedDateField string

var combinedCmd = &cobra.Command{
	Use:   "combined",
	Short: "Joint CRM and ad performance per center",
	Long: `Fetches funnel stats and ad insights for every selected center,
joins them per center, and appends a portfolio summary with spend-weighted
cost metrics. Partial failures are flagged per row rather than aborting
the report.`,
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
		field, err := parseDateField(combinedDateField)
		if err != nil {
			return err
		}
		adsClient, err := newAdsClient()
		if err != nil {
			return err
		}
		logRange("combined report", start, end, len(centers))

		crmClient := newCRMClient()
		w := rangeWindow(start, end)

		funnelStats := forEachCenter(ctx, centers, cfg.Fetch.PoolSize, func(ctx context.Context, c center.Center) funnel.Stats {
			return funnel.Fetch(ctx, crmClient, c, w, field)
		})
		adStats := forEachCenter(ctx, centers, cfg.Fetch.PoolSize, func(ctx context.Context, c center.Center) ads.Stats {
			return ads.Fetch(ctx, adsClient, c, start, end)
		})

		rows := report.Combine(funnelStats, adStats)
		return printJSON(combinedOutput{Rows: rows, Summary: report.Summarize(rows)})
	},
}

func init() {
	combinedCmd.Flags().StringVar(&combinedDateField, "date-field", "created", "opportunity date field to filter on (created or updated)")
}
