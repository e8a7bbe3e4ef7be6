package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/echelon-media/centerboard/internal/ads"
	"github.com/echelon-media/centerboard/internal/center"
	"github.com/echelon-media/centerboard/internal/export"
	"github.com/echelon-media/centerboard/internal/funnel"
	"github.com/echelon-media/centerboard/internal/report"
)

var (
	exportOutput    string
	exportDateField string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the combined report to an Excel workbook",
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
		field, err := parseDateField(exportDateField)
		if err != nil {
			return err
		}
		adsClient, err := newAdsClient()
		if err != nil {
			return err
		}
		logRange("export report", start, end, len(centers))

		crmClient := newCRMClient()
		w := rangeWindow(start, end)

		funnelStats := forEachCenter(ctx, centers, cfg.Fetch.PoolSize, func(ctx context.Context, c center.Center) funnel.Stats {
			return funnel.Fetch(ctx, crmClient, c, w, field)
		})
		adStats := forEachCenter(ctx, centers, cfg.Fetch.PoolSize, func(ctx context.Context, c center.Center) ads.Stats {
			return ads.Fetch(ctx, adsClient, c, start, end)
		})

		rows := report.Combine(funnelStats, adStats)
		if err := export.Write(exportOutput, rows, report.Summarize(rows)); err != nil {
			return err
		}

		zap.L().Info("report exported",
			zap.String("path", exportOutput),
			zap.Int("rows", len(rows)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "centerboard.xlsx", "output file path")
	exportCmd.Flags().StringVar(&exportDateField, "date-field", "created", "opportunity date field to filter on (created or updated)")
}
