package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/echelon-media/centerboard/internal/appointment"
	"github.com/echelon-media/centerboard/internal/center"
)

var appointmentsCmd = &cobra.Command{
	Use:   "appointments",
	Short: "Per-center appointment report",
	Long: `Fetches each center's calendar appointments (both calendars when a
second one is configured), groups them by day and status, and reports
cumulative totals with confirmation, cancellation, no-show, and show-up
rates.`,
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
		logRange("appointments report", start, end, len(centers))

		client := newCRMClient()
		reports := forEachCenter(ctx, centers, cfg.Fetch.PoolSize, func(ctx context.Context, c center.Center) appointment.Report {
			return appointment.Fetch(ctx, client, c, start, end)
		})

		return printJSON(reports)
	},
}
