package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/echelon-media/centerboard/internal/center"
	"github.com/echelon-media/centerboard/internal/funnel"
)

var funnelDateField string

var funnelCmd = &cobra.Command{
	Use:   "funnel",
	Short: "Per-center opportunity funnel report",
	Long: `Fetches every selected center's pipeline opportunities for the range
and reports funnel counts and rates (confirmation, cancellation, no-show,
presence, conversion). Centers whose fetch fails stay in the output with
an error field.`,
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
		field, err := parseDateField(funnelDateField)
		if err != nil {
			return err
		}
		logRange("funnel report", start, end, len(centers))

		client := newCRMClient()
		w := rangeWindow(start, end)
		stats := forEachCenter(ctx, centers, cfg.Fetch.PoolSize, func(ctx context.Context, c center.Center) funnel.Stats {
			return funnel.Fetch(ctx, client, c, w, field)
		})

		return printJSON(stats)
	},
}

func parseDateField(s string) (funnel.DateField, error) {
	switch s {
	case "updated", "":
		return funnel.ByUpdatedAt, nil
	case "created":
		return funnel.ByCreatedAt, nil
	default:
		return "", eris.Errorf("unknown date field %q (want created or updated)", s)
	}
}

func init() {
	funnelCmd.Flags().StringVar(&funnelDateField, "date-field", "updated", "opportunity date field to filter on (created or updated)")
}
