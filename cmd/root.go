package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/echelon-media/centerboard/internal/config"
)

var cfg *config.Config

var (
	flagStart   string
	flagEnd     string
	flagCenters []string
)

var rootCmd = &cobra.Command{
	Use:   "centerboard",
	Short: "CRM and ad-platform performance reporting for multi-center businesses",
	Long:  "Fetches pipeline opportunities, calendar appointments, and ad insights per center, then aggregates them into funnel reports, combined KPI tables, and bucketed trend series.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagStart, "start", "", "range start (YYYY-MM-DD, default 30 days ago)")
	rootCmd.PersistentFlags().StringVar(&flagEnd, "end", "", "range end (YYYY-MM-DD, default today)")
	rootCmd.PersistentFlags().StringSliceVar(&flagCenters, "centers", nil, "center names to include (default all)")

	rootCmd.AddCommand(funnelCmd)
	rootCmd.AddCommand(appointmentsCmd)
	rootCmd.AddCommand(adsCmd)
	rootCmd.AddCommand(combinedCmd)
	rootCmd.AddCommand(trendCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
