package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/echelon-media/centerboard/internal/resilience"
	"github.com/echelon-media/centerboard/internal/server"
	"github.com/echelon-media/centerboard/internal/trend"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the reporting API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		centers, err := loadCenters()
		if err != nil {
			return err
		}
		adsClient, err := newAdsClient()
		if err != nil {
			return err
		}

		store, err := newCache(ctx)
		if err != nil {
			zap.L().Warn("cache unavailable, continuing without", zap.Error(err))
			store = nil
		}
		if store != nil {
			defer store.Close()
		}

		crmClient := newCRMClient()
		runner := trend.NewRunner(adsClient,
			trend.WithCRMClient(crmClient),
			trend.WithPoolSize(cfg.Fetch.PoolSize),
			trend.WithCache(store, cfg.Cache.TTL()),
			trend.WithRetryConfig(resilience.RetryConfig{
				MaxAttempts:    cfg.Fetch.Retries,
				InitialBackoff: 500 * time.Millisecond,
				CooldownDelay:  time.Duration(cfg.Fetch.CooldownMS) * time.Millisecond,
			}),
		)

		handler := server.New(server.Deps{
			Centers: centers,
			CRM:     crmClient,
			Ads:     adsClient,
			Trend:   runner,
			Pool:    cfg.Fetch.PoolSize,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: handler,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Error("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("server listening", zap.Int("port", port), zap.Int("centers", len(centers)))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides config)")
}
