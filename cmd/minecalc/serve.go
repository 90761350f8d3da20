package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jananikolasekar/hut8-janani/internal/api"
	"github.com/jananikolasekar/hut8-janani/internal/metrics"
	"github.com/jananikolasekar/hut8-janani/internal/profitability"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API serving POST /calculate, GET /market and GET /health.

Examples:
  # Start with defaults on :8000
  minecalc serve

  # Start with a specific config
  minecalc serve --config /etc/minecalc/config.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*cfgFile)
		},
	}
}

func runServe(cfgFile string) error {
	cfg, logger, err := loadRuntime(cfgFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	calc := profitability.New(profitability.BitcoinConstants())
	server := api.NewServer(cfg, calc, liveMarket(cfg, logger, m), logger, m, version)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logger.Info("minecalc is running",
		zap.String("version", version),
		zap.String("addr", cfg.Addr()),
		zap.Strings("price_sources", cfg.Pricing.Sources))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-errCh:
		if ok {
			logger.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("minecalc stopped")
	return nil
}
