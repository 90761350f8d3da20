package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jananikolasekar/hut8-janani/internal/config"
	"github.com/jananikolasekar/hut8-janani/internal/logging"
	"github.com/jananikolasekar/hut8-janani/internal/market"
	"github.com/jananikolasekar/hut8-janani/internal/metrics"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "minecalc",
		Short: "Bitcoin mining profitability calculator",
		Long: `minecalc estimates mining revenue, cost, profit and break-even time
for a rig from its hash rate, power draw, electricity price and upfront
investment, using the live BTC price and network difficulty.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	root.AddCommand(newServeCmd(&cfgFile), newCalcCmd(&cfgFile))
	return root
}

// loadRuntime loads configuration and builds the logger it names
func loadRuntime(cfgFile string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

// liveMarket wires the configured price sources and the difficulty feed
func liveMarket(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) *market.Service {
	return market.NewService(
		market.NewPriceService(cfg.Pricing, logger, m),
		market.NewBlockchainInfo(cfg.Pricing, logger, m),
	)
}
