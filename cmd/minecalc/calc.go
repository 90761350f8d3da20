package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jananikolasekar/hut8-janani/internal/market"
	"github.com/jananikolasekar/hut8-janani/internal/profitability"
	"github.com/jananikolasekar/hut8-janani/internal/rig"
)

type calcOptions struct {
	request    profitability.Request
	price      float64
	difficulty float64
	miner      string
}

const minerTimeout = 5 * time.Second

func newCalcCmd(cfgFile *string) *cobra.Command {
	var opts calcOptions

	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Compute a profitability report and print it as JSON",
		Long: `Compute a profitability report for one rig and print it as JSON.

Price and difficulty are fetched from the configured feeds unless given.
Hash rate and power can be read from an AxeOS or NerdQAxe miner instead.

Examples:
  # Live market data
  minecalc calc --hash-rate 110 --power 3250 --electricity-cost 0.1 --investment 5000

  # Offline, with a fixed market
  minecalc calc --hash-rate 110 --power 3250 --electricity-cost 0.1 --investment 5000 \
    --price 60000 --difficulty 7e13

  # Rig parameters from a miner on the LAN
  minecalc calc --miner 192.168.1.50 --electricity-cost 0.1 --investment 300`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if opts.miner != "" {
				reading, err := rig.NewClient(minerTimeout).Fetch(cmd.Context(), opts.miner)
				if err != nil {
					return err
				}
				if !flags.Changed("hash-rate") {
					opts.request.HashRate = reading.HashRateTHs
				}
				if !flags.Changed("power") {
					opts.request.PowerConsumption = reading.PowerWatts
				}
			}
			return runCalc(cmd.Context(), cmd.OutOrStdout(), *cfgFile, opts,
				flags.Changed("price"), flags.Changed("difficulty"))
		},
	}

	flags := cmd.Flags()
	flags.Float64Var(&opts.request.HashRate, "hash-rate", 0, "hash rate in TH/s")
	flags.Float64Var(&opts.request.PowerConsumption, "power", 0, "power draw in watts")
	flags.Float64Var(&opts.request.ElectricityCost, "electricity-cost", 0, "electricity price per kWh")
	flags.Float64Var(&opts.request.InitialInvestment, "investment", 0, "upfront hardware cost")
	flags.Float64Var(&opts.price, "price", 0, "BTC price in USD (skips the price feed)")
	flags.Float64Var(&opts.difficulty, "difficulty", 0, "network difficulty (skips the difficulty feed)")
	flags.StringVar(&opts.miner, "miner", "", "read hash rate and power from the miner at this address")

	for _, name := range []string{"electricity-cost", "investment"} {
		_ = cmd.MarkFlagRequired(name)
	}
	cmd.MarkFlagsOneRequired("hash-rate", "miner")
	cmd.MarkFlagsOneRequired("power", "miner")

	return cmd
}

func runCalc(ctx context.Context, out io.Writer, cfgFile string, opts calcOptions, havePrice, haveDifficulty bool) error {
	if err := opts.request.Validate(); err != nil {
		return err
	}

	var src market.Source
	if havePrice && haveDifficulty {
		src = market.NewService(market.FixedPrice(opts.price), market.FixedDifficulty(opts.difficulty))
	} else {
		cfg, logger, err := loadRuntime(cfgFile)
		if err != nil {
			return err
		}
		defer logger.Sync()

		var price market.PriceFeed = market.NewPriceService(cfg.Pricing, logger, nil)
		if havePrice {
			price = market.FixedPrice(opts.price)
		}
		var difficulty market.DifficultyFeed = market.NewBlockchainInfo(cfg.Pricing, logger, nil)
		if haveDifficulty {
			difficulty = market.FixedDifficulty(opts.difficulty)
		}
		src = market.NewService(price, difficulty)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	snapshot, err := src.Snapshot(ctx)
	if err != nil {
		return err
	}

	report, err := profitability.New(profitability.BitcoinConstants()).Compute(opts.request, snapshot)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report.Rounded()); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
