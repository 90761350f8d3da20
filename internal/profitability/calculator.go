// Package profitability estimates proof-of-work mining returns from rig
// parameters and a market snapshot.
package profitability

import (
	"math"

	"github.com/jananikolasekar/hut8-janani/internal/apperror"
)

// Constants are the fixed protocol and calendar parameters of the mined asset
type Constants struct {
	BlockReward       float64 // Coins issued per block
	SecondsPerDay     float64
	HashesPerTerahash float64
	SearchSpace       float64 // Expected hashes per unit of difficulty (2^32)
	HoursPerDay       float64
	DaysPerMonth      float64 // Fixed 30-day month
	MonthsPerYear     float64 // Used for yearly cost only
	DaysPerYear       float64 // Used for yearly revenue only
	WattsPerKilowatt  float64
}

// BitcoinConstants returns the constants for Bitcoin after the 2024 halving
func BitcoinConstants() Constants {
	return Constants{
		BlockReward:       3.125,
		SecondsPerDay:     86400,
		HashesPerTerahash: 1e12,
		SearchSpace:       1 << 32,
		HoursPerDay:       24,
		DaysPerMonth:      30,
		MonthsPerYear:     12,
		DaysPerYear:       365,
		WattsPerKilowatt:  1000,
	}
}

// Request holds the rig parameters supplied by the user
type Request struct {
	HashRate          float64 `json:"hash_rate"`          // TH/s
	PowerConsumption  float64 `json:"power_consumption"`  // Watts
	ElectricityCost   float64 `json:"electricity_cost"`   // Currency per kWh
	InitialInvestment float64 `json:"initial_investment"` // Currency
}

// MarketSnapshot holds the live market inputs
type MarketSnapshot struct {
	PriceUSD          float64 `json:"priceUsd"`
	NetworkDifficulty float64 `json:"networkDifficulty"`
}

// Report contains the derived profitability metrics
type Report struct {
	DailyCost         float64 `json:"dailyCost"`
	MonthlyCost       float64 `json:"monthlyCost"`
	YearlyCost        float64 `json:"yearlyCost"`
	DailyRevenueUSD   float64 `json:"dailyRevenueUSD"`
	MonthlyRevenueUSD float64 `json:"monthlyRevenueUSD"`
	YearlyRevenueUSD  float64 `json:"yearlyRevenueUSD"`
	DailyRevenueBTC   float64 `json:"dailyRevenueBTC"`
	MonthlyRevenueBTC float64 `json:"monthlyRevenueBTC"`
	YearlyRevenueBTC  float64 `json:"yearlyRevenueBTC"`
	DailyProfitUSD    float64 `json:"dailyProfitUSD"`
	MonthlyProfitUSD  float64 `json:"monthlyProfitUSD"`
	YearlyProfitUSD   float64 `json:"yearlyProfitUSD"`
	BreakevenTimeline float64 `json:"breakevenTimeline"` // Months
	CostToMine        float64 `json:"costToMine"`        // Currency per coin
}

// Validate checks the rig parameters: hash rate and power must be
// positive, costs must not be negative.
func (r Request) Validate() error {
	fields := []struct {
		name     string
		value    float64
		positive bool
	}{
		{"hash_rate", r.HashRate, true},
		{"power_consumption", r.PowerConsumption, true},
		{"electricity_cost", r.ElectricityCost, false},
		{"initial_investment", r.InitialInvestment, false},
	}
	for _, f := range fields {
		switch {
		case !isFinite(f.value):
			return apperror.Input(apperror.CodeInvalidInput, "%s must be a finite number", f.name)
		case f.positive && f.value <= 0:
			return apperror.Input(apperror.CodeInvalidInput, "%s must be greater than 0", f.name)
		case !f.positive && f.value < 0:
			return apperror.Input(apperror.CodeInvalidInput, "%s cannot be negative", f.name)
		}
	}
	return nil
}

// Calculator computes profitability reports for a fixed set of constants
type Calculator struct {
	c Constants
}

// New creates a Calculator
func New(c Constants) *Calculator {
	return &Calculator{c: c}
}

// Compute derives the report. Values are unrounded; see Report.Rounded.
// A zero difficulty, zero monthly profit or zero daily yield is a domain error.
func (calc *Calculator) Compute(req Request, market MarketSnapshot) (Report, error) {
	c := calc.c

	inputs := []struct {
		name  string
		value float64
	}{
		{"hash rate", req.HashRate},
		{"power consumption", req.PowerConsumption},
		{"electricity cost", req.ElectricityCost},
		{"initial investment", req.InitialInvestment},
		{"price", market.PriceUSD},
		{"network difficulty", market.NetworkDifficulty},
	}
	for _, in := range inputs {
		if !isFinite(in.value) {
			return Report{}, apperror.Domain(apperror.CodeNonFiniteResult, "%s is not a finite number", in.name)
		}
	}
	if market.NetworkDifficulty == 0 {
		return Report{}, apperror.Domain(apperror.CodeDivisionByZero, "division by zero: network difficulty is zero")
	}
	if market.NetworkDifficulty < 0 {
		return Report{}, apperror.Domain(apperror.CodeInvalidMarket, "network difficulty must be positive, got %g", market.NetworkDifficulty)
	}

	hashesPerSecond := req.HashRate * c.HashesPerTerahash
	btcPerDay := (c.BlockReward * c.SecondsPerDay * hashesPerSecond) / (market.NetworkDifficulty * c.SearchSpace)
	btcPerMonth := btcPerDay * c.DaysPerMonth
	monthlyIncome := btcPerMonth * market.PriceUSD
	monthlyCost := (req.PowerConsumption * c.HoursPerDay * c.DaysPerMonth / c.WattsPerKilowatt) * req.ElectricityCost
	monthlyProfit := monthlyIncome - monthlyCost

	if monthlyProfit == 0 {
		return Report{}, apperror.Domain(apperror.CodeDivisionByZero, "division by zero: monthly profit is zero, break-even is undefined")
	}
	if btcPerDay == 0 {
		return Report{}, apperror.Domain(apperror.CodeDivisionByZero, "division by zero: daily mined amount is zero")
	}

	dailyCost := monthlyCost / c.DaysPerMonth
	yearlyCost := monthlyCost * c.MonthsPerYear

	r := Report{
		DailyCost:         dailyCost,
		MonthlyCost:       monthlyCost,
		YearlyCost:        yearlyCost,
		DailyRevenueUSD:   btcPerDay * market.PriceUSD,
		MonthlyRevenueUSD: btcPerMonth * market.PriceUSD,
		YearlyRevenueUSD:  btcPerDay * c.DaysPerYear * market.PriceUSD,
		DailyRevenueBTC:   btcPerDay,
		MonthlyRevenueBTC: btcPerMonth,
		YearlyRevenueBTC:  btcPerDay * c.DaysPerYear,
		DailyProfitUSD:    (btcPerDay * market.PriceUSD) - dailyCost,
		MonthlyProfitUSD:  (btcPerMonth * market.PriceUSD) - monthlyCost,
		YearlyProfitUSD:   (btcPerDay * c.DaysPerYear * market.PriceUSD) - yearlyCost,
		BreakevenTimeline: req.InitialInvestment / monthlyProfit,
		CostToMine:        (1 / btcPerDay) * dailyCost,
	}

	if name, ok := r.firstNonFinite(); ok {
		return Report{}, apperror.Domain(apperror.CodeNonFiniteResult, "%s is not a finite number", name)
	}

	return r, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
