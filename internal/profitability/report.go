package profitability

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	currencyPlaces = 2
	amountPlaces   = 8
)

// Rounded returns a copy of the report rounded for presentation: cost,
// break-even and cost-to-mine figures to 2 places, revenue and profit
// figures to 8 places.
func (r Report) Rounded() Report {
	return Report{
		DailyCost:         round(r.DailyCost, currencyPlaces),
		MonthlyCost:       round(r.MonthlyCost, currencyPlaces),
		YearlyCost:        round(r.YearlyCost, currencyPlaces),
		DailyRevenueUSD:   round(r.DailyRevenueUSD, amountPlaces),
		MonthlyRevenueUSD: round(r.MonthlyRevenueUSD, amountPlaces),
		YearlyRevenueUSD:  round(r.YearlyRevenueUSD, amountPlaces),
		DailyRevenueBTC:   round(r.DailyRevenueBTC, amountPlaces),
		MonthlyRevenueBTC: round(r.MonthlyRevenueBTC, amountPlaces),
		YearlyRevenueBTC:  round(r.YearlyRevenueBTC, amountPlaces),
		DailyProfitUSD:    round(r.DailyProfitUSD, amountPlaces),
		MonthlyProfitUSD:  round(r.MonthlyProfitUSD, amountPlaces),
		YearlyProfitUSD:   round(r.YearlyProfitUSD, amountPlaces),
		BreakevenTimeline: round(r.BreakevenTimeline, currencyPlaces),
		CostToMine:        round(r.CostToMine, currencyPlaces),
	}
}

// round applies half-to-even to the exact binary value of v, so 2.675
// (stored as 2.67499...) rounds to 2.67 at two places
func round(v float64, places int32) float64 {
	exact := decimal.NewFromFloatWithExponent(v, math.MinInt32)
	return exact.RoundBank(places).InexactFloat64()
}

// firstNonFinite returns the JSON name of the first NaN or infinite field
func (r Report) firstNonFinite() (string, bool) {
	fields := []struct {
		name  string
		value float64
	}{
		{"dailyCost", r.DailyCost},
		{"monthlyCost", r.MonthlyCost},
		{"yearlyCost", r.YearlyCost},
		{"dailyRevenueUSD", r.DailyRevenueUSD},
		{"monthlyRevenueUSD", r.MonthlyRevenueUSD},
		{"yearlyRevenueUSD", r.YearlyRevenueUSD},
		{"dailyRevenueBTC", r.DailyRevenueBTC},
		{"monthlyRevenueBTC", r.MonthlyRevenueBTC},
		{"yearlyRevenueBTC", r.YearlyRevenueBTC},
		{"dailyProfitUSD", r.DailyProfitUSD},
		{"monthlyProfitUSD", r.MonthlyProfitUSD},
		{"yearlyProfitUSD", r.YearlyProfitUSD},
		{"breakevenTimeline", r.BreakevenTimeline},
		{"costToMine", r.CostToMine},
	}
	for _, f := range fields {
		if !isFinite(f.value) {
			return f.name, true
		}
	}
	return "", false
}
