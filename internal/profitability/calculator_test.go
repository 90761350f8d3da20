package profitability

import (
	"math"
	"testing"

	"github.com/jananikolasekar/hut8-janani/internal/apperror"
)

// referenceRig is a 110 TH/s, 3250 W machine at $0.10/kWh and $5000 up front
var referenceRig = Request{
	HashRate:          110,
	PowerConsumption:  3250,
	ElectricityCost:   0.1,
	InitialInvestment: 5000,
}

var referenceMarket = MarketSnapshot{
	PriceUSD:          60000,
	NetworkDifficulty: 7e13,
}

func approxEqual(a, b float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= 1e-12*math.Max(math.Abs(a), math.Abs(b))
}

func TestComputeReferenceScenario(t *testing.T) {
	calc := New(BitcoinConstants())

	r, err := calc.Compute(referenceRig, referenceMarket)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	// Independent rendering of the formulas with literal constants
	btcPerDay := (3.125 * 86400 * (110 * 1e12)) / (7e13 * math.Pow(2, 32))
	btcPerMonth := btcPerDay * 30
	monthlyCost := (3250.0 * 24 * 30 / 1000) * 0.1

	if r.DailyRevenueBTC != btcPerDay {
		t.Errorf("DailyRevenueBTC = %v, want %v", r.DailyRevenueBTC, btcPerDay)
	}
	if r.MonthlyRevenueBTC != btcPerMonth {
		t.Errorf("MonthlyRevenueBTC = %v, want %v", r.MonthlyRevenueBTC, btcPerMonth)
	}
	if r.MonthlyCost != 234 {
		t.Errorf("MonthlyCost = %v, want 234", r.MonthlyCost)
	}
	if r.DailyCost != 7.8 {
		t.Errorf("DailyCost = %v, want 7.8", r.DailyCost)
	}
	if r.MonthlyCost != monthlyCost {
		t.Errorf("MonthlyCost = %v, want %v", r.MonthlyCost, monthlyCost)
	}

	monthlyProfit := btcPerMonth*60000 - monthlyCost
	if want := 5000 / monthlyProfit; r.BreakevenTimeline != want {
		t.Errorf("BreakevenTimeline = %v, want %v", r.BreakevenTimeline, want)
	}
	// At these inputs the rig loses money, so break-even is negative
	if r.BreakevenTimeline >= 0 {
		t.Errorf("expected negative break-even for a loss-making rig, got %v", r.BreakevenTimeline)
	}
	if want := (1 / btcPerDay) * (monthlyCost / 30); r.CostToMine != want {
		t.Errorf("CostToMine = %v, want %v", r.CostToMine, want)
	}
	if want := btcPerDay*60000 - monthlyCost/30; r.DailyProfitUSD != want {
		t.Errorf("DailyProfitUSD = %v, want %v", r.DailyProfitUSD, want)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	calc := New(BitcoinConstants())

	first, err := calc.Compute(referenceRig, referenceMarket)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := calc.Compute(referenceRig, referenceMarket)
		if err != nil {
			t.Fatalf("Compute returned error: %v", err)
		}
		if again != first {
			t.Fatalf("run %d produced %+v, want %+v", i, again, first)
		}
	}

	// A second calculator with the same constants agrees
	other, err := New(BitcoinConstants()).Compute(referenceRig, referenceMarket)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	if other != first {
		t.Errorf("independent calculator produced %+v, want %+v", other, first)
	}
}

func TestComputeHashRateScaling(t *testing.T) {
	calc := New(BitcoinConstants())

	base, err := calc.Compute(referenceRig, referenceMarket)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	doubled := referenceRig
	doubled.HashRate *= 2
	r, err := calc.Compute(doubled, referenceMarket)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	revenues := []struct {
		name      string
		base, got float64
	}{
		{"DailyRevenueBTC", base.DailyRevenueBTC, r.DailyRevenueBTC},
		{"MonthlyRevenueBTC", base.MonthlyRevenueBTC, r.MonthlyRevenueBTC},
		{"YearlyRevenueBTC", base.YearlyRevenueBTC, r.YearlyRevenueBTC},
		{"DailyRevenueUSD", base.DailyRevenueUSD, r.DailyRevenueUSD},
		{"MonthlyRevenueUSD", base.MonthlyRevenueUSD, r.MonthlyRevenueUSD},
		{"YearlyRevenueUSD", base.YearlyRevenueUSD, r.YearlyRevenueUSD},
	}
	for _, f := range revenues {
		if !approxEqual(f.got, 2*f.base) {
			t.Errorf("%s = %v, want double of %v", f.name, f.got, f.base)
		}
	}

	if r.DailyCost != base.DailyCost || r.MonthlyCost != base.MonthlyCost || r.YearlyCost != base.YearlyCost {
		t.Errorf("costs changed with hash rate: base %+v, doubled %+v", base, r)
	}
}

func TestComputeElectricityCostMonotonic(t *testing.T) {
	calc := New(BitcoinConstants())

	cheap := referenceRig
	cheap.ElectricityCost = 0.05
	expensive := referenceRig
	expensive.ElectricityCost = 0.15

	lo, err := calc.Compute(cheap, referenceMarket)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	hi, err := calc.Compute(expensive, referenceMarket)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	costs := []struct {
		name   string
		lo, hi float64
	}{
		{"DailyCost", lo.DailyCost, hi.DailyCost},
		{"MonthlyCost", lo.MonthlyCost, hi.MonthlyCost},
		{"YearlyCost", lo.YearlyCost, hi.YearlyCost},
		{"CostToMine", lo.CostToMine, hi.CostToMine},
	}
	for _, f := range costs {
		if !(f.hi > f.lo) {
			t.Errorf("%s did not increase: %v -> %v", f.name, f.lo, f.hi)
		}
	}

	profits := []struct {
		name   string
		lo, hi float64
	}{
		{"DailyProfitUSD", lo.DailyProfitUSD, hi.DailyProfitUSD},
		{"MonthlyProfitUSD", lo.MonthlyProfitUSD, hi.MonthlyProfitUSD},
		{"YearlyProfitUSD", lo.YearlyProfitUSD, hi.YearlyProfitUSD},
	}
	for _, f := range profits {
		if !(f.hi < f.lo) {
			t.Errorf("%s did not decrease: %v -> %v", f.name, f.lo, f.hi)
		}
	}

	if lo.DailyRevenueUSD != hi.DailyRevenueUSD {
		t.Errorf("revenue changed with electricity cost: %v vs %v", lo.DailyRevenueUSD, hi.DailyRevenueUSD)
	}
}

func TestComputeYearlyConventions(t *testing.T) {
	calc := New(BitcoinConstants())

	r, err := calc.Compute(referenceRig, referenceMarket)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	// Yearly cost is twelve 30-day months (360 days)
	if want := r.MonthlyCost * 12; r.YearlyCost != want {
		t.Errorf("YearlyCost = %v, want MonthlyCost*12 = %v", r.YearlyCost, want)
	}
	if r.YearlyCost == r.DailyCost*365 {
		t.Errorf("YearlyCost must not follow the 365-day convention")
	}

	// Yearly revenue is 365 days of output
	if want := r.DailyRevenueBTC * 365; r.YearlyRevenueBTC != want {
		t.Errorf("YearlyRevenueBTC = %v, want DailyRevenueBTC*365 = %v", r.YearlyRevenueBTC, want)
	}
	if want := r.DailyRevenueBTC * 365 * referenceMarket.PriceUSD; r.YearlyRevenueUSD != want {
		t.Errorf("YearlyRevenueUSD = %v, want %v", r.YearlyRevenueUSD, want)
	}
	if approxEqual(r.YearlyRevenueBTC, r.MonthlyRevenueBTC*12) {
		t.Errorf("YearlyRevenueBTC must not follow the 12-month convention")
	}

	if want := r.YearlyRevenueUSD - r.MonthlyCost*12; r.YearlyProfitUSD != want {
		t.Errorf("YearlyProfitUSD = %v, want %v", r.YearlyProfitUSD, want)
	}
}

func TestComputeDomainErrors(t *testing.T) {
	calc := New(BitcoinConstants())

	tests := []struct {
		name     string
		req      Request
		market   MarketSnapshot
		wantCode apperror.Code
	}{
		{
			name:     "zero difficulty",
			req:      referenceRig,
			market:   MarketSnapshot{PriceUSD: 60000, NetworkDifficulty: 0},
			wantCode: apperror.CodeDivisionByZero,
		},
		{
			name:     "negative difficulty",
			req:      referenceRig,
			market:   MarketSnapshot{PriceUSD: 60000, NetworkDifficulty: -1},
			wantCode: apperror.CodeInvalidMarket,
		},
		{
			name:     "zero monthly profit",
			req:      Request{HashRate: 110, PowerConsumption: 3250, ElectricityCost: 0, InitialInvestment: 5000},
			market:   MarketSnapshot{PriceUSD: 0, NetworkDifficulty: 7e13},
			wantCode: apperror.CodeDivisionByZero,
		},
		{
			name:     "zero daily yield",
			req:      Request{HashRate: 0, PowerConsumption: 3250, ElectricityCost: 0.1, InitialInvestment: 5000},
			market:   referenceMarket,
			wantCode: apperror.CodeDivisionByZero,
		},
		{
			name:     "NaN price",
			req:      referenceRig,
			market:   MarketSnapshot{PriceUSD: math.NaN(), NetworkDifficulty: 7e13},
			wantCode: apperror.CodeNonFiniteResult,
		},
		{
			name:     "infinite hash rate",
			req:      Request{HashRate: math.Inf(1), PowerConsumption: 3250, ElectricityCost: 0.1},
			market:   referenceMarket,
			wantCode: apperror.CodeNonFiniteResult,
		},
		{
			name:     "subnormal difficulty overflows",
			req:      referenceRig,
			market:   MarketSnapshot{PriceUSD: 60000, NetworkDifficulty: 5e-324},
			wantCode: apperror.CodeNonFiniteResult,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := calc.Compute(tt.req, tt.market)
			if err == nil {
				t.Fatalf("expected error, got report %+v", r)
			}
			if !apperror.IsDomain(err) {
				t.Errorf("expected domain error, got %v", err)
			}
			if got := apperror.CodeOf(err); got != tt.wantCode {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
			if r != (Report{}) {
				t.Errorf("expected zero report on error, got %+v", r)
			}
		})
	}
}

func TestComputeUsesInjectedConstants(t *testing.T) {
	c := BitcoinConstants()
	c.BlockReward = 6.25

	halved, err := New(BitcoinConstants()).Compute(referenceRig, referenceMarket)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	full, err := New(c).Compute(referenceRig, referenceMarket)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	if !approxEqual(full.DailyRevenueBTC, 2*halved.DailyRevenueBTC) {
		t.Errorf("DailyRevenueBTC = %v, want %v", full.DailyRevenueBTC, 2*halved.DailyRevenueBTC)
	}
	if full.MonthlyCost != halved.MonthlyCost {
		t.Errorf("MonthlyCost changed with block reward")
	}
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *Request)
		wantErr bool
	}{
		{"reference rig", func(r *Request) {}, false},
		{"free power and no investment", func(r *Request) { r.ElectricityCost = 0; r.InitialInvestment = 0 }, false},
		{"zero hash rate", func(r *Request) { r.HashRate = 0 }, true},
		{"negative power", func(r *Request) { r.PowerConsumption = -1 }, true},
		{"negative electricity", func(r *Request) { r.ElectricityCost = -0.01 }, true},
		{"negative investment", func(r *Request) { r.InitialInvestment = -1 }, true},
		{"infinite hash rate", func(r *Request) { r.HashRate = math.Inf(1) }, true},
		{"nan electricity", func(r *Request) { r.ElectricityCost = math.NaN() }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := referenceRig
			tt.mutate(&req)

			err := req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !apperror.IsInput(err) {
				t.Errorf("expected input error, got %v", err)
			}
		})
	}
}
