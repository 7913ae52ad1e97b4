package finance

import "math"

const (
	DefaultTaxRate              = 0.08
	DefaultValuationFloor       = 1000.0
	DefaultValuationSensitivity = 0.1
)

// Earner is one active employee's contribution inputs.
type Earner struct {
	Salary                 float64
	ProductivityMultiplier float64
}

// Revenue is a company's gross monthly revenue broken into its sources.
type Revenue struct {
	Productivity float64
	Patents      float64
	Gross        float64
}

// MonthlyRevenue sums salary × productivity over the roster, scales that by the
// specialization revenue multiplier (1 when unspecialized) and adds patent income.
func MonthlyRevenue(earners []Earner, patentRevenues []float64, revenueMultiplier float64) Revenue {
	var productivity float64
	for _, e := range earners {
		productivity += e.Salary * e.ProductivityMultiplier
	}
	if revenueMultiplier > 0 {
		productivity *= revenueMultiplier
	}
	var patents float64
	for _, p := range patentRevenues {
		patents += p
	}
	productivity = RoundCurrency(productivity)
	patents = RoundCurrency(patents)
	return Revenue{
		Productivity: productivity,
		Patents:      patents,
		Gross:        RoundCurrency(productivity + patents),
	}
}

// Payroll is the sum of salaries.
func Payroll(earners []Earner) float64 {
	var total float64
	for _, e := range earners {
		total += e.Salary
	}
	return RoundCurrency(total)
}

// Tax applies a flat rate; non-positive revenue is not taxed.
func Tax(grossRevenue, rate float64) float64 {
	if grossRevenue <= 0 || rate <= 0 {
		return 0
	}
	return RoundCurrency(grossRevenue * rate)
}

// NextValuation moves valuation by netIncome × sensitivity, never below floor.
func NextValuation(current, netIncome, sensitivity, floor float64) float64 {
	return RoundCurrency(math.Max(floor, current+netIncome*sensitivity))
}
