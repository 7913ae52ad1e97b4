package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MonthsPerYear = 12

	// DefaultPatentMonthlyRevenue is what an approved patent earns when the
	// approver does not set a figure.
	DefaultPatentMonthlyRevenue = 5000.0
	PatentTermYears             = 20
)

// RoundCurrency rounds half away from zero to whole cents.
func RoundCurrency(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// PatentExpiry is the expiry date of a patent approved at approvedAt.
func PatentExpiry(approvedAt time.Time) time.Time {
	return approvedAt.AddDate(PatentTermYears, 0, 0)
}
