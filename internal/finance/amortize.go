package finance

import (
	"fmt"
	"math"
)

// PaidOffThreshold is the residual balance below which a loan counts as repaid.
const PaidOffThreshold = 0.01

// MonthlyPayment is the level annuity payment for an annual rate over termMonths.
// A zero rate degenerates to straight-line principal / termMonths.
func MonthlyPayment(principal, annualRate float64, termMonths int) (float64, error) {
	if termMonths <= 0 {
		return 0, fmt.Errorf("term must be > 0 months")
	}
	if principal < 0 {
		return 0, fmt.Errorf("principal must be >= 0")
	}
	monthlyRate := annualRate / MonthsPerYear
	if monthlyRate == 0 {
		return principal / float64(termMonths), nil
	}
	growth := math.Pow(1+monthlyRate, float64(termMonths))
	payment := principal * (monthlyRate * growth) / (growth - 1)
	return RoundCurrency(payment), nil
}

// PaymentApplication is the split of one installment.
type PaymentApplication struct {
	Principal  float64
	Interest   float64
	NewBalance float64
	PaidOff    bool
}

// ApplyPayment splits payment into interest on the remaining balance and
// principal. An installment that covers the whole remaining balance settles
// the loan; only what is left of it after principal is booked as interest.
func ApplyPayment(remainingBalance, annualRate, payment float64) PaymentApplication {
	interest := RoundCurrency(remainingBalance * annualRate / MonthsPerYear)

	if remainingBalance <= payment {
		return PaymentApplication{
			Principal:  RoundCurrency(remainingBalance),
			Interest:   RoundCurrency(math.Min(interest, payment-remainingBalance)),
			NewBalance: 0,
			PaidOff:    true,
		}
	}

	principal := RoundCurrency(math.Max(0, payment-interest))
	balance := RoundCurrency(math.Max(0, remainingBalance-principal))
	out := PaymentApplication{
		Principal:  principal,
		Interest:   interest,
		NewBalance: balance,
	}
	if balance <= PaidOffThreshold {
		out.NewBalance = 0
		out.PaidOff = true
	}
	return out
}

// ScheduleRow is one month of a projected amortization schedule.
type ScheduleRow struct {
	Month     int
	Payment   float64
	Principal float64
	Interest  float64
	Balance   float64
}

// Schedule projects the level-payment schedule until the balance clears or
// termMonths installments have been applied.
func Schedule(principal, annualRate float64, termMonths int) ([]ScheduleRow, error) {
	payment, err := MonthlyPayment(principal, annualRate, termMonths)
	if err != nil {
		return nil, err
	}
	rows := make([]ScheduleRow, 0, termMonths)
	balance := principal
	for month := 1; month <= termMonths && balance > 0; month++ {
		app := ApplyPayment(balance, annualRate, payment)
		rows = append(rows, ScheduleRow{
			Month:     month,
			Payment:   payment,
			Principal: app.Principal,
			Interest:  app.Interest,
			Balance:   app.NewBalance,
		})
		balance = app.NewBalance
	}
	return rows, nil
}
