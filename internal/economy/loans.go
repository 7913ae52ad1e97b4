package economy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"corpempire/internal/finance"
)

// NextPaymentDate is one calendar month after the payment was taken, not after
// the previous due date, so a late cycle shifts the schedule.
func NextPaymentDate(paidAt time.Time) time.Time {
	return paidAt.AddDate(0, 1, 0)
}

type LoanOutcomeKind string

const (
	LoanOutcomePaid      LoanOutcomeKind = "paid"
	LoanOutcomePaidOff   LoanOutcomeKind = "paid_off"
	LoanOutcomeDefaulted LoanOutcomeKind = "defaulted"
)

// LoanOutcome is the result of one due loan.
type LoanOutcome struct {
	Kind    LoanOutcomeKind
	Payment LoanPayment
	// Reason is ErrInsufficientFunds for defaults.
	Reason error
}

// LoanPaymentProcessor collects installments on due loans.
type LoanPaymentProcessor struct {
	store Store
	log   *slog.Logger
}

func NewLoanPaymentProcessor(store Store, logger *slog.Logger) *LoanPaymentProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoanPaymentProcessor{store: store, log: logger}
}

// Process takes one installment, or defaults the loan when the owner cannot
// cover the full monthly payment. There is no partial payment and no grace period.
func (p *LoanPaymentProcessor) Process(ctx context.Context, loan Loan, period Period, asOf time.Time) (LoanOutcome, error) {
	if loan.Status != LoanActive {
		return LoanOutcome{}, errSkip
	}
	var out LoanOutcome
	err := p.store.WithinTx(ctx, func(tx Store) error {
		cash, err := tx.UserCash(ctx, loan.OwnerID)
		if err != nil {
			return fmt.Errorf("read owner cash: %w", err)
		}
		if cash < loan.MonthlyPayment {
			if err := tx.MarkLoanDefaulted(ctx, loan.ID); err != nil {
				return fmt.Errorf("mark defaulted: %w", err)
			}
			out = LoanOutcome{Kind: LoanOutcomeDefaulted, Reason: ErrInsufficientFunds}
			return nil
		}

		app := finance.ApplyPayment(loan.RemainingBalance, loan.InterestRate, loan.MonthlyPayment)
		status := LoanActive
		if app.PaidOff {
			status = LoanPaidOff
		}
		payment := LoanPayment{
			ID:              uuid.NewString(),
			LoanID:          loan.ID,
			Period:          period,
			Amount:          loan.MonthlyPayment,
			Principal:       app.Principal,
			Interest:        app.Interest,
			NewBalance:      app.NewBalance,
			Status:          status,
			NextPaymentDate: NextPaymentDate(asOf),
			PaidAt:          asOf,
		}
		if err := tx.ApplyLoanPayment(ctx, payment); err != nil {
			return fmt.Errorf("apply payment: %w", err)
		}
		if err := tx.AdjustUserCash(ctx, loan.OwnerID, -loan.MonthlyPayment, "loan_payment"); err != nil {
			return fmt.Errorf("debit owner: %w", err)
		}
		out = LoanOutcome{Kind: LoanOutcomePaid, Payment: payment}
		if app.PaidOff {
			out.Kind = LoanOutcomePaidOff
		}
		return nil
	})
	if err != nil {
		return LoanOutcome{}, err
	}
	if out.Kind == LoanOutcomeDefaulted {
		p.log.Warn("loan defaulted", "loan_id", loan.ID, "company_id", loan.CompanyID, "reason", out.Reason)
	}
	return out, nil
}
