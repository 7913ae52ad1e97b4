// Package bank is the central bank's loan origination path. Rates are frozen
// on the loan at origination; the economic cycle only collects installments.
package bank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"corpempire/internal/economy"
	"corpempire/internal/finance"
)

const (
	MinTermMonths         = 1
	MaxTermMonths         = 120
	DefaultMaxActiveLoans = 3
)

var (
	ErrTooManyLoans   = economy.ErrTooManyLoans
	ErrInvalidRequest = errors.New("invalid loan request")
)

// Store is what origination needs from the ledger.
type Store interface {
	Company(ctx context.Context, companyID int64) (economy.Company, error)
	// CreditHistory returns the average monthly net income and how many periods it covers.
	CreditHistory(ctx context.Context, companyID int64) (float64, int, error)
	CountActiveLoans(ctx context.Context, companyID int64) (int, error)
	// OpenLoan persists the loan and credits the owner atomically, failing with
	// ErrTooManyLoans when the company already holds maxActive active loans.
	OpenLoan(ctx context.Context, loan economy.Loan, maxActive int) (economy.Loan, error)
}

type Request struct {
	CompanyID  int64   `json:"company_id"`
	Amount     float64 `json:"amount"`
	TermMonths int     `json:"term_months"`
	Collateral string  `json:"collateral"`
}

func (r Request) Validate() error {
	switch {
	case r.CompanyID <= 0:
		return fmt.Errorf("%w: company_id is required", ErrInvalidRequest)
	case r.Amount <= 0:
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	case r.TermMonths < MinTermMonths || r.TermMonths > MaxTermMonths:
		return fmt.Errorf("%w: term must be between %d and %d months", ErrInvalidRequest, MinTermMonths, MaxTermMonths)
	}
	return nil
}

// Quote is the offer for a request at the company's current credit score.
type Quote struct {
	CompanyID      int64   `json:"company_id"`
	CreditScore    int     `json:"credit_score"`
	InterestRate   float64 `json:"interest_rate"`
	MonthlyPayment float64 `json:"monthly_payment"`
	TotalRepayment float64 `json:"total_repayment"`
	ActiveLoans    int     `json:"active_loans"`
	MaxActiveLoans int     `json:"max_active_loans"`
}

type Originator struct {
	store     Store
	maxActive int
	now       func() time.Time
	log       *slog.Logger
}

func NewOriginator(store Store, maxActive int, logger *slog.Logger) *Originator {
	if logger == nil {
		logger = slog.Default()
	}
	if maxActive <= 0 {
		maxActive = DefaultMaxActiveLoans
	}
	return &Originator{store: store, maxActive: maxActive, now: time.Now, log: logger}
}

// WithClock replaces the origination clock.
func (o *Originator) WithClock(now func() time.Time) *Originator {
	o.now = now
	return o
}

func (o *Originator) Quote(ctx context.Context, req Request) (Quote, error) {
	if err := req.Validate(); err != nil {
		return Quote{}, err
	}
	company, err := o.store.Company(ctx, req.CompanyID)
	if err != nil {
		return Quote{}, err
	}
	if company.Status != economy.CompanyActive {
		return Quote{}, fmt.Errorf("%w: company %d is %s", ErrInvalidRequest, company.ID, company.Status)
	}
	avg, periods, err := o.store.CreditHistory(ctx, company.ID)
	if err != nil {
		return Quote{}, err
	}
	active, err := o.store.CountActiveLoans(ctx, company.ID)
	if err != nil {
		return Quote{}, err
	}

	score := finance.CreditScore(finance.CreditSnapshot{
		CurrentValuation:    company.CurrentValuation,
		StartingCapital:     company.StartingCapital,
		FoundedAt:           company.FoundedAt,
		SpecializationLevel: company.SpecializationLevel(),
		AvgMonthlyNetIncome: avg,
		HasHistory:          periods > 0,
	}, o.now())
	rate := finance.RateForScore(score)
	payment, err := finance.MonthlyPayment(req.Amount, rate, req.TermMonths)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return Quote{
		CompanyID:      company.ID,
		CreditScore:    score,
		InterestRate:   rate,
		MonthlyPayment: payment,
		TotalRepayment: finance.RoundCurrency(payment * float64(req.TermMonths)),
		ActiveLoans:    active,
		MaxActiveLoans: o.maxActive,
	}, nil
}

// Originate opens a loan at the quoted rate and credits the owner. The
// disbursement is reported to the central bank at the next period finalization.
func (o *Originator) Originate(ctx context.Context, req Request) (economy.Loan, error) {
	q, err := o.Quote(ctx, req)
	if err != nil {
		return economy.Loan{}, err
	}
	if q.ActiveLoans >= o.maxActive {
		return economy.Loan{}, ErrTooManyLoans
	}
	now := o.now().UTC()
	loan, err := o.store.OpenLoan(ctx, economy.Loan{
		CompanyID:        req.CompanyID,
		Principal:        finance.RoundCurrency(req.Amount),
		RemainingBalance: finance.RoundCurrency(req.Amount),
		InterestRate:     q.InterestRate,
		TermMonths:       req.TermMonths,
		MonthlyPayment:   q.MonthlyPayment,
		CreditScore:      q.CreditScore,
		Collateral:       strings.TrimSpace(req.Collateral),
		Status:           economy.LoanActive,
		NextPaymentDate:  economy.NextPaymentDate(now),
		OriginatedAt:     now,
	}, o.maxActive)
	if err != nil {
		return economy.Loan{}, err
	}
	o.log.Info("loan originated", "loan_id", loan.ID, "company_id", loan.CompanyID, "principal", loan.Principal,
		"rate", loan.InterestRate, "credit_score", loan.CreditScore, "term_months", loan.TermMonths)
	return loan, nil
}
