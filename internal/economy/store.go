package economy

import (
	"context"
	"time"
)

// CompanyStore is what the company pass reads and writes.
type CompanyStore interface {
	ListActiveCompanies(ctx context.Context) ([]Company, error)
	ListActiveEmployees(ctx context.Context, companyID int64) ([]Employee, error)
	ListApprovedUnexpiredPatents(ctx context.Context, companyID int64, asOf time.Time) ([]Patent, error)
	AddPatentRevenue(ctx context.Context, patentID int64, amount float64) error
	AdjustUserCash(ctx context.Context, userID string, delta float64, reason string) error
	RecordTax(ctx context.Context, companyID int64, period Period, revenue, tax float64) error
	HasCompanyPerformance(ctx context.Context, companyID int64, period Period) (bool, error)
	RecordCompanyPerformance(ctx context.Context, perf Performance) error
	UpdateCompanyValuation(ctx context.Context, companyID int64, valuation float64) error
}

// LoanStore is what the loan payment pass reads and writes.
type LoanStore interface {
	ListDueLoans(ctx context.Context, asOf time.Time) ([]Loan, error)
	UserCash(ctx context.Context, userID string) (float64, error)
	AdjustUserCash(ctx context.Context, userID string, delta float64, reason string) error
	ApplyLoanPayment(ctx context.Context, payment LoanPayment) error
	MarkLoanDefaulted(ctx context.Context, loanID int64) error
}

// EffectStore backs the date-driven secondary passes.
type EffectStore interface {
	ListDueRDProjects(ctx context.Context, asOf time.Time) ([]RDProject, error)
	CompleteRDProject(ctx context.Context, project RDProject, outcome RDOutcome) error
	ListExpiredContracts(ctx context.Context, asOf time.Time) ([]Contract, error)
	CompleteContract(ctx context.Context, contractID int64) error
	ListPoliciesExpiringBetween(ctx context.Context, from, to time.Time) ([]InsurancePolicy, error)
	ExpireMarketEvents(ctx context.Context, asOf time.Time) ([]MarketEvent, error)
	CreateMarketEvent(ctx context.Context, event MarketEvent) error
	// HasMarketEventForPeriod reports whether a cycle for period already generated an event.
	HasMarketEventForPeriod(ctx context.Context, period Period) (bool, error)
}

// PeriodStore owns the period lifecycle and the central bank ledger.
type PeriodStore interface {
	// BeginPeriod records the period as active. It fails with ErrAlreadyCompleted
	// when the period was already finalized and is a no-op when it is active.
	BeginPeriod(ctx context.Context, period Period, startedAt, endsAt time.Time) error
	// ClaimUnreportedDisbursements marks every not yet reported loan
	// disbursement as reported under period and returns their principal sum.
	ClaimUnreportedDisbursements(ctx context.Context, period Period) (float64, error)
	// PeriodTotals aggregates the durable per-period records: performance rows
	// and loan payments tagged with period. ActiveCompanies counts performance rows.
	PeriodTotals(ctx context.Context, period Period) (CycleTotals, error)
	UpsertCentralBankLedger(ctx context.Context, period Period, taxIncome, loanInterest, loansIssued float64) (LedgerEntry, error)
	// MarkPeriodCompleted fails with ErrAlreadyCompleted when called twice for a period.
	MarkPeriodCompleted(ctx context.Context, period Period, totals CycleTotals) error
	CentralBankLedger(ctx context.Context, period Period) (LedgerEntry, error)
}

// Store is the full ledger contract consumed by the engine.
type Store interface {
	CompanyStore
	LoanStore
	EffectStore
	PeriodStore
	// WithinTx runs fn against a transaction-scoped Store. Any error rolls back.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
