package economy

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAlreadyRunning    = errors.New("economic cycle already in progress")
	ErrAlreadyCompleted  = errors.New("period already completed")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrConfiguration     = errors.New("invalid configuration")
	ErrNotFound          = errors.New("not found")
	ErrTooManyLoans      = errors.New("company has reached the active loan limit")
)

const periodLayout = "2006-01"

// Period identifies one cycle by calendar year and month, e.g. "2026-10".
type Period string

// PeriodFor derives the period key from wall-clock time in UTC.
func PeriodFor(t time.Time) Period {
	return Period(t.UTC().Format(periodLayout))
}

func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse(periodLayout, s)
	if err != nil {
		return "", fmt.Errorf("period must be YYYY-MM: %w", err)
	}
	return PeriodFor(t), nil
}

func (p Period) String() string { return string(p) }

// Start is the first instant of the period in UTC.
func (p Period) Start() time.Time {
	t, _ := time.Parse(periodLayout, string(p))
	return t
}

type PeriodStatus string

const (
	PeriodActive    PeriodStatus = "active"
	PeriodCompleted PeriodStatus = "completed"
)

type CompanyStatus string

const (
	CompanyActive   CompanyStatus = "active"
	CompanyBankrupt CompanyStatus = "bankrupt"
	CompanyMerged   CompanyStatus = "merged"
	CompanyAcquired CompanyStatus = "acquired"
)

// Specialization is an optional industry focus bought by a company.
type Specialization struct {
	Industry            string
	Level               int
	RevenueMultiplier   float64
	EfficiencyBonus     float64
	ValuationMultiplier float64
}

type Company struct {
	ID                int64
	Name              string
	OwnerID           string
	Industry          string
	Status            CompanyStatus
	CurrentValuation  float64
	StartingCapital   float64
	EfficiencyRating  float64
	SharesOutstanding int64
	SharesAvailable   int64
	FoundedAt         time.Time
	Specialization    *Specialization
}

// RevenueMultiplier is 1 for unspecialized companies.
func (c Company) RevenueMultiplier() float64 {
	if c.Specialization == nil || c.Specialization.RevenueMultiplier <= 0 {
		return 1
	}
	return c.Specialization.RevenueMultiplier
}

func (c Company) SpecializationLevel() int {
	if c.Specialization == nil {
		return 0
	}
	return c.Specialization.Level
}

type EmployeeType string

const (
	EmployeeNPC    EmployeeType = "npc"
	EmployeePlayer EmployeeType = "player"
)

type EmployeeStatus string

const (
	EmployeeActive EmployeeStatus = "active"
	EmployeeFired  EmployeeStatus = "fired"
	EmployeeQuit   EmployeeStatus = "quit"
)

// ProductivityMultiplierFor is the hire-time policy. The value is stored on the
// employee when hired and never recomputed.
func ProductivityMultiplierFor(t EmployeeType) float64 {
	if t == EmployeePlayer {
		return 2.5
	}
	return 1.0
}

type Employee struct {
	ID                     int64
	CompanyID              int64
	Type                   EmployeeType
	UserID                 string // set for player employees
	Name                   string
	Position               string
	Salary                 float64
	ProductivityMultiplier float64
	Status                 EmployeeStatus
	HiredAt                time.Time
}

type PatentStatus string

const (
	PatentPending  PatentStatus = "pending"
	PatentApproved PatentStatus = "approved"
	PatentRejected PatentStatus = "rejected"
	PatentExpired  PatentStatus = "expired"
)

type Patent struct {
	ID             int64
	CompanyID      int64
	Title          string
	Status         PatentStatus
	ApprovedAt     time.Time
	ExpiresAt      time.Time
	MonthlyRevenue float64
	TotalRevenue   float64
}

// ActiveAt reports whether the patent earns revenue at t.
func (p Patent) ActiveAt(t time.Time) bool {
	return p.Status == PatentApproved && (p.ExpiresAt.IsZero() || p.ExpiresAt.After(t))
}

type LoanStatus string

const (
	LoanActive    LoanStatus = "active"
	LoanPaidOff   LoanStatus = "paid_off"
	LoanDefaulted LoanStatus = "defaulted"
)

type Loan struct {
	ID               int64
	CompanyID        int64
	CompanyName      string
	OwnerID          string
	Principal        float64
	RemainingBalance float64
	InterestRate     float64
	TermMonths       int
	MonthlyPayment   float64
	CreditScore      int
	Collateral       string
	Status           LoanStatus
	NextPaymentDate  time.Time
	OriginatedAt     time.Time
}

// LoanPayment is the audit record of one applied installment.
type LoanPayment struct {
	ID              string
	LoanID          int64
	Period          Period
	Amount          float64
	Principal       float64
	Interest        float64
	NewBalance      float64
	Status          LoanStatus
	NextPaymentDate time.Time
	PaidAt          time.Time
}

type RDStatus string

const (
	RDActive    RDStatus = "active"
	RDCompleted RDStatus = "completed"
)

type RDProject struct {
	ID             int64
	CompanyID      int64
	CompanyName    string
	OwnerID        string
	Name           string
	Category       string
	Budget         float64
	DurationMonths int
	StartDate      time.Time
	Status         RDStatus
}

// DueAt is when the project finishes.
func (p RDProject) DueAt() time.Time {
	return p.StartDate.AddDate(0, p.DurationMonths, 0)
}

// RDOutcome is applied to the company when a project completes.
type RDOutcome struct {
	ValuationMultiplier  float64
	EfficiencyMultiplier float64
	Description          string
	CompletedAt          time.Time
}

type ContractStatus string

const (
	ContractActive    ContractStatus = "active"
	ContractCompleted ContractStatus = "completed"
)

type ContractParty struct {
	CompanyID int64
	Name      string
	OwnerID   string
}

type Contract struct {
	ID      int64
	Title   string
	Value   float64
	PartyA  ContractParty
	PartyB  ContractParty
	EndDate time.Time
	Status  ContractStatus
}

type PolicyStatus string

const (
	PolicyActive  PolicyStatus = "active"
	PolicyExpired PolicyStatus = "expired"
)

type InsurancePolicy struct {
	ID             int64
	CompanyID      int64
	CompanyName    string
	OwnerID        string
	Type           string
	CoverageAmount float64
	EndDate        time.Time
	Status         PolicyStatus
}

type MarketEventStatus string

const (
	MarketEventActive  MarketEventStatus = "active"
	MarketEventExpired MarketEventStatus = "expired"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type MarketEvent struct {
	ID                 string
	Name               string
	Description        string
	AffectedIndustries []string
	ImpactMultiplier   float64
	DurationMonths     int
	Severity           Severity
	StartDate          time.Time
	EndDate            time.Time
	Status             MarketEventStatus
	// Period is the cycle that generated the event; empty for seeded events.
	Period Period
}

// Performance is the per-company, per-period record written by the company pass.
type Performance struct {
	CompanyID           int64
	Period              Period
	ProductivityRevenue float64
	PatentRevenue       float64
	Tax                 float64
	Payroll             float64
	NetIncome           float64
	ValuationAfter      float64
	ActiveEmployees     int
	RecordedAt          time.Time
}

// LedgerEntry is the central bank row for one period.
type LedgerEntry struct {
	Period             Period
	OpeningBalance     float64
	TaxIncome          float64
	LoanInterestIncome float64
	LoansIssued        float64
	ClosingBalance     float64
	UpdatedAt          time.Time
}

// CycleTotals are aggregated over one cycle and stored on the period record.
type CycleTotals struct {
	CompanyRevenue  float64
	Taxes           float64
	LoanInterest    float64
	PatentRevenue   float64
	ActiveCompanies int
}

// EntityError is a failure confined to a single entity within a pass.
type EntityError struct {
	Kind string
	ID   string
	Err  error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.ID, e.Err)
}

func (e *EntityError) Unwrap() error { return e.Err }
