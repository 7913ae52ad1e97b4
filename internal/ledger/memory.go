package ledger

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"corpempire/internal/economy"
	"corpempire/internal/finance"
)

// CashEntry is one audited change to a user's cash balance.
type CashEntry struct {
	GroupID   string
	UserID    string
	Delta     float64
	Reason    string
	CreatedAt time.Time
}

// TaxRecord is one tax assessment.
type TaxRecord struct {
	CompanyID int64
	Period    economy.Period
	Revenue   float64
	Tax       float64
	PaidAt    time.Time
}

// PeriodRecord is the lifecycle row of one economic cycle.
type PeriodRecord struct {
	Period      economy.Period
	Status      economy.PeriodStatus
	StartDate   time.Time
	EndDate     time.Time
	Totals      economy.CycleTotals
	CompletedAt time.Time
}

type memLoan struct {
	economy.Loan
	reportedPeriod economy.Period
}

type memProject struct {
	economy.RDProject
	outcome *economy.RDOutcome
}

type perfKey struct {
	companyID int64
	period    economy.Period
}

type memoryState struct {
	cash        map[string]float64
	cashLedger  []CashEntry
	companies   map[int64]economy.Company
	employees   map[int64]economy.Employee
	patents     map[int64]economy.Patent
	loans       map[int64]memLoan
	payments    []economy.LoanPayment
	projects    map[int64]memProject
	contracts   map[int64]economy.Contract
	policies    map[int64]economy.InsurancePolicy
	events      map[string]economy.MarketEvent
	performance map[perfKey]economy.Performance
	taxes       []TaxRecord
	periods     map[economy.Period]PeriodRecord
	ledger      map[economy.Period]economy.LedgerEntry
	nextID      int64
}

func newMemoryState() *memoryState {
	return &memoryState{
		cash:        map[string]float64{},
		companies:   map[int64]economy.Company{},
		employees:   map[int64]economy.Employee{},
		patents:     map[int64]economy.Patent{},
		loans:       map[int64]memLoan{},
		projects:    map[int64]memProject{},
		contracts:   map[int64]economy.Contract{},
		policies:    map[int64]economy.InsurancePolicy{},
		events:      map[string]economy.MarketEvent{},
		performance: map[perfKey]economy.Performance{},
		periods:     map[economy.Period]PeriodRecord{},
		ledger:      map[economy.Period]economy.LedgerEntry{},
	}
}

func (m *memoryState) clone() *memoryState {
	return &memoryState{
		cash:        maps.Clone(m.cash),
		cashLedger:  slices.Clone(m.cashLedger),
		companies:   maps.Clone(m.companies),
		employees:   maps.Clone(m.employees),
		patents:     maps.Clone(m.patents),
		loans:       maps.Clone(m.loans),
		payments:    slices.Clone(m.payments),
		projects:    maps.Clone(m.projects),
		contracts:   maps.Clone(m.contracts),
		policies:    maps.Clone(m.policies),
		events:      maps.Clone(m.events),
		performance: maps.Clone(m.performance),
		taxes:       slices.Clone(m.taxes),
		periods:     maps.Clone(m.periods),
		ledger:      maps.Clone(m.ledger),
		nextID:      m.nextID,
	}
}

func (m *memoryState) id() int64 {
	m.nextID++
	return m.nextID
}

// MemoryStore is an in-memory Store. WithinTx works on a copy of the state
// that replaces the original only when fn succeeds.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState(), now: time.Now}
}

// SetClock overrides the timestamp source used for audit fields.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx economy.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &MemoryStore{state: s.state.clone(), now: s.now}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// Seeding

func (s *MemoryStore) PutUser(userID string, cash float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.cash[userID] = cash
}

func (s *MemoryStore) PutCompany(c economy.Company) economy.Company {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.state.id()
	}
	s.state.companies[c.ID] = c
	return c
}

func (s *MemoryStore) PutEmployee(e economy.Employee) economy.Employee {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == 0 {
		e.ID = s.state.id()
	}
	s.state.employees[e.ID] = e
	return e
}

func (s *MemoryStore) PutPatent(p economy.Patent) economy.Patent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.state.id()
	}
	s.state.patents[p.ID] = p
	return p
}

// PutLoan stores a loan whose disbursement has already been reported.
func (s *MemoryStore) PutLoan(l economy.Loan) economy.Loan {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == 0 {
		l.ID = s.state.id()
	}
	s.state.loans[l.ID] = memLoan{Loan: l, reportedPeriod: economy.PeriodFor(l.OriginatedAt)}
	return l
}

func (s *MemoryStore) PutRDProject(p economy.RDProject) economy.RDProject {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.state.id()
	}
	s.state.projects[p.ID] = memProject{RDProject: p}
	return p
}

func (s *MemoryStore) PutContract(c economy.Contract) economy.Contract {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.state.id()
	}
	s.state.contracts[c.ID] = c
	return c
}

func (s *MemoryStore) PutPolicy(p economy.InsurancePolicy) economy.InsurancePolicy {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.state.id()
	}
	s.state.policies[p.ID] = p
	return p
}

func (s *MemoryStore) PutMarketEvent(e economy.MarketEvent) economy.MarketEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	s.state.events[e.ID] = e
	return e
}

// Inspection

func (s *MemoryStore) Cash(userID string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.cash[userID]
}

func (s *MemoryStore) CashEntries(userID string) []CashEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []CashEntry
	for _, e := range s.state.cashLedger {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

func (s *MemoryStore) LoanByID(id int64) (economy.Loan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.state.loans[id]
	return l.Loan, ok
}

func (s *MemoryStore) LoanPayments(loanID int64) []economy.LoanPayment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []economy.LoanPayment
	for _, p := range s.state.payments {
		if p.LoanID == loanID {
			out = append(out, p)
		}
	}
	return out
}

func (s *MemoryStore) PatentByID(id int64) (economy.Patent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.patents[id]
	return p, ok
}

func (s *MemoryStore) RDProjectByID(id int64) (economy.RDProject, *economy.RDOutcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.projects[id]
	return p.RDProject, p.outcome, ok
}

func (s *MemoryStore) ContractByID(id int64) (economy.Contract, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.state.contracts[id]
	return c, ok
}

func (s *MemoryStore) MarketEvents() []economy.MarketEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Collect(maps.Values(s.state.events))
	slices.SortFunc(out, func(a, b economy.MarketEvent) int { return a.StartDate.Compare(b.StartDate) })
	return out
}

func (s *MemoryStore) Performance(companyID int64, period economy.Period) (economy.Performance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.performance[perfKey{companyID, period}]
	return p, ok
}

func (s *MemoryStore) TaxRecords() []TaxRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.taxes)
}

func (s *MemoryStore) PeriodRecord(period economy.Period) (PeriodRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.state.periods[period]
	return r, ok
}

// CompanyStore

func (s *MemoryStore) ListActiveCompanies(ctx context.Context) ([]economy.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []economy.Company
	for _, c := range s.state.companies {
		if c.Status == economy.CompanyActive {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b economy.Company) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *MemoryStore) Company(ctx context.Context, companyID int64) (economy.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.state.companies[companyID]
	if !ok {
		return economy.Company{}, fmt.Errorf("company %d: %w", companyID, economy.ErrNotFound)
	}
	return c, nil
}

func (s *MemoryStore) ListActiveEmployees(ctx context.Context, companyID int64) ([]economy.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []economy.Employee
	for _, e := range s.state.employees {
		if e.CompanyID == companyID && e.Status == economy.EmployeeActive {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b economy.Employee) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *MemoryStore) ListApprovedUnexpiredPatents(ctx context.Context, companyID int64, asOf time.Time) ([]economy.Patent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []economy.Patent
	for _, p := range s.state.patents {
		if p.CompanyID == companyID && p.ActiveAt(asOf) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b economy.Patent) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *MemoryStore) AddPatentRevenue(ctx context.Context, patentID int64, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.patents[patentID]
	if !ok {
		return fmt.Errorf("patent %d: %w", patentID, economy.ErrNotFound)
	}
	p.TotalRevenue = finance.RoundCurrency(p.TotalRevenue + amount)
	s.state.patents[patentID] = p
	return nil
}

func (s *MemoryStore) AdjustUserCash(ctx context.Context, userID string, delta float64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjustCash(userID, delta, reason)
}

func (s *MemoryStore) adjustCash(userID string, delta float64, reason string) error {
	cash, ok := s.state.cash[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, economy.ErrNotFound)
	}
	s.state.cash[userID] = finance.RoundCurrency(cash + delta)
	s.state.cashLedger = append(s.state.cashLedger, CashEntry{
		GroupID:   uuid.NewString(),
		UserID:    userID,
		Delta:     delta,
		Reason:    reason,
		CreatedAt: s.now(),
	})
	return nil
}

func (s *MemoryStore) RecordTax(ctx context.Context, companyID int64, period economy.Period, revenue, tax float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.taxes = append(s.state.taxes, TaxRecord{CompanyID: companyID, Period: period, Revenue: revenue, Tax: tax, PaidAt: s.now()})
	return nil
}

func (s *MemoryStore) HasCompanyPerformance(ctx context.Context, companyID int64, period economy.Period) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.state.performance[perfKey{companyID, period}]
	return ok, nil
}

func (s *MemoryStore) RecordCompanyPerformance(ctx context.Context, perf economy.Performance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := perfKey{perf.CompanyID, perf.Period}
	if _, ok := s.state.performance[key]; ok {
		return fmt.Errorf("performance for company %d in %s already recorded", perf.CompanyID, perf.Period)
	}
	s.state.performance[key] = perf
	return nil
}

func (s *MemoryStore) UpdateCompanyValuation(ctx context.Context, companyID int64, valuation float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.state.companies[companyID]
	if !ok {
		return fmt.Errorf("company %d: %w", companyID, economy.ErrNotFound)
	}
	c.CurrentValuation = valuation
	s.state.companies[companyID] = c
	return nil
}

// LoanStore

func (s *MemoryStore) ListDueLoans(ctx context.Context, asOf time.Time) ([]economy.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []economy.Loan
	for _, l := range s.state.loans {
		if l.Status != economy.LoanActive || l.NextPaymentDate.After(asOf) {
			continue
		}
		loan := l.Loan
		if c, ok := s.state.companies[loan.CompanyID]; ok {
			loan.CompanyName = c.Name
			loan.OwnerID = c.OwnerID
		}
		out = append(out, loan)
	}
	slices.SortFunc(out, func(a, b economy.Loan) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *MemoryStore) UserCash(ctx context.Context, userID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cash, ok := s.state.cash[userID]
	if !ok {
		return 0, fmt.Errorf("user %s: %w", userID, economy.ErrNotFound)
	}
	return cash, nil
}

func (s *MemoryStore) ApplyLoanPayment(ctx context.Context, payment economy.LoanPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.state.loans[payment.LoanID]
	if !ok {
		return fmt.Errorf("loan %d: %w", payment.LoanID, economy.ErrNotFound)
	}
	if l.Status != economy.LoanActive {
		return fmt.Errorf("loan %d is %s", l.ID, l.Status)
	}
	l.RemainingBalance = payment.NewBalance
	l.Status = payment.Status
	l.NextPaymentDate = payment.NextPaymentDate
	s.state.loans[l.ID] = l
	s.state.payments = append(s.state.payments, payment)
	return nil
}

func (s *MemoryStore) MarkLoanDefaulted(ctx context.Context, loanID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.state.loans[loanID]
	if !ok {
		return fmt.Errorf("loan %d: %w", loanID, economy.ErrNotFound)
	}
	if l.Status == economy.LoanActive {
		l.Status = economy.LoanDefaulted
		s.state.loans[loanID] = l
	}
	return nil
}

// Origination

func (s *MemoryStore) CreditHistory(ctx context.Context, companyID int64) (float64, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum float64
	n := 0
	for k, p := range s.state.performance {
		if k.companyID == companyID {
			sum += p.NetIncome
			n++
		}
	}
	if n == 0 {
		return 0, 0, nil
	}
	return sum / float64(n), n, nil
}

func (s *MemoryStore) CountActiveLoans(ctx context.Context, companyID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countActiveLoans(companyID), nil
}

func (s *MemoryStore) countActiveLoans(companyID int64) int {
	n := 0
	for _, l := range s.state.loans {
		if l.CompanyID == companyID && l.Status == economy.LoanActive {
			n++
		}
	}
	return n
}

func (s *MemoryStore) OpenLoan(ctx context.Context, loan economy.Loan, maxActive int) (economy.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.state.companies[loan.CompanyID]
	if !ok {
		return economy.Loan{}, fmt.Errorf("company %d: %w", loan.CompanyID, economy.ErrNotFound)
	}
	if maxActive > 0 && s.countActiveLoans(loan.CompanyID) >= maxActive {
		return economy.Loan{}, economy.ErrTooManyLoans
	}
	loan.OwnerID = c.OwnerID
	loan.CompanyName = c.Name
	next := s.state.clone()
	tx := &MemoryStore{state: next, now: s.now}
	loan.ID = next.id()
	next.loans[loan.ID] = memLoan{Loan: loan}
	if err := tx.adjustCash(loan.OwnerID, loan.Principal, "loan_disbursement"); err != nil {
		return economy.Loan{}, err
	}
	s.state = next
	return loan, nil
}

// EffectStore

func (s *MemoryStore) ListDueRDProjects(ctx context.Context, asOf time.Time) ([]economy.RDProject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []economy.RDProject
	for _, p := range s.state.projects {
		if p.Status != economy.RDActive || p.DueAt().After(asOf) {
			continue
		}
		project := p.RDProject
		if c, ok := s.state.companies[project.CompanyID]; ok {
			project.CompanyName = c.Name
			project.OwnerID = c.OwnerID
		}
		out = append(out, project)
	}
	slices.SortFunc(out, func(a, b economy.RDProject) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *MemoryStore) CompleteRDProject(ctx context.Context, project economy.RDProject, outcome economy.RDOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.projects[project.ID]
	if !ok {
		return fmt.Errorf("rd project %d: %w", project.ID, economy.ErrNotFound)
	}
	if p.Status != economy.RDActive {
		return fmt.Errorf("rd project %d is %s", p.ID, p.Status)
	}
	c, ok := s.state.companies[p.CompanyID]
	if !ok {
		return fmt.Errorf("company %d: %w", p.CompanyID, economy.ErrNotFound)
	}
	efficiency := c.EfficiencyRating
	if efficiency == 0 {
		efficiency = 1
	}
	c.CurrentValuation = finance.RoundCurrency(c.CurrentValuation * outcome.ValuationMultiplier)
	c.EfficiencyRating = efficiency * outcome.EfficiencyMultiplier
	s.state.companies[c.ID] = c

	p.Status = economy.RDCompleted
	p.outcome = &outcome
	s.state.projects[p.ID] = p
	return nil
}

func (s *MemoryStore) ListExpiredContracts(ctx context.Context, asOf time.Time) ([]economy.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []economy.Contract
	for _, c := range s.state.contracts {
		if c.Status != economy.ContractActive || c.EndDate.After(asOf) {
			continue
		}
		c.PartyA = s.party(c.PartyA)
		c.PartyB = s.party(c.PartyB)
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b economy.Contract) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *MemoryStore) party(p economy.ContractParty) economy.ContractParty {
	if c, ok := s.state.companies[p.CompanyID]; ok {
		p.Name = c.Name
		p.OwnerID = c.OwnerID
	}
	return p
}

func (s *MemoryStore) CompleteContract(ctx context.Context, contractID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.state.contracts[contractID]
	if !ok {
		return fmt.Errorf("contract %d: %w", contractID, economy.ErrNotFound)
	}
	c.Status = economy.ContractCompleted
	s.state.contracts[contractID] = c
	return nil
}

func (s *MemoryStore) ListPoliciesExpiringBetween(ctx context.Context, from, to time.Time) ([]economy.InsurancePolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []economy.InsurancePolicy
	for _, p := range s.state.policies {
		if p.Status != economy.PolicyActive || p.EndDate.Before(from) || p.EndDate.After(to) {
			continue
		}
		if c, ok := s.state.companies[p.CompanyID]; ok {
			p.CompanyName = c.Name
			p.OwnerID = c.OwnerID
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b economy.InsurancePolicy) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *MemoryStore) ExpireMarketEvents(ctx context.Context, asOf time.Time) ([]economy.MarketEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []economy.MarketEvent
	for id, e := range s.state.events {
		if e.Status != economy.MarketEventActive || e.EndDate.After(asOf) {
			continue
		}
		e.Status = economy.MarketEventExpired
		s.state.events[id] = e
		out = append(out, e)
	}
	return out, nil
}

func (s *MemoryStore) CreateMarketEvent(ctx context.Context, event economy.MarketEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.events[event.ID]; ok {
		return fmt.Errorf("market event %s already exists", event.ID)
	}
	s.state.events[event.ID] = event
	return nil
}

func (s *MemoryStore) HasMarketEventForPeriod(ctx context.Context, period economy.Period) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.state.events {
		if e.Period == period {
			return true, nil
		}
	}
	return false, nil
}

// PeriodStore

func (s *MemoryStore) BeginPeriod(ctx context.Context, period economy.Period, startedAt, endsAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.state.periods[period]; ok {
		if r.Status == economy.PeriodCompleted {
			return economy.ErrAlreadyCompleted
		}
		return nil
	}
	s.state.periods[period] = PeriodRecord{Period: period, Status: economy.PeriodActive, StartDate: startedAt, EndDate: endsAt}
	return nil
}

func (s *MemoryStore) PeriodTotals(ctx context.Context, period economy.Period) (economy.CycleTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var t economy.CycleTotals
	for k, p := range s.state.performance {
		if k.period != period {
			continue
		}
		t.CompanyRevenue += p.ProductivityRevenue + p.PatentRevenue
		t.Taxes += p.Tax
		t.PatentRevenue += p.PatentRevenue
		t.ActiveCompanies++
	}
	for _, p := range s.state.payments {
		if p.Period == period {
			t.LoanInterest += p.Interest
		}
	}
	t.CompanyRevenue = finance.RoundCurrency(t.CompanyRevenue)
	t.Taxes = finance.RoundCurrency(t.Taxes)
	t.PatentRevenue = finance.RoundCurrency(t.PatentRevenue)
	t.LoanInterest = finance.RoundCurrency(t.LoanInterest)
	return t, nil
}

func (s *MemoryStore) MarkPeriodCompleted(ctx context.Context, period economy.Period, totals economy.CycleTotals) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.state.periods[period]
	if ok && r.Status == economy.PeriodCompleted {
		return economy.ErrAlreadyCompleted
	}
	if !ok {
		r = PeriodRecord{Period: period, StartDate: period.Start(), EndDate: period.Start().AddDate(0, 1, 0)}
	}
	r.Status = economy.PeriodCompleted
	r.Totals = totals
	r.CompletedAt = s.now()
	s.state.periods[period] = r
	return nil
}

func (s *MemoryStore) ClaimUnreportedDisbursements(ctx context.Context, period economy.Period) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum float64
	for id, l := range s.state.loans {
		if l.reportedPeriod != "" {
			continue
		}
		l.reportedPeriod = period
		s.state.loans[id] = l
		sum += l.Principal
	}
	return finance.RoundCurrency(sum), nil
}

func (s *MemoryStore) UpsertCentralBankLedger(ctx context.Context, period economy.Period, taxIncome, loanInterest, loansIssued float64) (economy.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.state.ledger[period]
	if !ok {
		e = economy.LedgerEntry{Period: period, OpeningBalance: s.priorClosing(period)}
	}
	e.TaxIncome = finance.RoundCurrency(e.TaxIncome + taxIncome)
	e.LoanInterestIncome = finance.RoundCurrency(e.LoanInterestIncome + loanInterest)
	e.LoansIssued = finance.RoundCurrency(e.LoansIssued + loansIssued)
	e.ClosingBalance = finance.RoundCurrency(e.OpeningBalance + e.TaxIncome + e.LoanInterestIncome - e.LoansIssued)
	e.UpdatedAt = s.now()
	s.state.ledger[period] = e
	return e, nil
}

func (s *MemoryStore) priorClosing(period economy.Period) float64 {
	var (
		best  economy.Period
		found bool
		value float64
	)
	for p, e := range s.state.ledger {
		if p < period && (!found || p > best) {
			best, found, value = p, true, e.ClosingBalance
		}
	}
	return value
}

func (s *MemoryStore) CentralBankLedger(ctx context.Context, period economy.Period) (economy.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.state.ledger[period]
	if !ok {
		return economy.LedgerEntry{}, fmt.Errorf("ledger %s: %w", period, economy.ErrNotFound)
	}
	return e, nil
}

var _ economy.Store = (*MemoryStore)(nil)
