package economy_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corpempire/internal/economy"
	"corpempire/internal/ledger"
)

var october = time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC)

type sentMessage struct {
	userID  string
	channel economy.Channel
	msg     economy.Message
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	fail bool
}

func (n *recordingNotifier) NotifyUser(_ context.Context, userID string, msg economy.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("dm closed")
	}
	n.sent = append(n.sent, sentMessage{userID: userID, msg: msg})
	return nil
}

func (n *recordingNotifier) Broadcast(_ context.Context, channel economy.Channel, msg economy.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("channel missing")
	}
	n.sent = append(n.sent, sentMessage{channel: channel, msg: msg})
	return nil
}

func (n *recordingNotifier) toUser(userID string) []economy.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []economy.Message
	for _, s := range n.sent {
		if s.userID == userID {
			out = append(out, s.msg)
		}
	}
	return out
}

func (n *recordingNotifier) toChannel(ch economy.Channel) []economy.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []economy.Message
	for _, s := range n.sent {
		if s.userID == "" && s.channel == ch {
			out = append(out, s.msg)
		}
	}
	return out
}

type fixedRandom struct {
	f float64
	n int
}

func (r fixedRandom) Float64() float64 { return r.f }
func (r fixedRandom) Intn(int) int     { return r.n }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	store    *ledger.MemoryStore
	notifier *recordingNotifier
	clock    *clock
}

func newFixture() *fixture {
	f := &fixture{store: ledger.NewMemoryStore(), notifier: &recordingNotifier{}, clock: &clock{now: october}}
	f.store.SetClock(f.clock.Now)
	return f
}

func (f *fixture) scheduler(t *testing.T, mutate ...func(*economy.Options)) *economy.Scheduler {
	t.Helper()
	policy := economy.DefaultPolicy()
	policy.MarketEventProbability = 0
	opts := economy.Options{
		Store:    f.store,
		Notifier: f.notifier,
		Policy:   policy,
		Random:   fixedRandom{f: 0.99},
		Clock:    f.clock.Now,
	}
	for _, m := range mutate {
		m(&opts)
	}
	s, err := economy.NewScheduler(opts)
	require.NoError(t, err)
	return s
}

func (f *fixture) company(owner string, cash float64) economy.Company {
	f.store.PutUser(owner, cash)
	return f.store.PutCompany(economy.Company{
		Name:             owner + " corp",
		OwnerID:          owner,
		Industry:         "technology",
		Status:           economy.CompanyActive,
		CurrentValuation: 100000,
		StartingCapital:  100000,
		EfficiencyRating: 1,
		FoundedAt:        october.AddDate(-1, 0, 0),
	})
}

func (f *fixture) employee(c economy.Company, typ economy.EmployeeType, userID string, salary float64) {
	f.store.PutEmployee(economy.Employee{
		CompanyID:              c.ID,
		Type:                   typ,
		UserID:                 userID,
		Salary:                 salary,
		ProductivityMultiplier: economy.ProductivityMultiplierFor(typ),
		Status:                 economy.EmployeeActive,
	})
}

func companyValuation(t *testing.T, store *ledger.MemoryStore, id int64) float64 {
	t.Helper()
	c, err := store.Company(context.Background(), id)
	require.NoError(t, err)
	return c.CurrentValuation
}

func TestCycleNPCEmployeeScenario(t *testing.T) {
	f := newFixture()
	c := f.company("owner-1", 10000)
	f.employee(c, economy.EmployeeNPC, "", 5000)

	summary, err := f.scheduler(t).TriggerNow(context.Background())
	require.NoError(t, err)

	perf, ok := f.store.Performance(c.ID, "2026-10")
	require.True(t, ok)
	assert.Equal(t, 5000.0, perf.ProductivityRevenue)
	assert.Equal(t, 400.0, perf.Tax)
	assert.Equal(t, 5000.0, perf.Payroll)
	assert.Equal(t, -400.0, perf.NetIncome)
	assert.Equal(t, 99960.0, companyValuation(t, f.store, c.ID))
	assert.Equal(t, 9600.0, f.store.Cash("owner-1"))

	assert.Equal(t, economy.Period("2026-10"), summary.Period)
	assert.Equal(t, 400.0, summary.Totals.Taxes)
	assert.Equal(t, 1, summary.Totals.ActiveCompanies)
	assert.Equal(t, 400.0, summary.Ledger.ClosingBalance)

	rec, ok := f.store.PeriodRecord("2026-10")
	require.True(t, ok)
	assert.Equal(t, economy.PeriodCompleted, rec.Status)

	reports := f.notifier.toUser("owner-1")
	require.Len(t, reports, 1)
	assert.Contains(t, reports[0].Description, "losses")
	require.Len(t, f.notifier.toChannel(economy.ChannelAdmin), 1)
}

func TestCyclePlayerEmployeeScenario(t *testing.T) {
	f := newFixture()
	c := f.company("owner-1", 10000)
	f.store.PutUser("player-1", 0)
	f.employee(c, economy.EmployeePlayer, "player-1", 5000)

	_, err := f.scheduler(t).TriggerNow(context.Background())
	require.NoError(t, err)

	perf, ok := f.store.Performance(c.ID, "2026-10")
	require.True(t, ok)
	assert.Equal(t, 12500.0, perf.ProductivityRevenue)
	assert.Equal(t, 1000.0, perf.Tax)
	assert.Equal(t, 6500.0, perf.NetIncome)
	assert.Equal(t, 100650.0, companyValuation(t, f.store, c.ID))
	assert.Equal(t, 16500.0, f.store.Cash("owner-1"))
	assert.Equal(t, 5000.0, f.store.Cash("player-1"))

	entries := f.store.CashEntries("player-1")
	require.Len(t, entries, 1)
	assert.Equal(t, "salary", entries[0].Reason)
}

func TestCycleValuationNeverDropsBelowFloor(t *testing.T) {
	f := newFixture()
	c := f.company("owner-1", 0)
	f.store.PutCompany(economy.Company{ID: c.ID, Name: c.Name, OwnerID: c.OwnerID, Status: economy.CompanyActive, CurrentValuation: 1200, StartingCapital: 1000})
	f.employee(c, economy.EmployeeNPC, "", 100000)

	_, err := f.scheduler(t).TriggerNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1000.0, companyValuation(t, f.store, c.ID))
	assert.Less(t, f.store.Cash("owner-1"), 0.0)
}

func TestCyclePatentRevenueAccrues(t *testing.T) {
	f := newFixture()
	c := f.company("owner-1", 0)
	active := f.store.PutPatent(economy.Patent{CompanyID: c.ID, Status: economy.PatentApproved, ApprovedAt: october.AddDate(-1, 0, 0), ExpiresAt: october.AddDate(19, 0, 0), MonthlyRevenue: 5000, TotalRevenue: 10000})
	expired := f.store.PutPatent(economy.Patent{CompanyID: c.ID, Status: economy.PatentApproved, ExpiresAt: october.AddDate(0, -1, 0), MonthlyRevenue: 5000})
	pending := f.store.PutPatent(economy.Patent{CompanyID: c.ID, Status: economy.PatentPending, MonthlyRevenue: 5000})

	summary, err := f.scheduler(t).TriggerNow(context.Background())
	require.NoError(t, err)

	p, _ := f.store.PatentByID(active.ID)
	assert.Equal(t, 15000.0, p.TotalRevenue)
	p, _ = f.store.PatentByID(expired.ID)
	assert.Equal(t, 0.0, p.TotalRevenue)
	p, _ = f.store.PatentByID(pending.ID)
	assert.Equal(t, 0.0, p.TotalRevenue)

	assert.Equal(t, 5000.0, summary.Totals.PatentRevenue)
	assert.Equal(t, 400.0, summary.Totals.Taxes)
	assert.Equal(t, 4600.0, f.store.Cash("owner-1"))
}

func TestCycleLoanPayment(t *testing.T) {
	f := newFixture()
	c := f.company("owner-1", 20000)
	loan := f.store.PutLoan(economy.Loan{
		CompanyID:        c.ID,
		Principal:        100000,
		RemainingBalance: 100000,
		InterestRate:     0.12,
		TermMonths:       12,
		MonthlyPayment:   8884.88,
		Status:           economy.LoanActive,
		NextPaymentDate:  october.AddDate(0, 0, -1),
		OriginatedAt:     october.AddDate(0, -1, 0),
	})

	summary, err := f.scheduler(t).TriggerNow(context.Background())
	require.NoError(t, err)

	got, _ := f.store.LoanByID(loan.ID)
	assert.Equal(t, economy.LoanActive, got.Status)
	assert.Equal(t, 92115.12, got.RemainingBalance)
	assert.Equal(t, october.AddDate(0, 1, 0), got.NextPaymentDate)
	assert.Equal(t, 11115.12, f.store.Cash("owner-1"))

	payments := f.store.LoanPayments(loan.ID)
	require.Len(t, payments, 1)
	assert.Equal(t, 1000.0, payments[0].Interest)
	assert.Equal(t, economy.Period("2026-10"), payments[0].Period)

	assert.Equal(t, 1000.0, summary.Totals.LoanInterest)
	assert.Equal(t, 1000.0, summary.Ledger.LoanInterestIncome)
	assert.Equal(t, 0.0, summary.Ledger.LoansIssued)
}

func TestCycleLoanDefaultLeavesBalance(t *testing.T) {
	f := newFixture()
	c := f.company("owner-1", 500)
	loan := f.store.PutLoan(economy.Loan{
		CompanyID:        c.ID,
		Principal:        10000,
		RemainingBalance: 10000,
		InterestRate:     0.18,
		TermMonths:       12,
		MonthlyPayment:   1000,
		Status:           economy.LoanActive,
		NextPaymentDate:  october,
	})

	summary, err := f.scheduler(t).TriggerNow(context.Background())
	require.NoError(t, err)

	got, _ := f.store.LoanByID(loan.ID)
	assert.Equal(t, economy.LoanDefaulted, got.Status)
	assert.Equal(t, 10000.0, got.RemainingBalance)
	assert.Equal(t, 500.0, f.store.Cash("owner-1"))
	assert.Empty(t, f.store.LoanPayments(loan.ID))

	pass, ok := summary.Pass("loan")
	require.True(t, ok)
	assert.Equal(t, 1, pass.Succeeded)
	assert.Zero(t, pass.Failed())

	var titles []string
	for _, m := range f.notifier.toUser("owner-1") {
		titles = append(titles, m.Title)
	}
	assert.Contains(t, titles, "Loan Defaulted")

	// Defaulted loans are never due again.
	f.clock.Set(october.AddDate(0, 1, 0))
	f.store.PutUser("owner-1", 1000000)
	_, err = f.scheduler(t).TriggerNow(context.Background())
	require.NoError(t, err)
	got, _ = f.store.LoanByID(loan.ID)
	assert.Equal(t, economy.LoanDefaulted, got.Status)
}

func TestCycleLoanPaidOff(t *testing.T) {
	f := newFixture()
	c := f.company("owner-1", 5000)
	loan := f.store.PutLoan(economy.Loan{
		CompanyID:        c.ID,
		Principal:        100000,
		RemainingBalance: 8884.88,
		InterestRate:     0.12,
		TermMonths:       12,
		MonthlyPayment:   8884.88,
		Status:           economy.LoanActive,
		NextPaymentDate:  october,
	})
	f.store.PutUser("owner-1", 9000)

	_, err := f.scheduler(t).TriggerNow(context.Background())
	require.NoError(t, err)

	got, _ := f.store.LoanByID(loan.ID)
	assert.Equal(t, economy.LoanPaidOff, got.Status)
	assert.Equal(t, 0.0, got.RemainingBalance)
	assert.InDelta(t, 115.12, f.store.Cash("owner-1"), 0.001)
}

func TestTriggerNowRejectsConcurrentRun(t *testing.T) {
	f := newFixture()
	f.company("owner-1", 10000)

	entered := make(chan struct{})
	release := make(chan struct{})
	blocking := &blockingNotifier{entered: entered, release: release}
	s := f.scheduler(t, func(o *economy.Options) { o.Notifier = blocking })

	done := make(chan error, 1)
	go func() {
		_, err := s.TriggerNow(context.Background())
		done <- err
	}()
	<-entered

	cashBefore := f.store.Cash("owner-1")
	assert.True(t, s.Status().Running)
	_, err := s.TriggerNow(context.Background())
	assert.ErrorIs(t, err, economy.ErrAlreadyRunning)
	assert.Equal(t, cashBefore, f.store.Cash("owner-1"))

	close(release)
	require.NoError(t, <-done)
	assert.False(t, s.Status().Running)
}

type blockingNotifier struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (n *blockingNotifier) NotifyUser(ctx context.Context, _ string, _ economy.Message) error {
	n.once.Do(func() { close(n.entered) })
	<-n.release
	return nil
}

func (n *blockingNotifier) Broadcast(context.Context, economy.Channel, economy.Message) error {
	return nil
}

func TestTriggerNowRefusesCompletedPeriod(t *testing.T) {
	f := newFixture()
	c := f.company("owner-1", 10000)
	f.employee(c, economy.EmployeeNPC, "", 5000)
	s := f.scheduler(t)

	first, err := s.TriggerNow(context.Background())
	require.NoError(t, err)

	_, err = s.TriggerNow(context.Background())
	require.ErrorIs(t, err, economy.ErrAlreadyCompleted)

	entry, err := f.store.CentralBankLedger(context.Background(), "2026-10")
	require.NoError(t, err)
	assert.Equal(t, first.Ledger.ClosingBalance, entry.ClosingBalance)
	assert.Equal(t, 400.0, entry.TaxIncome)
	assert.Equal(t, 9600.0, f.store.Cash("owner-1"))
	assert.Equal(t, first.RunID, s.Status().LastCycle.RunID)
}

// flakyStore fails selected operations, including inside transactions.
type flakyStore struct {
	economy.Store
	failEmployeesOf int64
	failLedger      *int
}

func (s *flakyStore) WithinTx(ctx context.Context, fn func(tx economy.Store) error) error {
	return s.Store.WithinTx(ctx, func(tx economy.Store) error {
		return fn(&flakyStore{Store: tx, failEmployeesOf: s.failEmployeesOf, failLedger: s.failLedger})
	})
}

func (s *flakyStore) ListActiveEmployees(ctx context.Context, companyID int64) ([]economy.Employee, error) {
	if companyID == s.failEmployeesOf {
		return nil, errors.New("employees table unavailable")
	}
	return s.Store.ListActiveEmployees(ctx, companyID)
}

func (s *flakyStore) UpsertCentralBankLedger(ctx context.Context, period economy.Period, tax, interest, issued float64) (economy.LedgerEntry, error) {
	if s.failLedger != nil && *s.failLedger > 0 {
		*s.failLedger--
		return economy.LedgerEntry{}, errors.New("ledger write failed")
	}
	return s.Store.UpsertCentralBankLedger(ctx, period, tax, interest, issued)
}

func TestCompanyFailureIsIsolated(t *testing.T) {
	f := newFixture()
	broken := f.company("owner-a", 10000)
	healthy := f.company("owner-b", 10000)
	f.employee(broken, economy.EmployeeNPC, "", 5000)
	f.employee(healthy, economy.EmployeeNPC, "", 5000)

	s := f.scheduler(t, func(o *economy.Options) {
		o.Store = &flakyStore{Store: f.store, failEmployeesOf: broken.ID}
	})
	summary, err := s.TriggerNow(context.Background())
	require.NoError(t, err)

	pass, ok := summary.Pass("company")
	require.True(t, ok)
	assert.Equal(t, 1, pass.Succeeded)
	require.Equal(t, 1, pass.Failed())
	assert.Equal(t, "company", pass.Failures[0].Kind)
	assert.Contains(t, pass.Failures[0].Reason, "employees table unavailable")
	assert.Equal(t, 1, summary.FailedEntities())

	assert.Equal(t, 10000.0, f.store.Cash("owner-a"))
	assert.Equal(t, 9600.0, f.store.Cash("owner-b"))
	assert.Equal(t, 400.0, summary.Ledger.TaxIncome)
	assert.Equal(t, 2, summary.Totals.ActiveCompanies)
}

func TestFinalizationFailureIsRetriedWithoutDoubleCounting(t *testing.T) {
	f := newFixture()
	c := f.company("owner-1", 10000)
	f.employee(c, economy.EmployeeNPC, "", 5000)

	failures := 1
	s := f.scheduler(t, func(o *economy.Options) {
		o.Store = &flakyStore{Store: f.store, failLedger: &failures}
	})

	summary, err := s.TriggerNow(context.Background())
	require.Error(t, err)
	assert.NotEmpty(t, summary.Error)
	rec, ok := f.store.PeriodRecord("2026-10")
	require.True(t, ok)
	assert.Equal(t, economy.PeriodActive, rec.Status)
	_, err = f.store.CentralBankLedger(context.Background(), "2026-10")
	require.ErrorIs(t, err, economy.ErrNotFound)

	summary, err = s.TriggerNow(context.Background())
	require.NoError(t, err)
	pass, _ := summary.Pass("company")
	assert.Equal(t, 1, pass.Skipped)
	assert.Equal(t, 9600.0, f.store.Cash("owner-1"))
	assert.Equal(t, 400.0, summary.Ledger.TaxIncome)
	assert.Equal(t, 400.0, summary.Ledger.ClosingBalance)
}

func TestRetriedCycleGeneratesOneMarketEventPerPeriod(t *testing.T) {
	f := newFixture()
	failures := 1
	s := f.scheduler(t, func(o *economy.Options) {
		o.Store = &flakyStore{Store: f.store, failLedger: &failures}
		o.Policy.MarketEventProbability = 1
		o.Random = fixedRandom{f: 0.5, n: 0}
	})

	_, err := s.TriggerNow(context.Background())
	require.Error(t, err)
	summary, err := s.TriggerNow(context.Background())
	require.NoError(t, err)

	pass, ok := summary.Pass("market_event")
	require.True(t, ok)
	assert.Equal(t, 1, pass.Skipped)
	assert.Zero(t, pass.Succeeded)

	events := f.store.MarketEvents()
	require.Len(t, events, 1)
	assert.Equal(t, economy.Period("2026-10"), events[0].Period)
	assert.Len(t, f.notifier.toChannel(economy.ChannelMarket), 1)
}

// cancellingStore cancels the caller's context the first time employees are listed.
type cancellingStore struct {
	economy.Store
	cancel context.CancelFunc
	once   *sync.Once
}

func (s *cancellingStore) WithinTx(ctx context.Context, fn func(tx economy.Store) error) error {
	return s.Store.WithinTx(ctx, func(tx economy.Store) error {
		return fn(&cancellingStore{Store: tx, cancel: s.cancel, once: s.once})
	})
}

func (s *cancellingStore) ListActiveEmployees(ctx context.Context, companyID int64) ([]economy.Employee, error) {
	s.once.Do(s.cancel)
	return s.Store.ListActiveEmployees(ctx, companyID)
}

func TestCancelledContextDoesNotInterruptCycle(t *testing.T) {
	f := newFixture()
	for _, owner := range []string{"owner-a", "owner-b", "owner-c"} {
		c := f.company(owner, 10000)
		f.employee(c, economy.EmployeeNPC, "", 5000)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := f.scheduler(t, func(o *economy.Options) {
		o.Store = &cancellingStore{Store: f.store, cancel: cancel, once: &sync.Once{}}
	})

	summary, err := s.TriggerNow(ctx)
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	pass, ok := summary.Pass("company")
	require.True(t, ok)
	assert.Equal(t, 3, pass.Succeeded)
	assert.Zero(t, pass.Failed())
	for _, owner := range []string{"owner-a", "owner-b", "owner-c"} {
		assert.Equal(t, 9600.0, f.store.Cash(owner), owner)
	}
	rec, ok := f.store.PeriodRecord("2026-10")
	require.True(t, ok)
	assert.Equal(t, economy.PeriodCompleted, rec.Status)
	assert.Equal(t, 1200.0, summary.Ledger.TaxIncome)
}

func TestInsuranceRemindersUseCalendarDays(t *testing.T) {
	f := newFixture()
	c := f.company("owner-a", 1000)
	day := time.Date(2026, time.October, 15, 0, 0, 0, 0, time.UTC)
	for _, end := range []time.Time{
		day.Add(2 * time.Hour),
		day.AddDate(0, 0, 7).Add(23 * time.Hour),
		day.Add(-time.Hour),
		day.AddDate(0, 0, 8).Add(30 * time.Minute),
	} {
		f.store.PutPolicy(economy.InsurancePolicy{CompanyID: c.ID, Type: "cyber", EndDate: end, Status: economy.PolicyActive})
	}

	summary, err := f.scheduler(t).TriggerNow(context.Background())
	require.NoError(t, err)

	pass, ok := summary.Pass("insurance")
	require.True(t, ok)
	assert.Equal(t, 2, pass.Succeeded)
	reminders := 0
	for _, m := range f.notifier.toUser("owner-a") {
		if m.Title == "Insurance Policy Expiring Soon" {
			reminders++
		}
	}
	assert.Equal(t, 2, reminders)
}

func TestLedgerCarriesForwardAndReportsDisbursementsOnce(t *testing.T) {
	f := newFixture()
	c := f.company("owner-1", 100000)
	f.employee(c, economy.EmployeeNPC, "", 5000)

	oct, err := f.scheduler(t).TriggerNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 400.0, oct.Ledger.ClosingBalance)

	november := october.AddDate(0, 1, 0)
	_, err = f.store.OpenLoan(context.Background(), economy.Loan{
		CompanyID:        c.ID,
		Principal:        5000,
		RemainingBalance: 5000,
		InterestRate:     0.05,
		TermMonths:       12,
		MonthlyPayment:   500,
		Status:           economy.LoanActive,
		NextPaymentDate:  november.AddDate(0, 1, 0),
		OriginatedAt:     october.AddDate(0, 0, 5),
	}, 3)
	require.NoError(t, err)
	assert.Equal(t, 104600.0, f.store.Cash("owner-1"))

	f.clock.Set(november)
	nov, err := f.scheduler(t).TriggerNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, economy.Period("2026-11"), nov.Period)
	assert.Equal(t, 400.0, nov.Ledger.OpeningBalance)
	assert.Equal(t, 5000.0, nov.Ledger.LoansIssued)
	assert.Equal(t, -4200.0, nov.Ledger.ClosingBalance)

	f.clock.Set(november.AddDate(0, 1, 0))
	dec, err := f.scheduler(t).TriggerNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -4200.0, dec.Ledger.OpeningBalance)
	assert.Equal(t, 0.0, dec.Ledger.LoansIssued)
	assert.Equal(t, 20.83, dec.Ledger.LoanInterestIncome)
	assert.Equal(t, -3779.17, dec.Ledger.ClosingBalance)
}

func TestSecondaryEffects(t *testing.T) {
	f := newFixture()
	a := f.company("owner-a", 1000)
	b := f.company("owner-b", 1000)

	project := f.store.PutRDProject(economy.RDProject{
		CompanyID:      a.ID,
		Name:           "Quantum chips",
		Category:       "technology",
		Budget:         50000,
		DurationMonths: 3,
		StartDate:      october.AddDate(0, -3, 0),
		Status:         economy.RDActive,
	})
	future := f.store.PutRDProject(economy.RDProject{
		CompanyID:      a.ID,
		Category:       "cost",
		DurationMonths: 6,
		StartDate:      october.AddDate(0, -1, 0),
		Status:         economy.RDActive,
	})
	contract := f.store.PutContract(economy.Contract{
		Title:   "Supply deal",
		Value:   25000,
		PartyA:  economy.ContractParty{CompanyID: a.ID},
		PartyB:  economy.ContractParty{CompanyID: b.ID},
		EndDate: october.AddDate(0, 0, -2),
		Status:  economy.ContractActive,
	})
	f.store.PutPolicy(economy.InsurancePolicy{
		CompanyID:      b.ID,
		Type:           "liability",
		CoverageAmount: 50000,
		EndDate:        october.AddDate(0, 0, 3),
		Status:         economy.PolicyActive,
	})
	f.store.PutPolicy(economy.InsurancePolicy{
		CompanyID: b.ID,
		Type:      "property",
		EndDate:   october.AddDate(0, 1, 0),
		Status:    economy.PolicyActive,
	})

	summary, err := f.scheduler(t).TriggerNow(context.Background())
	require.NoError(t, err)

	got, outcome, _ := f.store.RDProjectByID(project.ID)
	assert.Equal(t, economy.RDCompleted, got.Status)
	require.NotNil(t, outcome)
	assert.InDelta(t, 1.725, outcome.ValuationMultiplier, 1e-9)
	assert.InDelta(t, 172500.0, companyValuation(t, f.store, a.ID), 0.01)
	got, _, _ = f.store.RDProjectByID(future.ID)
	assert.Equal(t, economy.RDActive, got.Status)

	gotContract, _ := f.store.ContractByID(contract.ID)
	assert.Equal(t, economy.ContractCompleted, gotContract.Status)

	for _, name := range []string{"rd_project", "contract", "insurance"} {
		pass, ok := summary.Pass(name)
		require.True(t, ok, name)
		assert.Equal(t, 1, pass.Succeeded, name)
	}

	titles := func(user string) []string {
		var out []string
		for _, m := range f.notifier.toUser(user) {
			out = append(out, m.Title)
		}
		return out
	}
	assert.Contains(t, titles("owner-a"), "R&D Project Completed!")
	assert.Contains(t, titles("owner-a"), "Contract Completed")
	assert.Contains(t, titles("owner-b"), "Contract Completed")
	assert.Contains(t, titles("owner-b"), "Insurance Policy Expiring Soon")
}

func TestMarketEventGeneratedAndExpired(t *testing.T) {
	f := newFixture()
	old := f.store.PutMarketEvent(economy.MarketEvent{
		Name:      "Old news",
		StartDate: october.AddDate(0, -3, 0),
		EndDate:   october.AddDate(0, 0, -1),
		Status:    economy.MarketEventActive,
	})

	s := f.scheduler(t, func(o *economy.Options) {
		o.Policy.MarketEventProbability = 1
		o.Random = fixedRandom{f: 0.5, n: 0}
	})
	summary, err := s.TriggerNow(context.Background())
	require.NoError(t, err)

	tmpl := economy.DefaultEventCatalog().Events[0]
	events := f.store.MarketEvents()
	require.Len(t, events, 2)
	for _, e := range events {
		if e.ID == old.ID {
			assert.Equal(t, economy.MarketEventExpired, e.Status)
			continue
		}
		assert.Equal(t, tmpl.Name, e.Name)
		assert.Equal(t, economy.MarketEventActive, e.Status)
		assert.Equal(t, tmpl.Duration[0], e.DurationMonths)
		assert.Equal(t, october.AddDate(0, e.DurationMonths, 0), e.EndDate)
		assert.GreaterOrEqual(t, e.ImpactMultiplier, tmpl.Impact[0])
		assert.LessOrEqual(t, e.ImpactMultiplier, tmpl.Impact[1])
	}

	pass, ok := summary.Pass("market_event")
	require.True(t, ok)
	assert.Equal(t, 2, pass.Succeeded)

	market := f.notifier.toChannel(economy.ChannelMarket)
	require.Len(t, market, 1)
	assert.Equal(t, "Market Event Alert!", market[0].Title)
	assert.Contains(t, market[0].Description, tmpl.Name)
}

func TestNotificationFailuresDoNotFailCycle(t *testing.T) {
	f := newFixture()
	c := f.company("owner-1", 10000)
	f.employee(c, economy.EmployeeNPC, "", 5000)
	f.notifier.fail = true

	summary, err := f.scheduler(t).TriggerNow(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Notified)
	assert.Equal(t, 9600.0, f.store.Cash("owner-1"))
}

func TestStartRunsCyclesUntilStopped(t *testing.T) {
	f := newFixture()
	f.company("owner-1", 10000)
	s := f.scheduler(t)

	require.NoError(t, s.Start(context.Background(), 10*time.Millisecond))
	require.Eventually(t, func() bool { return s.Status().LastCycle != nil }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, s.Status().Scheduled)

	s.Stop()
	s.Wait()
	st := s.Status()
	assert.False(t, st.Scheduled)
	assert.True(t, st.NextRun.IsZero())
	rec, ok := f.store.PeriodRecord("2026-10")
	require.True(t, ok)
	assert.Equal(t, economy.PeriodCompleted, rec.Status)
}

func TestStartRejectsNonPositiveInterval(t *testing.T) {
	s := newFixture().scheduler(t)
	assert.ErrorIs(t, s.Start(context.Background(), 0), economy.ErrConfiguration)
}

func TestNewSchedulerValidatesOptions(t *testing.T) {
	store := ledger.NewMemoryStore()
	notifier := &recordingNotifier{}

	_, err := economy.NewScheduler(economy.Options{Notifier: notifier, Policy: economy.DefaultPolicy()})
	assert.ErrorIs(t, err, economy.ErrConfiguration)

	_, err = economy.NewScheduler(economy.Options{Store: store, Policy: economy.DefaultPolicy()})
	assert.ErrorIs(t, err, economy.ErrConfiguration)

	bad := economy.DefaultPolicy()
	bad.TaxRate = 1.2
	_, err = economy.NewScheduler(economy.Options{Store: store, Notifier: notifier, Policy: bad})
	assert.ErrorIs(t, err, economy.ErrConfiguration)

	_, err = economy.NewScheduler(economy.Options{Store: store, Notifier: notifier, Policy: economy.DefaultPolicy(), Catalog: &economy.EventCatalog{}})
	assert.ErrorIs(t, err, economy.ErrConfiguration)
}
