package economy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"corpempire/internal/finance"
)

// Policy holds the tunable economic parameters of a cycle.
type Policy struct {
	TaxRate                float64
	ValuationFloor         float64
	ValuationSensitivity   float64
	MarketEventProbability float64
}

func DefaultPolicy() Policy {
	return Policy{
		TaxRate:                finance.DefaultTaxRate,
		ValuationFloor:         finance.DefaultValuationFloor,
		ValuationSensitivity:   finance.DefaultValuationSensitivity,
		MarketEventProbability: 0.2,
	}
}

func (p Policy) Validate() error {
	switch {
	case p.TaxRate < 0 || p.TaxRate > 1:
		return fmt.Errorf("%w: tax rate %v outside [0,1]", ErrConfiguration, p.TaxRate)
	case p.ValuationFloor < 0:
		return fmt.Errorf("%w: valuation floor must not be negative", ErrConfiguration)
	case p.ValuationSensitivity < 0:
		return fmt.Errorf("%w: valuation sensitivity must not be negative", ErrConfiguration)
	case p.MarketEventProbability < 0 || p.MarketEventProbability > 1:
		return fmt.Errorf("%w: market event probability %v outside [0,1]", ErrConfiguration, p.MarketEventProbability)
	}
	return nil
}

// CycleSummary describes one completed or failed cycle attempt.
type CycleSummary struct {
	RunID      string       `json:"run_id"`
	Period     Period       `json:"period"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Totals     CycleTotals  `json:"totals"`
	Ledger     LedgerEntry  `json:"ledger"`
	Passes     []PassResult `json:"passes"`
	Notified   int          `json:"notified"`
	Error      string       `json:"error,omitempty"`
}

func (s CycleSummary) Succeeded() int {
	n := 0
	for _, p := range s.Passes {
		n += p.Succeeded
	}
	return n
}

func (s CycleSummary) FailedEntities() int {
	n := 0
	for _, p := range s.Passes {
		n += p.Failed()
	}
	return n
}

func (s CycleSummary) Pass(name string) (PassResult, bool) {
	for _, p := range s.Passes {
		if p.Name == name {
			return p, true
		}
	}
	return PassResult{}, false
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Running   bool          `json:"running"`
	Scheduled bool          `json:"scheduled"`
	Interval  time.Duration `json:"interval"`
	NextRun   time.Time     `json:"next_run,omitzero"`
	LastCycle *CycleSummary `json:"last_cycle,omitempty"`
}

type Options struct {
	Store    Store
	Notifier Notifier
	Logger   *slog.Logger
	Policy   Policy
	// Random defaults to a clock-seeded source.
	Random RandomSource
	// Clock defaults to time.Now.
	Clock func() time.Time
	// Catalog defaults to the embedded market event catalog.
	Catalog *EventCatalog
}

// Scheduler owns the recurring timer and the single in-progress guard.
type Scheduler struct {
	store    Store
	notifier Notifier
	log      *slog.Logger
	policy   Policy
	now      func() time.Time

	companies *CompanyCycleProcessor
	loans     *LoanPaymentProcessor
	effects   []effectPass

	running atomic.Bool

	mu       sync.Mutex
	cancel   context.CancelFunc
	interval time.Duration
	nextRun  time.Time
	last     *CycleSummary
	loop     sync.WaitGroup
}

func NewScheduler(opts Options) (*Scheduler, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrConfiguration)
	}
	if opts.Notifier == nil {
		return nil, fmt.Errorf("%w: notifier is required", ErrConfiguration)
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	random := opts.Random
	if random == nil {
		random = NewRandomSource(0)
	}
	catalog := DefaultEventCatalog()
	if opts.Catalog != nil {
		if err := opts.Catalog.Validate(); err != nil {
			return nil, err
		}
		catalog = *opts.Catalog
	}

	return &Scheduler{
		store:     opts.Store,
		notifier:  opts.Notifier,
		log:       logger,
		policy:    opts.Policy,
		now:       clock,
		companies: NewCompanyCycleProcessor(opts.Store, opts.Policy, logger),
		loans:     NewLoanPaymentProcessor(opts.Store, logger),
		effects: []effectPass{
			NewRDCompletionEngine(opts.Store, logger),
			NewContractExpiryEngine(opts.Store, logger),
			NewInsuranceRenewalEngine(opts.Store, logger),
			NewMarketEventGenerator(opts.Store, catalog, random, opts.Policy.MarketEventProbability, logger),
		},
	}, nil
}

// Start begins firing a cycle every interval until ctx ends or Stop is called.
// Calling Start again replaces the previous timer.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: cycle interval must be positive", ErrConfiguration)
	}
	s.Stop()

	loopCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.interval = interval
	s.nextRun = s.now().Add(interval)
	s.mu.Unlock()

	s.loop.Add(1)
	go func() {
		defer s.loop.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.log.Info("cycle scheduler started", "interval", interval.String())
		for {
			select {
			case <-loopCtx.Done():
				s.log.Info("cycle scheduler stopped")
				return
			case <-ticker.C:
				s.mu.Lock()
				if loopCtx.Err() != nil {
					s.mu.Unlock()
					return
				}
				s.nextRun = s.now().Add(interval)
				s.mu.Unlock()
				s.runScheduled(loopCtx)
			}
		}
	}()
	return nil
}

func (s *Scheduler) runScheduled(ctx context.Context) {
	summary, err := s.TriggerNow(ctx)
	switch {
	case errors.Is(err, ErrAlreadyRunning):
		s.log.Warn("scheduled cycle skipped", "reason", "cycle already in progress")
	case errors.Is(err, ErrAlreadyCompleted):
		s.log.Info("scheduled cycle skipped", "reason", "period already completed", "period", PeriodFor(s.now()))
	case err != nil:
		s.log.Error("scheduled cycle failed", "period", summary.Period, "err", err)
	}
}

// Stop cancels future timer firings. It does not wait for a running cycle.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.nextRun = time.Time{}
}

// Wait blocks until the timer loop, including any cycle it started, has exited.
func (s *Scheduler) Wait() {
	s.loop.Wait()
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Running:   s.running.Load(),
		Scheduled: s.cancel != nil,
		Interval:  s.interval,
		NextRun:   s.nextRun,
	}
	if s.last != nil {
		last := *s.last
		st.LastCycle = &last
	}
	return st
}

// TriggerNow runs one cycle for the current period. It fails with
// ErrAlreadyRunning, without touching any state, when a cycle is in progress,
// and with ErrAlreadyCompleted when the period was already finalized.
// Cancelling ctx does not interrupt a cycle once it has started.
func (s *Scheduler) TriggerNow(ctx context.Context) (CycleSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return CycleSummary{}, ErrAlreadyRunning
	}
	defer s.running.Store(false)
	ctx = context.WithoutCancel(ctx)

	summary, err := s.runCycle(ctx)
	if err != nil {
		summary.Error = err.Error()
	}
	if !errors.Is(err, ErrAlreadyCompleted) {
		s.mu.Lock()
		s.last = &summary
		s.mu.Unlock()
	}
	return summary, err
}

func (s *Scheduler) runCycle(ctx context.Context) (summary CycleSummary, err error) {
	startedAt := s.now().UTC()
	period := PeriodFor(startedAt)
	summary = CycleSummary{
		RunID:     uuid.NewString(),
		Period:    period,
		StartedAt: startedAt,
	}
	log := s.log.With("run_id", summary.RunID, "period", period.String())
	box := &outbox{}
	defer func() {
		if box.len() == 0 {
			return
		}
		sent, failed := box.flush(ctx, s.notifier, log)
		summary.Notified = sent
		log.Info("notifications delivered", "sent", sent, "failed", failed)
	}()

	start := period.Start()
	if err := s.store.BeginPeriod(ctx, period, start, start.AddDate(0, 1, 0)); err != nil {
		summary.FinishedAt = s.now().UTC()
		return summary, fmt.Errorf("begin period %s: %w", period, err)
	}
	log.Info("economic cycle started")

	companies, err := s.store.ListActiveCompanies(ctx)
	if err != nil {
		summary.FinishedAt = s.now().UTC()
		return summary, fmt.Errorf("list active companies: %w", err)
	}
	summary.Passes = append(summary.Passes, runPass(ctx, log, "company", companies,
		func(c Company) string { return strconv.FormatInt(c.ID, 10) },
		func(ctx context.Context, c Company) error {
			report, err := s.companies.Process(ctx, c, period, startedAt)
			if err != nil {
				return err
			}
			box.toUser(c.OwnerID, companyReportMessage(c, report))
			return nil
		}))

	summary.Passes = append(summary.Passes, s.loanPass(ctx, log, period, startedAt, box))

	for _, e := range s.effects {
		summary.Passes = append(summary.Passes, s.runEffect(ctx, log, e, startedAt, box))
	}

	entry, totals, err := s.finalize(ctx, period, len(companies))
	summary.FinishedAt = s.now().UTC()
	if err != nil {
		log.Error("period finalization failed", "err", err)
		return summary, fmt.Errorf("finalize period %s: %w", period, err)
	}
	summary.Totals = totals
	summary.Ledger = entry

	log.Info("economic cycle completed",
		"companies", totals.ActiveCompanies,
		"tax_income", totals.Taxes,
		"loan_interest", totals.LoanInterest,
		"closing_balance", entry.ClosingBalance,
		"failed_entities", summary.FailedEntities(),
		"duration", summary.FinishedAt.Sub(startedAt).String(),
	)
	box.broadcast(ChannelAdmin, cycleSummaryMessage(summary))
	return summary, nil
}

func (s *Scheduler) loanPass(ctx context.Context, log *slog.Logger, period Period, asOf time.Time, box *outbox) PassResult {
	const name = "loan"
	loans, err := s.store.ListDueLoans(ctx, asOf)
	if err != nil {
		log.Error("list due loans failed", "err", err)
		return scanFailure(name, err)
	}
	return runPass(ctx, log, name, loans,
		func(l Loan) string { return strconv.FormatInt(l.ID, 10) },
		func(ctx context.Context, l Loan) error {
			out, err := s.loans.Process(ctx, l, period, asOf)
			if err != nil {
				return err
			}
			switch out.Kind {
			case LoanOutcomeDefaulted:
				box.toUser(l.OwnerID, loanDefaultMessage(l))
			case LoanOutcomePaidOff:
				box.toUser(l.OwnerID, loanPaidOffMessage(l))
			}
			return nil
		})
}

func (s *Scheduler) runEffect(ctx context.Context, log *slog.Logger, e effectPass, asOf time.Time, box *outbox) (res PassResult) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			log.Error("effect pass failed", "pass", e.Name(), "err", err)
			res = scanFailure(e.Name(), err)
		}
	}()
	return e.Run(ctx, asOf, box)
}

// finalize marks the period completed and books it into the central bank
// ledger in one transaction, so a second finalization can never double-count.
func (s *Scheduler) finalize(ctx context.Context, period Period, activeCompanies int) (LedgerEntry, CycleTotals, error) {
	var (
		entry  LedgerEntry
		totals CycleTotals
	)
	err := s.store.WithinTx(ctx, func(tx Store) error {
		var err error
		totals, err = tx.PeriodTotals(ctx, period)
		if err != nil {
			return fmt.Errorf("period totals: %w", err)
		}
		totals.ActiveCompanies = activeCompanies
		if err := tx.MarkPeriodCompleted(ctx, period, totals); err != nil {
			return err
		}
		issued, err := tx.ClaimUnreportedDisbursements(ctx, period)
		if err != nil {
			return fmt.Errorf("claim disbursements: %w", err)
		}
		entry, err = tx.UpsertCentralBankLedger(ctx, period, totals.Taxes, totals.LoanInterest, issued)
		if err != nil {
			return fmt.Errorf("upsert ledger: %w", err)
		}
		return nil
	})
	return entry, totals, err
}
