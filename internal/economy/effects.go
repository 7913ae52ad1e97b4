package economy

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"
)

// effectPass is one date-driven secondary engine. Each engine scans its own
// entity class; a failing engine never blocks the others.
type effectPass interface {
	Name() string
	Run(ctx context.Context, asOf time.Time, box *outbox) PassResult
}

type rdBenefit struct {
	valuation  float64
	efficiency float64
}

var rdBenefits = map[string]rdBenefit{
	"technology":     {1.15, 1.20},
	"product":        {1.20, 1.10},
	"process":        {1.10, 1.25},
	"market":         {1.12, 1.15},
	"sustainability": {1.18, 1.12},
	"quality":        {1.16, 1.18},
	"cost":           {1.08, 1.30},
}

var rdCategoryNames = map[string]string{
	"technology":     "Technology Innovation",
	"product":        "Product Development",
	"process":        "Process Improvement",
	"market":         "Market Research",
	"sustainability": "Sustainability",
	"quality":        "Quality Assurance",
	"cost":           "Cost Optimization",
}

const (
	rdBudgetScale    = 100000.0
	rdMaxBudgetBoost = 1.5
)

func rdCategoryName(category string) string {
	if name, ok := rdCategoryNames[category]; ok {
		return name
	}
	return category
}

// RDBenefits returns the outcome of a finished project: the category's base
// multipliers scaled by min(1 + budget/100000, 1.5).
func RDBenefits(p RDProject, completedAt time.Time) RDOutcome {
	base, ok := rdBenefits[p.Category]
	if !ok {
		base = rdBenefit{1.10, 1.10}
	}
	boost := math.Min(1+math.Max(p.Budget, 0)/rdBudgetScale, rdMaxBudgetBoost)
	valuation := base.valuation * boost
	efficiency := base.efficiency * boost
	return RDOutcome{
		ValuationMultiplier:  valuation,
		EfficiencyMultiplier: efficiency,
		Description: fmt.Sprintf("Successful %s project! Company valuation increased by %s%% and efficiency improved by %s%%.",
			rdCategoryName(p.Category),
			strconv.FormatFloat((valuation-1)*100, 'f', 1, 64),
			strconv.FormatFloat((efficiency-1)*100, 'f', 1, 64)),
		CompletedAt: completedAt,
	}
}

// RDCompletionEngine completes projects whose duration has elapsed.
type RDCompletionEngine struct {
	store Store
	log   *slog.Logger
}

func NewRDCompletionEngine(store Store, logger *slog.Logger) *RDCompletionEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &RDCompletionEngine{store: store, log: logger}
}

func (e *RDCompletionEngine) Name() string { return "rd_project" }

func (e *RDCompletionEngine) Run(ctx context.Context, asOf time.Time, box *outbox) PassResult {
	projects, err := e.store.ListDueRDProjects(ctx, asOf)
	if err != nil {
		e.log.Error("list due rd projects failed", "err", err)
		return scanFailure(e.Name(), err)
	}
	return runPass(ctx, e.log, e.Name(), projects, func(p RDProject) string { return strconv.FormatInt(p.ID, 10) },
		func(ctx context.Context, p RDProject) error {
			if p.Status != RDActive || p.DueAt().After(asOf) {
				return errSkip
			}
			outcome := RDBenefits(p, asOf)
			if err := e.store.CompleteRDProject(ctx, p, outcome); err != nil {
				return err
			}
			box.toUser(p.OwnerID, rdCompletedMessage(p, outcome))
			return nil
		})
}

// ContractExpiryEngine completes contracts past their end date.
type ContractExpiryEngine struct {
	store Store
	log   *slog.Logger
}

func NewContractExpiryEngine(store Store, logger *slog.Logger) *ContractExpiryEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContractExpiryEngine{store: store, log: logger}
}

func (e *ContractExpiryEngine) Name() string { return "contract" }

func (e *ContractExpiryEngine) Run(ctx context.Context, asOf time.Time, box *outbox) PassResult {
	contracts, err := e.store.ListExpiredContracts(ctx, asOf)
	if err != nil {
		e.log.Error("list expired contracts failed", "err", err)
		return scanFailure(e.Name(), err)
	}
	return runPass(ctx, e.log, e.Name(), contracts, func(c Contract) string { return strconv.FormatInt(c.ID, 10) },
		func(ctx context.Context, c Contract) error {
			if c.Status != ContractActive || c.EndDate.After(asOf) {
				return errSkip
			}
			if err := e.store.CompleteContract(ctx, c.ID); err != nil {
				return err
			}
			msg := contractCompletedMessage(c)
			box.toUser(c.PartyA.OwnerID, msg)
			if c.PartyB.OwnerID != c.PartyA.OwnerID {
				box.toUser(c.PartyB.OwnerID, msg)
			}
			return nil
		})
}

// InsuranceReminderDays is how many calendar days ahead renewal reminders look.
const InsuranceReminderDays = 7

// insuranceReminderWindow spans whole UTC days, from the start of asOf's day
// to the end of the day InsuranceReminderDays later.
func insuranceReminderWindow(asOf time.Time) (from, to time.Time) {
	y, m, d := asOf.UTC().Date()
	from = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	to = from.AddDate(0, 0, InsuranceReminderDays+1).Add(-time.Nanosecond)
	return from, to
}

// InsuranceRenewalEngine only reminds. Policies are neither renewed nor lapsed here.
type InsuranceRenewalEngine struct {
	store Store
	log   *slog.Logger
}

func NewInsuranceRenewalEngine(store Store, logger *slog.Logger) *InsuranceRenewalEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &InsuranceRenewalEngine{store: store, log: logger}
}

func (e *InsuranceRenewalEngine) Name() string { return "insurance" }

func (e *InsuranceRenewalEngine) Run(ctx context.Context, asOf time.Time, box *outbox) PassResult {
	from, to := insuranceReminderWindow(asOf)
	policies, err := e.store.ListPoliciesExpiringBetween(ctx, from, to)
	if err != nil {
		e.log.Error("list expiring policies failed", "err", err)
		return scanFailure(e.Name(), err)
	}
	return runPass(ctx, e.log, e.Name(), policies, func(p InsurancePolicy) string { return strconv.FormatInt(p.ID, 10) },
		func(_ context.Context, p InsurancePolicy) error {
			if p.Status != PolicyActive || p.OwnerID == "" {
				return errSkip
			}
			box.toUser(p.OwnerID, insuranceReminderMessage(p))
			return nil
		})
}
