package economy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"corpempire/internal/finance"
)

// CompanyReport is the outcome of one company's month.
type CompanyReport struct {
	CompanyID           int64     `json:"company_id"`
	Period              Period    `json:"period"`
	ProductivityRevenue float64   `json:"productivity_revenue"`
	PatentRevenue       float64   `json:"patent_revenue"`
	GrossRevenue        float64   `json:"gross_revenue"`
	Tax                 float64   `json:"tax"`
	Payroll             float64   `json:"payroll"`
	NetIncome           float64   `json:"net_income"`
	NewValuation        float64   `json:"new_valuation"`
	Employees           int       `json:"employees"`
	ProcessedAt         time.Time `json:"processed_at"`
}

// CompanyCycleProcessor applies revenue, tax, payroll and valuation to one company.
type CompanyCycleProcessor struct {
	store  Store
	policy Policy
	log    *slog.Logger
}

func NewCompanyCycleProcessor(store Store, policy Policy, logger *slog.Logger) *CompanyCycleProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompanyCycleProcessor{store: store, policy: policy, log: logger}
}

// Process runs one company's month inside its own transaction. A company that
// already has a performance record for the period is skipped.
func (p *CompanyCycleProcessor) Process(ctx context.Context, company Company, period Period, asOf time.Time) (CompanyReport, error) {
	var report CompanyReport
	err := p.store.WithinTx(ctx, func(tx Store) error {
		done, err := tx.HasCompanyPerformance(ctx, company.ID, period)
		if err != nil {
			return fmt.Errorf("check performance: %w", err)
		}
		if done {
			return errSkip
		}

		employees, err := tx.ListActiveEmployees(ctx, company.ID)
		if err != nil {
			return fmt.Errorf("list employees: %w", err)
		}
		patents, err := tx.ListApprovedUnexpiredPatents(ctx, company.ID, asOf)
		if err != nil {
			return fmt.Errorf("list patents: %w", err)
		}

		earners := make([]finance.Earner, 0, len(employees))
		active := make([]Employee, 0, len(employees))
		for _, e := range employees {
			if e.Status != EmployeeActive {
				continue
			}
			active = append(active, e)
			earners = append(earners, finance.Earner{Salary: e.Salary, ProductivityMultiplier: e.ProductivityMultiplier})
		}

		patentRevenues := make([]float64, 0, len(patents))
		for _, pt := range patents {
			if !pt.ActiveAt(asOf) {
				continue
			}
			if err := tx.AddPatentRevenue(ctx, pt.ID, pt.MonthlyRevenue); err != nil {
				return fmt.Errorf("accrue patent %d: %w", pt.ID, err)
			}
			patentRevenues = append(patentRevenues, pt.MonthlyRevenue)
		}

		revenue := finance.MonthlyRevenue(earners, patentRevenues, company.RevenueMultiplier())

		tax := finance.Tax(revenue.Gross, p.policy.TaxRate)
		if tax > 0 {
			if err := tx.RecordTax(ctx, company.ID, period, revenue.Gross, tax); err != nil {
				return fmt.Errorf("record tax: %w", err)
			}
		}

		payroll := finance.Payroll(earners)
		for _, e := range active {
			if e.Type != EmployeePlayer || e.UserID == "" || e.Salary == 0 {
				continue
			}
			if err := tx.AdjustUserCash(ctx, e.UserID, e.Salary, "salary"); err != nil {
				return fmt.Errorf("pay employee %d: %w", e.ID, err)
			}
		}

		netIncome := finance.RoundCurrency(revenue.Gross - tax - payroll)
		if err := tx.AdjustUserCash(ctx, company.OwnerID, netIncome, "net_income"); err != nil {
			return fmt.Errorf("credit owner: %w", err)
		}

		valuation := finance.NextValuation(company.CurrentValuation, netIncome, p.policy.ValuationSensitivity, p.policy.ValuationFloor)
		if err := tx.UpdateCompanyValuation(ctx, company.ID, valuation); err != nil {
			return fmt.Errorf("update valuation: %w", err)
		}

		perf := Performance{
			CompanyID:           company.ID,
			Period:              period,
			ProductivityRevenue: revenue.Productivity,
			PatentRevenue:       revenue.Patents,
			Tax:                 tax,
			Payroll:             payroll,
			NetIncome:           netIncome,
			ValuationAfter:      valuation,
			ActiveEmployees:     len(active),
			RecordedAt:          asOf,
		}
		if err := tx.RecordCompanyPerformance(ctx, perf); err != nil {
			return fmt.Errorf("record performance: %w", err)
		}

		report = CompanyReport{
			CompanyID:           company.ID,
			Period:              period,
			ProductivityRevenue: revenue.Productivity,
			PatentRevenue:       revenue.Patents,
			GrossRevenue:        revenue.Gross,
			Tax:                 tax,
			Payroll:             payroll,
			NetIncome:           netIncome,
			NewValuation:        valuation,
			Employees:           len(active),
			ProcessedAt:         asOf,
		}
		return nil
	})
	if err != nil {
		return CompanyReport{}, err
	}
	p.log.Debug("company processed", "company_id", company.ID, "period", period, "net_income", report.NetIncome, "valuation", report.NewValuation)
	return report, nil
}
