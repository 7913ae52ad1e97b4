package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"corpempire/internal/economy"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements economy.Store on the empire schema. A store
// returned to a WithinTx callback runs every call inside that transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
	q    querier
	tx   pgx.Tx
	log  *slog.Logger
}

func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, q: pool, log: logger}
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx economy.Store) error) error {
	var (
		tx  pgx.Tx
		err error
	)
	if s.tx != nil {
		tx, err = s.tx.Begin(ctx)
	} else {
		tx, err = s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	}
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&PostgresStore{pool: s.pool, q: tx, tx: tx, log: s.log}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, economy.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func expectRow(tag pgconn.CommandTag, what string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", what, economy.ErrNotFound)
	}
	return nil
}

// CompanyStore

const companyColumns = `
	c.id, c.name, c.owner_id, c.industry, c.status, c.current_valuation, c.starting_capital,
	c.efficiency_rating, c.shares_outstanding, c.shares_available, c.founded_at,
	sp.industry, sp.level, sp.revenue_multiplier, sp.efficiency_bonus, sp.valuation_multiplier`

func scanCompany(row pgx.Row) (economy.Company, error) {
	var (
		c          economy.Company
		status     string
		spIndustry *string
		spLevel    *int
		spRevenue  *float64
		spEff      *float64
		spVal      *float64
	)
	err := row.Scan(&c.ID, &c.Name, &c.OwnerID, &c.Industry, &status, &c.CurrentValuation, &c.StartingCapital,
		&c.EfficiencyRating, &c.SharesOutstanding, &c.SharesAvailable, &c.FoundedAt,
		&spIndustry, &spLevel, &spRevenue, &spEff, &spVal)
	if err != nil {
		return economy.Company{}, err
	}
	c.Status = economy.CompanyStatus(status)
	if spIndustry != nil {
		c.Specialization = &economy.Specialization{
			Industry:            *spIndustry,
			Level:               *spLevel,
			RevenueMultiplier:   *spRevenue,
			EfficiencyBonus:     *spEff,
			ValuationMultiplier: *spVal,
		}
	}
	return c, nil
}

func (s *PostgresStore) ListActiveCompanies(ctx context.Context) ([]economy.Company, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+companyColumns+`
		FROM empire.companies c
		LEFT JOIN empire.specializations sp ON sp.company_id = c.id
		WHERE c.status = 'active'
		ORDER BY c.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query companies: %w", err)
	}
	defer rows.Close()
	var out []economy.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Company(ctx context.Context, companyID int64) (economy.Company, error) {
	c, err := scanCompany(s.q.QueryRow(ctx, `
		SELECT `+companyColumns+`
		FROM empire.companies c
		LEFT JOIN empire.specializations sp ON sp.company_id = c.id
		WHERE c.id = $1
	`, companyID))
	if err != nil {
		return economy.Company{}, notFound(err, fmt.Sprintf("company %d", companyID))
	}
	return c, nil
}

func (s *PostgresStore) ListActiveEmployees(ctx context.Context, companyID int64) ([]economy.Employee, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, company_id, employee_type, COALESCE(user_id, ''), name, position, salary,
		       productivity_multiplier, status, hired_at
		FROM empire.employees
		WHERE company_id = $1 AND status = 'active'
		ORDER BY id
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("query employees: %w", err)
	}
	defer rows.Close()
	var out []economy.Employee
	for rows.Next() {
		var (
			e          economy.Employee
			typ, state string
		)
		if err := rows.Scan(&e.ID, &e.CompanyID, &typ, &e.UserID, &e.Name, &e.Position, &e.Salary,
			&e.ProductivityMultiplier, &state, &e.HiredAt); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		e.Type = economy.EmployeeType(typ)
		e.Status = economy.EmployeeStatus(state)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListApprovedUnexpiredPatents(ctx context.Context, companyID int64, asOf time.Time) ([]economy.Patent, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, company_id, title, status, approved_at, expires_at, monthly_revenue, total_revenue
		FROM empire.patents
		WHERE company_id = $1 AND status = 'approved' AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY id
	`, companyID, asOf)
	if err != nil {
		return nil, fmt.Errorf("query patents: %w", err)
	}
	defer rows.Close()
	var out []economy.Patent
	for rows.Next() {
		var (
			p                   economy.Patent
			status              string
			approved, expiresAt *time.Time
		)
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Title, &status, &approved, &expiresAt, &p.MonthlyRevenue, &p.TotalRevenue); err != nil {
			return nil, fmt.Errorf("scan patent: %w", err)
		}
		p.Status = economy.PatentStatus(status)
		if approved != nil {
			p.ApprovedAt = *approved
		}
		if expiresAt != nil {
			p.ExpiresAt = *expiresAt
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AddPatentRevenue(ctx context.Context, patentID int64, amount float64) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE empire.patents SET total_revenue = total_revenue + $2 WHERE id = $1
	`, patentID, amount)
	if err != nil {
		return fmt.Errorf("accrue patent revenue: %w", err)
	}
	return expectRow(tag, fmt.Sprintf("patent %d", patentID))
}

func (s *PostgresStore) AdjustUserCash(ctx context.Context, userID string, delta float64, reason string) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE empire.users SET cash = cash + $2 WHERE user_id = $1
	`, userID, delta)
	if err != nil {
		return fmt.Errorf("adjust cash: %w", err)
	}
	if err := expectRow(tag, "user "+userID); err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, `
		INSERT INTO empire.cash_ledger (group_id, user_id, delta, reason)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), userID, delta, reason)
	if err != nil {
		return fmt.Errorf("append cash ledger: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecordTax(ctx context.Context, companyID int64, period economy.Period, revenue, tax float64) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO empire.tax_records (company_id, period, revenue, tax)
		VALUES ($1, $2, $3, $4)
	`, companyID, period.String(), revenue, tax)
	if err != nil {
		return fmt.Errorf("record tax: %w", err)
	}
	return nil
}

func (s *PostgresStore) HasCompanyPerformance(ctx context.Context, companyID int64, period economy.Period) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM empire.company_performance WHERE company_id = $1 AND period = $2)
	`, companyID, period.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check performance: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) RecordCompanyPerformance(ctx context.Context, perf economy.Performance) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO empire.company_performance
			(company_id, period, productivity_revenue, patent_revenue, tax, payroll, net_income,
			 valuation_after, active_employees, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, perf.CompanyID, perf.Period.String(), perf.ProductivityRevenue, perf.PatentRevenue, perf.Tax, perf.Payroll,
		perf.NetIncome, perf.ValuationAfter, perf.ActiveEmployees, perf.RecordedAt)
	if err != nil {
		return fmt.Errorf("record performance: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateCompanyValuation(ctx context.Context, companyID int64, valuation float64) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE empire.companies SET current_valuation = $2 WHERE id = $1
	`, companyID, valuation)
	if err != nil {
		return fmt.Errorf("update valuation: %w", err)
	}
	return expectRow(tag, fmt.Sprintf("company %d", companyID))
}

// LoanStore

const loanColumns = `
	l.id, l.company_id, c.name, c.owner_id, l.principal, l.remaining_balance, l.interest_rate,
	l.term_months, l.monthly_payment, l.credit_score, l.collateral, l.status, l.next_payment_date, l.originated_at`

func scanLoan(row pgx.Row) (economy.Loan, error) {
	var (
		l      economy.Loan
		status string
	)
	err := row.Scan(&l.ID, &l.CompanyID, &l.CompanyName, &l.OwnerID, &l.Principal, &l.RemainingBalance, &l.InterestRate,
		&l.TermMonths, &l.MonthlyPayment, &l.CreditScore, &l.Collateral, &status, &l.NextPaymentDate, &l.OriginatedAt)
	l.Status = economy.LoanStatus(status)
	return l, err
}

func (s *PostgresStore) ListDueLoans(ctx context.Context, asOf time.Time) ([]economy.Loan, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+loanColumns+`
		FROM empire.loans l
		JOIN empire.companies c ON c.id = l.company_id
		WHERE l.status = 'active' AND l.next_payment_date <= $1
		ORDER BY l.id
	`, asOf)
	if err != nil {
		return nil, fmt.Errorf("query due loans: %w", err)
	}
	defer rows.Close()
	var out []economy.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UserCash(ctx context.Context, userID string) (float64, error) {
	var cash float64
	if err := s.q.QueryRow(ctx, `SELECT cash FROM empire.users WHERE user_id = $1`, userID).Scan(&cash); err != nil {
		return 0, notFound(err, "user "+userID)
	}
	return cash, nil
}

func (s *PostgresStore) ApplyLoanPayment(ctx context.Context, payment economy.LoanPayment) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE empire.loans
		SET remaining_balance = $2, status = $3, next_payment_date = $4
		WHERE id = $1 AND status = 'active'
	`, payment.LoanID, payment.NewBalance, string(payment.Status), payment.NextPaymentDate)
	if err != nil {
		return fmt.Errorf("update loan: %w", err)
	}
	if err := expectRow(tag, fmt.Sprintf("active loan %d", payment.LoanID)); err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, `
		INSERT INTO empire.loan_payments
			(id, loan_id, period, amount, principal_portion, interest_portion, new_balance, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, payment.ID, payment.LoanID, payment.Period.String(), payment.Amount, payment.Principal, payment.Interest,
		payment.NewBalance, payment.PaidAt)
	if err != nil {
		return fmt.Errorf("insert loan payment: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkLoanDefaulted(ctx context.Context, loanID int64) error {
	_, err := s.q.Exec(ctx, `
		UPDATE empire.loans SET status = 'defaulted' WHERE id = $1 AND status = 'active'
	`, loanID)
	if err != nil {
		return fmt.Errorf("mark loan defaulted: %w", err)
	}
	return nil
}

// Origination

func (s *PostgresStore) CreditHistory(ctx context.Context, companyID int64) (float64, int, error) {
	var (
		avg float64
		n   int
	)
	err := s.q.QueryRow(ctx, `
		SELECT COALESCE(AVG(net_income), 0)::float8, COUNT(1)
		FROM empire.company_performance
		WHERE company_id = $1
	`, companyID).Scan(&avg, &n)
	if err != nil {
		return 0, 0, fmt.Errorf("credit history: %w", err)
	}
	return avg, n, nil
}

func (s *PostgresStore) CountActiveLoans(ctx context.Context, companyID int64) (int, error) {
	var n int
	err := s.q.QueryRow(ctx, `
		SELECT COUNT(1) FROM empire.loans WHERE company_id = $1 AND status = 'active'
	`, companyID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count loans: %w", err)
	}
	return n, nil
}

// OpenLoan inserts the loan and credits the owner in one transaction. The
// company row is locked so concurrent originations see each other's loans.
func (s *PostgresStore) OpenLoan(ctx context.Context, loan economy.Loan, maxActive int) (economy.Loan, error) {
	var out economy.Loan
	err := s.WithinTx(ctx, func(txStore economy.Store) error {
		tx := txStore.(*PostgresStore)
		var ownerID string
		if err := tx.q.QueryRow(ctx, `
			SELECT owner_id FROM empire.companies WHERE id = $1 FOR UPDATE
		`, loan.CompanyID).Scan(&ownerID); err != nil {
			return notFound(err, fmt.Sprintf("company %d", loan.CompanyID))
		}
		active, err := tx.CountActiveLoans(ctx, loan.CompanyID)
		if err != nil {
			return err
		}
		if maxActive > 0 && active >= maxActive {
			return economy.ErrTooManyLoans
		}
		err = tx.q.QueryRow(ctx, `
			INSERT INTO empire.loans
				(company_id, principal, remaining_balance, interest_rate, term_months, monthly_payment,
				 credit_score, collateral, status, next_payment_date, originated_at)
			VALUES ($1, $2, $2, $3, $4, $5, $6, $7, 'active', $8, $9)
			RETURNING id
		`, loan.CompanyID, loan.Principal, loan.InterestRate, loan.TermMonths, loan.MonthlyPayment,
			loan.CreditScore, loan.Collateral, loan.NextPaymentDate, loan.OriginatedAt).Scan(&loan.ID)
		if err != nil {
			return fmt.Errorf("insert loan: %w", err)
		}
		loan.OwnerID = ownerID
		if err := tx.AdjustUserCash(ctx, ownerID, loan.Principal, "loan_disbursement"); err != nil {
			return err
		}
		out = loan
		return nil
	})
	return out, err
}

// EffectStore

func (s *PostgresStore) ListDueRDProjects(ctx context.Context, asOf time.Time) ([]economy.RDProject, error) {
	rows, err := s.q.Query(ctx, `
		SELECT r.id, r.company_id, c.name, c.owner_id, r.name, r.category, r.budget, r.duration_months,
		       r.start_date, r.status
		FROM empire.rd_projects r
		JOIN empire.companies c ON c.id = r.company_id
		WHERE r.status = 'active' AND r.start_date + make_interval(months => r.duration_months) <= $1
		ORDER BY r.id
	`, asOf)
	if err != nil {
		return nil, fmt.Errorf("query rd projects: %w", err)
	}
	defer rows.Close()
	var out []economy.RDProject
	for rows.Next() {
		var (
			p      economy.RDProject
			status string
		)
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.CompanyName, &p.OwnerID, &p.Name, &p.Category, &p.Budget,
			&p.DurationMonths, &p.StartDate, &status); err != nil {
			return nil, fmt.Errorf("scan rd project: %w", err)
		}
		p.Status = economy.RDStatus(status)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CompleteRDProject(ctx context.Context, project economy.RDProject, outcome economy.RDOutcome) error {
	return s.WithinTx(ctx, func(txStore economy.Store) error {
		tx := txStore.(*PostgresStore)
		tag, err := tx.q.Exec(ctx, `
			UPDATE empire.rd_projects
			SET status = 'completed', valuation_multiplier = $2, efficiency_multiplier = $3,
			    results = $4, completed_at = $5
			WHERE id = $1 AND status = 'active'
		`, project.ID, outcome.ValuationMultiplier, outcome.EfficiencyMultiplier, outcome.Description, outcome.CompletedAt)
		if err != nil {
			return fmt.Errorf("complete rd project: %w", err)
		}
		if err := expectRow(tag, fmt.Sprintf("active rd project %d", project.ID)); err != nil {
			return err
		}
		tag, err = tx.q.Exec(ctx, `
			UPDATE empire.companies
			SET current_valuation = ROUND(current_valuation * $2::numeric, 2),
			    efficiency_rating = COALESCE(NULLIF(efficiency_rating, 0), 1.0) * $3
			WHERE id = $1
		`, project.CompanyID, outcome.ValuationMultiplier, outcome.EfficiencyMultiplier)
		if err != nil {
			return fmt.Errorf("apply rd outcome: %w", err)
		}
		return expectRow(tag, fmt.Sprintf("company %d", project.CompanyID))
	})
}

func (s *PostgresStore) ListExpiredContracts(ctx context.Context, asOf time.Time) ([]economy.Contract, error) {
	rows, err := s.q.Query(ctx, `
		SELECT k.id, k.title, k.value, k.end_date, k.status,
		       a.id, a.name, a.owner_id, b.id, b.name, b.owner_id
		FROM empire.contracts k
		JOIN empire.companies a ON a.id = k.party_a_company_id
		JOIN empire.companies b ON b.id = k.party_b_company_id
		WHERE k.status = 'active' AND k.end_date <= $1
		ORDER BY k.id
	`, asOf)
	if err != nil {
		return nil, fmt.Errorf("query contracts: %w", err)
	}
	defer rows.Close()
	var out []economy.Contract
	for rows.Next() {
		var (
			c      economy.Contract
			status string
		)
		if err := rows.Scan(&c.ID, &c.Title, &c.Value, &c.EndDate, &status,
			&c.PartyA.CompanyID, &c.PartyA.Name, &c.PartyA.OwnerID,
			&c.PartyB.CompanyID, &c.PartyB.Name, &c.PartyB.OwnerID); err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		c.Status = economy.ContractStatus(status)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CompleteContract(ctx context.Context, contractID int64) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE empire.contracts SET status = 'completed' WHERE id = $1 AND status = 'active'
	`, contractID)
	if err != nil {
		return fmt.Errorf("complete contract: %w", err)
	}
	return expectRow(tag, fmt.Sprintf("active contract %d", contractID))
}

func (s *PostgresStore) ListPoliciesExpiringBetween(ctx context.Context, from, to time.Time) ([]economy.InsurancePolicy, error) {
	rows, err := s.q.Query(ctx, `
		SELECT p.id, p.company_id, c.name, c.owner_id, p.policy_type, p.coverage_amount, p.end_date, p.status
		FROM empire.insurance_policies p
		JOIN empire.companies c ON c.id = p.company_id
		WHERE p.status = 'active' AND p.end_date BETWEEN $1 AND $2
		ORDER BY p.id
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query policies: %w", err)
	}
	defer rows.Close()
	var out []economy.InsurancePolicy
	for rows.Next() {
		var (
			p      economy.InsurancePolicy
			status string
		)
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.CompanyName, &p.OwnerID, &p.Type, &p.CoverageAmount, &p.EndDate, &status); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		p.Status = economy.PolicyStatus(status)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ExpireMarketEvents(ctx context.Context, asOf time.Time) ([]economy.MarketEvent, error) {
	rows, err := s.q.Query(ctx, `
		UPDATE empire.market_events
		SET status = 'expired'
		WHERE status = 'active' AND end_date <= $1
		RETURNING id::text, name, description, affected_industries, impact_multiplier, duration_months,
		          severity, start_date, end_date, status, COALESCE(period, '')
	`, asOf)
	if err != nil {
		return nil, fmt.Errorf("expire market events: %w", err)
	}
	defer rows.Close()
	var out []economy.MarketEvent
	for rows.Next() {
		var (
			e                        economy.MarketEvent
			severity, status, period string
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Description, &e.AffectedIndustries, &e.ImpactMultiplier, &e.DurationMonths,
			&severity, &e.StartDate, &e.EndDate, &status, &period); err != nil {
			return nil, fmt.Errorf("scan market event: %w", err)
		}
		e.Severity = economy.Severity(severity)
		e.Status = economy.MarketEventStatus(status)
		e.Period = economy.Period(period)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateMarketEvent(ctx context.Context, event economy.MarketEvent) error {
	industries := event.AffectedIndustries
	if industries == nil {
		industries = []string{}
	}
	_, err := s.q.Exec(ctx, `
		INSERT INTO empire.market_events
			(id, name, description, affected_industries, impact_multiplier, duration_months,
			 severity, start_date, end_date, status, period)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''))
	`, event.ID, event.Name, event.Description, industries, event.ImpactMultiplier, event.DurationMonths,
		string(event.Severity), event.StartDate, event.EndDate, string(event.Status), string(event.Period))
	if err != nil {
		return fmt.Errorf("insert market event: %w", err)
	}
	return nil
}

func (s *PostgresStore) HasMarketEventForPeriod(ctx context.Context, period economy.Period) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM empire.market_events WHERE period = $1)
	`, string(period)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check market event for %s: %w", period, err)
	}
	return exists, nil
}

// PeriodStore

func (s *PostgresStore) BeginPeriod(ctx context.Context, period economy.Period, startedAt, endsAt time.Time) error {
	var status string
	err := s.q.QueryRow(ctx, `
		INSERT INTO empire.economic_cycles (period, status, start_date, end_date)
		VALUES ($1, 'active', $2, $3)
		ON CONFLICT (period) DO UPDATE SET period = EXCLUDED.period
		RETURNING status
	`, period.String(), startedAt, endsAt).Scan(&status)
	if err != nil {
		return fmt.Errorf("begin period: %w", err)
	}
	if economy.PeriodStatus(status) == economy.PeriodCompleted {
		return economy.ErrAlreadyCompleted
	}
	return nil
}

func (s *PostgresStore) PeriodTotals(ctx context.Context, period economy.Period) (economy.CycleTotals, error) {
	var t economy.CycleTotals
	err := s.q.QueryRow(ctx, `
		SELECT COALESCE(SUM(productivity_revenue + patent_revenue), 0)::float8,
		       COALESCE(SUM(tax), 0)::float8,
		       COALESCE(SUM(patent_revenue), 0)::float8,
		       COUNT(1)
		FROM empire.company_performance
		WHERE period = $1
	`, period.String()).Scan(&t.CompanyRevenue, &t.Taxes, &t.PatentRevenue, &t.ActiveCompanies)
	if err != nil {
		return t, fmt.Errorf("sum performance: %w", err)
	}
	err = s.q.QueryRow(ctx, `
		SELECT COALESCE(SUM(interest_portion), 0)::float8 FROM empire.loan_payments WHERE period = $1
	`, period.String()).Scan(&t.LoanInterest)
	if err != nil {
		return t, fmt.Errorf("sum loan interest: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) MarkPeriodCompleted(ctx context.Context, period economy.Period, totals economy.CycleTotals) error {
	start := period.Start()
	var status string
	err := s.q.QueryRow(ctx, `
		INSERT INTO empire.economic_cycles (period, status, start_date, end_date)
		VALUES ($1, 'active', $2, $3)
		ON CONFLICT (period) DO UPDATE SET period = EXCLUDED.period
		RETURNING status
	`, period.String(), start, start.AddDate(0, 1, 0)).Scan(&status)
	if err != nil {
		return fmt.Errorf("load period: %w", err)
	}
	if economy.PeriodStatus(status) == economy.PeriodCompleted {
		return economy.ErrAlreadyCompleted
	}
	tag, err := s.q.Exec(ctx, `
		UPDATE empire.economic_cycles
		SET status = 'completed', total_company_revenue = $2, total_taxes = $3, total_loan_interest = $4,
		    total_patent_revenue = $5, active_companies = $6, processed_at = now()
		WHERE period = $1 AND status = 'active'
	`, period.String(), totals.CompanyRevenue, totals.Taxes, totals.LoanInterest, totals.PatentRevenue, totals.ActiveCompanies)
	if err != nil {
		return fmt.Errorf("complete period: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return economy.ErrAlreadyCompleted
	}
	return nil
}

func (s *PostgresStore) ClaimUnreportedDisbursements(ctx context.Context, period economy.Period) (float64, error) {
	var sum float64
	err := s.q.QueryRow(ctx, `
		WITH claimed AS (
			UPDATE empire.loans SET reported_period = $1
			WHERE reported_period IS NULL
			RETURNING principal
		)
		SELECT COALESCE(SUM(principal), 0)::float8 FROM claimed
	`, period.String()).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("claim disbursements: %w", err)
	}
	return sum, nil
}

func (s *PostgresStore) UpsertCentralBankLedger(ctx context.Context, period economy.Period, taxIncome, loanInterest, loansIssued float64) (economy.LedgerEntry, error) {
	e := economy.LedgerEntry{Period: period}
	err := s.q.QueryRow(ctx, `
		INSERT INTO empire.central_bank_ledger
			(period, opening_balance, tax_income, loan_interest_income, loans_issued, closing_balance, updated_at)
		SELECT $1, o.balance, $2::numeric, $3::numeric, $4::numeric, o.balance + $2::numeric + $3::numeric - $4::numeric, now()
		FROM (
			SELECT COALESCE((
				SELECT closing_balance FROM empire.central_bank_ledger
				WHERE period < $1 ORDER BY period DESC LIMIT 1
			), 0) AS balance
		) o
		ON CONFLICT (period) DO UPDATE SET
			tax_income = central_bank_ledger.tax_income + EXCLUDED.tax_income,
			loan_interest_income = central_bank_ledger.loan_interest_income + EXCLUDED.loan_interest_income,
			loans_issued = central_bank_ledger.loans_issued + EXCLUDED.loans_issued,
			closing_balance = central_bank_ledger.opening_balance
				+ central_bank_ledger.tax_income + EXCLUDED.tax_income
				+ central_bank_ledger.loan_interest_income + EXCLUDED.loan_interest_income
				- central_bank_ledger.loans_issued - EXCLUDED.loans_issued,
			updated_at = now()
		RETURNING opening_balance::float8, tax_income::float8, loan_interest_income::float8,
		          loans_issued::float8, closing_balance::float8, updated_at
	`, period.String(), taxIncome, loanInterest, loansIssued).Scan(
		&e.OpeningBalance, &e.TaxIncome, &e.LoanInterestIncome, &e.LoansIssued, &e.ClosingBalance, &e.UpdatedAt)
	if err != nil {
		return economy.LedgerEntry{}, fmt.Errorf("upsert central bank ledger: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) CentralBankLedger(ctx context.Context, period economy.Period) (economy.LedgerEntry, error) {
	e := economy.LedgerEntry{Period: period}
	err := s.q.QueryRow(ctx, `
		SELECT opening_balance::float8, tax_income::float8, loan_interest_income::float8,
		       loans_issued::float8, closing_balance::float8, updated_at
		FROM empire.central_bank_ledger
		WHERE period = $1
	`, period.String()).Scan(&e.OpeningBalance, &e.TaxIncome, &e.LoanInterestIncome, &e.LoansIssued, &e.ClosingBalance, &e.UpdatedAt)
	if err != nil {
		return economy.LedgerEntry{}, notFound(err, "ledger "+period.String())
	}
	return e, nil
}

var _ economy.Store = (*PostgresStore)(nil)
