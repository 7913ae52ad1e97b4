package finance

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthlyPaymentAnnuity(t *testing.T) {
	got, err := MonthlyPayment(100000, 0.12, 12)
	require.NoError(t, err)
	assert.Equal(t, 8884.88, got)
}

func TestMonthlyPaymentZeroRate(t *testing.T) {
	tests := []struct {
		principal float64
		term      int
	}{
		{principal: 12000, term: 12},
		{principal: 1000, term: 3},
		{principal: 5, term: 7},
	}
	for _, tc := range tests {
		got, err := MonthlyPayment(tc.principal, 0, tc.term)
		require.NoError(t, err)
		if got != tc.principal/float64(tc.term) {
			t.Fatalf("principal=%v term=%d got=%v want=%v", tc.principal, tc.term, got, tc.principal/float64(tc.term))
		}
	}
}

func TestMonthlyPaymentRejectsBadTerm(t *testing.T) {
	_, err := MonthlyPayment(1000, 0.05, 0)
	assert.Error(t, err)
}

func TestApplyPaymentFinalInstallmentPaysOff(t *testing.T) {
	payment, err := MonthlyPayment(100000, 0.12, 12)
	require.NoError(t, err)

	app := ApplyPayment(payment, 0.12, payment)
	assert.True(t, app.PaidOff)
	assert.Equal(t, 0.0, app.NewBalance)
	assert.Equal(t, payment, app.Principal)
}

func TestApplyPaymentCoveringBalanceCapsInterest(t *testing.T) {
	app := ApplyPayment(8800, 0.12, 8884.88)
	assert.True(t, app.PaidOff)
	assert.Equal(t, 0.0, app.NewBalance)
	assert.Equal(t, 8800.0, app.Principal)
	assert.Equal(t, 84.88, app.Interest)
}

func TestApplyPaymentSplitsInterest(t *testing.T) {
	app := ApplyPayment(100000, 0.12, 8884.88)
	assert.Equal(t, 1000.0, app.Interest)
	assert.Equal(t, 7884.88, app.Principal)
	assert.Equal(t, 92115.12, app.NewBalance)
	assert.False(t, app.PaidOff)
}

func TestApplyPaymentBelowInterestLeavesBalance(t *testing.T) {
	app := ApplyPayment(100000, 0.25, 100)
	assert.Equal(t, 0.0, app.Principal)
	assert.Equal(t, 100000.0, app.NewBalance)
}

func TestScheduleAmortizesToZero(t *testing.T) {
	rows, err := Schedule(100000, 0.12, 12)
	require.NoError(t, err)
	require.Len(t, rows, 12)
	last := rows[len(rows)-1]
	assert.Equal(t, 0.0, last.Balance)
	for i := 1; i < len(rows); i++ {
		if rows[i].Balance > rows[i-1].Balance {
			t.Fatalf("balance grew at month %d", rows[i].Month)
		}
	}
}

func TestRateForScore(t *testing.T) {
	tests := []struct {
		score int
		want  float64
	}{
		{score: 850, want: 0.05},
		{score: 760, want: 0.05},
		{score: 750, want: 0.05},
		{score: 720, want: 0.08},
		{score: 680, want: 0.12},
		{score: 620, want: 0.15},
		{score: 550, want: 0.18},
		{score: 500, want: 0.18},
		{score: 400, want: 0.25},
		{score: 300, want: 0.25},
	}
	for _, tc := range tests {
		got := RateForScore(tc.score)
		if got != tc.want {
			t.Fatalf("score=%d got=%v want=%v", tc.score, got, tc.want)
		}
		if !IsTierRate(got) {
			t.Fatalf("rate %v is not a tier rate", got)
		}
	}
}

func TestCreditScoreBounds(t *testing.T) {
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	snapshots := []CreditSnapshot{
		{},
		{CurrentValuation: 1e12, StartingCapital: 1, FoundedAt: now.AddDate(-50, 0, 0), SpecializationLevel: 3, AvgMonthlyNetIncome: 1e9, HasHistory: true},
		{CurrentValuation: 1000, StartingCapital: 1e9, FoundedAt: now, AvgMonthlyNetIncome: -1e9, HasHistory: true},
		{CurrentValuation: -5000, StartingCapital: 1000, FoundedAt: now.AddDate(1, 0, 0)},
	}
	for i, s := range snapshots {
		got := CreditScore(s, now)
		if got < MinCreditScore || got > MaxCreditScore {
			t.Fatalf("snapshot %d: score %d out of range", i, got)
		}
	}
}

func TestCreditScoreComponents(t *testing.T) {
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	fresh := CreditSnapshot{CurrentValuation: 100000, StartingCapital: 100000, FoundedAt: now}
	assert.Equal(t, 550, CreditScore(fresh, now))

	aged := fresh
	aged.FoundedAt = now.AddDate(0, 0, -300) // 10 months
	assert.Equal(t, 570, CreditScore(aged, now))

	specialized := aged
	specialized.SpecializationLevel = 2
	assert.Equal(t, 600, CreditScore(specialized, now))

	profitable := specialized
	profitable.HasHistory = true
	profitable.AvgMonthlyNetIncome = 25000
	assert.Equal(t, 650, CreditScore(profitable, now))

	capped := CreditSnapshot{CurrentValuation: 1e9, StartingCapital: 1000, FoundedAt: now.AddDate(-20, 0, 0)}
	assert.Equal(t, 750, CreditScore(capped, now))
}

func TestMonthlyRevenueAndTax(t *testing.T) {
	npc := []Earner{{Salary: 5000, ProductivityMultiplier: 1.0}}
	rev := MonthlyRevenue(npc, nil, 1)
	assert.Equal(t, 5000.0, rev.Gross)
	assert.Equal(t, 400.0, Tax(rev.Gross, 0.08))

	player := []Earner{{Salary: 5000, ProductivityMultiplier: 2.5}}
	rev = MonthlyRevenue(player, []float64{5000, 1200}, 1.5)
	assert.Equal(t, 18750.0, rev.Productivity)
	assert.Equal(t, 6200.0, rev.Patents)
	assert.Equal(t, 24950.0, rev.Gross)

	assert.Equal(t, 0.0, Tax(0, 0.08))
	assert.Equal(t, 0.0, Tax(-100, 0.08))
}

func TestNextValuationFloor(t *testing.T) {
	assert.Equal(t, 99960.0, NextValuation(100000, -400, 0.1, 1000))
	assert.Equal(t, 100650.0, NextValuation(100000, 6500, 0.1, 1000))
	for _, net := range []float64{-1e6, -1e12, math.Inf(-1)} {
		got := NextValuation(2000, net, 0.1, 1000)
		if got < 1000 {
			t.Fatalf("net=%v valuation %v below floor", net, got)
		}
	}
}

func TestRoundCurrency(t *testing.T) {
	assert.Equal(t, 1.01, RoundCurrency(1.005))
	assert.Equal(t, -2.35, RoundCurrency(-2.345))
	assert.Equal(t, 10.0, RoundCurrency(9.999))
}
