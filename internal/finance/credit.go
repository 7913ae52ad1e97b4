package finance

import (
	"math"
	"time"
)

const (
	MinCreditScore  = 300
	MaxCreditScore  = 850
	baseCreditScore = 500

	maxValuationPoints     = 150.0
	maxAgePoints           = 100.0
	maxProfitPoints        = 100.0
	specializationPoints   = 15
	daysPerCreditMonth     = 30.0
	profitPointsPer10k     = 20.0
	valuationPointsPerUnit = 50.0
)

// CreditSnapshot is the point-in-time view of a company used for scoring.
type CreditSnapshot struct {
	CurrentValuation    float64
	StartingCapital     float64
	FoundedAt           time.Time
	SpecializationLevel int
	// AvgMonthlyNetIncome is the mean net income over recorded periods.
	// HasHistory false means no periods were recorded and the profit factor is skipped.
	AvgMonthlyNetIncome float64
	HasHistory          bool
}

// CreditScore scores a company in [300,850].
func CreditScore(s CreditSnapshot, asOf time.Time) int {
	score := float64(baseCreditScore)

	if s.StartingCapital > 0 {
		score += math.Min(maxValuationPoints, (s.CurrentValuation/s.StartingCapital)*valuationPointsPerUnit)
	}

	if !s.FoundedAt.IsZero() && asOf.After(s.FoundedAt) {
		ageMonths := asOf.Sub(s.FoundedAt).Hours() / 24 / daysPerCreditMonth
		score += math.Min(maxAgePoints, ageMonths*2)
	}

	if s.SpecializationLevel > 0 {
		score += float64(s.SpecializationLevel * specializationPoints)
	}

	if s.HasHistory {
		switch {
		case s.AvgMonthlyNetIncome > 0:
			score += math.Min(maxProfitPoints, (s.AvgMonthlyNetIncome/10000)*profitPointsPer10k)
		case s.AvgMonthlyNetIncome < 0:
			score -= math.Min(maxProfitPoints, math.Abs(s.AvgMonthlyNetIncome/10000)*profitPointsPer10k)
		}
	}

	return ClampCreditScore(int(math.Round(score)))
}

func ClampCreditScore(score int) int {
	if score < MinCreditScore {
		return MinCreditScore
	}
	if score > MaxCreditScore {
		return MaxCreditScore
	}
	return score
}

// rateTiers is ordered from the highest score floor down.
var rateTiers = []struct {
	MinScore int
	Rate     float64
}{
	{750, 0.05},
	{700, 0.08},
	{650, 0.12},
	{600, 0.15},
	{500, 0.18},
}

const subprimeRate = 0.25

// RateForScore maps a credit score onto the fixed annual rate tiers.
func RateForScore(score int) float64 {
	for _, tier := range rateTiers {
		if score >= tier.MinScore {
			return tier.Rate
		}
	}
	return subprimeRate
}

// IsTierRate reports whether rate is one of the discrete tier rates.
func IsTierRate(rate float64) bool {
	if rate == subprimeRate {
		return true
	}
	for _, tier := range rateTiers {
		if tier.Rate == rate {
			return true
		}
	}
	return false
}
