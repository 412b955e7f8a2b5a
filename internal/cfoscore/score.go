// Package cfoscore discounts projected savings and scores a process on
// risk-adjusted return against implementation effort.
package cfoscore

import (
	"math"

	"github.com/hyperengineering/autoroi/internal/types"
)

// Quadrant thresholds. They are fixed, so a process's quadrant never depends
// on the rest of the portfolio.
const (
	ROIThreshold    = 0.5
	EffortThreshold = 0.4
)

// Effort weights.
const (
	weightCost = 0.5
	weightTime = 0.3
	weightRisk = 0.2
)

const (
	maxRisk       = 10.0
	weeksPerMonth = 4.33
)

// Input is everything needed to score one process.
type Input struct {
	InitialCost   float64
	YearlySavings []float64

	DiscountRate      float64
	RiskPremiumFactor float64
	ComplexityIndex   float64
	GlobalRiskFactor  *float64

	Budget                      float64
	EstimateAtCompletion        float64
	ExpectedMonetaryValueOfRisk float64

	EstimatedCost      float64
	EstimatedTimeWeeks float64
	CostTarget         float64
	TimeTargetMonths   float64
}

// Score computes the CFO score bundle.
func Score(in Input) types.CFOScoreResult {
	risk := EffectiveRisk(in.ComplexityIndex, in.GlobalRiskFactor)
	rAdj := RiskAdjustedRate(in.DiscountRate, in.RiskPremiumFactor, risk)
	npv := NPV(in.InitialCost, in.YearlySavings, rAdj)
	roi := ROI(npv, in.InitialCost)
	effort := Effort(in.EstimatedCost, in.CostTarget, in.EstimatedTimeWeeks, in.TimeTargetMonths, risk)

	return types.CFOScoreResult{
		ROIA:                 roi,
		ImplementationEffort: effort,
		ExecutionHealth:      ExecutionHealth(in.Budget, in.EstimateAtCompletion),
		RiskFactor:           RiskMultiplier(risk),
		EffectiveRisk:        risk,
		NPV:                  npv,
		NPVFinal:             npv - in.ExpectedMonetaryValueOfRisk,
		RAdj:                 rAdj,
		Quadrant:             Quadrant(roi, effort),
	}
}

// EffectiveRisk returns the global override when set, else the process's
// complexity index. The override replaces the index outright.
func EffectiveRisk(complexityIndex float64, global *float64) float64 {
	if global != nil {
		return clamp(*global, 0, maxRisk)
	}
	return clamp(complexityIndex, 0, maxRisk)
}

// RiskAdjustedRate adds the risk premium, scaled by risk/10, to the
// discount rate.
func RiskAdjustedRate(discountRate, riskPremiumFactor, risk float64) float64 {
	return discountRate + riskPremiumFactor*(risk/maxRisk)
}

// RiskMultiplier maps risk 0..10 onto 1.0..0.5.
func RiskMultiplier(risk float64) float64 {
	return 1 - 0.5*(risk/maxRisk)
}

// NPV discounts yearly savings at rate and subtracts the initial cost.
// Year 1 is discounted by one full period.
func NPV(initialCost float64, yearlySavings []float64, rate float64) float64 {
	if rate <= -1 {
		return -initialCost
	}
	npv := -initialCost
	factor := 1.0
	for _, s := range yearlySavings {
		factor /= 1 + rate
		npv += s * factor
	}
	return npv
}

// ROI returns NPV per unit of initial cost, or 0 when there is no initial
// cost to divide by.
func ROI(npv, initialCost float64) float64 {
	if initialCost <= 0 {
		return 0
	}
	return npv / initialCost
}

// Effort scores implementation effort in [0,1] against absolute anchors.
// A zero anchor drops its term.
func Effort(estimatedCost, costTarget, estimatedWeeks, timeTargetMonths, risk float64) float64 {
	var costTerm, timeTerm float64
	if costTarget > 0 {
		costTerm = math.Min(math.Max(estimatedCost, 0)/costTarget, 1)
	}
	if timeTargetMonths > 0 {
		timeTerm = math.Min(math.Max(estimatedWeeks, 0)/(timeTargetMonths*weeksPerMonth), 1)
	}
	return weightCost*costTerm + weightTime*timeTerm + weightRisk*(clamp(risk, 0, maxRisk)/maxRisk)
}

// ExecutionHealth penalizes the gap between estimate at completion and
// budget. No budget means no penalty.
func ExecutionHealth(budget, eac float64) float64 {
	if budget <= 0 {
		return 1
	}
	return 1 - math.Min(math.Abs(eac-budget)/budget, 1)
}

// Quadrant classifies a process from its own ROI and effort.
func Quadrant(roi, effort float64) types.Quadrant {
	highROI := roi >= ROIThreshold
	lowEffort := effort <= EffortThreshold
	switch {
	case highROI && lowEffort:
		return types.QuadrantQuickWin
	case highROI:
		return types.QuadrantStrategicBet
	case lowEffort:
		return types.QuadrantNiceToHave
	default:
		return types.QuadrantDeprioritize
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
