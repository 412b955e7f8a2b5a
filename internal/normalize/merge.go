package normalize

import (
	"fmt"
	"math"

	"github.com/hyperengineering/autoroi/internal/types"
	"github.com/hyperengineering/autoroi/internal/validation"
)

// Complexity weights. They must sum to 1.0.
const (
	weightInputs       = 0.4
	weightSteps        = 0.4
	weightDependencies = 0.2
)

// Counts per score point when a sub-score is derived from a count.
const (
	inputsPerPoint       = 2
	stepsPerPoint        = 3
	dependenciesPerPoint = 1
)

const (
	minScore = 1.0
	maxScore = 10.0

	// overheadTolerance is the slack allowed between a stored overhead total
	// and the sum of its parts before a correction warning is raised.
	overheadTolerance = 0.005
)

// Result is a parsed and defaulted dataset plus the corrections applied.
type Result struct {
	Dataset  types.Dataset
	Defaults types.GlobalDefaults
	Warnings []validation.ValidationError
}

// Normalize parses raw and merges defaults in one step.
func Normalize(raw []byte, globals types.GlobalDefaults) (*Result, error) {
	ds, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return Apply(*ds, globals), nil
}

// Apply normalizes the defaults then merges them into ds.
func Apply(ds types.Dataset, globals types.GlobalDefaults) *Result {
	defaults, dw := Defaults(globals)
	merged, pw := MergeWithDefaults(ds, defaults)
	return &Result{
		Dataset:  merged,
		Defaults: defaults,
		Warnings: append(dw, pw...),
	}
}

// ComplexityIndex combines the three sub-scores into the 0-10 index.
func ComplexityIndex(inputsScore, stepsScore, dependenciesScore float64) float64 {
	return weightInputs*inputsScore + weightSteps*stepsScore + weightDependencies*dependenciesScore
}

// CategoryFor buckets a complexity index.
func CategoryFor(index float64) types.RiskCategory {
	switch {
	case index < 4:
		return types.RiskSimple
	case index < 7:
		return types.RiskModerate
	default:
		return types.RiskComplex
	}
}

// ScoreFromCount derives a 1-10 sub-score from a raw count.
func ScoreFromCount(count, perPoint int) float64 {
	if count < 0 {
		count = 0
	}
	return clamp(1+math.Floor(float64(count)/float64(perPoint)), minScore, maxScore)
}

// Defaults returns a corrected copy of the global defaults. The overhead
// total is always recomputed from its parts.
func Defaults(d types.GlobalDefaults) (types.GlobalDefaults, []validation.ValidationError) {
	var c validation.Collector
	std := types.StandardDefaults()

	if sum := d.Overhead.Sum(); math.Abs(sum-d.Overhead.Total) > overheadTolerance {
		c.Addf("overhead.total", "recomputed from components: %.2f -> %.2f", d.Overhead.Total, sum)
	}
	d.Overhead.Total = d.Overhead.Sum()

	if d.BusinessHours.HoursPerYear() <= 0 {
		c.Addf("businessHours", "non-positive working time, using standard hours")
		d.BusinessHours = std.BusinessHours
	}
	if d.AverageHourlyWage < 0 {
		c.Addf("averageHourlyWage", "negative wage clamped to 0")
		d.AverageHourlyWage = 0
	}
	if g := d.Financial.GlobalRiskFactor; g != nil {
		v := clamp(*g, 0, 10)
		if v != *g {
			c.Addf("financial.globalRiskFactor", "clamped to %.1f", v)
		}
		d.Financial.GlobalRiskFactor = &v
	}
	d.Attrition.AnnualAttritionPercent = clampPercent(&c, "attrition.annualAttritionPercent", d.Attrition.AnnualAttritionPercent)
	d.Attrition.ReplacementCostPercent = nonNegative(&c, "attrition.replacementCostPercent", d.Attrition.ReplacementCostPercent)
	d.EffortAnchors.CostTarget = nonNegative(&c, "effortAnchors.costTarget", d.EffortAnchors.CostTarget)
	d.EffortAnchors.TimeTarget = nonNegative(&c, "effortAnchors.timeTarget", d.EffortAnchors.TimeTarget)

	return d, c.Errors()
}

// MergeWithDefaults returns a copy of ds in which every process carries a
// fully populated set of sub-records, a resolved wage, clamped ranges and
// derived complexity. The input is not modified. Applying it to its own
// output yields an identical dataset.
func MergeWithDefaults(ds types.Dataset, globals types.GlobalDefaults) (types.Dataset, []validation.ValidationError) {
	var c validation.Collector

	out := types.Dataset{
		Groups:    make([]types.GroupDefaults, len(ds.Groups)),
		Processes: make([]types.Process, len(ds.Processes)),
	}
	copy(out.Groups, ds.Groups)

	groups := make(map[string]types.GroupDefaults, len(ds.Groups)*2)
	for _, g := range out.Groups {
		if g.ID != "" {
			groups[g.ID] = g
		}
		if g.Name != "" {
			if _, taken := groups[g.Name]; !taken {
				groups[g.Name] = g
			}
		}
	}

	for i, p := range ds.Processes {
		field := fmt.Sprintf("processes[%d]", i)
		out.Processes[i] = mergeProcess(&c, field, i, p, groups, globals)
	}
	return out, c.Errors()
}

func mergeProcess(c *validation.Collector, field string, index int, p types.Process, groups map[string]types.GroupDefaults, globals types.GlobalDefaults) types.Process {
	if p.ID == "" {
		p.ID = fmt.Sprintf("process-%d", index+1)
	}
	if p.Name == "" {
		p.Name = p.ID
	}

	switch p.TaskVolumeUnit {
	case types.VolumePerDay, types.VolumePerWeek, types.VolumePerMonth, types.VolumePerQuarter, types.VolumePerYear:
	case "":
		p.TaskVolumeUnit = types.VolumePerMonth
	default:
		c.Addf(field+".taskVolumeUnit", "unknown unit %q, using month", p.TaskVolumeUnit)
		p.TaskVolumeUnit = types.VolumePerMonth
	}
	switch p.TimeUnit {
	case types.TimeMinutes, types.TimeHours:
	case "":
		p.TimeUnit = types.TimeMinutes
	default:
		c.Addf(field+".timeUnit", "unknown unit %q, using minutes", p.TimeUnit)
		p.TimeUnit = types.TimeMinutes
	}
	switch p.TaskType {
	case types.TaskBatch, types.TaskRealTime, types.TaskSeasonal:
	case "":
		p.TaskType = types.TaskBatch
	default:
		c.Addf(field+".taskType", "unknown task type %q, using batch", p.TaskType)
		p.TaskType = types.TaskBatch
	}

	p.TaskVolume = nonNegative(c, field+".taskVolume", p.TaskVolume)
	p.TimePerTask = nonNegative(c, field+".timePerTask", p.TimePerTask)
	p.FTECount = nonNegative(c, field+".fteCount", p.FTECount)
	p.SoftwareCost = nonNegative(c, field+".softwareCost", p.SoftwareCost)
	p.UpfrontCosts = nonNegative(c, field+".upfrontCosts", p.UpfrontCosts)
	p.TrainingCosts = nonNegative(c, field+".trainingCosts", p.TrainingCosts)
	p.ConsultingCosts = nonNegative(c, field+".consultingCosts", p.ConsultingCosts)
	p.Budget = nonNegative(c, field+".budget", p.Budget)
	p.EstimateAtCompletion = nonNegative(c, field+".estimateAtCompletion", p.EstimateAtCompletion)
	p.ExpectedMonetaryValueOfRisk = nonNegative(c, field+".expectedMonetaryValueOfRisk", p.ExpectedMonetaryValueOfRisk)
	p.ImplementationWeeks = nonNegative(c, field+".implementationWeeks", p.ImplementationWeeks)
	p.AutomationCoverage = clampPercent(c, field+".automationCoverage", p.AutomationCoverage)
	if p.StartMonth < 1 {
		p.StartMonth = 1
	}

	// Wage fallback: process -> group -> global.
	if p.AverageHourlyWage <= 0 {
		if g, ok := groups[p.Group]; ok && p.Group != "" && g.AverageHourlyWage > 0 {
			p.AverageHourlyWage = g.AverageHourlyWage
		} else {
			p.AverageHourlyWage = globals.AverageHourlyWage
		}
	}

	p.CyclicalPattern = mergeCyclical(c, field, p.CyclicalPattern)
	p.SeasonalPattern = mergeSeasonal(c, field, p.SeasonalPattern)
	p.SLARequirements = mergeSLA(c, field, p.SLARequirements)
	p.ErrorReworkCosts = mergeErrorRework(c, field, p.ErrorReworkCosts)
	p.ComplianceRisk = mergeCompliance(c, field, p.ComplianceRisk)
	p.RevenueImpact = mergeRevenue(c, field, p.RevenueImpact)
	p.InternalCosts = mergeInternal(c, field, p.InternalCosts)
	p.ComplexityMetrics = mergeComplexity(p.ComplexityMetrics)

	return p
}

func mergeCyclical(c *validation.Collector, field string, in *types.CyclicalPattern) *types.CyclicalPattern {
	out := types.CyclicalPattern{}
	if in != nil {
		out = *in
	}
	out.PeakVolumePercent = clampPercent(c, field+".cyclicalPattern.peakVolumePercent", out.PeakVolumePercent)
	out.OvertimePremiumPercent = nonNegative(c, field+".cyclicalPattern.overtimePremiumPercent", out.OvertimePremiumPercent)
	return &out
}

func mergeSeasonal(c *validation.Collector, field string, in *types.SeasonalPattern) *types.SeasonalPattern {
	out := types.SeasonalPattern{}
	if in != nil {
		out = *in
	}
	months := make([]int, 0, len(out.PeakMonths))
	seen := make(map[int]bool, len(out.PeakMonths))
	for _, m := range out.PeakMonths {
		if m < 1 || m > 12 {
			c.Addf(field+".seasonalPattern.peakMonths", "dropped invalid month %d", m)
			continue
		}
		if !seen[m] {
			seen[m] = true
			months = append(months, m)
		}
	}
	out.PeakMonths = months
	if out.VolumeMultiplier < 1 {
		if out.VolumeMultiplier != 0 {
			c.Addf(field+".seasonalPattern.volumeMultiplier", "multiplier below 1 raised to 1")
		}
		out.VolumeMultiplier = 1
	}
	out.TemporaryStaffCostPerMonth = nonNegative(c, field+".seasonalPattern.temporaryStaffCostPerMonth", out.TemporaryStaffCostPerMonth)
	return &out
}

func mergeSLA(c *validation.Collector, field string, in *types.SLARequirements) *types.SLARequirements {
	out := types.SLARequirements{}
	if in != nil {
		out = *in
	}
	out.PenaltyPerBreach = nonNegative(c, field+".slaRequirements.penaltyPerBreach", out.PenaltyPerBreach)
	out.BreachesPerMonth = nonNegative(c, field+".slaRequirements.breachesPerMonth", out.BreachesPerMonth)
	out.PaymentsValuePerMonth = nonNegative(c, field+".slaRequirements.paymentsValuePerMonth", out.PaymentsValuePerMonth)
	out.EarlyPaymentDiscountPercent = clampPercent(c, field+".slaRequirements.earlyPaymentDiscountPercent", out.EarlyPaymentDiscountPercent)
	out.DiscountCapturedPercent = clampPercent(c, field+".slaRequirements.discountCapturedPercent", out.DiscountCapturedPercent)
	return &out
}

func mergeErrorRework(c *validation.Collector, field string, in *types.ErrorReworkCosts) *types.ErrorReworkCosts {
	out := types.ErrorReworkCosts{}
	if in != nil {
		out = *in
	}
	out.ErrorRatePercent = clampPercent(c, field+".errorReworkCosts.errorRatePercent", out.ErrorRatePercent)
	out.ReworkMinutesPerError = nonNegative(c, field+".errorReworkCosts.reworkMinutesPerError", out.ReworkMinutesPerError)
	out.DirectCostPerError = nonNegative(c, field+".errorReworkCosts.directCostPerError", out.DirectCostPerError)
	return &out
}

func mergeCompliance(c *validation.Collector, field string, in *types.ComplianceRisk) *types.ComplianceRisk {
	out := types.ComplianceRisk{}
	if in != nil {
		out = *in
	}
	switch out.FineType {
	case types.FineNone, types.FineDaily, types.FinePerIncident, types.FinePerRecord, types.FinePercentRevenue:
	case "":
		out.FineType = types.FineNone
	default:
		c.Addf(field+".complianceRisk.fineType", "unknown fine type %q, ignoring compliance risk", out.FineType)
		out.FineType = types.FineNone
	}
	out.ProbabilityOfOccurrence = clampPercent(c, field+".complianceRisk.probabilityOfOccurrence", out.ProbabilityOfOccurrence)
	out.PercentageRate = clampPercent(c, field+".complianceRisk.percentageRate", out.PercentageRate)
	return &out
}

func mergeRevenue(c *validation.Collector, field string, in *types.RevenueImpact) *types.RevenueImpact {
	out := types.RevenueImpact{}
	if in != nil {
		out = *in
	}
	out.AnnualRevenueInfluenced = nonNegative(c, field+".revenueImpact.annualRevenueInfluenced", out.AnnualRevenueInfluenced)
	out.UpliftPercent = clampPercent(c, field+".revenueImpact.upliftPercent", out.UpliftPercent)
	return &out
}

func mergeInternal(c *validation.Collector, field string, in *types.InternalCosts) *types.InternalCosts {
	out := types.InternalCosts{}
	if in != nil {
		out = *in
	}
	out.SupervisionHoursPerMonth = nonNegative(c, field+".internalCosts.supervisionHoursPerMonth", out.SupervisionHoursPerMonth)
	out.SupervisionHourlyRate = nonNegative(c, field+".internalCosts.supervisionHourlyRate", out.SupervisionHourlyRate)
	out.OtherMonthlyCosts = nonNegative(c, field+".internalCosts.otherMonthlyCosts", out.OtherMonthlyCosts)
	return &out
}

func mergeComplexity(in *types.ComplexityMetrics) *types.ComplexityMetrics {
	out := types.ComplexityMetrics{}
	if in != nil {
		out = *in
	}
	if out.InputsCount < 0 {
		out.InputsCount = 0
	}
	if out.StepsCount < 0 {
		out.StepsCount = 0
	}
	if out.DependenciesCount < 0 {
		out.DependenciesCount = 0
	}

	out.InputsScore = resolveScore(out.InputsScore, out.InputsCount, inputsPerPoint)
	out.StepsScore = resolveScore(out.StepsScore, out.StepsCount, stepsPerPoint)
	out.DependenciesScore = resolveScore(out.DependenciesScore, out.DependenciesCount, dependenciesPerPoint)

	out.ComplexityIndex = ComplexityIndex(out.InputsScore.Value(), out.StepsScore.Value(), out.DependenciesScore.Value())
	out.RiskCategory = CategoryFor(out.ComplexityIndex)
	out.RiskValue = out.ComplexityIndex / 10
	return &out
}

// resolveScore keeps manual scores (clamped) and re-derives auto ones from
// the count. An auto score supplied without a count is kept, clamped.
func resolveScore(m types.Metric[float64], count, perPoint int) types.Metric[float64] {
	if m.IsManual() {
		return types.Manual(clamp(m.Value(), minScore, maxScore))
	}
	if count == 0 && m.Value() != 0 {
		return types.Auto(clamp(m.Value(), minScore, maxScore))
	}
	return types.Auto(ScoreFromCount(count, perPoint))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func clampPercent(c *validation.Collector, field string, v float64) float64 {
	out := clamp(v, 0, 100)
	if out != v {
		c.Addf(field, "clamped to %.1f", out)
	}
	return out
}

func nonNegative(c *validation.Collector, field string, v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		c.Addf(field, "negative value clamped to 0")
		return 0
	}
	return v
}
