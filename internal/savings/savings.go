// Package savings converts one normalized process into time and dollar
// savings. It expects every sub-record on the process to be populated; run
// the dataset through normalize first.
package savings

import (
	"math"

	"github.com/hyperengineering/autoroi/internal/types"
)

// Unit multipliers that convert a task volume into tasks per month.
const (
	DaysPerMonth     = 21.7
	WeeksPerMonth    = 4.33
	QuartersPerMonth = 1.0 / 3
	YearsPerMonth    = 1.0 / 12

	MonthsPerYear = 12
)

// Month is the savings picture for a single calendar month.
type Month struct {
	Tasks         float64
	HoursSaved    float64
	BaseLaborCost float64
	FTEsFreed     float64
	Savings       types.SavingsBreakdown
}

// VolumeMultiplier returns the factor converting a volume quoted per unit
// into a volume per month.
func VolumeMultiplier(unit types.VolumeUnit) float64 {
	switch unit {
	case types.VolumePerDay:
		return DaysPerMonth
	case types.VolumePerWeek:
		return WeeksPerMonth
	case types.VolumePerQuarter:
		return QuartersPerMonth
	case types.VolumePerYear:
		return YearsPerMonth
	default:
		return 1
	}
}

// HoursPerTask returns a process's time per task in hours.
func HoursPerTask(p types.Process) float64 {
	if p.TimeUnit == types.TimeHours {
		return p.TimePerTask
	}
	return p.TimePerTask / 60
}

// LoadedWage returns the hourly wage including overhead.
func LoadedWage(p types.Process, d types.GlobalDefaults) float64 {
	return p.AverageHourlyWage * (1 + d.Overhead.Total/100)
}

// ExpectedFine returns the annual fine magnitude for the active fine model,
// before probability and coverage are applied.
func ExpectedFine(c types.ComplianceRisk) float64 {
	switch c.FineType {
	case types.FineDaily:
		return c.AmountPerDay * c.ExpectedDurationDays
	case types.FinePerIncident:
		return c.AmountPerIncident * c.ExpectedIncidentsPerYear
	case types.FinePerRecord:
		return c.AmountPerRecord * c.RecordsAtRisk
	case types.FinePercentRevenue:
		return c.RevenueAtRisk * c.PercentageRate / 100
	default:
		return 0
	}
}

// ForCalendarMonth computes savings for calendar month m (1-12). Seasonal
// volume and temporary staff only apply in the process's peak months.
func ForCalendarMonth(p types.Process, d types.GlobalDefaults, m int) Month {
	peak := p.SeasonalPattern.IsPeak(m)

	tasks := p.TaskVolume * VolumeMultiplier(p.TaskVolumeUnit)
	if peak {
		tasks *= p.SeasonalPattern.VolumeMultiplier
	}

	hours := HoursPerTask(p)
	loaded := LoadedWage(p, d)
	coverage := p.AutomationCoverage / 100

	out := Month{
		Tasks:         tasks,
		BaseLaborCost: tasks * hours * loaded,
		HoursSaved:    tasks * hours * coverage,
	}

	var b types.SavingsBreakdown
	b.Labor = out.BaseLaborCost * coverage

	// Peak-window work is paid at the overtime premium on top of base wage.
	peakTasks := tasks * p.CyclicalPattern.PeakVolumePercent / 100
	b.Overtime = peakTasks * hours * p.AverageHourlyWage * p.CyclicalPattern.OvertimePremiumPercent / 100 * coverage

	if peak {
		b.SeasonalStaff = p.SeasonalPattern.TemporaryStaffCostPerMonth * coverage
	}

	e := p.ErrorReworkCosts
	perError := e.ReworkMinutesPerError/60*loaded + e.DirectCostPerError
	b.ErrorAvoidance = tasks * e.ErrorRatePercent / 100 * perError * coverage

	cr := p.ComplianceRisk
	b.ComplianceAvoidance = ExpectedFine(*cr) * cr.ProbabilityOfOccurrence / 100 * coverage / MonthsPerYear

	r := p.RevenueImpact
	b.RevenueUplift = r.AnnualRevenueInfluenced * r.UpliftPercent / 100 * coverage / MonthsPerYear

	s := p.SLARequirements
	b.PromptPayment = s.PaymentsValuePerMonth * s.EarlyPaymentDiscountPercent / 100 * (1 - s.DiscountCapturedPercent/100) * coverage
	b.SLAPenalty = s.PenaltyPerBreach * s.BreachesPerMonth * coverage

	ic := p.InternalCosts
	b.InternalCost = (ic.SupervisionHoursPerMonth*ic.SupervisionHourlyRate + ic.OtherMonthlyCosts) * coverage

	out.FTEsFreed = ftesFreed(p, d, out.HoursSaved)
	annualSalary := p.AverageHourlyWage * d.BusinessHours.HoursPerYear()
	b.Attrition = out.FTEsFreed * annualSalary *
		d.Attrition.AnnualAttritionPercent / 100 *
		d.Attrition.ReplacementCostPercent / 100 / MonthsPerYear

	out.Savings = b
	return out
}

// Calculate sums the twelve calendar months into annual figures. Monthly
// figures are averages across the year.
func Calculate(p types.Process, d types.GlobalDefaults) types.ProcessSavings {
	var (
		annual     types.SavingsBreakdown
		tasks      float64
		hoursSaved float64
		baseLabor  float64
	)
	for m := 1; m <= MonthsPerYear; m++ {
		month := ForCalendarMonth(p, d, m)
		annual = annual.Add(month.Savings)
		tasks += month.Tasks
		hoursSaved += month.HoursSaved
		baseLabor += month.BaseLaborCost
	}

	monthly := annual.Scale(1.0 / MonthsPerYear)
	return types.ProcessSavings{
		MonthlyTasks:         tasks / MonthsPerYear,
		MonthlyHoursSaved:    hoursSaved / MonthsPerYear,
		AnnualHoursSaved:     hoursSaved,
		BaseLaborCostMonthly: baseLabor / MonthsPerYear,
		MonthlySavings:       monthly.Total(),
		AnnualSavings:        annual.Total(),
		Monthly:              monthly,
		Annual:               annual,
		FTEsFreed:            ftesFreed(p, d, hoursSaved/MonthsPerYear),
	}
}

// ftesFreed converts monthly hours saved into full-time equivalents, capped
// at the process's headcount when one is recorded.
func ftesFreed(p types.Process, d types.GlobalDefaults, hoursSaved float64) float64 {
	perFTE := d.BusinessHours.HoursPerMonth()
	if perFTE <= 0 {
		return 0
	}
	ftes := hoursSaved / perFTE
	if p.FTECount > 0 {
		ftes = math.Min(ftes, p.FTECount)
	}
	return ftes
}
