// Package cashflow projects month-indexed cost and savings series for a
// normalized dataset.
package cashflow

import (
	"math"

	"github.com/hyperengineering/autoroi/internal/savings"
	"github.com/hyperengineering/autoroi/internal/types"
)

// NoPayback is returned by PaybackMonth when the cumulative series never
// recovers within the horizon.
const NoPayback = -1

// savingsKeys is the fixed summation order for savings items.
var savingsKeys = []string{
	types.ItemLaborSavings,
	types.ItemOvertimeSavings,
	types.ItemSeasonalStaffSavings,
	types.ItemErrorSavings,
	types.ItemComplianceSavings,
	types.ItemRevenueUplift,
	types.ItemPromptPaymentSavings,
	types.ItemSLAPenaltySavings,
	types.ItemInternalCostSavings,
	types.ItemAttritionSavings,
}

// weeksEpsilon absorbs float noise so 4.33 weeks is exactly one month.
const weeksEpsilon = 1e-9

// ImplementationMonths returns the number of months a process spends in
// implementation.
func ImplementationMonths(weeks float64) int {
	if weeks <= 0 {
		return 0
	}
	return int(math.Ceil(weeks/savings.WeeksPerMonth - weeksEpsilon))
}

// SavingsStartMonth returns the first projection month in which a process
// produces savings.
func SavingsStartMonth(p types.Process) int {
	return p.StartMonth + ImplementationMonths(p.ImplementationWeeks)
}

// CalendarMonth maps projection month m (1-based) onto a calendar month,
// with projection month 1 treated as January.
func CalendarMonth(m int) int {
	return (m-1)%savings.MonthsPerYear + 1
}

// Project builds the portfolio series for months 1..horizon. A nil
// classification returns an empty series: without it the hard/soft split is
// unknown and the projection is withheld rather than guessed.
func Project(ds types.Dataset, d types.GlobalDefaults, horizon int, c *types.CostClassification) []types.CashflowData {
	if c == nil || horizon <= 0 {
		return []types.CashflowData{}
	}

	out := make([]types.CashflowData, horizon)
	for i := range out {
		out[i].Month = i + 1
	}
	for _, p := range ds.Processes {
		for i, row := range ProcessSeries(p, d, horizon, c) {
			out[i].Cost += row.Cost
			out[i].Savings += row.Savings
			out[i].HardCost += row.HardCost
			out[i].SoftCost += row.SoftCost
			out[i].HardSavings += row.HardSavings
			out[i].SoftSavings += row.SoftSavings
		}
	}
	accumulate(out)
	return out
}

// ProcessSeries builds one process's series. The classification only drives
// the hard/soft columns and may be nil.
func ProcessSeries(p types.Process, d types.GlobalDefaults, horizon int, c *types.CostClassification) []types.CashflowData {
	if horizon <= 0 {
		return []types.CashflowData{}
	}
	out := make([]types.CashflowData, horizon)

	var byCalendar [savings.MonthsPerYear]map[string]float64
	savingsStart := SavingsStartMonth(p)

	for i := range out {
		month := i + 1
		row := &out[i]
		row.Month = month

		if month == p.StartMonth {
			postCost(row, c, types.ItemUpfrontCosts, p.UpfrontCosts)
			postCost(row, c, types.ItemTrainingCosts, p.TrainingCosts)
			postCost(row, c, types.ItemConsultingCosts, p.ConsultingCosts)
		}
		if month >= p.StartMonth {
			postCost(row, c, types.ItemSoftwareCost, p.SoftwareCost)
		}
		if month >= savingsStart {
			cal := CalendarMonth(month)
			items := byCalendar[cal-1]
			if items == nil {
				items = savings.ForCalendarMonth(p, d, cal).Savings.ByItem()
				byCalendar[cal-1] = items
			}
			for _, key := range savingsKeys {
				postSavings(row, c, key, items[key])
			}
		}
	}
	accumulate(out)
	return out
}

// PaybackMonth returns the first month in which the cumulative net recovers
// to zero or above after having gone negative. A series that never goes
// negative pays back immediately (0). NoPayback means it never recovers.
func PaybackMonth(series []types.CashflowData) int {
	invested := false
	for _, row := range series {
		if row.Cumulative < 0 {
			invested = true
			continue
		}
		if invested {
			return row.Month
		}
	}
	if invested {
		return NoPayback
	}
	return 0
}

func postCost(row *types.CashflowData, c *types.CostClassification, key string, amount float64) {
	if amount == 0 {
		return
	}
	row.Cost += amount
	switch {
	case c.IsHard(key):
		row.HardCost += amount
	case c.IsSoft(key):
		row.SoftCost += amount
	}
}

func postSavings(row *types.CashflowData, c *types.CostClassification, key string, amount float64) {
	if amount == 0 {
		return
	}
	row.Savings += amount
	switch {
	case c.IsHard(key):
		row.HardSavings += amount
	case c.IsSoft(key):
		row.SoftSavings += amount
	}
}

func accumulate(rows []types.CashflowData) {
	var running float64
	for i := range rows {
		rows[i].Net = rows[i].Savings - rows[i].Cost
		running += rows[i].Net
		rows[i].Cumulative = running
	}
}
