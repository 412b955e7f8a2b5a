package cashflow

import (
	"math"
	"testing"

	"github.com/hyperengineering/autoroi/internal/normalize"
	"github.com/hyperengineering/autoroi/internal/types"
)

// scenarioDefaults removes overhead and attrition so one process produces
// exactly $1000 of monthly savings.
func scenarioDefaults() types.GlobalDefaults {
	d := types.StandardDefaults()
	d.Overhead = types.OverheadPercentages{}
	d.Attrition = types.AttritionAssumptions{}
	return d
}

func scenarioDataset(t *testing.T, d types.GlobalDefaults) types.Dataset {
	t.Helper()
	ds, _ := normalize.MergeWithDefaults(types.Dataset{Processes: []types.Process{{
		ID:                  "invoice",
		TaskVolume:          100,
		TimePerTask:         60,
		AverageHourlyWage:   10,
		AutomationCoverage:  100,
		UpfrontCosts:        5000,
		ImplementationWeeks: 4.33,
		StartMonth:          1,
	}}}, d)
	return ds
}

func TestProject_TwentyFourMonthScenario(t *testing.T) {
	// Given one process with $1000/month savings and a $5000 one-time cost
	d := scenarioDefaults()
	ds := scenarioDataset(t, d)

	// When projected over 24 months
	series := Project(ds, d, 24, types.EmptyClassification())

	// Then month 1 carries the cost and every later month the savings
	if len(series) != 24 {
		t.Fatalf("len(series) = %d, want 24", len(series))
	}
	if series[0].Net != -5000 {
		t.Errorf("month 1 net = %v, want -5000", series[0].Net)
	}
	for _, row := range series[1:] {
		if math.Abs(row.Net-1000) > 1e-9 {
			t.Errorf("month %d net = %v, want 1000", row.Month, row.Net)
		}
	}
	if math.Abs(series[5].Cumulative) > 1e-9 {
		t.Errorf("month 6 cumulative = %v, want 0", series[5].Cumulative)
	}
	if series[4].Cumulative >= 0 {
		t.Errorf("month 5 cumulative = %v, want negative", series[4].Cumulative)
	}
	if got := PaybackMonth(series); got != 6 {
		t.Errorf("PaybackMonth() = %d, want 6", got)
	}
}

func TestProject_NilClassificationBlocks(t *testing.T) {
	d := scenarioDefaults()
	ds := scenarioDataset(t, d)

	series := Project(ds, d, 24, nil)

	if series == nil {
		t.Fatal("Project() = nil, want empty non-nil slice")
	}
	if len(series) != 0 {
		t.Errorf("len(series) = %d, want 0", len(series))
	}
}

func TestProject_HardSoftSplit(t *testing.T) {
	d := scenarioDefaults()
	ds := scenarioDataset(t, d)
	ds.Processes[0].SoftwareCost = 100
	c := &types.CostClassification{
		HardCosts: []types.CostItem{{Key: types.ItemUpfrontCosts}, {Key: types.ItemLaborSavings}},
		SoftCosts: []types.CostItem{{Key: types.ItemSoftwareCost}},
	}

	series := Project(ds, d, 3, c)

	if series[0].HardCost != 5000 || series[0].SoftCost != 100 {
		t.Errorf("month 1 hard/soft cost = %v/%v, want 5000/100", series[0].HardCost, series[0].SoftCost)
	}
	if series[0].Cost != 5100 {
		t.Errorf("month 1 cost = %v, want 5100", series[0].Cost)
	}
	if math.Abs(series[1].HardSavings-1000) > 1e-9 || series[1].SoftSavings != 0 {
		t.Errorf("month 2 hard/soft savings = %v/%v, want 1000/0", series[1].HardSavings, series[1].SoftSavings)
	}
}

func TestProject_EmptyClassificationKeepsAggregates(t *testing.T) {
	d := scenarioDefaults()
	ds := scenarioDataset(t, d)

	series := Project(ds, d, 2, types.EmptyClassification())

	if series[0].Cost != 5000 {
		t.Errorf("Cost = %v, want 5000", series[0].Cost)
	}
	if series[0].HardCost != 0 || series[0].SoftCost != 0 {
		t.Errorf("hard/soft = %v/%v, want 0/0 with empty classification", series[0].HardCost, series[0].SoftCost)
	}
}

func TestProcessSeries_StaggeredStart(t *testing.T) {
	d := scenarioDefaults()
	ds := scenarioDataset(t, d)
	p := ds.Processes[0]
	p.StartMonth = 3
	p.ImplementationWeeks = 9 // three months
	p.SoftwareCost = 50

	series := ProcessSeries(p, d, 8, nil)

	for _, row := range series[:2] {
		if row.Cost != 0 || row.Savings != 0 {
			t.Errorf("month %d = %+v, want nothing before start", row.Month, row)
		}
	}
	if series[2].Cost != 5050 {
		t.Errorf("month 3 cost = %v, want 5050", series[2].Cost)
	}
	if series[4].Savings != 0 {
		t.Errorf("month 5 savings = %v, want 0 during implementation", series[4].Savings)
	}
	if math.Abs(series[5].Savings-1000) > 1e-9 || series[5].Cost != 50 {
		t.Errorf("month 6 = %+v, want savings 1000 and software 50", series[5])
	}
}

func TestProcessSeries_ZeroImplementationSavesFromStart(t *testing.T) {
	d := scenarioDefaults()
	ds := scenarioDataset(t, d)
	p := ds.Processes[0]
	p.ImplementationWeeks = 0

	series := ProcessSeries(p, d, 2, nil)
	if math.Abs(series[0].Savings-1000) > 1e-9 {
		t.Errorf("month 1 savings = %v, want 1000", series[0].Savings)
	}
}

func TestImplementationMonths(t *testing.T) {
	tests := []struct {
		weeks float64
		want  int
	}{
		{0, 0},
		{-2, 0},
		{1, 1},
		{4.33, 1},
		{4.34, 2},
		{8.66, 2},
		{13, 4},
	}
	for _, tt := range tests {
		if got := ImplementationMonths(tt.weeks); got != tt.want {
			t.Errorf("ImplementationMonths(%v) = %d, want %d", tt.weeks, got, tt.want)
		}
	}
}

func TestPaybackMonth(t *testing.T) {
	mk := func(cum ...float64) []types.CashflowData {
		out := make([]types.CashflowData, len(cum))
		for i, c := range cum {
			out[i] = types.CashflowData{Month: i + 1, Cumulative: c}
		}
		return out
	}

	tests := []struct {
		name   string
		series []types.CashflowData
		want   int
	}{
		{"recovers", mk(-10, -5, 0, 5), 3},
		{"never recovers", mk(-10, -8, -6), NoPayback},
		{"never invested", mk(5, 10), 0},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PaybackMonth(tt.series); got != tt.want {
				t.Errorf("PaybackMonth() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCalendarMonth(t *testing.T) {
	if CalendarMonth(1) != 1 || CalendarMonth(12) != 12 || CalendarMonth(13) != 1 || CalendarMonth(26) != 2 {
		t.Error("CalendarMonth does not wrap on a 12-month cycle")
	}
}
