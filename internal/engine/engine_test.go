package engine

import (
	"bytes"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/hyperengineering/autoroi/internal/normalize"
	"github.com/hyperengineering/autoroi/internal/types"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-6*math.Max(1, math.Abs(b))
}

func testInput(t *testing.T, processes ...types.Process) Input {
	t.Helper()
	d := types.StandardDefaults()
	d.Overhead = types.OverheadPercentages{}
	d.Attrition = types.AttritionAssumptions{}
	res := normalize.Apply(types.Dataset{Processes: processes}, d)
	return Input{
		Dataset:        res.Dataset,
		Defaults:       res.Defaults,
		Classification: types.EmptyClassification(),
		HorizonMonths:  24,
	}
}

func invoiceProcess() types.Process {
	return types.Process{
		ID:                  "invoice",
		Name:                "Invoice entry",
		TaskVolume:          100,
		TimePerTask:         60,
		AverageHourlyWage:   10,
		AutomationCoverage:  100,
		UpfrontCosts:        5000,
		ImplementationWeeks: 4.33,
	}
}

func TestCompute_SingleProcess(t *testing.T) {
	in := testInput(t, invoiceProcess())

	out := Compute(in)

	res := out.Results
	if len(res.ProcessResults) != 1 {
		t.Fatalf("len(ProcessResults) = %d, want 1", len(res.ProcessResults))
	}
	pr := res.ProcessResults[0]
	if !almostEqual(pr.AnnualNetSavings, 12000) {
		t.Errorf("AnnualNetSavings = %v, want 12000", pr.AnnualNetSavings)
	}
	if pr.PaybackPeriodMonths != 6 {
		t.Errorf("PaybackPeriodMonths = %d, want 6", pr.PaybackPeriodMonths)
	}
	if res.PaybackPeriodMonths != 6 {
		t.Errorf("portfolio payback = %d, want 6", res.PaybackPeriodMonths)
	}
	if res.TotalCost != 5000 {
		t.Errorf("TotalCost = %v, want 5000", res.TotalCost)
	}
	// 23 months of $1000 savings against $5000
	if !almostEqual(res.ROI, (23000.0-5000)/5000) {
		t.Errorf("ROI = %v, want %v", res.ROI, (23000.0-5000)/5000)
	}
	if len(out.Cashflow) != 24 {
		t.Errorf("len(Cashflow) = %d, want 24", len(out.Cashflow))
	}
	if len(out.Matrix) != 1 {
		t.Errorf("len(Matrix) = %d, want 1", len(out.Matrix))
	}
	if res.SnapshotID == "" {
		t.Error("SnapshotID is empty")
	}
}

func TestYearlySavings_BlocksAndInflation(t *testing.T) {
	in := testInput(t, invoiceProcess())
	p := in.Dataset.Processes[0]
	p.SoftwareCost = 100

	series := make([]types.CashflowData, 30)
	for i := range series {
		series[i] = types.CashflowData{Month: i + 1, Savings: 1000}
	}

	got := YearlySavings(p, series, 0.10)

	if len(got) != 3 {
		t.Fatalf("len(yearly) = %d, want 3", len(got))
	}
	want := []float64{12 * 900, 12 * 900 * 1.1, 6 * 900 * 1.21}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Errorf("year %d = %v, want %v", i+1, got[i], want[i])
		}
	}
}

func TestEstimatedCost(t *testing.T) {
	p := types.Process{UpfrontCosts: 1000, TrainingCosts: 500, SoftwareCost: 100}
	if got := EstimatedCost(p); got != 2700 {
		t.Errorf("EstimatedCost() = %v, want 2700", got)
	}
	p.EstimateAtCompletion = 9000
	if got := EstimatedCost(p); got != 9000 {
		t.Errorf("EstimatedCost() with EAC = %v, want 9000", got)
	}
}

func TestCompute_QuadrantIndependentOfPortfolio(t *testing.T) {
	// Given a process scored alone
	alone := Compute(testInput(t, invoiceProcess()))
	q := alone.Results.ProcessResults[0].CFO.Quadrant

	// When unrelated processes are added around it
	big := invoiceProcess()
	big.ID = "big"
	big.UpfrontCosts = 900000
	big.ImplementationWeeks = 120
	small := invoiceProcess()
	small.ID = "small"
	small.TaskVolume = 1
	crowd := Compute(testInput(t, big, invoiceProcess(), small))

	// Then its quadrant and effort do not move
	var found bool
	for _, pr := range crowd.Results.ProcessResults {
		if pr.ProcessID != "invoice" {
			continue
		}
		found = true
		if pr.CFO.Quadrant != q {
			t.Errorf("quadrant = %q in portfolio, %q alone", pr.CFO.Quadrant, q)
		}
		if pr.CFO.ImplementationEffort != alone.Results.ProcessResults[0].CFO.ImplementationEffort {
			t.Error("effort changed when other processes were added")
		}
	}
	if !found {
		t.Fatal("invoice missing from portfolio results")
	}
}

func TestCompute_NilClassificationStillScores(t *testing.T) {
	in := testInput(t, invoiceProcess())
	in.Classification = nil

	out := Compute(in)

	if len(out.Cashflow) != 0 {
		t.Errorf("len(Cashflow) = %d, want 0 without classification", len(out.Cashflow))
	}
	if len(out.Results.ProcessResults) != 1 {
		t.Errorf("len(ProcessResults) = %d, want 1", len(out.Results.ProcessResults))
	}
}

func TestCompute_EmptyDataset(t *testing.T) {
	out := Compute(testInput(t))

	if out.Results.ROI != 0 || out.Results.TotalCost != 0 {
		t.Errorf("ROI = %v, TotalCost = %v, want 0", out.Results.ROI, out.Results.TotalCost)
	}
	if out.Results.ProcessResults == nil {
		t.Error("ProcessResults = nil, want empty slice")
	}
}

func TestFingerprint(t *testing.T) {
	a := testInput(t, invoiceProcess())
	b := testInput(t, invoiceProcess())

	if Fingerprint(a) != Fingerprint(b) {
		t.Error("identical inputs produced different fingerprints")
	}

	b.HorizonMonths = 36
	if Fingerprint(a) == Fingerprint(b) {
		t.Error("horizon change did not change fingerprint")
	}

	c := testInput(t, invoiceProcess())
	c.Classification = nil
	if Fingerprint(a) == Fingerprint(c) {
		t.Error("classification change did not change fingerprint")
	}
}

func TestFingerprint_UnhashableInputIsUniqueAndLogged(t *testing.T) {
	var buf bytes.Buffer
	old := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(old) })

	in := testInput(t, invoiceProcess())
	in.Dataset.Processes[0].TaskVolume = math.NaN()

	a, b := Fingerprint(in), Fingerprint(in)
	if !strings.HasPrefix(a, "unhashable-") || a == b {
		t.Errorf("fingerprints = %q, %q, want distinct unhashable IDs", a, b)
	}
	if !strings.Contains(buf.String(), "snapshot not hashable") {
		t.Errorf("log = %q, want a warning", buf.String())
	}
}
