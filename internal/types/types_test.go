package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestMetric_JSONRoundTrip_PreservesSource(t *testing.T) {
	in := ComplexityMetrics{
		InputsCount: 4,
		InputsScore: Manual(7.0),
		StepsScore:  Auto(3.0),
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"inputsScore":{"value":7,"source":"manual"}`) {
		t.Errorf("encoded metrics missing manual inputsScore: %s", data)
	}

	var out ComplexityMetrics
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !out.InputsScore.IsManual() || out.InputsScore.Value() != 7 {
		t.Errorf("InputsScore = %+v, want Manual(7)", out.InputsScore)
	}
	if out.StepsScore.IsManual() || out.StepsScore.Value() != 3 {
		t.Errorf("StepsScore = %+v, want Auto(3)", out.StepsScore)
	}
}

func TestMetric_UnmarshalBareNumber_IsAuto(t *testing.T) {
	var m Metric[float64]
	if err := json.Unmarshal([]byte("5.5"), &m); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if m.IsManual() {
		t.Error("bare number decoded as manual")
	}
	if m.Value() != 5.5 {
		t.Errorf("Value() = %v, want 5.5", m.Value())
	}
}

func TestMetric_UnmarshalUnknownSource_Fails(t *testing.T) {
	var m Metric[float64]
	err := json.Unmarshal([]byte(`{"value":1,"source":"guessed"}`), &m)
	if err == nil {
		t.Fatal("expected error for unknown source")
	}
}

func TestMetric_ZeroValue_IsAuto(t *testing.T) {
	var m Metric[int]
	if m.Source() != SourceAuto {
		t.Errorf("Source() = %q, want %q", m.Source(), SourceAuto)
	}
}

func TestSavingsBreakdown_TotalAndByItem(t *testing.T) {
	b := SavingsBreakdown{Labor: 100, Overtime: 10, ErrorAvoidance: 5, Attrition: 1}
	if got := b.Total(); got != 116 {
		t.Errorf("Total() = %v, want 116", got)
	}

	var sum float64
	for _, v := range b.ByItem() {
		sum += v
	}
	if sum != b.Total() {
		t.Errorf("ByItem sum = %v, want %v", sum, b.Total())
	}

	doubled := b.Scale(2)
	if doubled.Total() != 232 {
		t.Errorf("Scale(2).Total() = %v, want 232", doubled.Total())
	}
}

func TestCostClassification_NilIsNeitherHardNorSoft(t *testing.T) {
	var c *CostClassification
	if c.IsHard(ItemUpfrontCosts) || c.IsSoft(ItemUpfrontCosts) {
		t.Error("nil classification should classify nothing")
	}

	c = &CostClassification{
		HardCosts: []CostItem{{Key: ItemSoftwareCost}},
		SoftCosts: []CostItem{{Key: ItemTrainingCosts}},
	}
	if !c.IsHard(ItemSoftwareCost) {
		t.Error("softwareCost should be hard")
	}
	if !c.IsSoft(ItemTrainingCosts) {
		t.Error("trainingCosts should be soft")
	}
}

func TestStandardDefaults_OverheadTotalMatchesParts(t *testing.T) {
	d := StandardDefaults()
	if diff := d.Overhead.Sum() - d.Overhead.Total; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("overhead total %v != sum %v", d.Overhead.Total, d.Overhead.Sum())
	}
	if d.BusinessHours.HoursPerYear() != 2080 {
		t.Errorf("HoursPerYear() = %v, want 2080", d.BusinessHours.HoursPerYear())
	}
}
