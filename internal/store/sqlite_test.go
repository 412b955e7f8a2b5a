package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperengineering/autoroi/internal/types"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "autoroi.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDataset() types.Dataset {
	return types.Dataset{
		Groups: []types.GroupDefaults{
			{ID: "fin", Name: "Finance", AverageHourlyWage: 48},
			{Name: "Ops"},
		},
		Processes: []types.Process{
			{ID: "p-2", Name: "Vendor onboarding", TaskVolume: 30},
			{ID: "p-1", Name: "Invoice entry", TaskVolume: 400, ComplexityMetrics: &types.ComplexityMetrics{
				StepsScore: types.Manual(7.0),
			}},
			{Name: "Expense audit"},
		},
	}
}

func TestStore_NewSQLiteStore_InMemory(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, err := s.GetStats(context.Background()); err != nil {
		t.Fatalf("GetStats() on fresh store: %v", err)
	}
}

func TestSaveData_RoundTripPreservesOrder(t *testing.T) {
	// Given a saved dataset
	s := newTestStore(t)
	ctx := context.Background()
	saved, err := s.SaveData(ctx, "acme", sampleDataset())
	if err != nil {
		t.Fatalf("SaveData() error = %v", err)
	}

	// When it is loaded
	got, err := s.LoadData(ctx, "acme")
	if err != nil {
		t.Fatalf("LoadData() error = %v", err)
	}

	// Then order, IDs and manual metrics survive
	if len(got.Processes) != 3 || len(got.Groups) != 2 {
		t.Fatalf("got %d groups, %d processes", len(got.Groups), len(got.Processes))
	}
	wantNames := []string{"Vendor onboarding", "Invoice entry", "Expense audit"}
	for i, name := range wantNames {
		if got.Processes[i].Name != name {
			t.Errorf("Processes[%d].Name = %q, want %q", i, got.Processes[i].Name, name)
		}
		if got.Processes[i].ID != saved.Processes[i].ID {
			t.Errorf("Processes[%d].ID = %q, want %q", i, got.Processes[i].ID, saved.Processes[i].ID)
		}
	}
	if saved.Processes[2].ID == "" || saved.Groups[1].ID == "" {
		t.Error("missing IDs were not assigned on save")
	}
	if !got.Processes[1].ComplexityMetrics.StepsScore.IsManual() {
		t.Error("manual metric lost on round trip")
	}
}

func TestSaveData_DoesNotMutateInput(t *testing.T) {
	s := newTestStore(t)
	in := sampleDataset()

	if _, err := s.SaveData(context.Background(), "acme", in); err != nil {
		t.Fatal(err)
	}
	if in.Processes[2].ID != "" {
		t.Errorf("input process ID = %q, want unchanged empty", in.Processes[2].ID)
	}
}

func TestSaveData_ReplacesPreviousDataset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.SaveData(ctx, "acme", sampleDataset()); err != nil {
		t.Fatal(err)
	}

	replacement := types.Dataset{Processes: []types.Process{{ID: "only", Name: "Only"}}}
	if _, err := s.SaveData(ctx, "acme", replacement); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadData(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Processes) != 1 || got.Processes[0].ID != "only" {
		t.Errorf("Processes = %+v, want only the replacement", got.Processes)
	}
	if got.Groups == nil || len(got.Groups) != 0 {
		t.Errorf("Groups = %v, want empty non-nil", got.Groups)
	}
}

func TestLoadData_UnknownOrganization(t *testing.T) {
	s := newTestStore(t)

	_, err := s.LoadData(context.Background(), "ghost")

	if !errors.Is(err, ErrOrganizationNotFound) || !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadData() error = %v, want ErrOrganizationNotFound", err)
	}
}

func TestCostClassification_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetCostClassification(ctx, "acme")
	if !errors.Is(err, ErrClassificationNotFound) {
		t.Fatalf("GetCostClassification() error = %v, want ErrClassificationNotFound", err)
	}

	c := types.CostClassification{
		HardCosts: []types.CostItem{{Key: types.ItemSoftwareCost, Label: "Licences"}},
	}
	if err := s.SaveCostClassification(ctx, "acme", c); err != nil {
		t.Fatalf("SaveCostClassification() error = %v", err)
	}

	got, err := s.GetCostClassification(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsHard(types.ItemSoftwareCost) {
		t.Error("softwareCost not hard after round trip")
	}
	if got.SoftCosts == nil {
		t.Error("SoftCosts = nil, want empty slice")
	}

	// Saving a classification registers the organization
	if _, err := s.LoadData(ctx, "acme"); err != nil {
		t.Errorf("LoadData() after classification save: %v", err)
	}
}

func TestGlobalDefaults_Upsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := types.StandardDefaults()
	if err := s.SaveGlobalDefaults(ctx, "acme", d); err != nil {
		t.Fatal(err)
	}
	d.Financial.DiscountRate = 0.08
	risk := 3.0
	d.Financial.GlobalRiskFactor = &risk
	if err := s.SaveGlobalDefaults(ctx, "acme", d); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetGlobalDefaults(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if got.Financial.DiscountRate != 0.08 {
		t.Errorf("DiscountRate = %v, want 0.08", got.Financial.DiscountRate)
	}
	if got.Financial.GlobalRiskFactor == nil || *got.Financial.GlobalRiskFactor != 3 {
		t.Errorf("GlobalRiskFactor = %v, want 3", got.Financial.GlobalRiskFactor)
	}

	if _, err := s.GetGlobalDefaults(ctx, "other"); !errors.Is(err, ErrDefaultsNotFound) {
		t.Errorf("GetGlobalDefaults(other) error = %v, want ErrDefaultsNotFound", err)
	}
}

func TestListOrganizations_AndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveData(ctx, "beta", sampleDataset()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveData(ctx, "alpha", types.Dataset{Processes: []types.Process{{ID: "x", Name: "x"}}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveCostClassification(ctx, "alpha", *types.EmptyClassification()); err != nil {
		t.Fatal(err)
	}

	orgs, err := s.ListOrganizations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(orgs) != 2 || orgs[0].ID != "alpha" || orgs[1].ID != "beta" {
		t.Fatalf("ListOrganizations() = %+v, want alpha, beta", orgs)
	}
	if orgs[0].ProcessCount != 1 || !orgs[0].HasCostClasses {
		t.Errorf("alpha = %+v, want 1 process with classification", orgs[0])
	}
	if orgs[1].ProcessCount != 3 || orgs[1].HasCostClasses {
		t.Errorf("beta = %+v, want 3 processes without classification", orgs[1])
	}

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Organizations != 2 || stats.Processes != 4 {
		t.Errorf("stats = %+v, want 2 orgs, 4 processes", stats)
	}
	if stats.LastSavedAt == nil {
		t.Error("LastSavedAt = nil after saves")
	}
}
