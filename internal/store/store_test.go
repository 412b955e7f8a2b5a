package store

import (
	"context"

	"github.com/hyperengineering/autoroi/internal/types"
)

// mockStore is a compile-time check that the Store interface can be implemented.
type mockStore struct{}

var _ Store = (*mockStore)(nil)

func (m *mockStore) LoadData(ctx context.Context, orgID string) (*types.Dataset, error) {
	return nil, nil
}
func (m *mockStore) SaveData(ctx context.Context, orgID string, ds types.Dataset) (*types.Dataset, error) {
	return nil, nil
}
func (m *mockStore) GetCostClassification(ctx context.Context, orgID string) (*types.CostClassification, error) {
	return nil, nil
}
func (m *mockStore) SaveCostClassification(ctx context.Context, orgID string, c types.CostClassification) error {
	return nil
}
func (m *mockStore) GetGlobalDefaults(ctx context.Context, orgID string) (*types.GlobalDefaults, error) {
	return nil, nil
}
func (m *mockStore) SaveGlobalDefaults(ctx context.Context, orgID string, d types.GlobalDefaults) error {
	return nil
}
func (m *mockStore) ListOrganizations(ctx context.Context) ([]types.Organization, error) {
	return nil, nil
}
func (m *mockStore) GetStats(ctx context.Context) (*types.StoreStats, error) {
	return nil, nil
}
func (m *mockStore) Close() error {
	return nil
}
