package store

import (
	"context"

	"github.com/hyperengineering/autoroi/internal/types"
)

// Store defines the interface contract for organization dataset storage.
type Store interface {
	LoadData(ctx context.Context, orgID string) (*types.Dataset, error)
	SaveData(ctx context.Context, orgID string, ds types.Dataset) (*types.Dataset, error)
	GetCostClassification(ctx context.Context, orgID string) (*types.CostClassification, error)
	SaveCostClassification(ctx context.Context, orgID string, c types.CostClassification) error
	GetGlobalDefaults(ctx context.Context, orgID string) (*types.GlobalDefaults, error)
	SaveGlobalDefaults(ctx context.Context, orgID string, d types.GlobalDefaults) error
	ListOrganizations(ctx context.Context) ([]types.Organization, error)
	GetStats(ctx context.Context) (*types.StoreStats, error)
	Close() error
}
