package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperengineering/autoroi/internal/client"
	"github.com/hyperengineering/autoroi/internal/normalize"
	"github.com/hyperengineering/autoroi/internal/store"
	"github.com/hyperengineering/autoroi/internal/types"
	"gopkg.in/yaml.v3"
)

// Fetcher loads an organization's inputs. LoadData failures must wrap
// client.ErrLoadFailed (or be a normalize.ShapeError); classification
// failures must wrap client.ErrClassificationUnavailable.
type Fetcher interface {
	LoadData(ctx context.Context, orgID string) (*types.Dataset, error)
	LoadCostClassification(ctx context.Context, orgID string) (*types.CostClassification, error)
}

// DefaultsFetcher is implemented by fetchers that also hold per-organization
// global defaults.
type DefaultsFetcher interface {
	LoadGlobalDefaults(ctx context.Context, orgID string) (*types.GlobalDefaults, error)
}

// StoreFetcher serves a session directly from a local Store.
type StoreFetcher struct {
	Store store.Store
}

var (
	_ Fetcher         = (*StoreFetcher)(nil)
	_ DefaultsFetcher = (*StoreFetcher)(nil)
	_ Fetcher         = (*client.Client)(nil)
)

// LoadData implements Fetcher.
func (f *StoreFetcher) LoadData(ctx context.Context, orgID string) (*types.Dataset, error) {
	ds, err := f.Store.LoadData(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", client.ErrLoadFailed, err)
	}
	return ds, nil
}

// LoadCostClassification implements Fetcher.
func (f *StoreFetcher) LoadCostClassification(ctx context.Context, orgID string) (*types.CostClassification, error) {
	c, err := f.Store.GetCostClassification(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", client.ErrClassificationUnavailable, err)
	}
	return c, nil
}

// LoadGlobalDefaults implements DefaultsFetcher. A missing record is not an
// error; it returns nil.
func (f *StoreFetcher) LoadGlobalDefaults(ctx context.Context, orgID string) (*types.GlobalDefaults, error) {
	d, err := f.Store.GetGlobalDefaults(ctx, orgID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return d, err
}

// FileFetcher serves a single dataset file regardless of organization. The
// file holds {groups, processes} and optionally costClassification, as JSON
// or YAML.
type FileFetcher struct {
	Path string
}

var _ Fetcher = (*FileFetcher)(nil)

// LoadData implements Fetcher.
func (f *FileFetcher) LoadData(ctx context.Context, orgID string) (*types.Dataset, error) {
	raw, err := ReadDatasetFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", client.ErrLoadFailed, err)
	}
	return normalize.Parse(raw)
}

// LoadCostClassification implements Fetcher.
func (f *FileFetcher) LoadCostClassification(ctx context.Context, orgID string) (*types.CostClassification, error) {
	raw, err := ReadDatasetFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", client.ErrClassificationUnavailable, err)
	}
	var doc struct {
		CostClassification json.RawMessage `json:"costClassification"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil || len(doc.CostClassification) == 0 || string(doc.CostClassification) == "null" {
		return nil, fmt.Errorf("%w: %s has no costClassification", client.ErrClassificationUnavailable, f.Path)
	}
	c, err := normalize.ParseCostClassification(doc.CostClassification)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", client.ErrClassificationUnavailable, err)
	}
	return c, nil
}

// ReadDatasetFile reads a dataset file and returns it as JSON. YAML files
// (.yaml, .yml) are converted so the shape checks in normalize apply to
// both formats alike.
func ReadDatasetFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse YAML dataset: %w", err)
		}
		out, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("convert YAML dataset: %w", err)
		}
		return out, nil
	default:
		return data, nil
	}
}
