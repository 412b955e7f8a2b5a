package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hyperengineering/autoroi/internal/normalize"
	"github.com/hyperengineering/autoroi/internal/store"
	"github.com/hyperengineering/autoroi/internal/types"
)

// FormatVersion identifies the backup document layout.
const FormatVersion = 1

// Document is everything stored for one organization.
type Document struct {
	Version            int                       `json:"version"`
	OrganizationID     string                    `json:"organizationId"`
	ExportedAt         time.Time                 `json:"exportedAt"`
	Dataset            types.Dataset             `json:"dataset"`
	CostClassification *types.CostClassification `json:"costClassification,omitempty"`
	Defaults           *types.GlobalDefaults     `json:"defaults,omitempty"`
}

// Export reads an organization's dataset, classification and defaults.
// Missing classification or defaults are omitted rather than failing.
func Export(ctx context.Context, s store.Store, orgID string) (*Document, error) {
	ds, err := s.LoadData(ctx, orgID)
	if err != nil {
		return nil, err
	}
	doc := &Document{
		Version:        FormatVersion,
		OrganizationID: orgID,
		ExportedAt:     time.Now().UTC(),
		Dataset:        *ds,
	}

	c, err := s.GetCostClassification(ctx, orgID)
	switch {
	case err == nil:
		doc.CostClassification = c
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	d, err := s.GetGlobalDefaults(ctx, orgID)
	switch {
	case err == nil:
		doc.Defaults = d
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}
	return doc, nil
}

// Import writes a document into s under orgID, replacing the stored dataset.
// An empty orgID keeps the document's own organization.
func Import(ctx context.Context, s store.Store, doc *Document, orgID string) error {
	if orgID == "" {
		orgID = doc.OrganizationID
	}
	if orgID == "" {
		return errors.New("import: organization id is required")
	}
	if _, err := s.SaveData(ctx, orgID, doc.Dataset); err != nil {
		return fmt.Errorf("import dataset: %w", err)
	}
	if doc.CostClassification != nil {
		if err := s.SaveCostClassification(ctx, orgID, *doc.CostClassification); err != nil {
			return fmt.Errorf("import classification: %w", err)
		}
	}
	if doc.Defaults != nil {
		if err := s.SaveGlobalDefaults(ctx, orgID, *doc.Defaults); err != nil {
			return fmt.Errorf("import defaults: %w", err)
		}
	}
	return nil
}

// Encode renders doc as indented JSON.
func Encode(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// Decode parses a backup document. The dataset goes through the same shape
// checks as a storage response.
func Decode(data []byte) (*Document, error) {
	var raw struct {
		Version            int                   `json:"version"`
		OrganizationID     string                `json:"organizationId"`
		ExportedAt         time.Time             `json:"exportedAt"`
		Dataset            json.RawMessage       `json:"dataset"`
		CostClassification json.RawMessage       `json:"costClassification"`
		Defaults           *types.GlobalDefaults `json:"defaults"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode backup: %w", err)
	}
	if raw.Version > FormatVersion {
		return nil, fmt.Errorf("decode backup: unsupported version %d", raw.Version)
	}

	ds, err := normalize.Parse(raw.Dataset)
	if err != nil {
		return nil, err
	}
	doc := &Document{
		Version:        raw.Version,
		OrganizationID: raw.OrganizationID,
		ExportedAt:     raw.ExportedAt,
		Dataset:        *ds,
		Defaults:       raw.Defaults,
	}
	if len(raw.CostClassification) > 0 && string(raw.CostClassification) != "null" {
		c, err := normalize.ParseCostClassification(raw.CostClassification)
		if err != nil {
			return nil, err
		}
		doc.CostClassification = c
	}
	return doc, nil
}
