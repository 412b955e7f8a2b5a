package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperengineering/autoroi/internal/types"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists organization datasets in SQLite. Groups and processes
// are stored as JSON payloads with an explicit position so load order
// matches save order.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps :memory: databases shared across queries.
	db.SetMaxOpenConns(1)

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// LoadData returns an organization's groups and processes in saved order.
// Both slices are non-nil for a known organization.
func (s *SQLiteStore) LoadData(ctx context.Context, orgID string) (*types.Dataset, error) {
	if err := s.requireOrganization(ctx, orgID); err != nil {
		return nil, err
	}

	ds := &types.Dataset{
		Groups:    []types.GroupDefaults{},
		Processes: []types.Process{},
	}

	groupRows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM process_groups WHERE organization_id = ? ORDER BY position`, orgID)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer groupRows.Close()
	for groupRows.Next() {
		var payload string
		if err := groupRows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		var g types.GroupDefaults
		if err := json.Unmarshal([]byte(payload), &g); err != nil {
			return nil, fmt.Errorf("decode group: %w", err)
		}
		ds.Groups = append(ds.Groups, g)
	}
	if err := groupRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}

	processRows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM processes WHERE organization_id = ? ORDER BY position`, orgID)
	if err != nil {
		return nil, fmt.Errorf("query processes: %w", err)
	}
	defer processRows.Close()
	for processRows.Next() {
		var payload string
		if err := processRows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan process: %w", err)
		}
		var p types.Process
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, fmt.Errorf("decode process: %w", err)
		}
		ds.Processes = append(ds.Processes, p)
	}
	if err := processRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate processes: %w", err)
	}

	return ds, nil
}

// SaveData replaces an organization's dataset, creating the organization on
// first save. Groups and processes without an ID are assigned a ULID. The
// stored dataset is returned.
func (s *SQLiteStore) SaveData(ctx context.Context, orgID string, ds types.Dataset) (*types.Dataset, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	out := types.Dataset{
		Groups:    make([]types.GroupDefaults, len(ds.Groups)),
		Processes: make([]types.Process, len(ds.Processes)),
	}
	copy(out.Groups, ds.Groups)
	copy(out.Processes, ds.Processes)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertOrganization(ctx, tx, orgID, now); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM process_groups WHERE organization_id = ?`, orgID); err != nil {
		return nil, fmt.Errorf("clear groups: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM processes WHERE organization_id = ?`, orgID); err != nil {
		return nil, fmt.Errorf("clear processes: %w", err)
	}

	for i := range out.Groups {
		g := &out.Groups[i]
		if g.ID == "" {
			g.ID = ulid.Make().String()
		}
		payload, err := json.Marshal(g)
		if err != nil {
			return nil, fmt.Errorf("encode group %s: %w", g.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO process_groups (organization_id, id, position, payload)
			VALUES (?, ?, ?, ?)
		`, orgID, g.ID, i, string(payload)); err != nil {
			return nil, fmt.Errorf("insert group %s: %w", g.ID, err)
		}
	}

	for i := range out.Processes {
		p := &out.Processes[i]
		if p.ID == "" {
			p.ID = ulid.Make().String()
		}
		payload, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode process %s: %w", p.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO processes (organization_id, id, name, position, payload, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, orgID, p.ID, p.Name, i, string(payload), now); err != nil {
			return nil, fmt.Errorf("insert process %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &out, nil
}

// GetCostClassification returns an organization's classification or
// ErrClassificationNotFound.
func (s *SQLiteStore) GetCostClassification(ctx context.Context, orgID string) (*types.CostClassification, error) {
	var c types.CostClassification
	if err := s.getPayload(ctx, "cost_classifications", orgID, ErrClassificationNotFound, &c); err != nil {
		return nil, err
	}
	if c.HardCosts == nil {
		c.HardCosts = []types.CostItem{}
	}
	if c.SoftCosts == nil {
		c.SoftCosts = []types.CostItem{}
	}
	return &c, nil
}

// SaveCostClassification stores an organization's classification.
func (s *SQLiteStore) SaveCostClassification(ctx context.Context, orgID string, c types.CostClassification) error {
	return s.putPayload(ctx, "cost_classifications", orgID, c)
}

// GetGlobalDefaults returns an organization's defaults or ErrDefaultsNotFound.
func (s *SQLiteStore) GetGlobalDefaults(ctx context.Context, orgID string) (*types.GlobalDefaults, error) {
	var d types.GlobalDefaults
	if err := s.getPayload(ctx, "global_defaults", orgID, ErrDefaultsNotFound, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// SaveGlobalDefaults stores an organization's defaults.
func (s *SQLiteStore) SaveGlobalDefaults(ctx context.Context, orgID string, d types.GlobalDefaults) error {
	return s.putPayload(ctx, "global_defaults", orgID, d)
}

// ListOrganizations returns every organization ordered by ID.
func (s *SQLiteStore) ListOrganizations(ctx context.Context) ([]types.Organization, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.id, o.name,
		       (SELECT COUNT(*) FROM processes p WHERE p.organization_id = o.id),
		       EXISTS (SELECT 1 FROM cost_classifications c WHERE c.organization_id = o.id)
		FROM organizations o
		ORDER BY o.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query organizations: %w", err)
	}
	defer rows.Close()

	orgs := []types.Organization{}
	for rows.Next() {
		var o types.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.ProcessCount, &o.HasCostClasses); err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

// GetStats returns aggregate store statistics
func (s *SQLiteStore) GetStats(ctx context.Context) (*types.StoreStats, error) {
	stats := &types.StoreStats{}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM organizations`).Scan(&stats.Organizations); err != nil {
		return nil, fmt.Errorf("count organizations: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM processes`).Scan(&stats.Processes); err != nil {
		return nil, fmt.Errorf("count processes: %w", err)
	}

	var last sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(updated_at) FROM organizations`).Scan(&last); err != nil {
		return nil, fmt.Errorf("last save: %w", err)
	}
	if last.Valid {
		if t, err := time.Parse(time.RFC3339Nano, last.String); err == nil {
			stats.LastSavedAt = &t
		}
	}
	return stats, nil
}

func (s *SQLiteStore) requireOrganization(ctx context.Context, orgID string) error {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM organizations WHERE id = ?`, orgID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", orgID, ErrOrganizationNotFound)
	}
	if err != nil {
		return fmt.Errorf("lookup organization: %w", err)
	}
	return nil
}

// getPayload reads a per-organization JSON payload from table. table is
// always a package constant.
func (s *SQLiteStore) getPayload(ctx context.Context, table, orgID string, notFound error, dst any) error {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM `+table+` WHERE organization_id = ?`, orgID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", orgID, notFound)
	}
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	if err := json.Unmarshal([]byte(payload), dst); err != nil {
		return fmt.Errorf("decode %s: %w", table, err)
	}
	return nil
}

func (s *SQLiteStore) putPayload(ctx context.Context, table, orgID string, v any) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", table, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertOrganization(ctx, tx, orgID, now); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO `+table+` (organization_id, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(organization_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`, orgID, string(payload), now); err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	return tx.Commit()
}

func upsertOrganization(ctx context.Context, tx *sql.Tx, orgID, now string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO organizations (id, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at
	`, orgID, now, now)
	if err != nil {
		return fmt.Errorf("upsert organization: %w", err)
	}
	return nil
}
