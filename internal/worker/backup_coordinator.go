package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/hyperengineering/autoroi/internal/snapshot"
	"github.com/hyperengineering/autoroi/internal/store"
	"github.com/hyperengineering/autoroi/internal/types"
)

// BackupSource enumerates organizations and exports their documents.
type BackupSource interface {
	ListOrganizations(ctx context.Context) ([]types.Organization, error)
	Export(ctx context.Context, orgID string) (*snapshot.Document, error)
}

// StoreBackupSource adapts a store.Store to BackupSource.
type StoreBackupSource struct {
	store store.Store
}

// NewStoreBackupSource creates an adapter for the given store.
func NewStoreBackupSource(s store.Store) *StoreBackupSource {
	return &StoreBackupSource{store: s}
}

// ListOrganizations returns every stored organization.
func (a *StoreBackupSource) ListOrganizations(ctx context.Context) ([]types.Organization, error) {
	return a.store.ListOrganizations(ctx)
}

// Export builds the organization's backup document.
func (a *StoreBackupSource) Export(ctx context.Context, orgID string) (*snapshot.Document, error) {
	return snapshot.Export(ctx, a.store, orgID)
}

// BackupCoordinator periodically uploads each organization's dataset.
// Organizations whose content has not changed since the last successful
// upload are skipped.
type BackupCoordinator struct {
	source   BackupSource
	uploader snapshot.Uploader
	interval time.Duration

	mu       sync.Mutex
	uploaded map[string]string // org -> content hash
}

// NewBackupCoordinator creates a coordinator. A nil uploader disables
// uploads; the loop still runs so the skip is visible in logs.
func NewBackupCoordinator(source BackupSource, interval time.Duration, uploader snapshot.Uploader) *BackupCoordinator {
	if uploader == nil {
		uploader = &snapshot.NoopUploader{}
	}
	return &BackupCoordinator{
		source:   source,
		uploader: uploader,
		interval: interval,
		uploaded: make(map[string]string),
	}
}

// Run starts the coordinator loop. Backs up immediately on start, then on
// each interval, until ctx is cancelled.
func (c *BackupCoordinator) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "backup-coordinator",
		"action", "worker_started",
		"interval", c.interval.String(),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.BackupAll(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "backup-coordinator",
				"action", "worker_stopped",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			c.BackupAll(ctx)
		}
	}
}

// BackupAll runs one backup cycle and returns how many organizations were
// uploaded.
func (c *BackupCoordinator) BackupAll(ctx context.Context) int {
	orgs, err := c.source.ListOrganizations(ctx)
	if err != nil {
		slog.Error("failed to list organizations for backup",
			"component", "worker",
			"worker", "backup-coordinator",
			"action", "list_organizations_failed",
			"error", err,
		)
		return 0
	}

	var uploaded, skipped, failed int
	for _, org := range orgs {
		if ctx.Err() != nil {
			return uploaded
		}
		switch c.backupOrganization(ctx, org.ID) {
		case backupUploaded:
			uploaded++
		case backupSkipped:
			skipped++
		default:
			failed++
		}
	}

	if uploaded > 0 || failed > 0 {
		slog.Info("backup cycle completed",
			"component", "worker",
			"worker", "backup-coordinator",
			"action", "cycle_complete",
			"total", len(orgs),
			"uploaded", uploaded,
			"skipped", skipped,
			"failed", failed,
		)
	}
	return uploaded
}

type backupOutcome int

const (
	backupFailed backupOutcome = iota
	backupSkipped
	backupUploaded
)

func (c *BackupCoordinator) backupOrganization(ctx context.Context, orgID string) backupOutcome {
	doc, err := c.source.Export(ctx, orgID)
	if err != nil {
		if ctx.Err() != nil {
			return backupFailed
		}
		slog.Warn("backup export failed",
			"component", "worker",
			"worker", "backup-coordinator",
			"action", "backup_failed",
			"org_id", orgID,
			"error", err,
		)
		return backupFailed
	}

	hash, err := contentHash(doc)
	if err != nil {
		slog.Warn("backup hash failed",
			"component", "worker",
			"worker", "backup-coordinator",
			"action", "backup_failed",
			"org_id", orgID,
			"error", err,
		)
		return backupFailed
	}

	c.mu.Lock()
	unchanged := c.uploaded[orgID] == hash
	c.mu.Unlock()
	if unchanged {
		return backupSkipped
	}

	data, err := snapshot.Encode(doc)
	if err != nil {
		slog.Warn("backup encode failed",
			"component", "worker",
			"worker", "backup-coordinator",
			"action", "backup_failed",
			"org_id", orgID,
			"error", err,
		)
		return backupFailed
	}

	key, err := c.uploader.Upload(ctx, orgID, data)
	if err != nil {
		slog.Warn("backup upload failed",
			"component", "worker",
			"worker", "backup-coordinator",
			"action", "backup_upload_failed",
			"org_id", orgID,
			"error", err,
		)
		return backupFailed
	}

	c.mu.Lock()
	c.uploaded[orgID] = hash
	c.mu.Unlock()

	slog.Info("backup uploaded",
		"component", "worker",
		"worker", "backup-coordinator",
		"action", "backup_uploaded",
		"org_id", orgID,
		"key", key,
		"bytes", len(data),
	)
	return backupUploaded
}

// contentHash ignores ExportedAt so an unchanged organization hashes the
// same across cycles.
func contentHash(doc *snapshot.Document) (string, error) {
	content := *doc
	content.ExportedAt = time.Time{}
	data, err := json.Marshal(content)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
