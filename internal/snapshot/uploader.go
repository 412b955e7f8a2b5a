// Package snapshot serializes organization datasets into backup documents
// and uploads them to S3-compatible storage. When no bucket is configured
// the NoopUploader is used and the system stays local-only.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/oklog/ulid/v2"

	"github.com/hyperengineering/autoroi/internal/config"
)

// ErrNotConfigured is returned when backup storage is not configured.
var ErrNotConfigured = errors.New("backup storage not configured")

// Uploader uploads backup documents and generates pre-signed download URLs.
type Uploader interface {
	// Upload stores data as the organization's latest backup and as a
	// history entry. It returns the history object key.
	Upload(ctx context.Context, orgID string, data []byte) (string, error)

	// PresignedURL returns a pre-signed URL for the latest backup.
	// Returns ErrNotConfigured when storage is not configured.
	PresignedURL(ctx context.Context, orgID string) (url string, expiry time.Time, err error)
}

// s3Client is the subset of minio.Client used by S3Uploader.
type s3Client interface {
	PutObject(ctx context.Context, bucket, objectName string, data []byte, contentType string) error
	PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error)
}

type minioClientWrapper struct {
	client *minio.Client
}

func (w *minioClientWrapper) PutObject(ctx context.Context, bucket, objectName string, data []byte, contentType string) error {
	_, err := w.client.PutObject(ctx, bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (w *minioClientWrapper) PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error) {
	return w.client.PresignedGetObject(ctx, bucket, objectName, expiry, nil)
}

// S3Uploader uploads backups to S3-compatible storage.
type S3Uploader struct {
	client    s3Client
	bucket    string
	urlExpiry time.Duration
}

// Upload implements Uploader.
func (u *S3Uploader) Upload(ctx context.Context, orgID string, data []byte) (string, error) {
	key := historyKey(orgID, ulid.Make())
	if err := u.client.PutObject(ctx, u.bucket, key, data, "application/json"); err != nil {
		return "", fmt.Errorf("upload backup to S3: %w", err)
	}
	if err := u.client.PutObject(ctx, u.bucket, latestKey(orgID), data, "application/json"); err != nil {
		return key, fmt.Errorf("update latest backup: %w", err)
	}
	return key, nil
}

// PresignedURL implements Uploader.
func (u *S3Uploader) PresignedURL(ctx context.Context, orgID string) (string, time.Time, error) {
	presigned, err := u.client.PresignedGetObject(ctx, u.bucket, latestKey(orgID), u.urlExpiry)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate pre-signed URL: %w", err)
	}
	return presigned.String(), time.Now().Add(u.urlExpiry), nil
}

// NoopUploader is used when backup storage is not configured.
type NoopUploader struct{}

// Upload is a no-op.
func (u *NoopUploader) Upload(ctx context.Context, orgID string, data []byte) (string, error) {
	return "", nil
}

// PresignedURL returns ErrNotConfigured.
func (u *NoopUploader) PresignedURL(ctx context.Context, orgID string) (string, time.Time, error) {
	return "", time.Time{}, ErrNotConfigured
}

// NewUploader returns a NoopUploader when cfg.Bucket is empty and an
// S3Uploader otherwise.
func NewUploader(cfg config.BackupConfig) (Uploader, error) {
	if cfg.Bucket == "" {
		return &NoopUploader{}, nil
	}

	useSSL := true
	if cfg.UseSSL != nil {
		useSSL = *cfg.UseSSL
	}
	endpoint := stripScheme(cfg.Endpoint, &useSSL)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	return &S3Uploader{
		client:    &minioClientWrapper{client: client},
		bucket:    cfg.Bucket,
		urlExpiry: time.Duration(cfg.URLExpiry),
	}, nil
}

// stripScheme removes an http:// or https:// prefix from endpoint, which
// minio.New rejects, and sets useSSL to match the scheme when one is given.
func stripScheme(endpoint string, useSSL *bool) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		*useSSL = true
		return strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		*useSSL = false
		return strings.TrimPrefix(endpoint, "http://")
	default:
		return endpoint
	}
}

// Key layout: {org}/backups/latest.json and {org}/backups/{ulid}.json.
func latestKey(orgID string) string {
	return orgID + "/backups/latest.json"
}

func historyKey(orgID string, id ulid.ULID) string {
	return orgID + "/backups/" + strings.ToLower(id.String()) + ".json"
}
