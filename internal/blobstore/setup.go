package blobstore

import (
	"context"
	"fmt"
	"log/slog"

	"docusight/internal/config"
)

// Backends accepted by BLOB_BACKEND
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Setup opens the configured backend. The s3 bucket is created if missing.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.BlobBackend {
	case BackendLocal:
		store, err := NewLocalStore(cfg.LocalBlobDir, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("blob store ready", "backend", BackendLocal, "dir", cfg.LocalBlobDir)
		return store, nil

	case BackendS3:
		store, err := NewMinioStore(S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure bucket %s: %w", cfg.S3Bucket, err)
		}
		logger.Info("blob store ready", "backend", BackendS3, "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
		return store, nil

	default:
		return nil, fmt.Errorf("unknown blob backend %q (want %q or %q)", cfg.BlobBackend, BackendLocal, BackendS3)
	}
}
