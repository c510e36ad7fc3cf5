package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/claimsync/backend/internal/domain/correspondence"
	"github.com/claimsync/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Storage backends
const (
	BackendS3    = "s3"
	BackendLocal = "local"
)

// NewDocumentStore creates the store named by cfg.Backend. The S3 bucket is
// created when missing.
func NewDocumentStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (correspondence.DocumentStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendLocal:
		logger.Info("Using local document storage", zap.String("dir", cfg.LocalDir))
		return NewLocalStore(cfg.LocalDir)
	case BackendS3:
		store, err := NewS3Store(ctx, &cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		logger.Info("Using S3 document storage", zap.String("bucket", store.Bucket()))
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
