package cache

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/claimsync/backend/internal/domain/correspondence"
	"github.com/claimsync/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Lease backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// NewLeaseStore creates the lease store named by backend. The returned
// closer releases the backend's connections.
func NewLeaseStore(ctx context.Context, backend string, redisCfg config.RedisConfig, logger *zap.Logger) (correspondence.LeaseStore, io.Closer, error) {
	switch strings.ToLower(backend) {
	case "", BackendMemory:
		logger.Info("Using in-memory message leases")
		return NewMemoryLeaseStore(0), io.NopCloser(nil), nil
	case BackendRedis:
		store, err := NewRedisLeaseStore(ctx, redisCfg)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using Redis message leases", zap.String("addr", redisCfg.Addr()))
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown lease backend %q", backend)
	}
}
