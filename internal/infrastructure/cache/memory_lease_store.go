package cache

import (
	"context"
	"time"

	"github.com/claimsync/backend/internal/domain/correspondence"
	gocache "github.com/patrickmn/go-cache"
)

// MemoryLeaseStore implements LeaseStore in process memory.
// It only coordinates runs inside one process.
type MemoryLeaseStore struct {
	cache *gocache.Cache
}

// NewMemoryLeaseStore creates an in-memory lease store. Expired leases are
// swept every cleanupInterval.
func NewMemoryLeaseStore(cleanupInterval time.Duration) *MemoryLeaseStore {
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}
	return &MemoryLeaseStore{
		cache: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

// Acquire takes the lease unless an unexpired one exists
func (s *MemoryLeaseStore) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if err := s.cache.Add(key, struct{}{}, ttl); err != nil {
		return false, nil
	}
	return true, nil
}

// Release drops the lease
func (s *MemoryLeaseStore) Release(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

// Size returns the number of live leases
func (s *MemoryLeaseStore) Size() int {
	return s.cache.ItemCount()
}

var _ correspondence.LeaseStore = (*MemoryLeaseStore)(nil)
