package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/claimsync/backend/internal/domain/correspondence"
	"github.com/claimsync/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token, so a
// lease that expired and was taken by another run is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLeaseStore implements LeaseStore with SET NX PX so runs in
// different processes skip each other's messages
type RedisLeaseStore struct {
	client *redis.Client
	owner  string
}

// NewRedisLeaseStore connects to Redis and verifies the connection
func NewRedisLeaseStore(ctx context.Context, cfg config.RedisConfig) (*RedisLeaseStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisLeaseStoreWithClient(client), nil
}

// NewRedisLeaseStoreWithClient wraps an existing client
func NewRedisLeaseStoreWithClient(client *redis.Client) *RedisLeaseStore {
	return &RedisLeaseStore{client: client, owner: uuid.NewString()}
}

// Acquire sets key if it does not exist
func (s *RedisLeaseStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, s.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}
	return ok, nil
}

// Release deletes key if this store still owns it
func (s *RedisLeaseStore) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, s.client, []string{key}, s.owner).Err(); err != nil {
		return fmt.Errorf("failed to release lease %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisLeaseStore) Close() error {
	return s.client.Close()
}

var _ correspondence.LeaseStore = (*RedisLeaseStore)(nil)
