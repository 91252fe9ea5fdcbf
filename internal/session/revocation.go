package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"lmsgate/pkg/platform/sentinel"
)

// Redis key prefix for revoked token ids. Shared with the identity service,
// which writes the entries.
const revokedTokenKeyPrefix = "trl:jti:"

// RedisRevocationList is a Redis-backed RevocationList for deployments where
// several instances share revocation state.
type RedisRevocationList struct {
	client *redis.Client
}

// NewRedisRevocationList constructs a Redis-backed revocation list.
func NewRedisRevocationList(client *redis.Client) *RedisRevocationList {
	return &RedisRevocationList{client: client}
}

// Revoke adds a token id to the list until ttl elapses.
func (l *RedisRevocationList) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	return l.client.Set(ctx, revokedTokenKeyPrefix+tokenID, "1", ttl).Err()
}

// IsRevoked checks if a token id is on the list.
// A missing key means not revoked (or expired out of the list).
func (l *RedisRevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	_, err := l.client.Get(ctx, revokedTokenKeyPrefix+tokenID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	return true, nil
}

// MemoryRevocationList is a process-local RevocationList for single-instance
// and test setups.
type MemoryRevocationList struct {
	entries *gocache.Cache
}

// NewMemoryRevocationList creates an empty list; expired entries are purged every minute.
func NewMemoryRevocationList() *MemoryRevocationList {
	return &MemoryRevocationList{entries: gocache.New(gocache.NoExpiration, time.Minute)}
}

// Revoke adds a token id to the list until ttl elapses.
func (l *MemoryRevocationList) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	l.entries.Set(tokenID, struct{}{}, ttl)
	return nil
}

// IsRevoked checks if a token id is on the list.
func (l *MemoryRevocationList) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	_, found := l.entries.Get(tokenID)
	return found, nil
}

func validateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive: %w", sentinel.ErrInvalidState)
	}
	return nil
}
