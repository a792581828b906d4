// Package cache provides the read-through license status cache backed by
// Redis, adapted from the savegress-platform repo's repository.RedisClient
// wrapper.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/armorclaw/license-server/internal/domain"
)

// StatusTTL is the fixed cache lifetime for a license status entry.
const StatusTTL = 300 * time.Second

// Client wraps a redis.Client for the status cache.
type Client struct {
	rdb *redis.Client
}

// NewClient parses redisURL and verifies connectivity.
func NewClient(redisURL string) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

func (c *Client) Close() error { return c.rdb.Close() }

func (c *Client) Ping(ctx context.Context) error { return c.rdb.Ping(ctx).Err() }

// StatusCacheKey derives the cache key from the raw license key string: a
// truncated hex SHA-256 digest, never the plaintext key itself.
func StatusCacheKey(licenseKey string) string {
	sum := sha256.Sum256([]byte(licenseKey))
	return "status:" + hex.EncodeToString(sum[:])[:32]
}

// GetStatus reads a cached LicenseStatus. A miss or any Redis error is
// reported as (nil, nil): the cache fails open, falling through to the
// database rather than failing the request.
func (c *Client) GetStatus(ctx context.Context, licenseKey string) (*domain.LicenseStatus, error) {
	raw, err := c.rdb.Get(ctx, StatusCacheKey(licenseKey)).Bytes()
	if err != nil {
		return nil, nil
	}
	var status domain.LicenseStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, nil
	}
	return &status, nil
}

// SetStatus populates the cache read-through, best-effort.
func (c *Client) SetStatus(ctx context.Context, licenseKey string, status *domain.LicenseStatus) {
	raw, err := json.Marshal(status)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, StatusCacheKey(licenseKey), raw, StatusTTL).Err()
}

// InvalidateStatus evicts the entry for licenseKey. Invalidation is
// best-effort: failures are swallowed, bounded by StatusTTL.
func (c *Client) InvalidateStatus(ctx context.Context, licenseKey string) {
	_ = c.rdb.Del(ctx, StatusCacheKey(licenseKey)).Err()
}

// InvalidateStatusByHash evicts by a precomputed key_hash, used by the
// cache-invalidation event handler, which keys on the stored key_hash of
// the LicenseKey it loads. key_hash is the SHA-256 hex of the key, so this
// hits the same entry as InvalidateStatus.
func (c *Client) InvalidateStatusByHash(ctx context.Context, keyHash string) {
	_ = c.rdb.Del(ctx, "status:"+keyHash[:min(32, len(keyHash))]).Err()
}
