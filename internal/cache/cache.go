// Package cache provides an optional Redis read-through cache for the
// hot ranking-read path. A nil *SnapshotCache is valid and disables
// caching, so callers never branch on whether Redis is configured.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rankboard/internal/model"
)

const keyPrefix = "rankboard:snapshot:"

// SnapshotCache caches the latest snapshot per ranking config.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis and verifies the connection. An empty addr
// returns a nil cache, which all methods treat as a no-op.
func New(ctx context.Context, addr, password string, db int, ttl time.Duration) (*SnapshotCache, error) {
	if addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, eris.Wrap(err, "cache: redis ping")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &SnapshotCache{client: client, ttl: ttl}, nil
}

// NewWithClient wraps an existing client; used by tests.
func NewWithClient(client *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl}
}

// GetLatest returns the cached latest snapshot for a config, or
// (nil, false) on miss. Redis errors degrade to a miss.
func (c *SnapshotCache) GetLatest(ctx context.Context, configID string) ([]model.SnapshotEntry, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, keyPrefix+configID).Bytes()
	if err != nil {
		if err != redis.Nil {
			zap.L().Warn("snapshot cache read failed",
				zap.String("config", configID), zap.Error(err))
		}
		return nil, false
	}
	var entries []model.SnapshotEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		zap.L().Warn("snapshot cache entry corrupt, dropping",
			zap.String("config", configID), zap.Error(err))
		c.Invalidate(ctx, configID)
		return nil, false
	}
	return entries, true
}

// SetLatest stores the latest snapshot for a config.
func (c *SnapshotCache) SetLatest(ctx context.Context, configID string, entries []model.SnapshotEntry) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, keyPrefix+configID, raw, c.ttl).Err(); err != nil {
		zap.L().Warn("snapshot cache write failed",
			zap.String("config", configID), zap.Error(err))
	}
}

// Invalidate drops the cached snapshot for a config. Called by the syncer
// after every snapshot replace.
func (c *SnapshotCache) Invalidate(ctx context.Context, configID string) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, keyPrefix+configID).Err(); err != nil {
		zap.L().Warn("snapshot cache invalidate failed",
			zap.String("config", configID), zap.Error(err))
	}
}

// Close releases the underlying client.
func (c *SnapshotCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
