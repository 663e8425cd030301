// Package cache keeps ranked leaderboard snapshots in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/projectsentinel/apiserver/config"
	"github.com/projectsentinel/apiserver/types"
)

const (
	leaderboardKey  = "sentinel:leaderboard"
	versionKey      = leaderboardKey + ":version"
	defaultTTL      = time.Minute
	defaultPoolSize = 20
	pingTimeout     = 5 * time.Second
)

// LeaderboardCache stores the ranked leaderboard as one JSON document per
// generation. Invalidate starts a new generation, so a snapshot loaded
// before an invalidation is written under a key no reader asks for.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLeaderboardCache wraps an existing client.
func NewLeaderboardCache(client *redis.Client, ttl time.Duration) *LeaderboardCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &LeaderboardCache{client: client, ttl: ttl}
}

// Open connects to Redis. It returns nil without error when no address
// is configured.
func Open(ctx context.Context, cfg config.RedisConfig) (*LeaderboardCache, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: defaultPoolSize,
	})

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewLeaderboardCache(client, cfg.TTL), nil
}

// Get returns the cached leaderboard of the current generation along with
// that generation. ok is false on a cache miss.
func (c *LeaderboardCache) Get(ctx context.Context) ([]types.LeaderboardEntry, int64, bool, error) {
	version, err := c.client.Get(ctx, versionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, err
	}

	data, err := c.client.Get(ctx, snapshotKey(version)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, version, false, nil
		}
		return nil, version, false, err
	}
	var entries []types.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, version, false, fmt.Errorf("decode cached leaderboard: %w", err)
	}
	return entries, version, true, nil
}

// Set stores entries for the given generation.
func (c *LeaderboardCache) Set(ctx context.Context, version int64, entries []types.LeaderboardEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, snapshotKey(version), data, c.ttl).Err()
}

func (c *LeaderboardCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, versionKey).Err()
}

func (c *LeaderboardCache) Close() error {
	return c.client.Close()
}

func snapshotKey(version int64) string {
	return fmt.Sprintf("%s:v%d", leaderboardKey, version)
}
