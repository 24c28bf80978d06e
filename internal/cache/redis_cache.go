package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cypherlabdev/kalshi-best-bets/internal/models"
)

// ErrNotFound is returned when no snapshot is cached under a key
var ErrNotFound = errors.New("snapshot not found in cache")

const (
	latestKey      = "feed:latest"
	snapshotPrefix = "feed:snapshot:"
)

// RedisCache caches dashboard feed snapshots in Redis
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// RedisCacheConfig holds Redis cache configuration
type RedisCacheConfig struct {
	Addr     string // e.g., "localhost:6379"
	Password string
	DB       int
	TTL      time.Duration // e.g., 24 * time.Hour
}

// NewRedisCache creates a new Redis cache
func NewRedisCache(config RedisCacheConfig, logger zerolog.Logger) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	return &RedisCache{
		client: client,
		ttl:    config.TTL,
		logger: logger.With().Str("component", "redis_cache").Logger(),
	}
}

// SetSnapshot caches a snapshot as the latest and under its date
func (c *RedisCache) SetSnapshot(ctx context.Context, snapshot *models.FeedSnapshot) error {
	if snapshot == nil {
		return fmt.Errorf("nil snapshot")
	}

	// Serialize to JSON
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// Both keys in one round trip
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, latestKey, data, c.ttl)
	pipe.Set(ctx, snapshotPrefix+snapshot.Date, data, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set in Redis: %w", err)
	}

	c.logger.Debug().
		Str("run_id", snapshot.RunID.String()).
		Str("date", snapshot.Date).
		Int("markets", len(snapshot.Markets)).
		Dur("ttl", c.ttl).
		Msg("cached feed snapshot")

	return nil
}

// Latest retrieves the most recently cached snapshot
func (c *RedisCache) Latest(ctx context.Context) (*models.FeedSnapshot, error) {
	return c.get(ctx, latestKey)
}

// ByDate retrieves the snapshot cached for a run date (YYYY-MM-DD)
func (c *RedisCache) ByDate(ctx context.Context, date string) (*models.FeedSnapshot, error) {
	return c.get(ctx, snapshotPrefix+date)
}

// Dates lists cached run dates, newest first
func (c *RedisCache) Dates(ctx context.Context) ([]string, error) {
	var cursor uint64
	var dates []string

	for {
		keys, next, err := c.client.Scan(ctx, cursor, snapshotPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}
		for _, k := range keys {
			dates = append(dates, strings.TrimPrefix(k, snapshotPrefix))
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}

func (c *RedisCache) get(ctx context.Context, key string) (*models.FeedSnapshot, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get from Redis: %w", err)
	}

	// Deserialize
	var snapshot models.FeedSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}

// Ping checks Redis connection
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
