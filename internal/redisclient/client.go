package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vintrade-orders/internal/models"
	"vintrade-orders/internal/util"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Client caches dashboard snapshots. The cache is advisory: a miss or a
// redis failure falls through to the SQL rollup, never to an error.
type Client struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb, logger: util.GetLogger()}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Get returns a cached dashboard snapshot, or false on miss.
func (c *Client) Get(ctx context.Context, key string) (*models.Dashboard, bool) {
	data, err := c.rdb.Get(ctx, fmt.Sprintf("dashboard:%s", key)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("Dashboard cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	var d models.Dashboard
	if err := json.Unmarshal(data, &d); err != nil {
		c.logger.Warn("Dashboard cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &d, true
}

// Set stores a dashboard snapshot with a TTL.
func (c *Client) Set(ctx context.Context, key string, d *models.Dashboard, ttl time.Duration) {
	data, err := json.Marshal(d)
	if err != nil {
		c.logger.Warn("Failed to marshal dashboard snapshot", zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, fmt.Sprintf("dashboard:%s", key), data, ttl).Err(); err != nil {
		c.logger.Warn("Dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}
