package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates and pings a Redis client with optional password auth.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}

// ViewCounter counts listing page views in Redis.
type ViewCounter struct {
	rdb redis.Cmdable
}

func NewViewCounter(rdb redis.Cmdable) *ViewCounter {
	return &ViewCounter{rdb: rdb}
}

func viewKey(listingID string) string {
	return "listing:views:" + listingID
}

// Increment adds one view and returns the new total.
func (c *ViewCounter) Increment(ctx context.Context, listingID string) (int64, error) {
	n, err := c.rdb.Incr(ctx, viewKey(listingID)).Result()
	if err != nil {
		return 0, fmt.Errorf("incr views: %w", err)
	}
	return n, nil
}

// Count returns the number of recorded views, zero if none.
func (c *ViewCounter) Count(ctx context.Context, listingID string) (int64, error) {
	n, err := c.rdb.Get(ctx, viewKey(listingID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get views: %w", err)
	}
	return n, nil
}

// Reset drops the counter of a deleted listing.
func (c *ViewCounter) Reset(ctx context.Context, listingID string) error {
	return c.rdb.Del(ctx, viewKey(listingID)).Err()
}
