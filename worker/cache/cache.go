package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	statusKeyPrefix = "job:status:"
	statusTTL       = 10 * time.Minute
)

// StatusCache mirrors job status transitions into Redis so the front
// door can answer status polls without hitting the store.
type StatusCache struct {
	client *redis.Client
}

func NewStatusCache(client *redis.Client) *StatusCache {
	return &StatusCache{client: client}
}

func (c *StatusCache) Set(ctx context.Context, jobID string, status string) error {
	return c.client.Set(ctx, statusKeyPrefix+jobID, status, statusTTL).Err()
}

func (c *StatusCache) Get(ctx context.Context, jobID string) (string, error) {
	return c.client.Get(ctx, statusKeyPrefix+jobID).Result()
}
