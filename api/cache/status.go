package cache

import (
	"context"
	"fmt"
	"time"

	"videoConverter/api/database"
	"videoConverter/api/models"
)

const (
	statusKeyPrefix = "job:status:"
	statusTTL       = 10 * time.Minute
)

type StatusCache struct {
	cache *database.Cache
}

func NewStatusCache(cache *database.Cache) *StatusCache {
	return &StatusCache{cache: cache}
}

func (sc *StatusCache) Get(ctx context.Context, jobID string) (models.JobStatus, error) {
	key := fmt.Sprintf("%s%s", statusKeyPrefix, jobID)

	data, err := sc.cache.Get(ctx, key)
	if err != nil {
		return "", err
	}

	status := models.JobStatus(data)
	if !status.Valid() {
		return "", fmt.Errorf("unrecognized cached status %q", data)
	}
	return status, nil
}

func (sc *StatusCache) Set(ctx context.Context, jobID string, status models.JobStatus) error {
	key := fmt.Sprintf("%s%s", statusKeyPrefix, jobID)
	return sc.cache.Set(ctx, key, string(status), statusTTL)
}

func (sc *StatusCache) Delete(ctx context.Context, jobID string) error {
	key := fmt.Sprintf("%s%s", statusKeyPrefix, jobID)
	return sc.cache.Del(ctx, key)
}
