// Package cache puts a redis read-through cache in front of a branch dataset source.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"asset-lookup-bot/internal/common/logger"
	"asset-lookup-bot/internal/common/metrics"
	"asset-lookup-bot/internal/models"
)

const keyPrefix = "lookup:dataset:"

// Source is the wrapped branch dataset source.
type Source interface {
	FetchTable(ctx context.Context, branch string) (*models.Table, error)
}

// DatasetCache serves tables from redis while fresh and refills from the wrapped source
// on a miss. Redis failures degrade to a direct fetch; source errors are never cached.
type DatasetCache struct {
	client redis.Cmdable
	next   Source
	ttl    time.Duration
	logger logger.Logger
}

func New(client redis.Cmdable, next Source, ttl time.Duration, log logger.Logger) *DatasetCache {
	return &DatasetCache{
		client: client,
		next:   next,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "dataset-cache"}),
	}
}

func Key(branch string) string {
	return keyPrefix + branch
}

func (c *DatasetCache) FetchTable(ctx context.Context, branch string) (*models.Table, error) {
	key := Key(branch)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var table models.Table
		if jsonErr := json.Unmarshal(raw, &table); jsonErr == nil {
			metrics.SourceFetches.WithLabelValues("cache", metrics.ResultOK).Inc()
			return &table, nil
		}
		c.logger.Warn("discarding undecodable cache entry", map[string]interface{}{"key": key})
	case errors.Is(err, redis.Nil):
	default:
		metrics.SourceFetches.WithLabelValues("cache", metrics.ResultError).Inc()
		c.logger.Warn("cache read failed", map[string]interface{}{"key": key, "error": err})
	}

	table, err := c.next.FetchTable(ctx, branch)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(table)
	if err != nil {
		return table, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err})
	}
	return table, nil
}

// Evict removes a branch's cached table.
func (c *DatasetCache) Evict(ctx context.Context, branch string) error {
	return c.client.Del(ctx, Key(branch)).Err()
}
