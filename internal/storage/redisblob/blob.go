// Package redisblob implements the document blob store on Redis.
//
// Bytes and content type live in a hash under "pdf:<session-id>" so a single
// HGETALL fetches both. Documents have no TTL; the blob outlives the
// in-memory session state on purpose.
package redisblob

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/visatk/pdf-core/internal/metrics"
)

const keyPrefix = "pdf:"

const (
	fieldData        = "data"
	fieldContentType = "content_type"
)

// Store is a Redis-backed blob store for session documents.
type Store struct {
	rdb *redis.Client
}

// NewClient creates a go-redis client from a URL (e.g., "redis://localhost:6379")
// and verifies connectivity.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	timer := prometheus.NewTimer(metrics.StorageOpDuration.WithLabelValues("put"))
	defer timer.ObserveDuration()

	err := s.rdb.HSet(ctx, keyPrefix+key, fieldData, data, fieldContentType, contentType).Err()
	if err != nil {
		metrics.StorageOpsTotal.WithLabelValues("put", "error").Inc()
		return fmt.Errorf("failed to store document %s: %w", key, err)
	}
	metrics.StorageOpsTotal.WithLabelValues("put", "ok").Inc()
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, string, bool, error) {
	timer := prometheus.NewTimer(metrics.StorageOpDuration.WithLabelValues("get"))
	defer timer.ObserveDuration()

	values, err := s.rdb.HGetAll(ctx, keyPrefix+key).Result()
	if err != nil {
		metrics.StorageOpsTotal.WithLabelValues("get", "error").Inc()
		return nil, "", false, fmt.Errorf("failed to fetch document %s: %w", key, err)
	}
	metrics.StorageOpsTotal.WithLabelValues("get", "ok").Inc()

	data, ok := values[fieldData]
	if !ok {
		return nil, "", false, nil
	}
	return []byte(data), values[fieldContentType], true, nil
}
