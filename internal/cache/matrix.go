// Package cache stores built comparison matrices in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/safar/go-sql-shop/internal/models"
)

// MatrixCache is consulted before a comparison matrix is rebuilt. Entries are
// keyed by comparison id and version, so a matrix built from an older item
// set can never be served for a newer one.
type MatrixCache interface {
	Get(ctx context.Context, comparisonID, version int64) (*models.ComparisonMatrix, bool, error)
	Set(ctx context.Context, matrix *models.ComparisonMatrix) error
	Invalidate(ctx context.Context, comparisonID, version int64) error
}

type redisMatrixCache struct {
	client      redis.UniversalClient
	serviceName string
	ttl         time.Duration
}

func NewRedisMatrixCache(client redis.UniversalClient, serviceName string, ttl time.Duration) MatrixCache {
	return &redisMatrixCache{
		client:      client,
		serviceName: serviceName,
		ttl:         ttl,
	}
}

func (r *redisMatrixCache) GenerateKey(operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", r.serviceName, operation, key)
}

func (r *redisMatrixCache) key(comparisonID, version int64) string {
	return r.GenerateKey("comparison-matrix",
		strconv.FormatInt(comparisonID, 10)+":v"+strconv.FormatInt(version, 10))
}

func (r *redisMatrixCache) Get(ctx context.Context, comparisonID, version int64) (*models.ComparisonMatrix, bool, error) {
	raw, err := r.client.Get(ctx, r.key(comparisonID, version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached matrix: %w", err)
	}

	var matrix models.ComparisonMatrix
	if err := json.Unmarshal(raw, &matrix); err != nil {
		return nil, false, fmt.Errorf("decode cached matrix: %w", err)
	}
	return &matrix, true, nil
}

func (r *redisMatrixCache) Set(ctx context.Context, matrix *models.ComparisonMatrix) error {
	raw, err := json.Marshal(matrix)
	if err != nil {
		return fmt.Errorf("encode matrix: %w", err)
	}
	if err := r.client.Set(ctx, r.key(matrix.Comparison.ID, matrix.Comparison.Version), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache matrix: %w", err)
	}
	return nil
}

// Invalidate drops the entry for a superseded version. Newer versions use
// new keys, so this only frees memory ahead of the TTL.
func (r *redisMatrixCache) Invalidate(ctx context.Context, comparisonID, version int64) error {
	if err := r.client.Del(ctx, r.key(comparisonID, version)).Err(); err != nil {
		return fmt.Errorf("invalidate matrix: %w", err)
	}
	return nil
}

// Nop never stores anything. It stands in when Redis is not configured.
type Nop struct{}

func (Nop) Get(context.Context, int64, int64) (*models.ComparisonMatrix, bool, error) {
	return nil, false, nil
}
func (Nop) Set(context.Context, *models.ComparisonMatrix) error { return nil }
func (Nop) Invalidate(context.Context, int64, int64) error      { return nil }
