package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/safar/go-sql-shop/internal/models"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestRedisMatrixCache_RoundTrip(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	c := NewRedisMatrixCache(client, "shop-test", time.Minute)

	const comparisonID, version = 987654, 3
	if err := c.Invalidate(ctx, comparisonID, version); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok, err := c.Get(ctx, comparisonID, version); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	unit := "GB"
	matrix := &models.ComparisonMatrix{
		Comparison: models.Comparison{ID: comparisonID, UserID: 1, Name: "Laptops", ItemIDs: []int64{1, 2}, Version: version},
		Items: []models.MatrixItem{
			{ID: 1, Name: "A", Price: 100, Specifications: map[string]models.MatrixCell{"RAM": {Value: "16", Unit: &unit}}},
			{ID: 2, Name: "B", Price: 200, Specifications: map[string]models.MatrixCell{}},
		},
		Table: []models.MatrixRow{
			{Attribute: "RAM", Cells: []models.MatrixCell{{Value: "16", Unit: &unit}, {Value: models.NotApplicable}}},
		},
	}

	if err := c.Set(ctx, matrix); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok, err := c.Get(ctx, comparisonID, version)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.Comparison.Name != "Laptops" || len(got.Table) != 1 {
		t.Errorf("unexpected matrix: %+v", got)
	}
	if cell := got.Table[0].Cells[1]; cell.Value != models.NotApplicable || cell.Unit != nil {
		t.Errorf("expected not applicable cell, got %+v", cell)
	}

	ttl := client.TTL(ctx, "shop-test:comparison-matrix:987654:v3").Val()
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("expected ttl within a minute, got %v", ttl)
	}

	if _, ok, err := c.Get(ctx, comparisonID, version+1); err != nil || ok {
		t.Errorf("expected miss for a newer version, got ok=%v err=%v", ok, err)
	}

	if err := c.Invalidate(ctx, comparisonID, version); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, _ := c.Get(ctx, comparisonID, version); ok {
		t.Error("expected miss after invalidation")
	}
}

func TestNop(t *testing.T) {
	var c MatrixCache = Nop{}
	ctx := context.Background()

	if err := c.Set(ctx, &models.ComparisonMatrix{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, err := c.Get(ctx, 1, 1); ok || err != nil {
		t.Errorf("Nop should always miss, got ok=%v err=%v", ok, err)
	}
	if err := c.Invalidate(ctx, 1, 1); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
