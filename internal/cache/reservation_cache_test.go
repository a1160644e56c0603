package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kyros-ent/reservation/internal/cache"
	"github.com/kyros-ent/reservation/internal/model"
)

func newTestCache(t *testing.T) *cache.ReservationCache {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set, skipping integration test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	return cache.New(client, time.Minute)
}

func TestReservationCache_SetGetInvalidate(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	r := model.Reservation{ID: 42, UserID: "kyros", ResourceID: "room-1", Status: model.StatusPending}

	if _, ok := c.Get(ctx, r.ID); ok {
		t.Fatal("Get() on empty cache returned ok=true")
	}

	c.Set(ctx, r)

	got, ok := c.Get(ctx, r.ID)
	if !ok {
		t.Fatal("Get() after Set returned ok=false")
	}
	if got.UserID != r.UserID || got.ResourceID != r.ResourceID {
		t.Errorf("Get() = %+v, want %+v", got, r)
	}

	c.Invalidate(ctx, r.ID)
	if _, ok := c.Get(ctx, r.ID); ok {
		t.Error("Get() after Invalidate returned ok=true")
	}
}
