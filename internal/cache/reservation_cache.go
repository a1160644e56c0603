// Package cache provides a Redis-backed read-through cache for
// single-reservation lookups: check Redis first, on miss fall through
// to the store and populate the cache, and explicitly invalidate on
// every mutation. It is never consulted for conflict detection — the
// exclusion constraint is the only source of truth for overlap.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kyros-ent/reservation/internal/model"
)

const keyPrefix = "reservation:"

// ReservationCache wraps a redis.Client with the get/invalidate
// operations the engine needs around Store.Get.
type ReservationCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New returns a ReservationCache with entries expiring after ttl.
func New(client *redis.Client, ttl time.Duration) *ReservationCache {
	return &ReservationCache{client: client, ttl: ttl}
}

func key(id int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, id)
}

// Get returns the cached reservation for id, or ok=false on a cache
// miss or any Redis error — a cache failure is never fatal to the
// caller, it just means the store is consulted instead.
func (c *ReservationCache) Get(ctx context.Context, id int64) (model.Reservation, bool) {
	raw, err := c.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		return model.Reservation{}, false
	}

	var r model.Reservation
	if err := json.Unmarshal(raw, &r); err != nil {
		return model.Reservation{}, false
	}
	return r, true
}

// Set populates the cache entry for r.ID. Errors are swallowed
// (fire-and-forget) — a failed cache write just means the next Get is
// a miss.
func (c *ReservationCache) Set(ctx context.Context, r model.Reservation) {
	raw, err := json.Marshal(r)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key(r.ID), raw, c.ttl).Err()
}

// Invalidate evicts the cache entry for id. Called after
// update_note, change_status, and delete so a stale row is never
// served from cache after a mutation.
func (c *ReservationCache) Invalidate(ctx context.Context, id int64) {
	_ = c.client.Del(ctx, key(id)).Err()
}
