// Package engine implements the Rsvp contract: the reservation
// lifecycle operations (reserve, confirm, update_note, get, delete,
// query, filter) that bind validation, storage, conflict translation,
// and caching into the single surface the RPC adapter calls. Every
// storage error other than a missing row (ErrNotFound) or one
// classified by store.AsConflict is wrapped as *DBError; the engine
// never retries — the caller decides.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kyros-ent/reservation/internal/cache"
	"github.com/kyros-ent/reservation/internal/model"
	"github.com/kyros-ent/reservation/internal/store"
	"github.com/kyros-ent/reservation/internal/stream"
)

// Engine-level errors. Validation errors (model.ErrInvalid*) are
// returned directly from the model and never wrapped further.
// ErrInvalidReservationID is the engine's own id check, made before any
// storage call; ErrNotFound is the storage boundary's missing-row kind.
var (
	ErrInvalidReservationID = errors.New("engine: invalid reservation id: must be nonzero")
	ErrNotFound             = errors.New("engine: reservation not found")
)

// ConflictError is returned by Reserve when the store rejects an
// insert under the reservations_no_overlap exclusion constraint. Info
// is always present; Info.IsParsed() tells the caller whether the
// conflicting windows were successfully decoded.
type ConflictError struct {
	Info model.ReservationConflictInfo
}

func (e *ConflictError) Error() string {
	if e.Info.IsParsed() {
		c := e.Info.Parsed
		return fmt.Sprintf("engine: conflict: resource %q requested [%s, %s] overlaps existing [%s, %s]",
			c.New.ResourceID, c.New.Start, c.New.End, c.Old.Start, c.Old.End)
	}
	return fmt.Sprintf("engine: conflict: %s", e.Info.Unparsed)
}

// DBError wraps any storage failure that is not a recognized
// exclusion-violation conflict. It is the catch-all "internal" kind
// from the error-handling design.
type DBError struct {
	Op  string
	Err error
}

func (e *DBError) Error() string { return fmt.Sprintf("engine: db: %s: %v", e.Op, e.Err) }
func (e *DBError) Unwrap() error { return e.Err }

// Engine binds a Store, an optional ReservationCache, and the
// conflict translator into the Rsvp contract. Cache may be nil, in
// which case Get always falls through to the store.
type Engine struct {
	store *store.Store
	cache *cache.ReservationCache
}

// New returns an Engine. cache may be nil to disable the read-through
// cache entirely.
func New(s *store.Store, c *cache.ReservationCache) *Engine {
	return &Engine{store: s, cache: c}
}

// Reserve validates and inserts r, returning the stored row with its
// assigned id. A collision with an existing Pending/Confirmed
// reservation on the same resource surfaces as *ConflictError; any
// other storage failure as *DBError.
func (e *Engine) Reserve(ctx context.Context, r model.Reservation) (model.Reservation, error) {
	r.Normalize()
	if err := r.Validate(); err != nil {
		return model.Reservation{}, err
	}

	id, err := e.store.Reserve(ctx, r)
	if err != nil {
		if info, ok := store.AsConflict(err); ok {
			log.Printf("[engine] reserve conflict: user=%s resource=%s", r.UserID, r.ResourceID)
			return model.Reservation{}, &ConflictError{Info: info}
		}
		return model.Reservation{}, &DBError{Op: "reserve", Err: err}
	}

	r.ID = id
	return r, nil
}

// ChangeStatus confirms a Pending reservation. Rejects id == 0 with
// ErrInvalidReservationID; ErrNotFound when id does not exist or is
// not currently Pending (the two are indistinguishable at this layer,
// matching the store's single conditional UPDATE).
func (e *Engine) ChangeStatus(ctx context.Context, id int64) (model.Reservation, error) {
	if id == 0 {
		return model.Reservation{}, ErrInvalidReservationID
	}

	rec, err := e.store.ConfirmPending(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Reservation{}, ErrNotFound
		}
		return model.Reservation{}, &DBError{Op: "change_status", Err: err}
	}

	e.invalidate(ctx, id)
	return rec, nil
}

// UpdateNote overwrites the note of reservation id.
func (e *Engine) UpdateNote(ctx context.Context, id int64, note string) (model.Reservation, error) {
	if id == 0 {
		return model.Reservation{}, ErrInvalidReservationID
	}

	rec, err := e.store.UpdateNote(ctx, id, note)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Reservation{}, ErrNotFound
		}
		return model.Reservation{}, &DBError{Op: "update_note", Err: err}
	}

	e.invalidate(ctx, id)
	return rec, nil
}

// Get fetches a single reservation, consulting the cache first when
// one is configured.
func (e *Engine) Get(ctx context.Context, id int64) (model.Reservation, error) {
	if id == 0 {
		return model.Reservation{}, ErrInvalidReservationID
	}

	if e.cache != nil {
		if rec, ok := e.cache.Get(ctx, id); ok {
			return rec, nil
		}
	}

	rec, err := e.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Reservation{}, ErrNotFound
		}
		return model.Reservation{}, &DBError{Op: "get", Err: err}
	}

	if e.cache != nil {
		e.cache.Set(ctx, rec)
	}
	return rec, nil
}

// Delete removes reservation id and returns the row as it stood
// before removal.
func (e *Engine) Delete(ctx context.Context, id int64) (model.Reservation, error) {
	if id == 0 {
		return model.Reservation{}, ErrInvalidReservationID
	}

	rec, err := e.store.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Reservation{}, ErrNotFound
		}
		return model.Reservation{}, &DBError{Op: "delete", Err: err}
	}

	e.invalidate(ctx, id)
	return rec, nil
}

// Query validates q and starts the streaming pipeline, returning
// immediately with the consumer-side Pipe. Row decode errors surface
// as a single stream.Item with Err set; see internal/stream.
func (e *Engine) Query(ctx context.Context, q model.ReservationQuery) (*stream.Pipe, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	pipe := stream.Run(ctx, func(ctx context.Context, yield func(model.Reservation) error) error {
		return e.store.QueryRows(ctx, q, yield)
	})
	return pipe, nil
}

// Filter normalizes and validates f, fetches one over-fetched page
// from the store, and derives the FilterPager by popping the boundary
// rows: a cursor-present fetch pops its first row into Prev, and any
// fetch whose result exceeds page_size pops its last row into Next.
func (e *Engine) Filter(ctx context.Context, f model.ReservationFilter) (model.FilterPager, []model.Reservation, error) {
	f.Normalize()
	if err := f.Validate(); err != nil {
		return model.FilterPager{}, nil, err
	}

	rows, err := e.store.FilterRows(ctx, f)
	if err != nil {
		return model.FilterPager{}, nil, &DBError{Op: "filter", Err: err}
	}

	pager, page := derivePager(f, rows)
	return pager, page, nil
}

// derivePager pops the over-fetch boundary rows described in
// ReservationFilter.Limit: when f carried a cursor, the first row of
// the fetch is the "previous page" boundary; when the fetch returned
// more than page_size rows, the last is the "next page" boundary.
// Extracted from Filter so the popping logic can be tested without a
// database.
func derivePager(f model.ReservationFilter, rows []model.Reservation) (model.FilterPager, []model.Reservation) {
	var pager model.FilterPager
	if f.Cursor != nil && len(rows) > 0 {
		prev := rows[0].ID
		pager.Prev = &prev
		rows = rows[1:]
	}
	if int64(len(rows)) > f.PageSize {
		next := rows[len(rows)-1].ID
		pager.Next = &next
		rows = rows[:len(rows)-1]
	}
	return pager, rows
}

// invalidate evicts id from the cache, if one is configured. Best
// effort: a cache unreachable for eviction just means a subsequent Get
// may briefly serve what's about to become stale, never anything
// about the exclusion-constraint-enforced invariant itself.
func (e *Engine) invalidate(ctx context.Context, id int64) {
	if e.cache == nil {
		return
	}
	invalidateCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	e.cache.Invalidate(invalidateCtx, id)
}
