package store_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kyros-ent/reservation/internal/model"
	"github.com/kyros-ent/reservation/internal/store"
)

// newTestStore connects to PG_TEST_URL and returns a Store against a
// live database, or skips the test when the variable is unset. There
// is no fixture teardown here: each test picks its own resource_id so
// rows from different tests never collide under the exclusion
// constraint. The ids and windows are fixed, so a second run against
// the same database collides with the first run's rows; each run
// expects a fresh schema.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	url := os.Getenv("PG_TEST_URL")
	if url == "" {
		t.Skip("PG_TEST_URL not set, skipping integration test")
	}

	pool, err := pgxpool.New(context.Background(), url)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	t.Cleanup(pool.Close)
	return store.New(pool)
}

func TestStore_ReserveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := model.Reservation{
		UserID:     "kyros-test",
		ResourceID: "room-reserve-and-get",
		Start:      time.Now().Add(24 * time.Hour),
		End:        time.Now().Add(48 * time.Hour),
		Status:     model.StatusPending,
		Note:       "integration test",
	}

	id, err := s.Reserve(ctx, r)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserID != r.UserID || got.ResourceID != r.ResourceID || got.Status != model.StatusPending {
		t.Errorf("Get() = %+v, want matching %+v", got, r)
	}
}

func TestStore_ReserveConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := model.Reservation{
		UserID:     "kyros-a",
		ResourceID: "room-conflict",
		Start:      time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2030, 1, 5, 0, 0, 0, 0, time.UTC),
		Status:     model.StatusPending,
	}
	if _, err := s.Reserve(ctx, base); err != nil {
		t.Fatalf("Reserve base: %v", err)
	}

	overlapping := base
	overlapping.UserID = "kyros-b"
	overlapping.Start = time.Date(2030, 1, 3, 0, 0, 0, 0, time.UTC)
	overlapping.End = time.Date(2030, 1, 8, 0, 0, 0, 0, time.UTC)

	_, err := s.Reserve(ctx, overlapping)
	if err == nil {
		t.Fatal("Reserve(overlapping) = nil error, want exclusion violation")
	}

	info, ok := store.AsConflict(err)
	if !ok {
		t.Fatalf("AsConflict(%v) ok = false, want true", err)
	}
	if !info.IsParsed() {
		t.Errorf("AsConflict() Unparsed = %q, want a parsed conflict", info.Unparsed)
	}
}

func TestStore_ChangeStatusAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Reserve(ctx, model.Reservation{
		UserID:     "kyros-c",
		ResourceID: "room-status",
		Start:      time.Date(2031, 6, 1, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2031, 6, 3, 0, 0, 0, 0, time.UTC),
		Status:     model.StatusPending,
	})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	rec, err := s.ConfirmPending(ctx, id)
	if err != nil {
		t.Fatalf("ConfirmPending: %v", err)
	}
	if rec.Status != model.StatusConfirmed {
		t.Errorf("ConfirmPending() status = %v, want Confirmed", rec.Status)
	}

	deleted, err := s.Delete(ctx, id)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted.ID != id {
		t.Errorf("Delete() id = %d, want %d", deleted.ID, id)
	}
	if _, err := s.Get(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get() after Delete = %v, want ErrNotFound", err)
	}
}

func TestStore_ConfirmPendingMonotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Reserve(ctx, model.Reservation{
		UserID:     "kyros-d",
		ResourceID: "room-monotonic",
		Start:      time.Date(2031, 7, 1, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2031, 7, 3, 0, 0, 0, 0, time.UTC),
		Status:     model.StatusPending,
	})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	if _, err := s.ConfirmPending(ctx, id); err != nil {
		t.Fatalf("first ConfirmPending: %v", err)
	}
	if _, err := s.ConfirmPending(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second ConfirmPending() = %v, want ErrNotFound", err)
	}
}

func TestStore_FilterPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, err := s.Reserve(ctx, model.Reservation{
			UserID:     "kyros-paged",
			ResourceID: "room-paged",
			Start:      time.Date(2032, 1, 2*i+1, 0, 0, 0, 0, time.UTC),
			End:        time.Date(2032, 1, 2*i+2, 0, 0, 0, 0, time.UTC),
			Status:     model.StatusConfirmed,
		})
		if err != nil {
			t.Fatalf("Reserve #%d: %v", i, err)
		}
	}

	f := model.ReservationFilter{UserID: "kyros-paged", Status: model.StatusConfirmed, PageSize: 10}
	page, err := s.FilterRows(ctx, f)
	if err != nil {
		t.Fatalf("FilterRows: %v", err)
	}
	if len(page) != 11 {
		t.Errorf("FilterRows() returned %d rows, want page_size+1 = 11", len(page))
	}
}
