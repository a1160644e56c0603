// Package store provides PostgreSQL-backed persistence for reservations.
//
// Conflict detection relies entirely on the reservations_no_overlap
// exclusion constraint (migrations/001_create_schema.up.sql) — no
// application-level locking is needed anywhere in this package, unlike
// the pessimistic SELECT ... FOR UPDATE pattern a seat-capacity check
// would require. Every mutation here is a single conditional
// statement; the database's row-level atomicity is what gives
// ConfirmPending its "exactly one winner" guarantee under a race.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kyros-ent/reservation/internal/model"
)

// ErrNotFound is returned when a reservation id has no matching row.
var ErrNotFound = errors.New("store: reservation not found")

// Store is the PostgreSQL-backed reservation repository.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store backed by the given connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Reserve inserts r and returns the assigned id. A collision with an
// existing Pending/Confirmed reservation on the same resource surfaces
// as the raw *pgconn.PgError wrapped in the returned error; callers
// should run it through store.AsConflict.
func (s *Store) Reserve(ctx context.Context, r model.Reservation) (int64, error) {
	const q = `
		INSERT INTO reservations (user_id, resource_id, timespan, note, status)
		VALUES ($1, $2, tstzrange($3, $4, '[]'), $5, $6)
		RETURNING id
	`
	var id int64
	err := s.pool.QueryRow(ctx, q, r.UserID, r.ResourceID, r.Start, r.End, r.Note, r.Status.String()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: reserve: %w", err)
	}
	return id, nil
}

// ConfirmPending transitions reservation id from Pending to Confirmed
// and returns the row as it stood afterward. The transition is
// expressed as a single conditional UPDATE rather than a locked
// read-then-write: two concurrent confirms on the same id race at the
// database, and exactly one WHERE status = 'pending' clause matches,
// giving the "exactly one success, one NotFound" guarantee for free
// without a row lock.
func (s *Store) ConfirmPending(ctx context.Context, id int64) (model.Reservation, error) {
	const q = `
		UPDATE reservations SET status = 'confirmed'
		WHERE id = $1 AND status = 'pending'
		RETURNING id, user_id, resource_id, lower(timespan), upper(timespan), status, note
	`
	rec, err := scanReservation(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		return model.Reservation{}, fmt.Errorf("store: confirm_pending: %w", err)
	}
	return rec, nil
}

// UpdateNote overwrites the note field of reservation id.
func (s *Store) UpdateNote(ctx context.Context, id int64, note string) (model.Reservation, error) {
	const q = `
		UPDATE reservations SET note = $2
		WHERE id = $1
		RETURNING id, user_id, resource_id, lower(timespan), upper(timespan), status, note
	`
	rec, err := scanReservation(s.pool.QueryRow(ctx, q, id, note))
	if err != nil {
		return model.Reservation{}, fmt.Errorf("store: update_note: %w", err)
	}
	return rec, nil
}

// Get fetches a single reservation by id.
func (s *Store) Get(ctx context.Context, id int64) (model.Reservation, error) {
	const q = `
		SELECT id, user_id, resource_id, lower(timespan), upper(timespan), status, note
		FROM reservations WHERE id = $1
	`
	rec, err := scanReservation(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		return model.Reservation{}, fmt.Errorf("store: get: %w", err)
	}
	return rec, nil
}

// Delete removes reservation id and returns the row as it stood just
// before removal, so the caller can report what was deleted.
// ErrNotFound when id has no matching row.
func (s *Store) Delete(ctx context.Context, id int64) (model.Reservation, error) {
	const q = `
		DELETE FROM reservations WHERE id = $1
		RETURNING id, user_id, resource_id, lower(timespan), upper(timespan), status, note
	`
	rec, err := scanReservation(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		return model.Reservation{}, fmt.Errorf("store: delete: %w", err)
	}
	return rec, nil
}

// QueryRows streams every reservation matching q by invoking yield for
// each row in id order. yield's error return aborts the scan and is
// propagated to the caller; a nil return from QueryRows means every
// matching row was yielded. The pgx.Rows cursor is closed before
// QueryRows returns in all cases, so yield must not retain it.
func (s *Store) QueryRows(ctx context.Context, q model.ReservationQuery, yield func(model.Reservation) error) error {
	rows, err := s.pool.Query(ctx, `SELECT * FROM query($1, $2, $3, $4, $5, $6)`,
		q.UserID, q.ResourceID, q.Start, q.End, q.Status.String(), q.Desc)
	if err != nil {
		return fmt.Errorf("store: query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanReservationRow(rows)
		if err != nil {
			return fmt.Errorf("store: query: scan: %w", err)
		}
		if err := yield(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// FilterRows returns one page of reservations matching f. The cursor
// default (0 ascending / MaxInt64 descending) and the over-fetch
// amount (page_size, plus one to detect a next page, plus one more
// when a cursor was supplied) are computed once by
// f.CursorValue()/f.Limit() and passed to the filter() routine as
// literal values, so the arithmetic lives in exactly one place. The
// caller derives the prev/next pager from the returned slice.
func (s *Store) FilterRows(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, error) {
	rows, err := s.pool.Query(ctx, `SELECT * FROM filter($1, $2, $3, $4, $5, $6)`,
		f.UserID, f.ResourceID, f.Status.String(), f.CursorValue(), f.Desc, f.Limit())
	if err != nil {
		return nil, fmt.Errorf("store: filter: %w", err)
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		rec, err := scanReservationRow(rows)
		if err != nil {
			return nil, fmt.Errorf("store: filter: scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by both pgx.Row (QueryRow) and pgx.Rows
// (Query, via its embedded Scan), letting scanInto serve both the
// single-row (scanReservation) and cursor-scan (scanReservationRow)
// call sites.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (model.Reservation, error) {
	return scanInto(row)
}

func scanReservationRow(rows pgx.Rows) (model.Reservation, error) {
	return scanInto(rows)
}

func scanInto(row rowScanner) (model.Reservation, error) {
	var (
		r      model.Reservation
		status string
	)
	if err := row.Scan(&r.ID, &r.UserID, &r.ResourceID, &r.Start, &r.End, &status, &r.Note); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Reservation{}, ErrNotFound
		}
		return model.Reservation{}, err
	}
	st, ok := model.ParseStatus(status)
	if !ok {
		return model.Reservation{}, fmt.Errorf("unrecognized status %q", status)
	}
	r.Status = st
	return r, nil
}
