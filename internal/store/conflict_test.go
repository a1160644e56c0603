package store

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestAsConflict_Parsed(t *testing.T) {
	err := &pgconn.PgError{
		Code: pgerrcode.ExclusionViolation,
		Detail: `Key (resource_id, timespan)=(ocean-view-room-417, ["2022-12-26 22:00:00+00","2022-12-30 19:00:00+00")) conflicts with existing key (resource_id, timespan)=(ocean-view-room-417, ["2022-12-25 22:00:00+00","2022-12-28 19:00:00+00")).`,
	}

	info, ok := AsConflict(err)
	if !ok {
		t.Fatalf("AsConflict() ok = false, want true")
	}
	if !info.IsParsed() {
		t.Fatalf("AsConflict() Unparsed = %q, want a parsed conflict", info.Unparsed)
	}

	wantNewStart := time.Date(2022, 12, 26, 22, 0, 0, 0, time.UTC)
	wantNewEnd := time.Date(2022, 12, 30, 19, 0, 0, 0, time.UTC)
	wantOldStart := time.Date(2022, 12, 25, 22, 0, 0, 0, time.UTC)
	wantOldEnd := time.Date(2022, 12, 28, 19, 0, 0, 0, time.UTC)

	c := info.Parsed
	if c.New.ResourceID != "ocean-view-room-417" || !c.New.Start.Equal(wantNewStart) || !c.New.End.Equal(wantNewEnd) {
		t.Errorf("New = %+v, want resource=ocean-view-room-417 [%v, %v)", c.New, wantNewStart, wantNewEnd)
	}
	if c.Old.ResourceID != "ocean-view-room-417" || !c.Old.Start.Equal(wantOldStart) || !c.Old.End.Equal(wantOldEnd) {
		t.Errorf("Old = %+v, want resource=ocean-view-room-417 [%v, %v)", c.Old, wantOldStart, wantOldEnd)
	}
}

func TestAsConflict_UnrecognizedDetail(t *testing.T) {
	err := &pgconn.PgError{
		Code:   pgerrcode.ExclusionViolation,
		Detail: "some future Postgres diagnostic format we don't understand",
	}

	info, ok := AsConflict(err)
	if !ok {
		t.Fatalf("AsConflict() ok = false, want true")
	}
	if info.IsParsed() {
		t.Fatalf("AsConflict() parsed an unrecognized detail: %+v", info.Parsed)
	}
	if info.Unparsed == "" {
		t.Errorf("AsConflict() Unparsed is empty, want the raw detail text")
	}
}

func TestAsConflict_NotExclusionViolation(t *testing.T) {
	err := &pgconn.PgError{Code: pgerrcode.UniqueViolation, Detail: "irrelevant"}
	if _, ok := AsConflict(err); ok {
		t.Errorf("AsConflict() ok = true for a non-exclusion PgError, want false")
	}
}

func TestAsConflict_NotAPgError(t *testing.T) {
	if _, ok := AsConflict(errors.New("boom")); ok {
		t.Errorf("AsConflict() ok = true for a plain error, want false")
	}
}
