package handler

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/kyros-ent/reservation/internal/engine"
	"github.com/kyros-ent/reservation/internal/model"
)

func TestParseFilter_Defaults(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/reservations?user_id=alice", nil)
	f, err := parseFilter(req)
	if err != nil {
		t.Fatalf("parseFilter: %v", err)
	}
	if f.UserID != "alice" {
		t.Errorf("UserID = %q, want alice", f.UserID)
	}
	if f.PageSize != 0 {
		t.Errorf("PageSize = %d, want 0 before Normalize", f.PageSize)
	}
	if f.Cursor != nil {
		t.Errorf("Cursor = %v, want nil", f.Cursor)
	}
}

func TestParseFilter_InvalidPageSize(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/reservations?page_size=abc", nil)
	if _, err := parseFilter(req); err == nil {
		t.Fatal("parseFilter() = nil error, want a page_size parse error")
	}
}

func TestParseFilter_InvalidStatus(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/reservations?status=archived", nil)
	if _, err := parseFilter(req); err == nil {
		t.Fatal("parseFilter() = nil error, want an invalid status error")
	}
}

func TestParseQuery_RequiresWindow(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/reservations/query", nil)
	if _, err := parseQuery(req); err == nil {
		t.Fatal("parseQuery() = nil error, want a missing start error")
	}
}

func TestParseQuery_Valid(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/reservations/query?start=2022-12-25T22:00:00Z&end=2022-12-28T19:00:00Z&desc=true", nil)
	q, err := parseQuery(req)
	if err != nil {
		t.Fatalf("parseQuery: %v", err)
	}
	if !q.Desc {
		t.Error("Desc = false, want true")
	}
	if !q.Start.Equal(time.Date(2022, 12, 25, 22, 0, 0, 0, time.UTC)) {
		t.Errorf("Start = %v, want 2022-12-25T22:00:00Z", q.Start)
	}
}

func TestPathID(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/reservations/42", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "42"})
	id, err := pathID(req)
	if err != nil {
		t.Fatalf("pathID: %v", err)
	}
	if id != 42 {
		t.Errorf("pathID() = %d, want 42", id)
	}
}

func TestPathID_NotAnInteger(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/reservations/oops", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "oops"})
	if _, err := pathID(req); err == nil {
		t.Fatal("pathID() = nil error, want a parse error")
	}
}

func TestConflictBodyFrom_Parsed(t *testing.T) {
	c := &engine.ConflictError{Info: model.ReservationConflictInfo{
		Parsed: &model.ReservationConflict{
			New: model.ReservationWindow{ResourceID: "room-417", Start: time.Now(), End: time.Now()},
			Old: model.ReservationWindow{ResourceID: "room-417", Start: time.Now(), End: time.Now()},
		},
	}}
	body := conflictBodyFrom(c)
	if !body.Parsed || body.New == nil || body.Old == nil {
		t.Errorf("conflictBodyFrom(parsed) = %+v, want Parsed=true with New/Old set", body)
	}
}

func TestConflictBodyFrom_Unparsed(t *testing.T) {
	c := &engine.ConflictError{Info: model.ReservationConflictInfo{Unparsed: "raw detail text"}}
	body := conflictBodyFrom(c)
	if body.Parsed || body.Detail != "raw detail text" {
		t.Errorf("conflictBodyFrom(unparsed) = %+v, want Parsed=false with Detail set", body)
	}
}
