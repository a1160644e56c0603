package handler

import (
	"bufio"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/kyros-ent/reservation/internal/engine"
	"github.com/kyros-ent/reservation/internal/model"
)

// ReservationHandler adapts engine.Engine's Rsvp contract to
// HTTP/JSON, one method per resource operation.
type ReservationHandler struct {
	engine *engine.Engine
}

// NewReservationHandler wires a handler to the given engine.
func NewReservationHandler(e *engine.Engine) *ReservationHandler {
	return &ReservationHandler{engine: e}
}

// ─── wire DTOs ──────────────────────────────────────────────

type reservationDTO struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	ResourceID string    `json:"resource_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Status     string    `json:"status"`
	Note       string    `json:"note,omitempty"`
}

func toDTO(r model.Reservation) reservationDTO {
	return reservationDTO{
		ID:         r.ID,
		UserID:     r.UserID,
		ResourceID: r.ResourceID,
		Start:      r.Start,
		End:        r.End,
		Status:     r.Status.String(),
		Note:       r.Note,
	}
}

type reserveRequest struct {
	UserID     string    `json:"user_id"`
	ResourceID string    `json:"resource_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Note       string    `json:"note,omitempty"`
	Blocked    bool      `json:"blocked,omitempty"`
}

type updateNoteRequest struct {
	Note string `json:"note"`
}

type conflictBody struct {
	Error  string     `json:"error"`
	Parsed bool       `json:"parsed"`
	New    *windowDTO `json:"new,omitempty"`
	Old    *windowDTO `json:"old,omitempty"`
	Detail string     `json:"detail,omitempty"`
}

type windowDTO struct {
	ResourceID string    `json:"resource_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

type filterResponse struct {
	Pager        pagerDTO         `json:"pager"`
	Reservations []reservationDTO `json:"reservations"`
}

type pagerDTO struct {
	Prev *int64 `json:"prev,omitempty"`
	Next *int64 `json:"next,omitempty"`
}

// ─── reserve ────────────────────────────────────────────────

// Reserve handles POST /api/v1/reservations
//
// Response codes:
//   200 — Reservation created (returns the stored row with its id)
//   400 — Malformed body or failed validation
//   409 — The requested window conflicts with an existing reservation
//   500 — Unexpected storage error
func (h *ReservationHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}

	status := model.StatusPending
	if req.Blocked {
		status = model.StatusBlocked
	}
	rec := model.Reservation{
		UserID:     req.UserID,
		ResourceID: req.ResourceID,
		Start:      req.Start,
		End:        req.End,
		Note:       req.Note,
		Status:     status,
	}

	created, err := h.engine.Reserve(r.Context(), rec)
	if err != nil {
		h.writeEngineError(w, "reserve", err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(created))
}

// Confirm handles POST /api/v1/reservations/{id}/confirm, the
// adapter's name for change_status.
//
// Response codes:
//   200 — Reservation transitioned to Confirmed
//   400 — id is not a valid integer
//   404 — id does not exist, or is not currently Pending
//   500 — Unexpected storage error
func (h *ReservationHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}

	rec, err := h.engine.ChangeStatus(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, "confirm", err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(rec))
}

// Update handles PATCH /api/v1/reservations/{id}, overwriting the note.
//
// Response codes:
//   200 — Note updated
//   400 — id is not a valid integer, or the body is malformed
//   404 — id does not exist
//   500 — Unexpected storage error
func (h *ReservationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}

	var req updateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}

	rec, err := h.engine.UpdateNote(r.Context(), id, req.Note)
	if err != nil {
		h.writeEngineError(w, "update", err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(rec))
}

// Get handles GET /api/v1/reservations/{id}.
//
// Response codes:
//   200 — Reservation found
//   400 — id is not a valid integer
//   404 — id does not exist
//   500 — Unexpected storage error
func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}

	rec, err := h.engine.Get(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(rec))
}

// Delete handles DELETE /api/v1/reservations/{id}.
//
// Response codes:
//   200 — Reservation deleted (returns the row as it stood before removal)
//   400 — id is not a valid integer
//   404 — id does not exist
//   500 — Unexpected storage error
func (h *ReservationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}

	rec, err := h.engine.Delete(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, "delete", err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(rec))
}

// Cancel handles POST /api/v1/reservations/{id}/cancel. cancel is
// reserved for a future release; there is no engine operation behind
// it yet.
func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotImplemented, "not_implemented", "cancel is reserved for a future release")
}

// Query handles GET /api/v1/reservations/query and streams matches as
// newline-delimited JSON, flushing after every row so a client sees
// results as the producer emits them rather than buffered at the end.
// Disconnecting mid-stream cancels the request context, which the
// engine's pipeline observes on its next send attempt.
//
// Response codes:
//   200 — Stream opened (each line is a Reservation; a trailing line
//         with an "error" field reports a terminal engine/stream fault)
//   400 — Malformed query parameters
//   500 — The streaming transport is unsupported by this ResponseWriter
func (h *ReservationHandler) Query(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	pipe, err := h.engine.Query(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	bw := bufio.NewWriter(w)

	enc := json.NewEncoder(bw)
	for item := range pipe.Items() {
		if item.Err != nil {
			enc.Encode(map[string]string{"error": item.Err.Error()})
			break
		}
		if err := enc.Encode(toDTO(item.Reservation)); err != nil {
			log.Printf("[handler] query stream write: %v", err)
			return
		}
		bw.Flush()
		flusher.Flush()
	}
	bw.Flush()
	flusher.Flush()
}

// Filter handles GET /api/v1/reservations.
//
// Response codes:
//   200 — Page returned (possibly empty)
//   400 — Malformed filter parameters
//   500 — Unexpected storage error
func (h *ReservationHandler) Filter(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}

	pager, rows, err := h.engine.Filter(r.Context(), f)
	if err != nil {
		h.writeEngineError(w, "filter", err)
		return
	}

	dtos := make([]reservationDTO, len(rows))
	for i, rec := range rows {
		dtos[i] = toDTO(rec)
	}
	writeJSON(w, http.StatusOK, filterResponse{
		Pager:        pagerDTO{Prev: pager.Prev, Next: pager.Next},
		Reservations: dtos,
	})
}

// ─── error translation ─────────────────────────────────────

// writeEngineError maps an engine error to a response status:
// validation errors are invalid-argument (400), NotFound is 404,
// ConflictError is 409 with the parsed windows attached, and
// everything else is logged and reported as a generic 500.
func (h *ReservationHandler) writeEngineError(w http.ResponseWriter, op string, err error) {
	var conflict *engine.ConflictError
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, conflictBodyFrom(conflict))
	case errors.Is(err, engine.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "reservation not found")
	case errors.Is(err, engine.ErrInvalidReservationID),
		errors.Is(err, model.ErrInvalidUserID),
		errors.Is(err, model.ErrInvalidResourceID),
		errors.Is(err, model.ErrInvalidTime),
		errors.Is(err, model.ErrInvalidPageSize),
		errors.Is(err, model.ErrInvalidCursor),
		errors.Is(err, model.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	default:
		log.Printf("[handler] %s error: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}

func conflictBodyFrom(c *engine.ConflictError) conflictBody {
	if !c.Info.IsParsed() {
		return conflictBody{Error: "conflict", Parsed: false, Detail: c.Info.Unparsed}
	}
	p := c.Info.Parsed
	return conflictBody{
		Error:  "conflict",
		Parsed: true,
		New:    &windowDTO{ResourceID: p.New.ResourceID, Start: p.New.Start, End: p.New.End},
		Old:    &windowDTO{ResourceID: p.Old.ResourceID, Start: p.Old.Start, End: p.Old.End},
	}
}

// ─── request parsing ────────────────────────────────────────

func pathID(r *http.Request) (int64, error) {
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		return 0, errors.New("invalid id: must be an integer")
	}
	return id, nil
}

func parseQuery(r *http.Request) (model.ReservationQuery, error) {
	v := r.URL.Query()
	start, err := parseRFC3339(v.Get("start"))
	if err != nil {
		return model.ReservationQuery{}, errors.New("invalid start: " + err.Error())
	}
	end, err := parseRFC3339(v.Get("end"))
	if err != nil {
		return model.ReservationQuery{}, errors.New("invalid end: " + err.Error())
	}

	status, ok := model.ParseStatus(v.Get("status"))
	if !ok {
		return model.ReservationQuery{}, errors.New("invalid status")
	}

	return model.ReservationQuery{
		UserID:     v.Get("user_id"),
		ResourceID: v.Get("resource_id"),
		Start:      start,
		End:        end,
		Status:     status,
		Desc:       v.Get("desc") == "true",
	}, nil
}

func parseFilter(r *http.Request) (model.ReservationFilter, error) {
	v := r.URL.Query()

	f := model.ReservationFilter{
		UserID:     v.Get("user_id"),
		ResourceID: v.Get("resource_id"),
		Desc:       v.Get("desc") == "true",
	}

	if raw := v.Get("status"); raw != "" {
		status, ok := model.ParseStatus(raw)
		if !ok {
			return model.ReservationFilter{}, errors.New("invalid status")
		}
		f.Status = status
	}

	if raw := v.Get("page_size"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return model.ReservationFilter{}, errors.New("invalid page_size: must be an integer")
		}
		f.PageSize = n
	}

	if raw := v.Get("cursor"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return model.ReservationFilter{}, errors.New("invalid cursor: must be an integer")
		}
		f.Cursor = &n
	}

	return f, nil
}

func parseRFC3339(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("required")
	}
	return time.Parse(time.RFC3339, raw)
}
