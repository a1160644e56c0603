package store

import (
	"errors"
	"regexp"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kyros-ent/reservation/internal/model"
)

// conflictDetail matches the Detail text Postgres attaches to an
// exclusion-violation diagnostic for the reservations_no_overlap
// constraint, e.g.:
//
//	Key (resource_id, timespan)=(ocean-view-room-417, ["2022-12-26 22:00:00+00","2022-12-30 19:00:00+00")) conflicts with
//	existing key (resource_id, timespan)=(ocean-view-room-417, ["2022-12-25 22:00:00+00","2022-12-28 19:00:00+00")).
//
// The range literal itself is captured whole and decoded separately
// by timestampsIn, rather than threaded through one giant pattern —
// Postgres varies the range's bracket characters ('[' / '(') by
// bound inclusivity, which a single regex would otherwise have to
// special-case.
var conflictDetail = regexp.MustCompile(
	`^Key \(resource_id, timespan\)=\(([^,]+), (.+?)\) conflicts with existing key \(resource_id, timespan\)=\(([^,]+), (.+?)\)\.?$`,
)

var quotedTimestamp = regexp.MustCompile(`"([^"]+)"`)

const pgTimeLayout = "2006-01-02 15:04:05-07"

// AsConflict inspects err for a Postgres exclusion-violation on the
// reservations table and, if found, returns the parsed or unparsed
// conflict description. The second return is false for any other
// error (including non-exclusion Postgres errors), signaling the
// caller to surface the error as a plain storage failure instead.
func AsConflict(err error) (model.ReservationConflictInfo, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.ExclusionViolation {
		return model.ReservationConflictInfo{}, false
	}

	conflict, ok := parseConflictDetail(pgErr.Detail)
	if !ok {
		return model.ReservationConflictInfo{Unparsed: pgErr.Detail}, true
	}
	return model.ReservationConflictInfo{Parsed: conflict}, true
}

// parseConflictDetail decodes the free-form Detail string into a
// typed ReservationConflict. This is the only place the engine
// inspects raw storage error text; if the diagnostic format changes
// between Postgres versions, this is the single function to update.
func parseConflictDetail(detail string) (*model.ReservationConflict, bool) {
	m := conflictDetail.FindStringSubmatch(detail)
	if m == nil {
		return nil, false
	}

	newWindow, ok := parseWindow(m[1], m[2])
	if !ok {
		return nil, false
	}
	oldWindow, ok := parseWindow(m[3], m[4])
	if !ok {
		return nil, false
	}

	return &model.ReservationConflict{New: newWindow, Old: oldWindow}, true
}

// parseWindow decodes a resource id and its accompanying tstzrange
// literal (e.g. `["2022-12-26 22:00:00+00","2022-12-30 19:00:00+00")`)
// into a ReservationWindow.
func parseWindow(resourceID, rangeLiteral string) (model.ReservationWindow, bool) {
	bounds := quotedTimestamp.FindAllStringSubmatch(rangeLiteral, 2)
	if len(bounds) != 2 {
		return model.ReservationWindow{}, false
	}

	start, err := time.Parse(pgTimeLayout, bounds[0][1])
	if err != nil {
		return model.ReservationWindow{}, false
	}
	end, err := time.Parse(pgTimeLayout, bounds[1][1])
	if err != nil {
		return model.ReservationWindow{}, false
	}

	return model.ReservationWindow{ResourceID: resourceID, Start: start.UTC(), End: end.UTC()}, true
}
