// Package tablestate holds the legal transitions of a single Table record.
// Every function mutates its argument only when it returns a nil error.
package tablestate

import (
	"strings"
	"time"

	"github.com/iliyamo/venue-table-reservation/internal/model"
)

// Occupant is everything a booking seats at a table. Contact comes from the
// resolved identity, never from the caller's request.
type Occupant struct {
	Contact    model.Contact
	UserID     string
	NrOfGuests int64
	TableLimit int64
	TableSpent int64
	TimeFrom   string
	TimeTo     string
	Comment    string
}

// Book seats o at an empty table.
func Book(t *model.Table, o Occupant, actor string, now time.Time) error {
	if !t.IsTable() {
		return &InvalidError{Field: "tableName", Reason: "item is not a table"}
	}
	if t.Occupied() {
		return &OccupiedError{Occupant: t.GuestName}
	}
	if strings.TrimSpace(o.Contact.Name) == "" {
		return &InvalidError{Field: "guestName", Reason: "is required"}
	}
	if o.NrOfGuests < 1 {
		return &InvalidError{Field: "nrOfGuests", Reason: "must be at least 1"}
	}
	if o.TableLimit < 0 {
		return &InvalidError{Field: "tableLimit", Reason: "must not be negative"}
	}
	if o.TableSpent < 0 {
		return &InvalidError{Field: "tableSpent", Reason: "must not be negative"}
	}

	before := *t
	t.SetBooking(model.Booking{
		GuestName:       o.Contact.Name,
		PhoneNumber:     o.Contact.PhoneNumber,
		PhoneNumberE164: o.Contact.PhoneNumberE164,
		Email:           o.Contact.Email,
		NrOfGuests:      o.NrOfGuests,
		TableLimit:      o.TableLimit,
		TableSpent:      o.TableSpent,
		TimeFrom:        o.TimeFrom,
		TimeTo:          o.TimeTo,
		Comment:         o.Comment,
		BookedBy:        actor,
		UserID:          o.UserID,
	})
	appendLog(t, model.LogEntry{Action: model.ActionBooked, Actor: actor, Timestamp: now, Changes: diff(&before, t)})
	return nil
}

// FieldUpdate carries the fields an update wants to set; nil means absent.
type FieldUpdate struct {
	GuestName       *string
	PhoneNumber     *string
	PhoneNumberE164 *string
	Email           *string
	NrOfGuests      *int64
	TableLimit      *int64
	TableSpent      *int64
	TableCheckedIn  *int64
	TimeFrom        *string
	TimeTo          *string
	Comment         *string
	TableStaff      *string
}

// touchesOccupancy reports whether u sets anything besides TableStaff.
func (u FieldUpdate) touchesOccupancy() bool {
	return u.GuestName != nil || u.PhoneNumber != nil || u.PhoneNumberE164 != nil ||
		u.Email != nil || u.NrOfGuests != nil || u.TableLimit != nil ||
		u.TableSpent != nil || u.TableCheckedIn != nil || u.TimeFrom != nil ||
		u.TimeTo != nil || u.Comment != nil
}

// UpdateFields applies the fields of u that differ from t and appends one
// "updated" log entry holding the diff. An update that changes nothing
// returns an empty diff and leaves t, including its logs, untouched.
// Staff can be assigned to an empty table; occupancy fields cannot.
func UpdateFields(t *model.Table, u FieldUpdate, actor string, now time.Time) (map[string]model.Change, error) {
	if !t.IsTable() {
		return nil, &InvalidError{Field: "tableName", Reason: "item is not a table"}
	}
	if u.touchesOccupancy() && !t.Occupied() {
		return nil, ErrNotOccupied
	}
	if u.GuestName != nil && strings.TrimSpace(*u.GuestName) == "" {
		return nil, &InvalidError{Field: "guestName", Reason: "cannot be blank, cancel the reservation instead"}
	}
	for _, n := range []struct {
		name string
		v    *int64
	}{
		{"nrOfGuests", u.NrOfGuests},
		{"tableLimit", u.TableLimit},
		{"tableSpent", u.TableSpent},
		{"tableCheckedIn", u.TableCheckedIn},
	} {
		if n.v != nil && *n.v < 0 {
			return nil, &InvalidError{Field: n.name, Reason: "must not be negative"}
		}
	}
	if u.NrOfGuests != nil && *u.NrOfGuests < 1 {
		return nil, &InvalidError{Field: "nrOfGuests", Reason: "must be at least 1"}
	}

	next := *t
	setStr(&next.GuestName, u.GuestName)
	setStr(&next.PhoneNumber, u.PhoneNumber)
	setStr(&next.PhoneNumberE164, u.PhoneNumberE164)
	setStr(&next.Email, u.Email)
	setNum(&next.NrOfGuests, u.NrOfGuests)
	setNum(&next.TableLimit, u.TableLimit)
	setNum(&next.TableSpent, u.TableSpent)
	setNum(&next.TableCheckedIn, u.TableCheckedIn)
	setStr(&next.TimeFrom, u.TimeFrom)
	setStr(&next.TimeTo, u.TimeTo)
	setStr(&next.Comment, u.Comment)
	setStr(&next.TableStaff, u.TableStaff)

	changes := diff(t, &next)
	if len(changes) == 0 {
		return changes, nil
	}
	*t = next
	appendLog(t, model.LogEntry{Action: model.ActionUpdated, Actor: actor, Timestamp: now, Changes: changes})
	return changes, nil
}

// Cancel clears the booking and returns what was removed.
func Cancel(t *model.Table, actor string, now time.Time) (model.Booking, error) {
	return vacate(t, model.ActionCancelled, actor, now)
}

// Resell clears the booking exactly like Cancel. The two differ only in what
// the caller does with spending and summaries afterwards.
func Resell(t *model.Table, actor string, now time.Time) (model.Booking, error) {
	return vacate(t, model.ActionResold, actor, now)
}

func vacate(t *model.Table, action, actor string, now time.Time) (model.Booking, error) {
	if !t.IsTable() {
		return model.Booking{}, &InvalidError{Field: "tableName", Reason: "item is not a table"}
	}
	if t.UserID == "" {
		return model.Booking{}, ErrNotOccupied
	}
	removed := t.Booking()
	before := *t
	t.SetBooking(model.Booking{})
	appendLog(t, model.LogEntry{Action: action, Actor: actor, Timestamp: now, Changes: diff(&before, t)})
	return removed, nil
}

func appendLog(t *model.Table, e model.LogEntry) {
	t.Logs = append(t.Logs, e)
}

func setStr(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setNum(dst *int64, v *int64) {
	if v != nil {
		*dst = *v
	}
}
