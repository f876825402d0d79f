package model

import "strings"

// Table is one item of a Layout. Geometry fields describe the physical
// slot; occupancy fields describe the booking currently seated there.
// Money fields are integer minor units.
//
// Fields:
//  Kind           – "table" or a decoration kind.
//  TableName      – identity of the slot within its layout.
//  GuestName      – occupant; the table is occupied iff this is non-blank.
//  NrOfGuests     – party size.
//  TableLimit     – minimum spend agreed for the table.
//  TableSpent     – amount spent so far.
//  TableCheckedIn – guests of the party that have arrived.
//  BookedBy       – display name of the staff member who booked.
//  UserID         – identity the booking belongs to.
//  TableStaff     – staff assigned to the physical table, kept across bookings.
//  Logs           – append-only audit trail.
type Table struct {
	Kind      string  `json:"kind" bson:"kind"`
	TableName string  `json:"tableName" bson:"tableName"`
	X         float64 `json:"x" bson:"x"`
	Y         float64 `json:"y" bson:"y"`
	Width     float64 `json:"width" bson:"width"`
	Height    float64 `json:"height" bson:"height"`
	Rotation  float64 `json:"rotation" bson:"rotation"`

	GuestName       string `json:"guestName" bson:"guestName"`
	PhoneNumber     string `json:"phoneNumber" bson:"phoneNumber"`
	PhoneNumberE164 string `json:"phoneNumberE164" bson:"phoneNumberE164"`
	Email           string `json:"email" bson:"email"`
	NrOfGuests      int64  `json:"nrOfGuests" bson:"nrOfGuests"`
	TableLimit      int64  `json:"tableLimit" bson:"tableLimit"`
	TableSpent      int64  `json:"tableSpent" bson:"tableSpent"`
	TableCheckedIn  int64  `json:"tableCheckedIn" bson:"tableCheckedIn"`
	TimeFrom        string `json:"timeFrom" bson:"timeFrom"`
	TimeTo          string `json:"timeTo" bson:"timeTo"`
	Comment         string `json:"comment" bson:"comment"`
	BookedBy        string `json:"bookedBy" bson:"bookedBy"`
	UserID          string `json:"userId" bson:"userId"`

	TableStaff string     `json:"tableStaff" bson:"tableStaff"`
	Logs       []LogEntry `json:"logs,omitempty" bson:"logs,omitempty"`
}

// Occupied reports whether a booking is seated at the table.
func (t *Table) Occupied() bool {
	return strings.TrimSpace(t.GuestName) != ""
}

// Booking is the occupancy part of a Table: everything that migrates on a
// move and is cleared on cancel or resell.
type Booking struct {
	GuestName       string `json:"guestName"`
	PhoneNumber     string `json:"phoneNumber"`
	PhoneNumberE164 string `json:"phoneNumberE164"`
	Email           string `json:"email"`
	NrOfGuests      int64  `json:"nrOfGuests"`
	TableLimit      int64  `json:"tableLimit"`
	TableSpent      int64  `json:"tableSpent"`
	TableCheckedIn  int64  `json:"tableCheckedIn"`
	TimeFrom        string `json:"timeFrom"`
	TimeTo          string `json:"timeTo"`
	Comment         string `json:"comment"`
	BookedBy        string `json:"bookedBy"`
	UserID          string `json:"userId"`
}

// Booking extracts the occupancy fields.
func (t *Table) Booking() Booking {
	return Booking{
		GuestName:       t.GuestName,
		PhoneNumber:     t.PhoneNumber,
		PhoneNumberE164: t.PhoneNumberE164,
		Email:           t.Email,
		NrOfGuests:      t.NrOfGuests,
		TableLimit:      t.TableLimit,
		TableSpent:      t.TableSpent,
		TableCheckedIn:  t.TableCheckedIn,
		TimeFrom:        t.TimeFrom,
		TimeTo:          t.TimeTo,
		Comment:         t.Comment,
		BookedBy:        t.BookedBy,
		UserID:          t.UserID,
	}
}

// SetBooking overwrites the occupancy fields, leaving geometry, name,
// staff and logs untouched.
func (t *Table) SetBooking(b Booking) {
	t.GuestName = b.GuestName
	t.PhoneNumber = b.PhoneNumber
	t.PhoneNumberE164 = b.PhoneNumberE164
	t.Email = b.Email
	t.NrOfGuests = b.NrOfGuests
	t.TableLimit = b.TableLimit
	t.TableSpent = b.TableSpent
	t.TableCheckedIn = b.TableCheckedIn
	t.TimeFrom = b.TimeFrom
	t.TimeTo = b.TimeTo
	t.Comment = b.Comment
	t.BookedBy = b.BookedBy
	t.UserID = b.UserID
}
