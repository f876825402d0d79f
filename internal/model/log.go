package model

import (
	"strconv"
	"time"
)

// Log actions written by the reservation engine.
const (
	ActionBooked         = "booked"
	ActionUpdated        = "updated"
	ActionCancelled      = "reservation cancelled"
	ActionResold         = "table resold"
	ActionClearedForMove = "table_cleared_for_move"
	ActionMovedHere      = "table_moved_here"
	ActionSwapped        = "table_swapped"
	ActionCheckedIn      = "checked_in"
)

// LogEntry is one line of a table's or guest's audit trail. Move and swap
// entries also name the counterpart slot and the guest that travelled.
type LogEntry struct {
	Action            string            `json:"action" bson:"action"`
	Actor             string            `json:"actor" bson:"actor"`
	Timestamp         time.Time         `json:"timestamp" bson:"timestamp"`
	Changes           map[string]Change `json:"changes,omitempty" bson:"changes,omitempty"`
	CounterpartLayout string            `json:"counterpartLayout,omitempty" bson:"counterpartLayout,omitempty"`
	CounterpartTable  string            `json:"counterpartTable,omitempty" bson:"counterpartTable,omitempty"`
	GuestName         string            `json:"guestName,omitempty" bson:"guestName,omitempty"`
}

// ValueKind tags the variant held by a Value.
type ValueKind string

const (
	ValueString ValueKind = "string"
	ValueNumber ValueKind = "number"
	ValueBool   ValueKind = "bool"
)

// Value is a tagged union over the field types a log can record.
type Value struct {
	Kind ValueKind `json:"kind" bson:"kind"`
	Str  string    `json:"str,omitempty" bson:"str,omitempty"`
	Num  int64     `json:"num,omitempty" bson:"num,omitempty"`
	Bool bool      `json:"bool,omitempty" bson:"bool,omitempty"`
}

func StringValue(s string) Value { return Value{Kind: ValueString, Str: s} }
func NumberValue(n int64) Value  { return Value{Kind: ValueNumber, Num: n} }
func BoolValue(b bool) Value     { return Value{Kind: ValueBool, Bool: b} }

// String renders the value for humans.
func (v Value) String() string {
	switch v.Kind {
	case ValueNumber:
		return strconv.FormatInt(v.Num, 10)
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Str
	}
}

// Change records one field transition.
type Change struct {
	From Value `json:"from" bson:"from"`
	To   Value `json:"to" bson:"to"`
}
