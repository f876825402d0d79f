package tablestate

import (
	"time"

	"github.com/iliyamo/venue-table-reservation/internal/model"
)

// Operation is the outcome of Relocate.
type Operation string

const (
	OpMove Operation = "move"
	OpSwap Operation = "swap"
)

// Slot is a physical table position: a table inside a named layout.
type Slot struct {
	LayoutID string
	Table    *model.Table
}

func (s Slot) same(o Slot) bool {
	return s.LayoutID == o.LayoutID && s.Table.TableName == o.Table.TableName
}

// Relocate moves the booking at src to dst when dst is empty and swaps the
// two bookings otherwise. Table names and staff stay with their slots.
func Relocate(src, dst Slot, actor string, now time.Time) (Operation, error) {
	if src.same(dst) {
		return "", &InvalidError{Field: "destinationTableName", Reason: "must differ from the source table"}
	}
	if !src.Table.IsTable() {
		return "", &InvalidError{Field: "sourceTableName", Reason: "item is not a table"}
	}
	if !dst.Table.IsTable() {
		return "", &InvalidError{Field: "destinationTableName", Reason: "item is not a table"}
	}
	if !src.Table.Occupied() {
		return "", ErrNotOccupied
	}
	if dst.Table.Occupied() {
		swap(src, dst, actor, now)
		return OpSwap, nil
	}
	move(src, dst, actor, now)
	return OpMove, nil
}

func move(src, dst Slot, actor string, now time.Time) {
	b := src.Table.Booking()
	dst.Table.SetBooking(b)
	src.Table.SetBooking(model.Booking{})

	appendLog(src.Table, model.LogEntry{
		Action:            model.ActionClearedForMove,
		Actor:             actor,
		Timestamp:         now,
		CounterpartLayout: dst.LayoutID,
		CounterpartTable:  dst.Table.TableName,
		GuestName:         b.GuestName,
	})
	appendLog(dst.Table, model.LogEntry{
		Action:            model.ActionMovedHere,
		Actor:             actor,
		Timestamp:         now,
		CounterpartLayout: src.LayoutID,
		CounterpartTable:  src.Table.TableName,
		GuestName:         b.GuestName,
	})
}

func swap(src, dst Slot, actor string, now time.Time) {
	a, b := src.Table.Booking(), dst.Table.Booking()
	src.Table.SetBooking(b)
	dst.Table.SetBooking(a)

	// each entry names the guest that arrived at that table
	appendLog(src.Table, model.LogEntry{
		Action:            model.ActionSwapped,
		Actor:             actor,
		Timestamp:         now,
		CounterpartLayout: dst.LayoutID,
		CounterpartTable:  dst.Table.TableName,
		GuestName:         b.GuestName,
	})
	appendLog(dst.Table, model.LogEntry{
		Action:            model.ActionSwapped,
		Actor:             actor,
		Timestamp:         now,
		CounterpartLayout: src.LayoutID,
		CounterpartTable:  src.Table.TableName,
		GuestName:         a.GuestName,
	})
}
