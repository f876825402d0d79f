package tablestate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-table-reservation/internal/model"
)

var now = time.Date(2026, 5, 1, 21, 0, 0, 0, time.UTC)

func i64(v int64) *int64   { return &v }
func str(v string) *string { return &v }

func emptyTable(name, staff string) *model.Table {
	return &model.Table{Kind: model.KindTable, TableName: name, TableStaff: staff}
}

func occupant() Occupant {
	return Occupant{
		Contact:    model.Contact{Name: "Ana Petrovic", PhoneNumberE164: "+38160111222", Email: "ana@example.com"},
		UserID:     "user-1",
		NrOfGuests: 10,
		TableLimit: 50000,
	}
}

func TestBook_EmptyTable(t *testing.T) {
	tbl := emptyTable("101", "Marko")
	require.NoError(t, Book(tbl, occupant(), "Host Jana", now))

	assert.True(t, tbl.Occupied())
	assert.Equal(t, "Ana Petrovic", tbl.GuestName)
	assert.Equal(t, "Host Jana", tbl.BookedBy)
	assert.Equal(t, "user-1", tbl.UserID)
	assert.Equal(t, "Marko", tbl.TableStaff)
	require.Len(t, tbl.Logs, 1)
	assert.Equal(t, model.ActionBooked, tbl.Logs[0].Action)
	assert.Equal(t, model.NumberValue(10), tbl.Logs[0].Changes["nrOfGuests"].To)
}

func TestBook_OccupiedNamesOccupant(t *testing.T) {
	tbl := emptyTable("101", "")
	require.NoError(t, Book(tbl, occupant(), "Host", now))

	o := occupant()
	o.Contact.Name = "Someone Else"
	err := Book(tbl, o, "Host", now)

	var occ *OccupiedError
	require.True(t, errors.As(err, &occ))
	assert.Equal(t, "Ana Petrovic", occ.Occupant)
	assert.ErrorIs(t, err, ErrOccupied)
	assert.Len(t, tbl.Logs, 1)
}

func TestBook_BlankNameIsEmpty(t *testing.T) {
	tbl := emptyTable("101", "")
	tbl.GuestName = "   "
	assert.NoError(t, Book(tbl, occupant(), "Host", now))
}

func TestBook_RejectsDecoration(t *testing.T) {
	bar := &model.Table{Kind: "bar", TableName: "bar"}
	assert.ErrorIs(t, Book(bar, occupant(), "Host", now), ErrInvalid)
}

func TestUpdateFields_DiffOnly(t *testing.T) {
	tbl := emptyTable("101", "")
	require.NoError(t, Book(tbl, occupant(), "Host", now))

	changes, err := UpdateFields(tbl, FieldUpdate{
		TableSpent: i64(25000),
		NrOfGuests: i64(10), // unchanged
		Comment:    str("birthday"),
	}, "Waiter", now)
	require.NoError(t, err)

	assert.Len(t, changes, 2)
	assert.Equal(t, model.Change{From: model.NumberValue(0), To: model.NumberValue(25000)}, changes["tableSpent"])
	assert.Equal(t, int64(25000), tbl.TableSpent)
	require.Len(t, tbl.Logs, 2)
	assert.Equal(t, model.ActionUpdated, tbl.Logs[1].Action)
	assert.Equal(t, changes, tbl.Logs[1].Changes)
}

func TestUpdateFields_NoDiffIsNoop(t *testing.T) {
	tbl := emptyTable("101", "")
	require.NoError(t, Book(tbl, occupant(), "Host", now))

	changes, err := UpdateFields(tbl, FieldUpdate{NrOfGuests: i64(10)}, "Waiter", now)
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Len(t, tbl.Logs, 1)
}

func TestUpdateFields_Validation(t *testing.T) {
	tbl := emptyTable("101", "")
	require.NoError(t, Book(tbl, occupant(), "Host", now))

	_, err := UpdateFields(tbl, FieldUpdate{TableSpent: i64(-1)}, "Waiter", now)
	var inv *InvalidError
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, "tableSpent", inv.Field)

	_, err = UpdateFields(tbl, FieldUpdate{GuestName: str(" ")}, "Waiter", now)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestUpdateFields_StaffOnEmptyTable(t *testing.T) {
	tbl := emptyTable("101", "")
	changes, err := UpdateFields(tbl, FieldUpdate{TableStaff: str("Marko")}, "Manager", now)
	require.NoError(t, err)
	assert.Contains(t, changes, "tableStaff")

	_, err = UpdateFields(tbl, FieldUpdate{TableSpent: i64(10)}, "Manager", now)
	assert.ErrorIs(t, err, ErrNotOccupied)
}

func TestCancelAndResell_ClearOccupancyKeepStaff(t *testing.T) {
	for _, tc := range []struct {
		name   string
		fn     func(*model.Table, string, time.Time) (model.Booking, error)
		action string
	}{
		{"cancel", Cancel, model.ActionCancelled},
		{"resell", Resell, model.ActionResold},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tbl := emptyTable("101", "Marko")
			require.NoError(t, Book(tbl, occupant(), "Host", now))
			_, err := UpdateFields(tbl, FieldUpdate{TableSpent: i64(9000), TableCheckedIn: i64(4)}, "Waiter", now)
			require.NoError(t, err)

			removed, err := tc.fn(tbl, "Manager", now)
			require.NoError(t, err)

			assert.Equal(t, "Ana Petrovic", removed.GuestName)
			assert.Equal(t, int64(9000), removed.TableSpent)
			assert.False(t, tbl.Occupied())
			assert.Equal(t, model.Booking{}, tbl.Booking())
			assert.Equal(t, "Marko", tbl.TableStaff)
			last := tbl.Logs[len(tbl.Logs)-1]
			assert.Equal(t, tc.action, last.Action)
			assert.Equal(t, model.StringValue("Ana Petrovic"), last.Changes["guestName"].From)
		})
	}
}

func TestCancel_RequiresUser(t *testing.T) {
	tbl := emptyTable("101", "")
	_, err := Cancel(tbl, "Manager", now)
	assert.ErrorIs(t, err, ErrNotOccupied)
}

func TestRelocate_MoveKeepsStaffWithSlot(t *testing.T) {
	src := emptyTable("101", "Marko")
	dst := emptyTable("205", "Iva")
	require.NoError(t, Book(src, occupant(), "Host", now))

	op, err := Relocate(Slot{LayoutID: "main", Table: src}, Slot{LayoutID: "terrace", Table: dst}, "Manager", now)
	require.NoError(t, err)
	assert.Equal(t, OpMove, op)

	assert.False(t, src.Occupied())
	assert.Equal(t, "Marko", src.TableStaff)
	assert.Equal(t, "101", src.TableName)

	assert.Equal(t, "Ana Petrovic", dst.GuestName)
	assert.Equal(t, "Iva", dst.TableStaff)
	assert.Equal(t, "205", dst.TableName)

	srcLog := src.Logs[len(src.Logs)-1]
	assert.Equal(t, model.ActionClearedForMove, srcLog.Action)
	assert.Equal(t, "terrace", srcLog.CounterpartLayout)
	assert.Equal(t, "205", srcLog.CounterpartTable)
	assert.Equal(t, "Ana Petrovic", srcLog.GuestName)

	dstLog := dst.Logs[len(dst.Logs)-1]
	assert.Equal(t, model.ActionMovedHere, dstLog.Action)
	assert.Equal(t, "101", dstLog.CounterpartTable)
}

func TestRelocate_SwapExchangesBookings(t *testing.T) {
	src := emptyTable("101", "Marko")
	dst := emptyTable("102", "Iva")
	require.NoError(t, Book(src, occupant(), "Host", now))
	other := occupant()
	other.Contact.Name = "Luka"
	other.UserID = "user-2"
	require.NoError(t, Book(dst, other, "Host", now))

	op, err := Relocate(Slot{LayoutID: "main", Table: src}, Slot{LayoutID: "main", Table: dst}, "Manager", now)
	require.NoError(t, err)
	assert.Equal(t, OpSwap, op)

	assert.Equal(t, "Luka", src.GuestName)
	assert.Equal(t, "Ana Petrovic", dst.GuestName)
	assert.Equal(t, "Marko", src.TableStaff)
	assert.Equal(t, "Iva", dst.TableStaff)
	assert.Equal(t, model.ActionSwapped, src.Logs[len(src.Logs)-1].Action)
	assert.Equal(t, model.ActionSwapped, dst.Logs[len(dst.Logs)-1].Action)
}

func TestRelocate_Errors(t *testing.T) {
	src := emptyTable("101", "")
	dst := emptyTable("102", "")

	_, err := Relocate(Slot{LayoutID: "main", Table: src}, Slot{LayoutID: "main", Table: dst}, "M", now)
	assert.ErrorIs(t, err, ErrNotOccupied)

	require.NoError(t, Book(src, occupant(), "Host", now))
	_, err = Relocate(Slot{LayoutID: "main", Table: src}, Slot{LayoutID: "main", Table: src}, "M", now)
	assert.ErrorIs(t, err, ErrInvalid)
}
