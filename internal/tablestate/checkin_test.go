package tablestate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-table-reservation/internal/model"
)

func listGuest() *model.GuestListGuest {
	return &model.GuestListGuest{ID: "g1", Name: "Ana", NormalGuests: 5, FreeGuests: 2}
}

func TestCheckIn_Increment(t *testing.T) {
	g := listGuest()
	res, err := CheckIn(g, CheckInRequest{Mode: CheckInIncrement, Normal: i64(2), Free: i64(1)}, "Door", now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.PreviousTotal)
	assert.Equal(t, int64(3), res.Total)
	assert.True(t, res.Increased())

	res, err = CheckIn(g, CheckInRequest{Mode: CheckInIncrement, Normal: i64(-1)}, "Door", now)
	require.NoError(t, err)
	assert.False(t, res.Increased())
	assert.Equal(t, int64(1), g.NormalCheckedIn)
	assert.Equal(t, int64(1), g.FreeCheckedIn)
	assert.Len(t, g.Logs, 2)
}

func TestCheckIn_SetOverLimitLeavesCountsUnchanged(t *testing.T) {
	g := listGuest()
	g.NormalCheckedIn = 3

	_, err := CheckIn(g, CheckInRequest{Mode: CheckInSet, Normal: i64(6)}, "Door", now)

	var lim *LimitError
	require.True(t, errors.As(err, &lim))
	assert.Equal(t, int64(5), lim.Limit)
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.Equal(t, int64(3), g.NormalCheckedIn)
	assert.Empty(t, g.Logs)
}

func TestCheckIn_FreeLimit(t *testing.T) {
	g := listGuest()
	_, err := CheckIn(g, CheckInRequest{Mode: CheckInIncrement, Free: i64(3)}, "Door", now)
	var lim *LimitError
	require.True(t, errors.As(err, &lim))
	assert.Equal(t, "freeCheckedIn", lim.Field)
	assert.Equal(t, int64(2), lim.Limit)
}

func TestCheckIn_NegativeResultRejected(t *testing.T) {
	g := listGuest()
	_, err := CheckIn(g, CheckInRequest{Mode: CheckInIncrement, Normal: i64(-1)}, "Door", now)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestCheckIn_SetKeepsAbsentCount(t *testing.T) {
	g := listGuest()
	g.FreeCheckedIn = 2
	_, err := CheckIn(g, CheckInRequest{Mode: CheckInSet, Normal: i64(4)}, "Door", now)
	require.NoError(t, err)
	assert.Equal(t, int64(4), g.NormalCheckedIn)
	assert.Equal(t, int64(2), g.FreeCheckedIn)
}

func TestCheckIn_UnknownMode(t *testing.T) {
	_, err := CheckIn(listGuest(), CheckInRequest{Mode: "toggle"}, "Door", now)
	assert.ErrorIs(t, err, ErrInvalid)
}
