package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-table-reservation/internal/docstore"
	"github.com/iliyamo/venue-table-reservation/internal/docstore/memstore"
	"github.com/iliyamo/venue-table-reservation/internal/model"
	"github.com/iliyamo/venue-table-reservation/internal/repository"
)

const (
	company = "club-1"
	event   = "ev-1"
)

var fixedNow = time.Date(2026, 5, 1, 21, 0, 0, 0, time.UTC)

func i64(v int64) *int64   { return &v }
func str(v string) *string { return &v }

type fakeEvents struct {
	genres map[string][]string
	err    error
}

func (f *fakeEvents) Genres(_ context.Context, _, eventID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.genres[eventID], nil
}

type fixture struct {
	store  docstore.Store
	svc    *ReservationService
	events *fakeEvents
	host   Actor
}

func newFixture(t *testing.T, store docstore.Store) *fixture {
	t.Helper()
	if store == nil {
		store = memstore.New()
	}
	var seq atomic.Int64
	events := &fakeEvents{genres: map[string][]string{event: {"Techno", "House"}}}
	svc := NewReservationService(store, events, nil,
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }),
	)

	ctx := context.Background()
	layouts := repository.NewLayoutRepo(store)
	require.NoError(t, layouts.Create(ctx, company, event, model.Layout{
		ID:   "main",
		Name: "Main floor",
		Items: []model.Table{
			{Kind: model.KindTable, TableName: "T1"},
			{Kind: model.KindTable, TableName: "T2"},
			{Kind: model.KindTable, TableName: "T3"},
			{Kind: "bar", TableName: "Bar"},
		},
	}))
	require.NoError(t, layouts.Create(ctx, company, event, model.Layout{
		ID:    "terrace",
		Items: []model.Table{{Kind: model.KindTable, TableName: "B1"}},
	}))

	users := repository.NewUserRepo(store)
	for i := 1; i <= 3; i++ {
		require.NoError(t, users.Create(ctx, model.User{SpendingProfile: model.SpendingProfile{
			UserID:          fmt.Sprintf("u%d", i),
			Name:            fmt.Sprintf("Stored Guest %d", i),
			PhoneNumberE164: fmt.Sprintf("+3816000000%d", i),
		}}))
	}
	return &fixture{store: store, svc: svc, events: events, host: Actor{ID: "staff-1", Name: "Host Jana"}}
}

func (f *fixture) book(t *testing.T, table, userID string, spent int64) *BookResult {
	t.Helper()
	res, err := f.svc.BookTable(context.Background(), f.host, bookReq(table, userID, spent))
	require.NoError(t, err)
	return res
}

func bookReq(table, userID string, spent int64) BookRequest {
	return BookRequest{
		TableRef:        TableRef{CompanyID: company, EventID: event, LayoutID: "main", TableName: table},
		GuestName:       "Typed Name",
		PhoneNumberE164: "+381601234567",
		NrOfGuests:      4,
		TableLimit:      30000,
		TableSpent:      spent,
		UserID:          userID,
	}
}

func (f *fixture) table(t *testing.T, layoutID, name string) model.Table {
	t.Helper()
	l, err := repository.NewLayoutRepo(f.store).Get(context.Background(), company, event, layoutID)
	require.NoError(t, err)
	i, ok := l.FindTable(name)
	require.True(t, ok)
	return l.Items[i]
}

func (f *fixture) summary(t *testing.T) *model.TableSummary {
	t.Helper()
	s, err := f.svc.GetTableSummary(context.Background(), EventRef{CompanyID: company, EventID: event})
	require.NoError(t, err)
	return s
}

func (f *fixture) guest(t *testing.T, userID string) *model.Guest {
	t.Helper()
	g, err := repository.NewGuestRepo(f.store).Get(context.Background(), company, userID)
	require.NoError(t, err)
	return g
}

func (f *fixture) user(t *testing.T, userID string) *model.User {
	t.Helper()
	u, err := repository.NewUserRepo(f.store).Get(context.Background(), userID)
	require.NoError(t, err)
	return u
}

func kindOf(t *testing.T, err error) *Error {
	t.Helper()
	var se *Error
	require.True(t, errors.As(err, &se), "expected *service.Error, got %v", err)
	return se
}

func TestBookTable_UsesStoredIdentityAndDenormalizes(t *testing.T) {
	f := newFixture(t, nil)
	res := f.book(t, "T1", "u1", 1200)

	assert.Equal(t, "Stored Guest 1", res.Table.GuestName)
	assert.Equal(t, "+38160000001", res.Table.PhoneNumberE164)
	assert.Equal(t, "Host Jana", res.Table.BookedBy)
	assert.False(t, res.Identity.Created)

	stored := f.table(t, "main", "T1")
	assert.Equal(t, "u1", stored.UserID)
	require.Len(t, stored.Logs, 1)
	assert.Equal(t, model.ActionBooked, stored.Logs[0].Action)

	sum := f.summary(t)
	assert.Equal(t, int64(1), sum.TotalBooked)
	assert.Equal(t, int64(4), sum.TotalGuests)
	assert.Equal(t, int64(30000), sum.TotalTableLimit)
	assert.Equal(t, int64(1200), sum.TotalTableSpent)

	g := f.guest(t, "u1")
	assert.Equal(t, "Stored Guest 1", g.Name)
	assert.Equal(t, company, g.CompanyID)
	assert.Equal(t, int64(1200), g.EventSpending[event].Spent)
	assert.Equal(t, int64(1200), g.TotalSpent)
	assert.Equal(t, int64(1200), f.user(t, "u1").TotalSpent)

	due, err := repository.NewOutboxRepo(f.store).ListDue(context.Background(), fixedNow.Add(time.Hour), fixedNow.Add(time.Hour), 0, model.OutboxApplied)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.True(t, due[0].SummaryApplied)
	assert.True(t, due[0].GuestApplied)
	assert.True(t, due[0].UserApplied)
}

func TestBookTable_NewIdentityCreatesUser(t *testing.T) {
	f := newFixture(t, nil)
	req := bookReq("T2", NewIdentity, 0)
	req.GuestName = "Walk In"
	req.Email = "walk@example.com"

	res, err := f.svc.BookTable(context.Background(), f.host, req)
	require.NoError(t, err)
	assert.True(t, res.Identity.Created)
	assert.Equal(t, "id-1", res.Identity.UserID)
	assert.Equal(t, "Walk In", res.Table.GuestName)

	u := f.user(t, "id-1")
	assert.Equal(t, "walk@example.com", u.Email)
	assert.Equal(t, "Walk In", f.guest(t, "id-1").Name)
}

func TestBookTable_Rejections(t *testing.T) {
	f := newFixture(t, nil)
	f.book(t, "T1", "u1", 0)

	tests := []struct {
		name  string
		req   BookRequest
		kind  Kind
		field string
	}{
		{"occupied", bookReq("T1", "u2", 0), KindConflict, ""},
		{"unknown user", bookReq("T2", "ghost", 0), KindNotFound, ""},
		{"unknown table", bookReq("T9", "u2", 0), KindNotFound, ""},
		{"decoration", bookReq("Bar", "u2", 0), KindNotFound, ""},
		{"zero guests", func() BookRequest { r := bookReq("T2", "u2", 0); r.NrOfGuests = 0; return r }(), KindValidation, "nrOfGuests"},
		{"bad company id", func() BookRequest { r := bookReq("T2", "u2", 0); r.CompanyID = "a/b"; return r }(), KindValidation, "companyId"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.BookTable(context.Background(), f.host, tc.req)
			se := kindOf(t, err)
			assert.Equal(t, tc.kind, se.Kind)
			assert.Equal(t, tc.field, se.Field)
		})
	}

	_, err := f.svc.BookTable(context.Background(), f.host, bookReq("T1", "u2", 0))
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "Stored Guest 1", kindOf(t, err).Occupant)
}

func TestBookTable_ConcurrentCallersOneWinner(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	users := repository.NewUserRepo(f.store)
	const n = 10
	for i := 0; i < n; i++ {
		require.NoError(t, users.Create(ctx, model.User{SpendingProfile: model.SpendingProfile{
			UserID: fmt.Sprintf("racer-%d", i),
			Name:   fmt.Sprintf("Racer %d", i),
		}}))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		errs    []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.BookTable(ctx, f.host, bookReq("T3", fmt.Sprintf("racer-%d", i), 100))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			winners = append(winners, res.Table.GuestName)
		}(i)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	require.Len(t, errs, n-1)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, winners[0], kindOf(t, err).Occupant)
	}
	assert.Equal(t, winners[0], f.table(t, "main", "T3").GuestName)
	assert.Equal(t, int64(1), f.summary(t).TotalBooked)
	assert.Equal(t, int64(100), f.summary(t).TotalTableSpent)
}

func TestUpdateTable_SpentChangeFlowsToSummaryAndSpending(t *testing.T) {
	f := newFixture(t, nil)
	f.book(t, "T1", "u1", 0)

	res, err := f.svc.UpdateTable(context.Background(), f.host, UpdateRequest{
		TableRef:   TableRef{CompanyID: company, EventID: event, LayoutID: "main", TableName: "T1"},
		TableSpent: i64(25000),
	})
	require.NoError(t, err)
	assert.Equal(t, model.Change{From: model.NumberValue(0), To: model.NumberValue(25000)}, res.Changes["tableSpent"])
	assert.Equal(t, 2, res.LogCount)

	assert.Equal(t, int64(25000), f.summary(t).TotalTableSpent)
	g := f.guest(t, "u1")
	assert.Equal(t, int64(25000), g.EventSpending[event].Spent)
	assert.Equal(t, int64(25000), g.TotalSpent)
	assert.Equal(t, int64(25000), g.LastSpent)
	assert.Equal(t, int64(25000), f.user(t, "u1").EventSpending[event].Spent)
}

func TestUpdateTable_NoDiffIsNoOp(t *testing.T) {
	f := newFixture(t, nil)
	f.book(t, "T1", "u1", 0)

	res, err := f.svc.UpdateTable(context.Background(), f.host, UpdateRequest{
		TableRef:   TableRef{CompanyID: company, EventID: event, LayoutID: "main", TableName: "T1"},
		GuestName:  str("Stored Guest 1"),
		NrOfGuests: i64(4),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Changes)
	assert.Equal(t, 1, res.LogCount)
	assert.Len(t, f.table(t, "main", "T1").Logs, 1)
}

func TestUpdateTable_EmptyTableRejectsOccupancyFields(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.UpdateTable(context.Background(), f.host, UpdateRequest{
		TableRef:   TableRef{CompanyID: company, EventID: event, LayoutID: "main", TableName: "T2"},
		TableSpent: i64(10),
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateTable_CheckedInIncreaseCreditsGenres(t *testing.T) {
	f := newFixture(t, nil)
	f.book(t, "T1", "u1", 0)
	ref := TableRef{CompanyID: company, EventID: event, LayoutID: "main", TableName: "T1"}

	for _, n := range []int64{2, 3} {
		_, err := f.svc.UpdateTable(context.Background(), f.host, UpdateRequest{TableRef: ref, TableCheckedIn: i64(n)})
		require.NoError(t, err)
	}

	u := f.user(t, "u1")
	assert.Equal(t, int64(1), u.VisitedGenres["Techno"].NrOfTimes)
	assert.Equal(t, []string{event}, u.VisitedGenres["House"].EventIDs)
	assert.Equal(t, int64(3), f.summary(t).TotalCheckedIn)
}

func TestCancelAndResell_DivergeOnSpending(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.book(t, "T1", "u1", 500)
	f.book(t, "T2", "u2", 700)

	cancelled, err := f.svc.CancelReservation(ctx, f.host, TableRef{CompanyID: company, EventID: event, LayoutID: "main", TableName: "T1"})
	require.NoError(t, err)
	assert.Equal(t, "u1", cancelled.Removed.UserID)

	resold, err := f.svc.ResellTable(ctx, f.host, TableRef{CompanyID: company, EventID: event, LayoutID: "main", TableName: "T2"})
	require.NoError(t, err)
	assert.Equal(t, int64(700), resold.Removed.TableSpent)

	assert.NotContains(t, f.guest(t, "u1").EventSpending, event)
	assert.Equal(t, int64(0), f.user(t, "u1").TotalSpent)
	assert.Equal(t, int64(700), f.guest(t, "u2").EventSpending[event].Spent)
	assert.Equal(t, int64(700), f.user(t, "u2").TotalSpent)

	for _, name := range []string{"T1", "T2"} {
		tbl := f.table(t, "main", name)
		assert.False(t, tbl.Occupied())
		assert.Empty(t, tbl.UserID)
	}
	assert.Equal(t, model.ActionCancelled, f.table(t, "main", "T1").Logs[1].Action)
	assert.Equal(t, model.ActionResold, f.table(t, "main", "T2").Logs[1].Action)

	// resell leaves the summary alone until the next recompute
	assert.Equal(t, int64(1), f.summary(t).TotalBooked)
	sum, err := f.svc.RecomputeTableSummary(ctx, EventRef{CompanyID: company, EventID: event})
	require.NoError(t, err)
	assert.Equal(t, int64(0), sum.TotalBooked)
	assert.Equal(t, int64(0), sum.TotalTableSpent)
}

func TestCancelReservation_EmptyTable(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.CancelReservation(context.Background(), f.host, TableRef{CompanyID: company, EventID: event, LayoutID: "main", TableName: "T1"})
	se := kindOf(t, err)
	assert.Equal(t, KindValidation, se.Kind)
	assert.Equal(t, "tableName", se.Field)
}

func TestMoveTable_StaffStaysWithPhysicalTable(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for name, staff := range map[string]string{"T1": "Ana", "T2": "Ben"} {
		_, err := f.svc.UpdateTable(ctx, f.host, UpdateRequest{
			TableRef:   TableRef{CompanyID: company, EventID: event, LayoutID: "main", TableName: name},
			TableStaff: str(staff),
		})
		require.NoError(t, err)
	}
	f.book(t, "T1", "u1", 300)

	res, err := f.svc.MoveTable(ctx, f.host, MoveRequest{
		CompanyID: company, EventID: event,
		SourceLayoutID: "main", SourceTableName: "T1",
		DestinationLayoutID: "main", DestinationTableName: "T2",
	})
	require.NoError(t, err)
	assert.Equal(t, "move", string(res.Operation))

	t1, t2 := f.table(t, "main", "T1"), f.table(t, "main", "T2")
	assert.False(t, t1.Occupied())
	assert.Equal(t, "Ana", t1.TableStaff)
	assert.Equal(t, "Stored Guest 1", t2.GuestName)
	assert.Equal(t, "Ben", t2.TableStaff)
	assert.Equal(t, "T2", t2.TableName)
	assert.Equal(t, model.ActionMovedHere, t2.Logs[len(t2.Logs)-1].Action)

	f.book(t, "T1", "u2", 0)
	res, err = f.svc.MoveTable(ctx, f.host, MoveRequest{
		CompanyID: company, EventID: event,
		SourceLayoutID: "main", SourceTableName: "T1",
		DestinationLayoutID: "main", DestinationTableName: "T2",
	})
	require.NoError(t, err)
	assert.Equal(t, "swap", string(res.Operation))
	t1, t2 = f.table(t, "main", "T1"), f.table(t, "main", "T2")
	assert.Equal(t, "Stored Guest 1", t1.GuestName)
	assert.Equal(t, "Ana", t1.TableStaff)
	assert.Equal(t, "Stored Guest 2", t2.GuestName)
	assert.Equal(t, "Ben", t2.TableStaff)
	assert.Equal(t, int64(2), f.summary(t).TotalBooked)
}

func TestMoveTable_AcrossLayouts(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.book(t, "T1", "u1", 900)

	res, err := f.svc.MoveTable(ctx, f.host, MoveRequest{
		CompanyID: company, EventID: event,
		SourceLayoutID: "main", SourceTableName: "T1",
		DestinationLayoutID: "terrace", DestinationTableName: "B1",
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", res.Destination.UserID)
	src := f.table(t, "main", "T1")
	assert.False(t, src.Occupied())
	assert.Equal(t, int64(900), f.table(t, "terrace", "B1").TableSpent)

	sum, err := f.svc.RecomputeTableSummary(ctx, EventRef{CompanyID: company, EventID: event})
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.TotalBooked)
	assert.Equal(t, int64(900), sum.TotalTableSpent)
}

func TestMoveTable_Rejections(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.book(t, "T1", "u1", 0)

	_, err := f.svc.MoveTable(ctx, f.host, MoveRequest{
		CompanyID: company, EventID: event,
		SourceLayoutID: "main", SourceTableName: "T1",
		DestinationLayoutID: "main", DestinationTableName: "T1",
	})
	assert.Equal(t, "destinationTableName", kindOf(t, err).Field)

	_, err = f.svc.MoveTable(ctx, f.host, MoveRequest{
		CompanyID: company, EventID: event,
		SourceLayoutID: "main", SourceTableName: "T2",
		DestinationLayoutID: "main", DestinationTableName: "T3",
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.MoveTable(ctx, f.host, MoveRequest{
		CompanyID: company, EventID: event,
		SourceLayoutID: "main", SourceTableName: "T1",
		DestinationLayoutID: "cellar", DestinationTableName: "C1",
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func seedListGuest(t *testing.T, f *fixture, g model.GuestListGuest) {
	t.Helper()
	require.NoError(t, repository.NewGuestListRepo(f.store).Create(context.Background(), company, event, "gl-1", g))
}

func TestCheckInGuest_LimitLeavesCountsUnchanged(t *testing.T) {
	f := newFixture(t, nil)
	seedListGuest(t, f, model.GuestListGuest{ID: "g1", Name: "Mila", NormalGuests: 2, FreeGuests: 1})
	ctx := context.Background()
	req := CheckInRequest{CompanyID: company, EventID: event, GuestListID: "gl-1", GuestID: "g1", Action: "increment", NormalIncrement: i64(3)}

	_, err := f.svc.CheckInGuest(ctx, f.host, req)
	se := kindOf(t, err)
	assert.Equal(t, KindLimitExceeded, se.Kind)
	require.NotNil(t, se.Limit)
	assert.Equal(t, int64(2), *se.Limit)

	g, err := repository.NewGuestListRepo(f.store).Get(ctx, company, event, "gl-1", "g1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), g.NormalCheckedIn)
	assert.Empty(t, g.Logs)

	res, err := f.svc.CheckInGuest(ctx, f.host, CheckInRequest{
		CompanyID: company, EventID: event, GuestListID: "gl-1", GuestID: "g1",
		Action: "set", NormalCheckedIn: i64(2), FreeCheckedIn: i64(1),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.TotalCheckedIn)
}

func TestCheckInGuest_GenreCreditIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	seedListGuest(t, f, model.GuestListGuest{ID: "g1", Name: "Mila", UserID: "u3", NormalGuests: 5})
	ctx := context.Background()
	req := CheckInRequest{CompanyID: company, EventID: event, GuestListID: "gl-1", GuestID: "g1", Action: "increment", NormalIncrement: i64(1)}

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.CheckInGuest(ctx, f.host, req)
		}()
	}
	wg.Wait()
	_, err := f.svc.CheckInGuest(ctx, f.host, req)
	require.NoError(t, err)

	for _, p := range []model.SpendingProfile{f.user(t, "u3").SpendingProfile, f.guest(t, "u3").SpendingProfile} {
		assert.Equal(t, int64(1), p.VisitedGenres["Techno"].NrOfTimes)
		assert.Equal(t, []string{event}, p.VisitedGenres["Techno"].EventIDs)
		assert.Equal(t, int64(1), p.VisitedGenres["House"].NrOfTimes)
	}
	assert.Equal(t, "Stored Guest 3", f.guest(t, "u3").Name)
}

func TestCheckInGuest_UnknownAction(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.CheckInGuest(context.Background(), f.host, CheckInRequest{
		CompanyID: company, EventID: event, GuestListID: "gl-1", GuestID: "g1", Action: "toggle",
	})
	assert.Equal(t, "action", kindOf(t, err).Field)
}

func TestRecomputeTableSummary_MatchesTables(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.book(t, "T1", "u1", 100)
	f.book(t, "T2", "u2", 250)
	_, err := f.svc.UpdateTable(ctx, f.host, UpdateRequest{
		TableRef:       TableRef{CompanyID: company, EventID: event, LayoutID: "main", TableName: "T2"},
		TableCheckedIn: i64(3),
	})
	require.NoError(t, err)
	incremental := f.summary(t)

	sum, err := f.svc.RecomputeTableSummary(ctx, EventRef{CompanyID: company, EventID: event})
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum.TotalBooked)
	assert.Equal(t, int64(3), sum.TotalCheckedIn)
	assert.Equal(t, int64(8), sum.TotalGuests)
	assert.Equal(t, int64(60000), sum.TotalTableLimit)
	assert.Equal(t, int64(350), sum.TotalTableSpent)
	assert.Equal(t, int64(4), sum.TotalTables)
	require.NotNil(t, sum.RecomputedAt)

	assert.Equal(t, incremental.TotalBooked, sum.TotalBooked)
	assert.Equal(t, incremental.TotalTableSpent, sum.TotalTableSpent)
	assert.Equal(t, incremental.TotalCheckedIn, sum.TotalCheckedIn)
}

func TestGetTableSummary_ZeroBeforeFirstBooking(t *testing.T) {
	f := newFixture(t, nil)
	sum := f.summary(t)
	assert.Equal(t, model.SummaryID, sum.ID)
	assert.Zero(t, sum.TotalBooked)
}

// flakyStore fails upserts of global users while broken is set.
type flakyStore struct {
	docstore.Store
	broken atomic.Bool
}

type flakyTx struct {
	docstore.Tx
	s *flakyStore
}

func (t flakyTx) Upsert(ref docstore.Ref, ops ...docstore.Op) error {
	if t.s.broken.Load() && ref.Collection == "users" {
		return errors.New("users collection unavailable")
	}
	return t.Tx.Upsert(ref, ops...)
}

func (s *flakyStore) RunTransaction(ctx context.Context, fn func(tx docstore.Tx) error) error {
	return s.Store.RunTransaction(ctx, func(tx docstore.Tx) error {
		return fn(flakyTx{Tx: tx, s: s})
	})
}

func TestSettle_PartialFailureIsRecordedAndHealed(t *testing.T) {
	store := &flakyStore{Store: memstore.New()}
	f := newFixture(t, store)
	ctx := context.Background()
	store.broken.Store(true)

	res := f.book(t, "T1", "u1", 800)
	assert.Equal(t, "u1", res.Table.UserID)

	outbox := repository.NewOutboxRepo(store)
	partial, err := outbox.ListDue(ctx, fixedNow.Add(time.Hour), fixedNow.Add(time.Hour), 0, model.OutboxPartial)
	require.NoError(t, err)
	require.Len(t, partial, 1)
	e := partial[0]
	assert.True(t, e.SummaryApplied)
	assert.True(t, e.GuestApplied)
	assert.False(t, e.UserApplied)
	assert.Contains(t, e.Error, "users collection unavailable")
	assert.Equal(t, int64(0), f.user(t, "u1").TotalSpent)

	store.broken.Store(false)
	assert.Equal(t, model.OutboxApplied, f.svc.Settle(ctx, e.ID))
	assert.Equal(t, int64(800), f.user(t, "u1").TotalSpent)
	assert.Equal(t, int64(800), f.guest(t, "u1").TotalSpent)
	assert.Equal(t, int64(800), f.summary(t).TotalTableSpent)

	healed, err := outbox.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Empty(t, healed.Error)
}

func TestSettle_CancelRetiresUnappliedBookingSpend(t *testing.T) {
	store := &flakyStore{Store: memstore.New()}
	f := newFixture(t, store)
	ctx := context.Background()
	outbox := repository.NewOutboxRepo(store)

	store.broken.Store(true)
	f.book(t, "T1", "u1", 800)
	partial, err := outbox.ListDue(ctx, fixedNow.Add(time.Hour), fixedNow.Add(time.Hour), 0, model.OutboxPartial)
	require.NoError(t, err)
	require.Len(t, partial, 1)
	booking := partial[0]
	require.False(t, booking.UserApplied)
	store.broken.Store(false)

	_, err = f.svc.CancelReservation(ctx, f.host, TableRef{CompanyID: company, EventID: event, LayoutID: "main", TableName: "T1"})
	require.NoError(t, err)

	retired, err := outbox.Get(ctx, booking.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, retired.SupersededBy)
	assert.True(t, retired.Settled())

	// a late replay of the booking must not bring the event back
	assert.Equal(t, model.OutboxApplied, f.svc.Settle(ctx, booking.ID))
	u := f.user(t, "u1")
	assert.Equal(t, int64(0), u.TotalSpent)
	assert.NotContains(t, u.EventSpending, event)
	g := f.guest(t, "u1")
	assert.Equal(t, int64(0), g.TotalSpent)
	assert.NotContains(t, g.EventSpending, event)
}

func TestSettle_CancelKeepsAppliedEntriesOfOtherPeople(t *testing.T) {
	store := &flakyStore{Store: memstore.New()}
	f := newFixture(t, store)
	ctx := context.Background()
	outbox := repository.NewOutboxRepo(store)

	store.broken.Store(true)
	f.book(t, "T2", "u2", 300)
	store.broken.Store(false)
	f.book(t, "T1", "u1", 800)

	_, err := f.svc.CancelReservation(ctx, f.host, TableRef{CompanyID: company, EventID: event, LayoutID: "main", TableName: "T1"})
	require.NoError(t, err)

	partial, err := outbox.ListDue(ctx, fixedNow.Add(time.Hour), fixedNow.Add(time.Hour), 0, model.OutboxPartial)
	require.NoError(t, err)
	require.Len(t, partial, 1)
	assert.Equal(t, "u2", partial[0].UserID)
	assert.Empty(t, partial[0].SupersededBy)

	assert.Equal(t, model.OutboxApplied, f.svc.Settle(ctx, partial[0].ID))
	assert.Equal(t, int64(300), f.user(t, "u2").EventSpending[event].Spent)
}

func TestCheckInGuest_UnknownEventCreditsNothing(t *testing.T) {
	f := newFixture(t, nil)
	f.events.err = fmt.Errorf("event %s: %w", event, repository.ErrEventNotFound)
	seedListGuest(t, f, model.GuestListGuest{ID: "g1", Name: "Mila", UserID: "u3", NormalGuests: 5})
	ctx := context.Background()

	_, err := f.svc.CheckInGuest(ctx, f.host, CheckInRequest{
		CompanyID: company, EventID: event, GuestListID: "gl-1", GuestID: "g1",
		Action: "increment", NormalIncrement: i64(1),
	})
	require.NoError(t, err)

	partial, err := repository.NewOutboxRepo(f.store).ListDue(ctx, fixedNow.Add(time.Hour), fixedNow.Add(time.Hour), 0, model.OutboxPartial)
	require.NoError(t, err)
	assert.Empty(t, partial)
	assert.Empty(t, f.user(t, "u3").VisitedGenres)
}
