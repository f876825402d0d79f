package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-table-reservation/internal/docstore"
	"github.com/iliyamo/venue-table-reservation/internal/docstore/memstore"
	"github.com/iliyamo/venue-table-reservation/internal/model"
)

var at = time.Date(2026, 5, 1, 21, 0, 0, 0, time.UTC)

func seedOutbox(t *testing.T, store docstore.Store, entries ...model.OutboxEntry) {
	t.Helper()
	r := NewOutboxRepo(store)
	for i := range entries {
		e := entries[i]
		require.NoError(t, store.RunTransaction(context.Background(), func(tx docstore.Tx) error {
			return r.CreateTx(tx, &e)
		}))
	}
}

func ids(es []model.OutboxEntry) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.ID)
	}
	return out
}

func TestListDue_FiltersBeforeLimitAndBreaksTiesByID(t *testing.T) {
	store := memstore.New()
	seedOutbox(t, store,
		model.OutboxEntry{ID: "c", Status: model.OutboxApplied, CreatedAt: at},
		model.OutboxEntry{ID: "a", Status: model.OutboxApplied, CreatedAt: at},
		model.OutboxEntry{ID: "b", Status: model.OutboxPartial, CreatedAt: at, NextAttemptAt: at.Add(time.Hour)},
		model.OutboxEntry{ID: "d", Status: model.OutboxPartial, CreatedAt: at.Add(-time.Minute)},
		model.OutboxEntry{ID: "e", Status: model.OutboxApplied, CreatedAt: at.Add(time.Minute)},
		model.OutboxEntry{ID: "f", Status: model.OutboxReconciled, CreatedAt: at.Add(-time.Hour)},
	)
	r := NewOutboxRepo(store)
	ctx := context.Background()

	due, err := r.ListDue(ctx, at.Add(time.Second), at.Add(time.Second), 0, model.OutboxApplied, model.OutboxPartial)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "a", "c"}, ids(due))

	// the backed-off entry does not take a slot of the batch
	due, err = r.ListDue(ctx, at.Add(time.Second), at.Add(time.Second), 2, model.OutboxApplied, model.OutboxPartial)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "a"}, ids(due))

	due, err = r.ListDue(ctx, at.Add(time.Second), at.Add(time.Hour), 0, model.OutboxPartial)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "b"}, ids(due))
}

func TestMarkAttempt(t *testing.T) {
	store := memstore.New()
	seedOutbox(t, store, model.OutboxEntry{ID: "a", Status: model.OutboxPartial, CreatedAt: at})
	r := NewOutboxRepo(store)
	ctx := context.Background()

	require.NoError(t, r.MarkAttempt(ctx, "a", 2, at.Add(2*time.Minute), at))
	got, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, model.OutboxPublished, got.Status)
	assert.Equal(t, 2, got.Attempts)
	assert.True(t, got.NextAttemptAt.Equal(at.Add(2*time.Minute)))

	assert.ErrorIs(t, r.MarkAttempt(ctx, "missing", 1, at, at), ErrOutboxNotFound)
}

func TestUnappliedSpendingTx(t *testing.T) {
	store := memstore.New()
	base := model.OutboxEntry{CompanyID: "club-1", EventID: "ev-1", UserID: "u1", NeedsSpending: true, CreatedAt: at}
	entry := func(id string, mut func(*model.OutboxEntry)) model.OutboxEntry {
		e := base
		e.ID = id
		mut(&e)
		return e
	}
	seedOutbox(t, store,
		entry("user-missing", func(e *model.OutboxEntry) { e.GuestApplied = true }),
		entry("done", func(e *model.OutboxEntry) { e.GuestApplied, e.UserApplied = true, true }),
		entry("cancel", func(e *model.OutboxEntry) { e.DropEventSpending = true }),
		entry("other-user", func(e *model.OutboxEntry) { e.UserID = "u2" }),
		entry("other-event", func(e *model.OutboxEntry) { e.EventID = "ev-2" }),
		entry("no-spending", func(e *model.OutboxEntry) { e.NeedsSpending = false }),
	)
	r := NewOutboxRepo(store)
	ctx := context.Background()

	require.NoError(t, store.RunTransaction(ctx, func(tx docstore.Tx) error {
		stale, err := r.UnappliedSpendingTx(ctx, tx, "club-1", "ev-1", "u1")
		if err != nil {
			return err
		}
		assert.Equal(t, []string{"user-missing"}, ids(stale))
		return r.SupersedeTx(tx, "user-missing", "cancel", at)
	}))

	got, err := r.Get(ctx, "user-missing")
	require.NoError(t, err)
	assert.True(t, got.Settled())
	assert.Equal(t, "cancel", got.SupersededBy)
}
