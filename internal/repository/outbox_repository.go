package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/iliyamo/venue-table-reservation/internal/docstore"
	"github.com/iliyamo/venue-table-reservation/internal/model"
)

// OutboxRepo persists reservation mutation entries.
type OutboxRepo struct {
	store docstore.Store
}

func NewOutboxRepo(store docstore.Store) *OutboxRepo { return &OutboxRepo{store: store} }

// CreateTx writes e in the same transaction as the mutation it records.
func (r *OutboxRepo) CreateTx(tx docstore.Tx, e *model.OutboxEntry) error {
	if e.Status == "" {
		e.Status = model.OutboxPending
	}
	return tx.Set(OutboxRef(e.ID), e)
}

func (r *OutboxRepo) Get(ctx context.Context, id string) (*model.OutboxEntry, error) {
	return getOutbox(ctx, r.store, id)
}

func (r *OutboxRepo) GetTx(ctx context.Context, tx docstore.Tx, id string) (*model.OutboxEntry, error) {
	return getOutbox(ctx, tx, id)
}

func getOutbox(ctx context.Context, rd docstore.Reader, id string) (*model.OutboxEntry, error) {
	var e model.OutboxEntry
	if err := rd.Get(ctx, OutboxRef(id), &e); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrOutboxNotFound
		}
		return nil, err
	}
	return &e, nil
}

// MarkTx sets a step flag on the entry inside tx.
func (r *OutboxRepo) MarkTx(tx docstore.Tx, id, flag string, now time.Time) error {
	return tx.Update(OutboxRef(id), docstore.Set(flag, true), docstore.Set("updatedAt", now))
}

// SetStatus records the status of an entry and the last error, if any.
func (r *OutboxRepo) SetStatus(ctx context.Context, id string, status model.OutboxStatus, errMsg string, now time.Time) error {
	ops := []docstore.Op{
		docstore.Set("status", status),
		docstore.Set("updatedAt", now),
	}
	if errMsg == "" {
		ops = append(ops, docstore.Delete("error"))
	} else {
		ops = append(ops, docstore.Set("error", errMsg))
	}
	err := r.store.Update(ctx, OutboxRef(id), ops...)
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrOutboxNotFound
	}
	return err
}

// MarkAttempt records that the relay handed the entry to the worker and
// when it may do so again.
func (r *OutboxRepo) MarkAttempt(ctx context.Context, id string, attempts int, next, now time.Time) error {
	err := r.store.Update(ctx, OutboxRef(id),
		docstore.Set("status", model.OutboxPublished),
		docstore.Set("attempts", attempts),
		docstore.Set("nextAttemptAt", next),
		docstore.Set("updatedAt", now),
	)
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrOutboxNotFound
	}
	return err
}

// ListDue returns entries in one of statuses that were created before
// createdBefore and whose next attempt is due at dueAt, oldest first, at
// most limit of them.
func (r *OutboxRepo) ListDue(ctx context.Context, createdBefore, dueAt time.Time, limit int, statuses ...model.OutboxStatus) ([]model.OutboxEntry, error) {
	vals := make([]any, len(statuses))
	for i, s := range statuses {
		vals[i] = string(s)
	}
	var due []model.OutboxEntry
	err := r.store.List(ctx, outboxCollection, &due,
		docstore.In("status", vals...),
		docstore.Lt("createdAt", createdBefore),
		docstore.Lte("nextAttemptAt", dueAt),
	)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(due, func(i, j int) bool {
		if !due[i].CreatedAt.Equal(due[j].CreatedAt) {
			return due[i].CreatedAt.Before(due[j].CreatedAt)
		}
		return due[i].ID < due[j].ID
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// UnappliedSpendingTx returns the entries of one person at one event whose
// spending steps have not all been applied, excluding cancellations.
func (r *OutboxRepo) UnappliedSpendingTx(ctx context.Context, tx docstore.Tx, companyID, eventID, userID string) ([]model.OutboxEntry, error) {
	var all []model.OutboxEntry
	err := tx.List(ctx, outboxCollection, &all,
		docstore.Eq("companyId", companyID),
		docstore.Eq("eventId", eventID),
		docstore.Eq("userId", userID),
		docstore.Eq("needsSpending", true),
	)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, e := range all {
		if !e.DropEventSpending && (!e.GuestApplied || !e.UserApplied) {
			out = append(out, e)
		}
	}
	return out, nil
}

// SupersedeTx retires the spending steps of entry id in favour of the
// cancellation by.
func (r *OutboxRepo) SupersedeTx(tx docstore.Tx, id, by string, now time.Time) error {
	return tx.Update(OutboxRef(id),
		docstore.Set("guestApplied", true),
		docstore.Set("userApplied", true),
		docstore.Set("supersededBy", by),
		docstore.Set("updatedAt", now),
	)
}
