package repository

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/venue-table-reservation/internal/docstore"
	"github.com/iliyamo/venue-table-reservation/internal/model"
)

// LayoutRepo provides access to the layouts of an event. Writes only touch
// the items array and the modification time so that fields owned by the
// layout editor survive.
type LayoutRepo struct {
	store docstore.Store
}

// NewLayoutRepo returns a new LayoutRepo bound to the provided store.
func NewLayoutRepo(store docstore.Store) *LayoutRepo { return &LayoutRepo{store: store} }

// Get reads a layout outside any transaction.
func (r *LayoutRepo) Get(ctx context.Context, companyID, eventID, layoutID string) (*model.Layout, error) {
	return getLayout(ctx, r.store, companyID, eventID, layoutID)
}

// GetTx reads a layout inside tx.
func (r *LayoutRepo) GetTx(ctx context.Context, tx docstore.Tx, companyID, eventID, layoutID string) (*model.Layout, error) {
	return getLayout(ctx, tx, companyID, eventID, layoutID)
}

func getLayout(ctx context.Context, rd docstore.Reader, companyID, eventID, layoutID string) (*model.Layout, error) {
	if layoutID == model.SummaryID {
		return nil, ErrLayoutNotFound
	}
	var l model.Layout
	if err := rd.Get(ctx, LayoutRef(companyID, eventID, layoutID), &l); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrLayoutNotFound
		}
		return nil, err
	}
	if l.ID == "" {
		l.ID = layoutID
	}
	return &l, nil
}

// SaveItemsTx writes the items of l back inside tx.
func (r *LayoutRepo) SaveItemsTx(tx docstore.Tx, companyID, eventID string, l *model.Layout, now time.Time) error {
	if name, dup := l.DuplicateTableName(); dup {
		return errors.Join(ErrConflict, errors.New("duplicate table name "+name))
	}
	l.UpdatedAt = now
	return tx.Update(LayoutRef(companyID, eventID, l.ID),
		docstore.Set("items", l.Items),
		docstore.Set("updatedAt", now),
	)
}

// List returns every layout of the event, skipping the summary document.
func (r *LayoutRepo) List(ctx context.Context, companyID, eventID string) ([]model.Layout, error) {
	return listLayouts(ctx, r.store, companyID, eventID)
}

// ListTx is List inside tx. Adapters that validate list reads make a
// concurrent layout write abort the transaction.
func (r *LayoutRepo) ListTx(ctx context.Context, tx docstore.Tx, companyID, eventID string) ([]model.Layout, error) {
	return listLayouts(ctx, tx, companyID, eventID)
}

func listLayouts(ctx context.Context, rd docstore.Reader, companyID, eventID string) ([]model.Layout, error) {
	var all []model.Layout
	if err := rd.List(ctx, LayoutsCollection(companyID, eventID), &all); err != nil {
		return nil, err
	}
	out := all[:0]
	for _, l := range all {
		if l.ID == model.SummaryID {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// Create stores a new layout. It is used by seeding and tests; layout
// editing itself lives outside this service.
func (r *LayoutRepo) Create(ctx context.Context, companyID, eventID string, l model.Layout) error {
	if l.ID == "" || l.ID == model.SummaryID {
		return docstore.ErrInvalidPath
	}
	if name, dup := l.DuplicateTableName(); dup {
		return errors.Join(ErrConflict, errors.New("duplicate table name "+name))
	}
	return r.store.Set(ctx, LayoutRef(companyID, eventID, l.ID), l)
}
