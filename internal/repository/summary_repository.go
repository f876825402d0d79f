package repository

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/venue-table-reservation/internal/docstore"
	"github.com/iliyamo/venue-table-reservation/internal/model"
)

// SummaryRepo reads and writes the per-event TableSummary.
type SummaryRepo struct {
	store docstore.Store
}

func NewSummaryRepo(store docstore.Store) *SummaryRepo { return &SummaryRepo{store: store} }

// Get returns the summary, or ErrSummaryNotFound before the first booking.
func (r *SummaryRepo) Get(ctx context.Context, companyID, eventID string) (*model.TableSummary, error) {
	return getSummary(ctx, r.store, companyID, eventID)
}

func (r *SummaryRepo) GetTx(ctx context.Context, tx docstore.Tx, companyID, eventID string) (*model.TableSummary, error) {
	return getSummary(ctx, tx, companyID, eventID)
}

func getSummary(ctx context.Context, rd docstore.Reader, companyID, eventID string) (*model.TableSummary, error) {
	var s model.TableSummary
	if err := rd.Get(ctx, SummaryRef(companyID, eventID), &s); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrSummaryNotFound
		}
		return nil, err
	}
	return &s, nil
}

// IncrementOps builds the atomic increments for d, creating the summary
// lazily when it does not exist yet.
func IncrementOps(d model.SummaryDelta, now time.Time) []docstore.Op {
	return []docstore.Op{
		docstore.Set("id", model.SummaryID),
		docstore.Inc("totalBooked", d.Booked),
		docstore.Inc("totalCheckedIn", d.CheckedIn),
		docstore.Inc("totalGuests", d.Guests),
		docstore.Inc("totalTableLimit", d.Limit),
		docstore.Inc("totalTableSpent", d.Spent),
		docstore.Set("updatedAt", now),
	}
}

// IncrementTx applies d inside tx.
func (r *SummaryRepo) IncrementTx(tx docstore.Tx, companyID, eventID string, d model.SummaryDelta, now time.Time) error {
	return tx.Upsert(SummaryRef(companyID, eventID), IncrementOps(d, now)...)
}

// ReplaceTx overwrites the summary with freshly computed totals.
func (r *SummaryRepo) ReplaceTx(tx docstore.Tx, companyID, eventID string, s model.TableSummary) error {
	s.ID = model.SummaryID
	return tx.Set(SummaryRef(companyID, eventID), s)
}
