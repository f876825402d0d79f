package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/venue-table-reservation/internal/docstore"
	"github.com/iliyamo/venue-table-reservation/internal/model"
	"github.com/iliyamo/venue-table-reservation/internal/repository"
)

// Contribution is what one table adds to the TableSummary.
func Contribution(t *model.Table) model.SummaryDelta {
	if !t.IsTable() || !t.Occupied() {
		return model.SummaryDelta{}
	}
	return model.SummaryDelta{
		Booked:    1,
		CheckedIn: t.TableCheckedIn,
		Guests:    t.NrOfGuests,
		Limit:     t.TableLimit,
		Spent:     t.TableSpent,
	}
}

// Delta is the summary change caused by a table going from before to after.
func Delta(before, after *model.Table) model.SummaryDelta {
	b, a := Contribution(before), Contribution(after)
	return model.SummaryDelta{
		Booked:    a.Booked - b.Booked,
		CheckedIn: a.CheckedIn - b.CheckedIn,
		Guests:    a.Guests - b.Guests,
		Limit:     a.Limit - b.Limit,
		Spent:     a.Spent - b.Spent,
	}
}

// SummaryAggregator maintains the per-event TableSummary, incrementally
// from outbox entries and by full recompute.
type SummaryAggregator struct {
	store     docstore.Store
	layouts   *repository.LayoutRepo
	summaries *repository.SummaryRepo
	outbox    *repository.OutboxRepo
	log       *zerolog.Logger
	now       func() time.Time
}

func NewSummaryAggregator(store docstore.Store, logger *zerolog.Logger, now func() time.Time) *SummaryAggregator {
	return &SummaryAggregator{
		store:     store,
		layouts:   repository.NewLayoutRepo(store),
		summaries: repository.NewSummaryRepo(store),
		outbox:    repository.NewOutboxRepo(store),
		log:       logger,
		now:       now,
	}
}

// ApplyEntry adds the entry's summary delta exactly once: the increment and
// the summaryApplied flag commit together.
func (a *SummaryAggregator) ApplyEntry(ctx context.Context, entryID string) error {
	return a.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		e, err := a.outbox.GetTx(ctx, tx, entryID)
		if err != nil {
			return err
		}
		if e.SummaryApplied || e.SummaryDelta == nil {
			return nil
		}
		now := a.now()
		if err := a.summaries.IncrementTx(tx, e.CompanyID, e.EventID, *e.SummaryDelta, now); err != nil {
			return err
		}
		return a.outbox.MarkTx(tx, e.ID, "summaryApplied", now)
	})
}

// Recompute re-reads every layout of the event and overwrites the summary.
// It runs as a transaction over the layouts collection, so a concurrent
// layout write or summary increment makes it start over instead of being
// overwritten.
func (a *SummaryAggregator) Recompute(ctx context.Context, companyID, eventID string) (*model.TableSummary, error) {
	var out model.TableSummary
	err := a.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		layouts, err := a.layouts.ListTx(ctx, tx, companyID, eventID)
		if err != nil {
			return err
		}
		if _, err := a.summaries.GetTx(ctx, tx, companyID, eventID); err != nil && !errors.Is(err, repository.ErrSummaryNotFound) {
			return err
		}
		now := a.now()
		out = Sum(layouts)
		out.UpdatedAt = now
		out.RecomputedAt = &now
		return a.summaries.ReplaceTx(tx, companyID, eventID, out)
	})
	if err != nil {
		return nil, err
	}
	a.log.Debug().Str("company_id", companyID).Str("event_id", eventID).
		Int64("total_booked", out.TotalBooked).Msg("table summary recomputed")
	return &out, nil
}

// Sum totals every table of layouts.
func Sum(layouts []model.Layout) model.TableSummary {
	s := model.TableSummary{ID: model.SummaryID}
	for i := range layouts {
		for j := range layouts[i].Items {
			t := &layouts[i].Items[j]
			if !t.IsTable() {
				continue
			}
			s.TotalTables++
			c := Contribution(t)
			s.TotalBooked += c.Booked
			s.TotalCheckedIn += c.CheckedIn
			s.TotalGuests += c.Guests
			s.TotalTableLimit += c.Limit
			s.TotalTableSpent += c.Spent
		}
	}
	return s
}
