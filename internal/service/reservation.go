// Package service orchestrates the reservation engine: table transitions,
// the per-event summary and the spending/loyalty denormalization.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iliyamo/venue-table-reservation/internal/docstore"
	"github.com/iliyamo/venue-table-reservation/internal/model"
	"github.com/iliyamo/venue-table-reservation/internal/repository"
)

// Actor is the authenticated caller on whose behalf an operation runs.
type Actor struct {
	ID   string
	Name string
	Role string
}

// DisplayName falls back to the caller id when no name is known.
func (a Actor) DisplayName() string {
	if n := strings.TrimSpace(a.Name); n != "" {
		return n
	}
	return a.ID
}

// TableRef addresses one table.
type TableRef struct {
	CompanyID string `json:"companyId" validate:"required,docid"`
	EventID   string `json:"eventId" validate:"required,docid"`
	LayoutID  string `json:"layoutId" validate:"required,docid"`
	TableName string `json:"tableName" validate:"required"`
}

func (r TableRef) validate() error {
	if err := requireIDs(map[string]string{
		"companyId": r.CompanyID,
		"eventId":   r.EventID,
		"layoutId":  r.LayoutID,
	}); err != nil {
		return err
	}
	if strings.TrimSpace(r.TableName) == "" {
		return validationErr("tableName", "Field is required")
	}
	return nil
}

// ReservationService is the root of the engine and the only component with
// externally callable operations.
type ReservationService struct {
	store      docstore.Store
	layouts    *repository.LayoutRepo
	summaries  *repository.SummaryRepo
	guests     *repository.GuestRepo
	users      *repository.UserRepo
	guestLists *repository.GuestListRepo
	outbox     *repository.OutboxRepo
	summary    *SummaryAggregator
	spending   *SpendingDenormalizer
	log        *zerolog.Logger
	now        func() time.Time
	newID      func() string
}

// Option customises a ReservationService.
type Option func(*ReservationService)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *ReservationService) { s.now = now }
}

// WithIDGenerator replaces uuid-based id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *ReservationService) { s.newID = gen }
}

func NewReservationService(store docstore.Store, events EventDirectory, logger *zerolog.Logger, opts ...Option) *ReservationService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &ReservationService{
		store:      store,
		layouts:    repository.NewLayoutRepo(store),
		summaries:  repository.NewSummaryRepo(store),
		guests:     repository.NewGuestRepo(store),
		users:      repository.NewUserRepo(store),
		guestLists: repository.NewGuestListRepo(store),
		outbox:     repository.NewOutboxRepo(store),
		log:        logger,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	s.summary = NewSummaryAggregator(store, logger, s.now)
	s.spending = NewSpendingDenormalizer(store, events, logger, s.now)
	return s
}

// Summary exposes the aggregator to the reconciliation worker.
func (s *ReservationService) Summary() *SummaryAggregator { return s.summary }

// newEntry builds an outbox entry for a mutation.
func (s *ReservationService) newEntry(kind model.MutationKind, companyID, eventID string, actor Actor) *model.OutboxEntry {
	now := s.now()
	return &model.OutboxEntry{
		ID:        s.newID(),
		Kind:      kind,
		CompanyID: companyID,
		EventID:   eventID,
		Actor:     actor.DisplayName(),
		Status:    model.OutboxPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func withSummaryDelta(e *model.OutboxEntry, d model.SummaryDelta) {
	if !d.IsZero() {
		e.SummaryDelta = &d
	}
}

// Settle applies the secondary writes of an entry that are still missing and
// records the outcome on the entry, unless the reconciliation worker already
// owns it. It returns applied when every step is done and partial otherwise.
// Failures are logged, never returned to the caller of the primary operation.
func (s *ReservationService) Settle(ctx context.Context, entryID string) model.OutboxStatus {
	e, err := s.outbox.Get(ctx, entryID)
	if err != nil {
		s.log.Warn().Err(err).Str("entry_id", entryID).Msg("outbox entry unreadable, leaving it for reconciliation")
		return model.OutboxPending
	}

	var errs []error
	if e.SummaryDelta != nil && !e.SummaryApplied {
		if err := s.summary.ApplyEntry(ctx, e.ID); err != nil {
			errs = append(errs, errors.New("summary: "+err.Error()))
		}
	}
	if e.NeedsSpending {
		if !e.GuestApplied {
			if err := s.spending.ApplyGuest(ctx, e.ID); err != nil {
				errs = append(errs, errors.New("guest: "+err.Error()))
			}
		}
		if !e.UserApplied {
			if err := s.spending.ApplyUser(ctx, e.ID); err != nil {
				errs = append(errs, errors.New("user: "+err.Error()))
			}
		}
	}
	if e.CreditGenres && !e.GenresApplied {
		if err := s.spending.CreditGenres(ctx, e.ID); err != nil {
			errs = append(errs, errors.New("genres: "+err.Error()))
		}
	}

	status, msg := model.OutboxApplied, ""
	if len(errs) > 0 {
		status = model.OutboxPartial
		msg = errors.Join(errs...).Error()
		s.log.Warn().Str("entry_id", e.ID).Str("kind", string(e.Kind)).
			Str("company_id", e.CompanyID).Str("event_id", e.EventID).
			Str("error", msg).Msg("denormalization incomplete, reconciliation will retry")
	}
	if e.Status == model.OutboxPublished || e.Status == model.OutboxReconciled || e.Status == model.OutboxFailed {
		// the worker owns the entry from here on
		return status
	}
	if err := s.outbox.SetStatus(ctx, e.ID, status, msg, s.now()); err != nil {
		s.log.Warn().Err(err).Str("entry_id", e.ID).Msg("failed to record outbox status")
	}
	return status
}

// requireIDs validates document identifiers. Ids become path segments and
// map keys, so they must not contain '/' or '.'.
func requireIDs(ids map[string]string) error {
	for _, field := range []string{"companyId", "eventId", "layoutId", "sourceLayoutId", "destinationLayoutId", "guestListId", "guestId", "userId"} {
		v, ok := ids[field]
		if !ok {
			continue
		}
		if strings.TrimSpace(v) == "" {
			return validationErr(field, "Field is required")
		}
		if strings.ContainsAny(v, "/.") || v == model.SummaryID {
			return validationErr(field, "Invalid format")
		}
	}
	return nil
}

func findTable(l *model.Layout, name string) (*model.Table, error) {
	i, ok := l.FindTable(name)
	if !ok {
		return nil, notFoundErr("table "+name+" not found in layout "+l.ID, repository.ErrTableNotFound)
	}
	return &l.Items[i], nil
}
