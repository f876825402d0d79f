package service

import (
	"context"

	"github.com/iliyamo/venue-table-reservation/internal/docstore"
	"github.com/iliyamo/venue-table-reservation/internal/model"
	"github.com/iliyamo/venue-table-reservation/internal/tablestate"
)

// UpdateRequest names the table and the subset of fields to change. Absent
// (null) fields are left alone.
type UpdateRequest struct {
	TableRef
	UserID          string  `json:"userId,omitempty" validate:"omitempty,docid"`
	GuestName       *string `json:"guestName,omitempty" validate:"omitempty,max=200"`
	PhoneNumber     *string `json:"phoneNumber,omitempty" validate:"omitempty,max=50"`
	PhoneNumberE164 *string `json:"phoneNumberE164,omitempty" validate:"omitempty,e164"`
	Email           *string `json:"email,omitempty" validate:"omitempty,email"`
	NrOfGuests      *int64  `json:"nrOfGuests,omitempty" validate:"omitempty,gte=1"`
	TableLimit      *int64  `json:"tableLimit,omitempty" validate:"omitempty,gte=0"`
	TableSpent      *int64  `json:"tableSpent,omitempty" validate:"omitempty,gte=0"`
	TableCheckedIn  *int64  `json:"tableCheckedIn,omitempty" validate:"omitempty,gte=0"`
	TimeFrom        *string `json:"timeFrom,omitempty"`
	TimeTo          *string `json:"timeTo,omitempty"`
	Comment         *string `json:"comment,omitempty" validate:"omitempty,max=1000"`
	TableStaff      *string `json:"tableStaff,omitempty" validate:"omitempty,max=200"`
}

func (r UpdateRequest) fields() tablestate.FieldUpdate {
	return tablestate.FieldUpdate{
		GuestName:       r.GuestName,
		PhoneNumber:     r.PhoneNumber,
		PhoneNumberE164: r.PhoneNumberE164,
		Email:           r.Email,
		NrOfGuests:      r.NrOfGuests,
		TableLimit:      r.TableLimit,
		TableSpent:      r.TableSpent,
		TableCheckedIn:  r.TableCheckedIn,
		TimeFrom:        r.TimeFrom,
		TimeTo:          r.TimeTo,
		Comment:         r.Comment,
		TableStaff:      r.TableStaff,
	}
}

// UpdateResult is the output of UpdateTable.
type UpdateResult struct {
	Changes  map[string]model.Change `json:"changes"`
	LogCount int                     `json:"logCount"`
}

// VacateResult is the output of CancelReservation and ResellTable.
type VacateResult struct {
	Removed model.Booking `json:"removed"`
}

// UpdateTable applies a diff-based update. A tableSpent change moves the
// guest's spending by the difference; a tableCheckedIn increase credits the
// event's genres.
func (s *ReservationService) UpdateTable(ctx context.Context, actor Actor, req UpdateRequest) (*UpdateResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.UserID != "" {
		if err := requireIDs(map[string]string{"userId": req.UserID}); err != nil {
			return nil, err
		}
	}

	var (
		res   UpdateResult
		entry *model.OutboxEntry
	)
	err := s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		entry = nil
		l, err := s.layouts.GetTx(ctx, tx, req.CompanyID, req.EventID, req.LayoutID)
		if err != nil {
			return err
		}
		t, err := findTable(l, req.TableName)
		if err != nil {
			return err
		}
		before := *t
		changes, err := tablestate.UpdateFields(t, req.fields(), actor.DisplayName(), s.now())
		if err != nil {
			return err
		}
		res = UpdateResult{Changes: changes, LogCount: len(t.Logs)}
		if len(changes) == 0 {
			return nil
		}
		if err := s.layouts.SaveItemsTx(tx, req.CompanyID, req.EventID, l, s.now()); err != nil {
			return err
		}

		e := s.newEntry(model.MutationUpdate, req.CompanyID, req.EventID, actor)
		e.LayoutID = req.LayoutID
		e.TableName = req.TableName
		e.UserID = t.UserID
		if e.UserID == "" {
			e.UserID = req.UserID
		}
		if e.UserID != "" {
			c := model.Contact{Name: t.GuestName, PhoneNumber: t.PhoneNumber, PhoneNumberE164: t.PhoneNumberE164, Email: t.Email}
			e.Contact = &c
			e.SpentDelta = t.TableSpent - before.TableSpent
			e.NeedsSpending = e.SpentDelta != 0
			e.CreditGenres = t.TableCheckedIn > before.TableCheckedIn
		}
		withSummaryDelta(e, Delta(&before, t))
		entry = e
		return s.outbox.CreateTx(tx, e)
	})
	if err != nil {
		return nil, translate(err)
	}
	if entry == nil {
		s.log.Debug().Str("layout_id", req.LayoutID).Str("table", req.TableName).Msg("update changed nothing")
		return &res, nil
	}

	s.log.Info().Str("company_id", req.CompanyID).Str("event_id", req.EventID).
		Str("layout_id", req.LayoutID).Str("table", req.TableName).
		Int("changes", len(res.Changes)).Str("actor", actor.DisplayName()).Msg("table updated")
	s.Settle(ctx, entry.ID)
	return &res, nil
}

// CancelReservation clears the table and removes the event's spending from
// the guest's Guest and User records.
func (s *ReservationService) CancelReservation(ctx context.Context, actor Actor, ref TableRef) (*VacateResult, error) {
	return s.vacate(ctx, actor, ref, model.MutationCancel)
}

// ResellTable clears the table like CancelReservation but keeps the
// previous guest's spending history and the summary untouched.
func (s *ReservationService) ResellTable(ctx context.Context, actor Actor, ref TableRef) (*VacateResult, error) {
	return s.vacate(ctx, actor, ref, model.MutationResell)
}

func (s *ReservationService) vacate(ctx context.Context, actor Actor, ref TableRef, kind model.MutationKind) (*VacateResult, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}

	var (
		removed model.Booking
		entry   *model.OutboxEntry
	)
	err := s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		l, err := s.layouts.GetTx(ctx, tx, ref.CompanyID, ref.EventID, ref.LayoutID)
		if err != nil {
			return err
		}
		t, err := findTable(l, ref.TableName)
		if err != nil {
			return err
		}
		before := *t
		if kind == model.MutationCancel {
			removed, err = tablestate.Cancel(t, actor.DisplayName(), s.now())
		} else {
			removed, err = tablestate.Resell(t, actor.DisplayName(), s.now())
		}
		if err != nil {
			return err
		}
		if err := s.layouts.SaveItemsTx(tx, ref.CompanyID, ref.EventID, l, s.now()); err != nil {
			return err
		}

		entry = s.newEntry(kind, ref.CompanyID, ref.EventID, actor)
		entry.LayoutID = ref.LayoutID
		entry.TableName = ref.TableName
		entry.UserID = removed.UserID
		if kind == model.MutationCancel {
			entry.NeedsSpending = true
			entry.DropEventSpending = true
			withSummaryDelta(entry, Delta(&before, t))
			if err := s.supersedeSpendingTx(ctx, tx, entry); err != nil {
				return err
			}
		}
		return s.outbox.CreateTx(tx, entry)
	})
	if err != nil {
		return nil, translate(err)
	}

	s.log.Info().Str("company_id", ref.CompanyID).Str("event_id", ref.EventID).
		Str("layout_id", ref.LayoutID).Str("table", ref.TableName).
		Str("kind", string(kind)).Str("removed_guest", removed.GuestName).
		Str("actor", actor.DisplayName()).Msg("table vacated")
	s.Settle(ctx, entry.ID)
	return &VacateResult{Removed: removed}, nil
}

// supersedeSpendingTx retires the spending steps that earlier entries of the
// same person and event have not applied yet. Applied after the drop they
// would bring the cancelled event's spending back.
func (s *ReservationService) supersedeSpendingTx(ctx context.Context, tx docstore.Tx, cancel *model.OutboxEntry) error {
	if cancel.UserID == "" {
		return nil
	}
	stale, err := s.outbox.UnappliedSpendingTx(ctx, tx, cancel.CompanyID, cancel.EventID, cancel.UserID)
	if err != nil {
		return err
	}
	for _, e := range stale {
		if err := s.outbox.SupersedeTx(tx, e.ID, cancel.ID, cancel.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}
