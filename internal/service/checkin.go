package service

import (
	"context"

	"github.com/iliyamo/venue-table-reservation/internal/docstore"
	"github.com/iliyamo/venue-table-reservation/internal/model"
	"github.com/iliyamo/venue-table-reservation/internal/tablestate"
)

// CheckInRequest addresses a guest-list guest. Increment mode reads the
// *Increment fields, set mode the *CheckedIn fields.
type CheckInRequest struct {
	CompanyID       string `json:"companyId" validate:"required,docid"`
	EventID         string `json:"eventId" validate:"required,docid"`
	GuestListID     string `json:"guestListId" validate:"required,docid"`
	GuestID         string `json:"guestId" validate:"required,docid"`
	Action          string `json:"action" validate:"required,action"`
	NormalIncrement *int64 `json:"normalIncrement,omitempty"`
	FreeIncrement   *int64 `json:"freeIncrement,omitempty"`
	NormalCheckedIn *int64 `json:"normalCheckedIn,omitempty" validate:"omitempty,gte=0"`
	FreeCheckedIn   *int64 `json:"freeCheckedIn,omitempty" validate:"omitempty,gte=0"`
}

func (r CheckInRequest) toState() tablestate.CheckInRequest {
	mode := tablestate.CheckInMode(r.Action)
	if mode == tablestate.CheckInSet {
		return tablestate.CheckInRequest{Mode: mode, Normal: r.NormalCheckedIn, Free: r.FreeCheckedIn}
	}
	return tablestate.CheckInRequest{Mode: mode, Normal: r.NormalIncrement, Free: r.FreeIncrement}
}

// CheckInResult reports the guest's counts after the check-in.
type CheckInResult struct {
	GuestID         string `json:"guestId"`
	NormalGuests    int64  `json:"normalGuests"`
	FreeGuests      int64  `json:"freeGuests"`
	NormalCheckedIn int64  `json:"normalCheckedIn"`
	FreeCheckedIn   int64  `json:"freeCheckedIn"`
	TotalCheckedIn  int64  `json:"totalCheckedIn"`
}

// CheckInGuest updates the checked-in counts of a guest-list guest. When the
// total goes up and the guest is linked to a user, the event's genres are
// credited to that user's Guest and User records.
func (s *ReservationService) CheckInGuest(ctx context.Context, actor Actor, req CheckInRequest) (*CheckInResult, error) {
	if err := requireIDs(map[string]string{
		"companyId":   req.CompanyID,
		"eventId":     req.EventID,
		"guestListId": req.GuestListID,
		"guestId":     req.GuestID,
	}); err != nil {
		return nil, err
	}
	mode := tablestate.CheckInMode(req.Action)
	if mode != tablestate.CheckInIncrement && mode != tablestate.CheckInSet {
		return nil, validationErr("action", "Invalid format")
	}

	var (
		res   CheckInResult
		entry *model.OutboxEntry
	)
	err := s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		entry = nil
		g, err := s.guestLists.GetTx(ctx, tx, req.CompanyID, req.EventID, req.GuestListID, req.GuestID)
		if err != nil {
			return err
		}
		logs := len(g.Logs)
		out, err := tablestate.CheckIn(g, req.toState(), actor.DisplayName(), s.now())
		if err != nil {
			return err
		}
		res = CheckInResult{
			GuestID:         g.ID,
			NormalGuests:    g.NormalGuests,
			FreeGuests:      g.FreeGuests,
			NormalCheckedIn: g.NormalCheckedIn,
			FreeCheckedIn:   g.FreeCheckedIn,
			TotalCheckedIn:  g.TotalCheckedIn(),
		}
		if len(g.Logs) == logs {
			return nil
		}
		if err := s.guestLists.SaveCheckInTx(tx, req.CompanyID, req.EventID, req.GuestListID, g); err != nil {
			return err
		}
		entry = s.newEntry(model.MutationCheckIn, req.CompanyID, req.EventID, actor)
		entry.GuestListID = req.GuestListID
		entry.GuestID = req.GuestID
		entry.UserID = g.UserID
		entry.CreditGenres = out.Increased() && g.UserID != ""
		return s.outbox.CreateTx(tx, entry)
	})
	if err != nil {
		return nil, translate(err)
	}
	if entry == nil {
		return &res, nil
	}

	s.log.Info().Str("company_id", req.CompanyID).Str("event_id", req.EventID).
		Str("guest_list_id", req.GuestListID).Str("guest_id", req.GuestID).
		Int64("total_checked_in", res.TotalCheckedIn).Str("actor", actor.DisplayName()).Msg("guest checked in")
	s.Settle(ctx, entry.ID)
	return &res, nil
}
