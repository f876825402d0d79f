package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/venue-table-reservation/internal/docstore"
	"github.com/iliyamo/venue-table-reservation/internal/model"
	"github.com/iliyamo/venue-table-reservation/internal/repository"
	"github.com/iliyamo/venue-table-reservation/internal/tablestate"
)

// NewIdentity is the userId sentinel asking for a brand-new User.
const NewIdentity = "new"

// BookRequest is the input of BookTable. Name and contact fields only seed a
// new identity; for an existing one the stored data wins.
type BookRequest struct {
	TableRef
	GuestName       string `json:"guestName" validate:"required,max=200"`
	PhoneNumberE164 string `json:"phoneNumberE164" validate:"required,e164"`
	PhoneNumber     string `json:"phoneNumber,omitempty" validate:"max=50"`
	Email           string `json:"email,omitempty" validate:"omitempty,email"`
	NrOfGuests      int64  `json:"nrOfGuests" validate:"gte=1"`
	TableLimit      int64  `json:"tableLimit" validate:"gte=0"`
	TableSpent      int64  `json:"tableSpent" validate:"gte=0"`
	TimeFrom        string `json:"timeFrom,omitempty"`
	TimeTo          string `json:"timeTo,omitempty"`
	Comment         string `json:"comment,omitempty" validate:"max=1000"`
	UserID          string `json:"userId" validate:"required,docid|eq=new"`
}

// IdentityView is the resolved identity returned to the caller.
type IdentityView struct {
	UserID  string        `json:"userId"`
	Contact model.Contact `json:"contact"`
	Created bool          `json:"created"`
}

// BookResult is the output of BookTable.
type BookResult struct {
	Table    model.Table  `json:"table"`
	Identity IdentityView `json:"identity"`
}

// BookTable seats a guest at an empty table.
//
// The table is checked without a lock first so that an occupied table fails
// fast; the identity is resolved (creating a User for NewIdentity); then a
// transaction on the layout re-verifies the table is still empty and writes
// it together with the outbox entry. Summary and spending updates follow
// outside the transaction.
func (s *ReservationService) BookTable(ctx context.Context, actor Actor, req BookRequest) (*BookResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if err := validateBooking(req); err != nil {
		return nil, err
	}

	pre, err := s.layouts.Get(ctx, req.CompanyID, req.EventID, req.LayoutID)
	if err != nil {
		return nil, translate(err)
	}
	t, err := findTable(pre, req.TableName)
	if err != nil {
		return nil, err
	}
	if t.Occupied() {
		return nil, conflictErr("table is already booked by "+t.GuestName, t.GuestName)
	}

	ident, err := s.resolveIdentity(ctx, req)
	if err != nil {
		return nil, err
	}

	entry := s.newEntry(model.MutationBook, req.CompanyID, req.EventID, actor)
	entry.LayoutID = req.LayoutID
	entry.TableName = req.TableName
	entry.UserID = ident.UserID
	entry.Contact = &ident.Contact
	entry.SpentDelta = req.TableSpent
	entry.NeedsSpending = true

	var booked model.Table
	err = s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		l, err := s.layouts.GetTx(ctx, tx, req.CompanyID, req.EventID, req.LayoutID)
		if err != nil {
			return err
		}
		t, err := findTable(l, req.TableName)
		if err != nil {
			return err
		}
		before := *t
		err = tablestate.Book(t, tablestate.Occupant{
			Contact:    ident.Contact,
			UserID:     ident.UserID,
			NrOfGuests: req.NrOfGuests,
			TableLimit: req.TableLimit,
			TableSpent: req.TableSpent,
			TimeFrom:   strings.TrimSpace(req.TimeFrom),
			TimeTo:     strings.TrimSpace(req.TimeTo),
			Comment:    strings.TrimSpace(req.Comment),
		}, actor.DisplayName(), s.now())
		var occ *tablestate.OccupiedError
		if errors.As(err, &occ) {
			return conflictErr("table was just booked by another guest: "+occ.Occupant, occ.Occupant)
		}
		if err != nil {
			return err
		}
		if err := s.layouts.SaveItemsTx(tx, req.CompanyID, req.EventID, l, s.now()); err != nil {
			return err
		}
		entry.SummaryDelta = nil
		withSummaryDelta(entry, Delta(&before, t))
		booked = *t
		return s.outbox.CreateTx(tx, entry)
	})
	if err != nil {
		return nil, translate(err)
	}

	s.log.Info().Str("company_id", req.CompanyID).Str("event_id", req.EventID).
		Str("layout_id", req.LayoutID).Str("table", req.TableName).
		Str("user_id", ident.UserID).Str("actor", actor.DisplayName()).Msg("table booked")

	s.Settle(ctx, entry.ID)
	return &BookResult{Table: booked, Identity: ident}, nil
}

func validateBooking(req BookRequest) error {
	switch {
	case strings.TrimSpace(req.GuestName) == "":
		return validationErr("guestName", "Field is required")
	case strings.TrimSpace(req.PhoneNumberE164) == "":
		return validationErr("phoneNumberE164", "Field is required")
	case req.NrOfGuests < 1:
		return validationErr("nrOfGuests", "Field is below minimum value")
	case req.TableLimit < 0:
		return validationErr("tableLimit", "Field is below minimum value")
	case req.TableSpent < 0:
		return validationErr("tableSpent", "Field is below minimum value")
	case strings.TrimSpace(req.UserID) == "":
		return validationErr("userId", "Field is required")
	}
	return nil
}

// resolveIdentity returns the identity a booking is for. An existing id must
// exist; its contact comes from the venue's Guest record when there is one,
// from the User otherwise, with request values only filling blanks.
func (s *ReservationService) resolveIdentity(ctx context.Context, req BookRequest) (IdentityView, error) {
	requested := model.Contact{
		Name:            strings.TrimSpace(req.GuestName),
		PhoneNumber:     strings.TrimSpace(req.PhoneNumber),
		PhoneNumberE164: strings.TrimSpace(req.PhoneNumberE164),
		Email:           strings.TrimSpace(req.Email),
	}

	if req.UserID == NewIdentity {
		now := s.now()
		u := model.User{SpendingProfile: model.SpendingProfile{
			UserID:          s.newID(),
			Name:            requested.Name,
			PhoneNumber:     requested.PhoneNumber,
			PhoneNumberE164: requested.PhoneNumberE164,
			Email:           requested.Email,
			CreatedAt:       now,
			UpdatedAt:       now,
		}}
		if err := s.users.Create(ctx, u); err != nil {
			return IdentityView{}, translate(err)
		}
		s.log.Info().Str("user_id", u.UserID).Msg("user created for booking")
		return IdentityView{UserID: u.UserID, Contact: requested, Created: true}, nil
	}

	if strings.ContainsAny(req.UserID, "/.") {
		return IdentityView{}, validationErr("userId", "Invalid format")
	}
	u, err := s.users.Get(ctx, req.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return IdentityView{}, notFoundErr("user "+req.UserID+" not found", err)
	}
	if err != nil {
		return IdentityView{}, translate(err)
	}
	stored := u.Contact()
	if g, err := s.guests.Get(ctx, req.CompanyID, req.UserID); err == nil {
		stored = preferContact(g.Contact(), stored)
	} else if !errors.Is(err, repository.ErrGuestNotFound) {
		return IdentityView{}, translate(err)
	}
	return IdentityView{UserID: u.UserID, Contact: preferContact(stored, requested)}, nil
}

// preferContact fills the blank fields of primary from fallback.
func preferContact(primary, fallback model.Contact) model.Contact {
	pick := func(a, b string) string {
		if strings.TrimSpace(a) != "" {
			return a
		}
		return b
	}
	return model.Contact{
		Name:            pick(primary.Name, fallback.Name),
		PhoneNumber:     pick(primary.PhoneNumber, fallback.PhoneNumber),
		PhoneNumberE164: pick(primary.PhoneNumberE164, fallback.PhoneNumberE164),
		Email:           pick(primary.Email, fallback.Email),
	}
}
