package repository

import (
	"context"
	"errors"

	"github.com/iliyamo/venue-table-reservation/internal/docstore"
	"github.com/iliyamo/venue-table-reservation/internal/model"
)

// GuestListRepo provides access to guest-list entries of an event.
type GuestListRepo struct {
	store docstore.Store
}

func NewGuestListRepo(store docstore.Store) *GuestListRepo { return &GuestListRepo{store: store} }

func (r *GuestListRepo) Get(ctx context.Context, companyID, eventID, guestListID, guestID string) (*model.GuestListGuest, error) {
	return getListGuest(ctx, r.store, companyID, eventID, guestListID, guestID)
}

func (r *GuestListRepo) GetTx(ctx context.Context, tx docstore.Tx, companyID, eventID, guestListID, guestID string) (*model.GuestListGuest, error) {
	return getListGuest(ctx, tx, companyID, eventID, guestListID, guestID)
}

func getListGuest(ctx context.Context, rd docstore.Reader, companyID, eventID, guestListID, guestID string) (*model.GuestListGuest, error) {
	var g model.GuestListGuest
	if err := rd.Get(ctx, ListGuestRef(companyID, eventID, guestListID, guestID), &g); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrListGuestNotFound
		}
		return nil, err
	}
	if g.ID == "" {
		g.ID = guestID
	}
	return &g, nil
}

// SaveCheckInTx writes the checked-in counts and the log of g.
func (r *GuestListRepo) SaveCheckInTx(tx docstore.Tx, companyID, eventID, guestListID string, g *model.GuestListGuest) error {
	return tx.Update(ListGuestRef(companyID, eventID, guestListID, g.ID),
		docstore.Set("normalCheckedIn", g.NormalCheckedIn),
		docstore.Set("freeCheckedIn", g.FreeCheckedIn),
		docstore.Set("logs", g.Logs),
		docstore.Set("updatedAt", g.UpdatedAt),
	)
}

// Create stores a guest-list entry. Guest-list import lives outside this
// service; seeding and tests use this.
func (r *GuestListRepo) Create(ctx context.Context, companyID, eventID, guestListID string, g model.GuestListGuest) error {
	return r.store.Set(ctx, ListGuestRef(companyID, eventID, guestListID, g.ID), g)
}
