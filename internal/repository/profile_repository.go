package repository

import (
	"context"
	"errors"

	"github.com/iliyamo/venue-table-reservation/internal/docstore"
	"github.com/iliyamo/venue-table-reservation/internal/model"
)

// GuestRepo provides access to venue-scoped guests.
type GuestRepo struct {
	store docstore.Store
}

func NewGuestRepo(store docstore.Store) *GuestRepo { return &GuestRepo{store: store} }

func (r *GuestRepo) Get(ctx context.Context, companyID, userID string) (*model.Guest, error) {
	return getGuest(ctx, r.store, companyID, userID)
}

func (r *GuestRepo) GetTx(ctx context.Context, tx docstore.Tx, companyID, userID string) (*model.Guest, error) {
	return getGuest(ctx, tx, companyID, userID)
}

func getGuest(ctx context.Context, rd docstore.Reader, companyID, userID string) (*model.Guest, error) {
	var g model.Guest
	if err := rd.Get(ctx, GuestRef(companyID, userID), &g); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrGuestNotFound
		}
		return nil, err
	}
	return &g, nil
}

// UserRepo provides access to global users.
type UserRepo struct {
	store docstore.Store
}

func NewUserRepo(store docstore.Store) *UserRepo { return &UserRepo{store: store} }

func (r *UserRepo) Get(ctx context.Context, userID string) (*model.User, error) {
	return getUser(ctx, r.store, userID)
}

func (r *UserRepo) GetTx(ctx context.Context, tx docstore.Tx, userID string) (*model.User, error) {
	return getUser(ctx, tx, userID)
}

func getUser(ctx context.Context, rd docstore.Reader, userID string) (*model.User, error) {
	var u model.User
	if err := rd.Get(ctx, UserRef(userID), &u); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if u.UserID == "" {
		u.UserID = userID
	}
	return &u, nil
}

// Create stores a new user. The caller assigns the id.
func (r *UserRepo) Create(ctx context.Context, u model.User) error {
	if u.UserID == "" {
		return docstore.ErrInvalidPath
	}
	return r.store.Set(ctx, UserRef(u.UserID), u)
}
