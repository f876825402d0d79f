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

// EventDirectory returns event metadata owned by another service.
type EventDirectory interface {
	Genres(ctx context.Context, companyID, eventID string) ([]string, error)
}

// SpendingDenormalizer propagates outbox entries into the venue-scoped Guest
// and the global User. Each step runs in its own transaction together with
// the step flag on the entry, so re-running a step is a no-op.
type SpendingDenormalizer struct {
	store  docstore.Store
	guests *repository.GuestRepo
	users  *repository.UserRepo
	outbox *repository.OutboxRepo
	events EventDirectory
	log    *zerolog.Logger
	now    func() time.Time
}

func NewSpendingDenormalizer(store docstore.Store, events EventDirectory, logger *zerolog.Logger, now func() time.Time) *SpendingDenormalizer {
	return &SpendingDenormalizer{
		store:  store,
		guests: repository.NewGuestRepo(store),
		users:  repository.NewUserRepo(store),
		outbox: repository.NewOutboxRepo(store),
		events: events,
		log:    logger,
		now:    now,
	}
}

// ApplyGuest applies the entry's spending change to the Guest, creating the
// Guest from the entry's contact snapshot when needed.
func (d *SpendingDenormalizer) ApplyGuest(ctx context.Context, entryID string) error {
	return d.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		e, err := d.outbox.GetTx(ctx, tx, entryID)
		if err != nil {
			return err
		}
		if e.GuestApplied || !e.NeedsSpending || e.UserID == "" {
			return nil
		}
		var current *model.SpendingProfile
		g, err := d.guests.GetTx(ctx, tx, e.CompanyID, e.UserID)
		switch {
		case err == nil:
			current = &g.SpendingProfile
		case !errors.Is(err, repository.ErrGuestNotFound):
			return err
		}
		now := d.now()
		ops := spendingOps(current, e, now)
		if current == nil {
			ops = append(ops, docstore.Set("companyId", e.CompanyID))
		}
		if len(ops) > 0 {
			if err := tx.Upsert(repository.GuestRef(e.CompanyID, e.UserID), ops...); err != nil {
				return err
			}
		}
		return d.outbox.MarkTx(tx, e.ID, "guestApplied", now)
	})
}

// ApplyUser applies the entry's spending change to the global User.
func (d *SpendingDenormalizer) ApplyUser(ctx context.Context, entryID string) error {
	return d.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		e, err := d.outbox.GetTx(ctx, tx, entryID)
		if err != nil {
			return err
		}
		if e.UserApplied || !e.NeedsSpending || e.UserID == "" {
			return nil
		}
		var current *model.SpendingProfile
		u, err := d.users.GetTx(ctx, tx, e.UserID)
		switch {
		case err == nil:
			current = &u.SpendingProfile
		case !errors.Is(err, repository.ErrUserNotFound):
			return err
		}
		now := d.now()
		if ops := spendingOps(current, e, now); len(ops) > 0 {
			if err := tx.Upsert(repository.UserRef(e.UserID), ops...); err != nil {
				return err
			}
		}
		return d.outbox.MarkTx(tx, e.ID, "userApplied", now)
	})
}

// spendingOps computes the writes for one profile. current is nil when the
// profile does not exist yet.
func spendingOps(current *model.SpendingProfile, e *model.OutboxEntry, now time.Time) []docstore.Op {
	var ops []docstore.Op
	if current == nil {
		ops = append(ops,
			docstore.Set("userId", e.UserID),
			docstore.Set("createdAt", now),
		)
		if e.Contact != nil {
			ops = append(ops,
				docstore.Set("name", e.Contact.Name),
				docstore.Set("phoneNumber", e.Contact.PhoneNumber),
				docstore.Set("phoneNumberE164", e.Contact.PhoneNumberE164),
				docstore.Set("email", e.Contact.Email),
			)
		}
		current = &model.SpendingProfile{}
	}

	spendKey := "eventSpending." + e.EventID
	recorded, has := current.EventSpending[e.EventID]

	if e.DropEventSpending {
		if !has {
			if len(ops) == 0 {
				return nil
			}
			return append(ops, docstore.Set("updatedAt", now))
		}
		total := current.TotalSpent - recorded.Spent
		if total < 0 {
			total = 0
		}
		return append(ops,
			docstore.Delete(spendKey),
			docstore.Set("totalSpent", total),
			docstore.Set("updatedAt", now),
		)
	}

	spent := recorded.Spent + e.SpentDelta
	total := current.TotalSpent + e.SpentDelta
	if total < 0 {
		total = 0
	}
	return append(ops,
		docstore.Set(spendKey+".spent", spent),
		docstore.Set(spendKey+".lastUpdated", now),
		docstore.Set("totalSpent", total),
		docstore.Set("lastSpent", spent),
		docstore.Set("updatedAt", now),
	)
}

// CreditGenres credits the event's genres to the Guest and the User. A
// genre counts an event at most once, no matter how many entries try.
func (d *SpendingDenormalizer) CreditGenres(ctx context.Context, entryID string) error {
	e, err := d.outbox.Get(ctx, entryID)
	if err != nil {
		return err
	}
	if e.GenresApplied || !e.CreditGenres || e.UserID == "" {
		return nil
	}
	genres, err := d.events.Genres(ctx, e.CompanyID, e.EventID)
	switch {
	case errors.Is(err, repository.ErrEventNotFound):
		// nothing to credit; retrying cannot make the event appear
		d.log.Warn().Str("entry_id", e.ID).Str("company_id", e.CompanyID).
			Str("event_id", e.EventID).Msg("event not found, no genres credited")
		genres = nil
	case err != nil:
		return err
	}

	return d.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		e, err := d.outbox.GetTx(ctx, tx, entryID)
		if err != nil {
			return err
		}
		if e.GenresApplied {
			return nil
		}
		now := d.now()

		u, err := d.users.GetTx(ctx, tx, e.UserID)
		if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			return err
		}
		g, err := d.guests.GetTx(ctx, tx, e.CompanyID, e.UserID)
		if err != nil && !errors.Is(err, repository.ErrGuestNotFound) {
			return err
		}

		var userProfile, guestProfile *model.SpendingProfile
		if u != nil {
			userProfile = &u.SpendingProfile
		}
		if g != nil {
			guestProfile = &g.SpendingProfile
		}

		if ops := genreOps(userProfile, e, genres, now); len(ops) > 0 {
			if err := tx.Upsert(repository.UserRef(e.UserID), ops...); err != nil {
				return err
			}
		}
		gops := genreOps(guestProfile, e, genres, now)
		if guestProfile == nil && len(gops) > 0 {
			gops = append(gops, docstore.Set("companyId", e.CompanyID))
			if userProfile != nil {
				c := userProfile.Contact()
				gops = append(gops,
					docstore.Set("name", c.Name),
					docstore.Set("phoneNumber", c.PhoneNumber),
					docstore.Set("phoneNumberE164", c.PhoneNumberE164),
					docstore.Set("email", c.Email),
				)
			}
		}
		if len(gops) > 0 {
			if err := tx.Upsert(repository.GuestRef(e.CompanyID, e.UserID), gops...); err != nil {
				return err
			}
		}
		return d.outbox.MarkTx(tx, e.ID, "genresApplied", now)
	})
}

func genreOps(current *model.SpendingProfile, e *model.OutboxEntry, genres []string, now time.Time) []docstore.Op {
	var ops []docstore.Op
	seen := map[string]bool{}
	for _, genre := range genres {
		key := model.GenreKey(genre)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if current != nil && current.VisitedGenres[key].Has(e.EventID) {
			continue
		}
		path := "visitedGenres." + key
		ops = append(ops,
			docstore.AddToSet(path+".eventIds", e.EventID),
			docstore.Inc(path+".nrOfTimes", 1),
		)
	}
	if len(ops) == 0 {
		return nil
	}
	if current == nil {
		ops = append(ops, docstore.Set("userId", e.UserID), docstore.Set("createdAt", now))
	}
	return append(ops, docstore.Set("updatedAt", now))
}
