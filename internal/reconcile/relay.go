package reconcile

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/venue-table-reservation/internal/config"
	"github.com/iliyamo/venue-table-reservation/internal/docstore"
	"github.com/iliyamo/venue-table-reservation/internal/model"
	"github.com/iliyamo/venue-table-reservation/internal/queue"
	"github.com/iliyamo/venue-table-reservation/internal/repository"
)

// Publisher hands a mutation message to the worker.
type Publisher interface {
	Publish(ctx context.Context, msg queue.MutationMessage) error
}

// Relay periodically publishes outbox entries that have not been
// reconciled yet. Every hand-over counts as an attempt and pushes the next
// one out with a doubling backoff; an entry that is still unreconciled
// after MaxAttempts is marked failed and left for an operator.
type Relay struct {
	outbox *repository.OutboxRepo
	pub    Publisher
	cfg    config.ReconcileConfig
	log    *zerolog.Logger
	now    func() time.Time
}

func NewRelay(store docstore.Store, pub Publisher, cfg config.ReconcileConfig, logger *zerolog.Logger) *Relay {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if cfg.MaxBackoff < cfg.Backoff {
		cfg.MaxBackoff = cfg.Backoff
	}
	return &Relay{
		outbox: repository.NewOutboxRepo(store),
		pub:    pub,
		cfg:    cfg,
		log:    logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run ticks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	t := time.NewTicker(r.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := r.Tick(ctx); err != nil {
				r.log.Warn().Err(err).Int("published", n).Msg("outbox relay tick failed")
			} else if n > 0 {
				r.log.Debug().Int("published", n).Msg("outbox relay tick")
			}
		}
	}
}

// Tick publishes one batch of due entries and reports how many went out.
func (r *Relay) Tick(ctx context.Context) (int, error) {
	now := r.now()
	due, err := r.outbox.ListDue(ctx, now.Add(-r.cfg.Grace), now, r.cfg.BatchSize,
		model.OutboxPending, model.OutboxApplied, model.OutboxPartial, model.OutboxPublished)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, e := range due {
		if r.cfg.MaxAttempts > 0 && e.Attempts >= r.cfg.MaxAttempts {
			r.giveUp(ctx, e, now)
			continue
		}
		attempt := e.Attempts + 1
		// mark first so an in-process worker can take the entry over
		if err := r.outbox.MarkAttempt(ctx, e.ID, attempt, now.Add(r.cfg.RetryAfter(attempt)), now); err != nil {
			return sent, err
		}
		msg := queue.MutationMessage{EntryID: e.ID, Kind: string(e.Kind), CompanyID: e.CompanyID, EventID: e.EventID, CreatedAt: e.CreatedAt}
		if err := r.pub.Publish(ctx, msg); err != nil {
			if serr := r.outbox.SetStatus(ctx, e.ID, e.Status, e.Error, now); serr != nil {
				r.log.Warn().Err(serr).Str("entry_id", e.ID).Msg("outbox relay could not restore entry status")
			}
			return sent, err
		}
		sent++
	}
	return sent, nil
}

func (r *Relay) giveUp(ctx context.Context, e model.OutboxEntry, now time.Time) {
	r.log.Error().Str("entry_id", e.ID).Str("kind", string(e.Kind)).
		Str("company_id", e.CompanyID).Str("event_id", e.EventID).
		Int("attempts", e.Attempts).Str("error", e.Error).Msg("outbox entry failed, giving up")
	msg := e.Error
	if msg == "" {
		msg = "not reconciled"
	}
	if err := r.outbox.SetStatus(ctx, e.ID, model.OutboxFailed, msg, now); err != nil {
		r.log.Warn().Err(err).Str("entry_id", e.ID).Msg("outbox relay could not mark entry failed")
	}
}
