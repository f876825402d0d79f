// Package reconcile heals drift between tables and their denormalized
// views. A relay hands outbox entries to a worker, over RabbitMQ or in
// process, and the worker re-applies missing steps and recomputes the
// event summary.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/venue-table-reservation/internal/docstore"
	"github.com/iliyamo/venue-table-reservation/internal/model"
	"github.com/iliyamo/venue-table-reservation/internal/queue"
	"github.com/iliyamo/venue-table-reservation/internal/repository"
	"github.com/iliyamo/venue-table-reservation/internal/service"
)

// ErrBadMessage marks deliveries that can never be processed.
var ErrBadMessage = errors.New("bad mutation message")

// Reconciler processes mutation messages.
type Reconciler struct {
	svc    *service.ReservationService
	outbox *repository.OutboxRepo
	log    *zerolog.Logger
	now    func() time.Time
}

func NewReconciler(store docstore.Store, svc *service.ReservationService, logger *zerolog.Logger) *Reconciler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Reconciler{
		svc:    svc,
		outbox: repository.NewOutboxRepo(store),
		log:    logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// HandleDelivery decodes a broker delivery and handles it.
func (r *Reconciler) HandleDelivery(ctx context.Context, body []byte) error {
	var msg queue.MutationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if msg.EntryID == "" {
		return fmt.Errorf("%w: missing entry id", ErrBadMessage)
	}
	return r.Handle(ctx, msg)
}

// Handle brings the entry's Guest, User and genre steps up to date and
// rebuilds the event summary from the layouts. An entry whose steps still
// fail is left partial for the relay to pick up again.
func (r *Reconciler) Handle(ctx context.Context, msg queue.MutationMessage) error {
	e, err := r.outbox.Get(ctx, msg.EntryID)
	if errors.Is(err, repository.ErrOutboxNotFound) {
		return fmt.Errorf("%w: entry %s not found", ErrBadMessage, msg.EntryID)
	}
	if err != nil {
		return err
	}
	if e.Status == model.OutboxReconciled {
		return nil
	}

	if status := r.svc.Settle(ctx, e.ID); status != model.OutboxApplied {
		if err := r.outbox.SetStatus(ctx, e.ID, model.OutboxPartial, "reconciliation incomplete", r.now()); err != nil {
			return err
		}
		return fmt.Errorf("entry %s still has failing steps", e.ID)
	}

	sum, err := r.svc.RecomputeTableSummary(ctx, service.EventRef{CompanyID: e.CompanyID, EventID: e.EventID})
	if err != nil {
		return fmt.Errorf("recompute summary: %w", err)
	}
	if err := r.outbox.SetStatus(ctx, e.ID, model.OutboxReconciled, "", r.now()); err != nil {
		return err
	}
	r.log.Debug().Str("entry_id", e.ID).Str("kind", string(e.Kind)).
		Int64("total_booked", sum.TotalBooked).Msg("outbox entry reconciled")
	return nil
}

// Direct delivers messages straight to a Reconciler when no broker is
// configured.
type Direct struct {
	r *Reconciler
}

func NewDirect(r *Reconciler) *Direct { return &Direct{r: r} }

func (d *Direct) Publish(ctx context.Context, msg queue.MutationMessage) error {
	if err := d.r.Handle(ctx, msg); err != nil {
		d.r.log.Warn().Err(err).Str("entry_id", msg.EntryID).Msg("in-process reconciliation failed")
	}
	return nil
}
