package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tallerpro/checkup/internal/core/checklist"
	"github.com/tallerpro/checkup/internal/core/eventbus"
	"github.com/tallerpro/checkup/internal/core/logging"
	"github.com/tallerpro/checkup/internal/core/outbox"
	"github.com/tallerpro/checkup/internal/data/stores"
	"github.com/tallerpro/checkup/internal/remote"
)

// Reconciler replays queued mutations against the server and merges the
// authoritative state back into the local store. It shares the per-order
// locks with the Service so replay never interleaves with a live operation.
type Reconciler struct {
	svc *Service
	log zerolog.Logger
}

// NewReconciler creates the replay/reconciliation worker for a service.
func NewReconciler(svc *Service, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		svc: svc,
		log: log.With().Str("component", "reconciler").Logger(),
	}
}

// Run drains the queues on a fixed cadence until the context is canceled.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Drain(ctx); err != nil {
				r.log.Error().Err(err).Msg("drain pass failed")
			}
		}
	}
}

// Drain makes one replay pass over every order with queued mutations.
// Replay is strictly FIFO per order and stops at the first mutation whose
// remote call fails with unavailability; a later mutation never overtakes an
// earlier one.
func (r *Reconciler) Drain(ctx context.Context) error {
	recs, err := r.svc.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list order records: %w", err)
	}

	for _, rec := range recs {
		if len(rec.Pending) == 0 {
			continue
		}
		if err := r.drainOrder(ctx, rec.OrderID); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Error().Err(err).Str("order_id", rec.OrderID).Msg("replay stopped")
		}
	}
	return nil
}

func (r *Reconciler) drainOrder(ctx context.Context, orderID string) error {
	defer r.svc.locks.acquire(orderID)()
	ctx = logging.WithOrderID(ctx, orderID)

	// Re-read under the lock; the record may have changed since List.
	rec, err := r.svc.store.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, checklist.ErrNotFound) {
			return nil
		}
		return err
	}
	ctx = logging.WithInstanceID(ctx, rec.Instance.ID)

	replayed := 0
	dropped := 0
	for {
		m, ok := rec.Head()
		if !ok {
			break
		}
		if !r.due(m) {
			// Backoff window still open for the head; the whole order
			// waits since replay is ordered.
			break
		}

		err := r.replay(ctx, &rec, m)
		switch {
		case err == nil:
			rec.DequeueHead()
			replayed++

		case remote.IsUnavailable(err):
			rec.Pending[0].Attempts++
			now := r.svc.now()
			rec.Pending[0].LastAttemptAt = &now
			if perr := r.svc.store.Put(ctx, rec); perr != nil {
				return perr
			}
			r.log.Debug().Ctx(ctx).
				Str("mutation_id", m.ID).
				Str("kind", string(m.Kind)).
				Int("attempts", rec.Pending[0].Attempts).
				Msg("replay deferred, remote unavailable")
			return nil

		default:
			// Permanent rejection. Dropping the mutation is the only way
			// to unblock the queue; the disagreement is surfaced as a
			// conflict and the post-drain refresh restores server truth.
			rec.DequeueHead()
			dropped++
			// The rejected edit's dirty mark must not survive, or the
			// refresh below would keep the local value the server refused.
			if m.Kind == outbox.KindRespond && m.Respond != nil {
				if mark, ok := rec.SyncMarks[m.Respond.ItemID]; ok && !mark.After(m.Respond.CapturedAt) {
					rec.ClearMark(m.Respond.ItemID)
				}
			}
			r.log.Warn().Ctx(ctx).
				Str("mutation_id", m.ID).
				Str("kind", string(m.Kind)).
				Err(err).
				Msg("mutation rejected by server, dropped from queue")
			r.svc.bus.PublishSyncConflict(eventbus.SyncConflictPayload{
				OrderID: orderID,
				ItemID:  respondItemID(m),
				Detail:  fmt.Sprintf("%s mutation rejected: %v", m.Kind, err),
			})
		}
	}

	if replayed == 0 && dropped == 0 {
		return nil
	}

	now := r.svc.now()
	rec.LastSyncedAt = &now

	// A fully drained queue, whether by replay or by drops, is the point
	// where the server's copy is authoritative again.
	if len(rec.Pending) == 0 {
		r.refreshFromServer(ctx, &rec)
	}

	if err := r.svc.store.Put(ctx, rec); err != nil {
		return err
	}
	r.svc.publishUpdated(rec)

	if len(rec.Pending) == 0 {
		r.svc.bus.PublishQueueDrained(eventbus.QueueDrainedPayload{
			OrderID:  orderID,
			Replayed: replayed,
		})
	}
	return nil
}

// due reports whether the head mutation's backoff window has elapsed.
// The delay doubles per attempt from the configured base up to the ceiling.
func (r *Reconciler) due(m outbox.Mutation) bool {
	if m.Attempts == 0 || m.LastAttemptAt == nil {
		return true
	}
	delay := r.svc.cfg.Sync.RetryBase()
	ceiling := r.svc.cfg.Sync.RetryMax()
	for i := 1; i < m.Attempts && (ceiling == 0 || delay < ceiling); i++ {
		delay *= 2
	}
	if ceiling > 0 && delay > ceiling {
		delay = ceiling
	}
	return !r.svc.now().Before(m.LastAttemptAt.Add(delay))
}

// replay executes one queued mutation against the server and folds the
// outcome into the record. The caller dequeues on success.
func (r *Reconciler) replay(ctx context.Context, rec *stores.OrderRecord, m outbox.Mutation) error {
	switch m.Kind {
	case outbox.KindStart:
		server, err := r.svc.remote.CreateInstance(ctx, rec.OrderID, rec.Template.ID)
		if err != nil {
			return err
		}
		// The instance was created offline under a provisional ID. Adopt
		// the server's ID here and on every mutation still queued behind
		// this one.
		oldID := m.InstanceID
		rec.Instance.ID = server.ID
		for i := range rec.Pending {
			if rec.Pending[i].InstanceID == oldID {
				rec.Pending[i].InstanceID = server.ID
			}
		}
		return nil

	case outbox.KindPause, outbox.KindResume:
		_, err := r.svc.remote.UpdateState(ctx, m.InstanceID, m.Kind)
		return err

	case outbox.KindRespond:
		if m.Respond == nil {
			return fmt.Errorf("respond mutation %s has no payload", m.ID)
		}
		resp := checklist.Response{
			ItemID:     m.Respond.ItemID,
			Value:      m.Respond.Value,
			CapturedAt: m.Respond.CapturedAt,
		}
		// Completed is derived, never assumed: a queued un-answering edit
		// (blank text) must reach the server as incomplete.
		if item, ok := rec.Template.Item(m.Respond.ItemID); ok {
			resp.Completed = checklist.ItemSatisfied(item, resp)
		}
		if _, err := r.svc.remote.SubmitResponse(ctx, m.InstanceID, resp); err != nil {
			return err
		}
		// Clear the dirty mark only if no newer local edit superseded
		// this answer; a newer edit has its own queued mutation.
		if mark, ok := rec.SyncMarks[m.Respond.ItemID]; ok && !mark.After(m.Respond.CapturedAt) {
			rec.ClearMark(m.Respond.ItemID)
		}
		return nil

	case outbox.KindFinalize:
		if m.Finalize == nil {
			return fmt.Errorf("finalize mutation %s has no payload", m.ID)
		}
		confirmed, err := r.svc.remote.FinalizeInstance(ctx, m.InstanceID, m.Finalize.Input, m.Finalize.IdempotencyKey)
		if err != nil {
			return err
		}
		rec.Instance = adopt(rec.Template, confirmed, rec.OrderID)
		if !rec.FinalizeConfirmed {
			rec.FinalizeConfirmed = true
			r.log.Info().Ctx(ctx).Msg("offline finalization confirmed by server")
			inst := rec.Instance
			r.svc.bus.PublishInstanceFinalized(eventbus.InstanceFinalizedPayload{
				OrderID:  rec.OrderID,
				Instance: &inst,
			})
		}
		return nil

	default:
		return fmt.Errorf("unknown mutation kind %q", m.Kind)
	}
}

// refreshFromServer merges the authoritative snapshot after a queue fully
// drains. A fetch failure here is not an error: the queue work itself is
// done and a later refresh will reconcile.
func (r *Reconciler) refreshFromServer(ctx context.Context, rec *stores.OrderRecord) {
	server, err := r.svc.remote.FetchInstanceByOrder(ctx, rec.OrderID)
	if err != nil {
		r.log.Debug().Ctx(ctx).Err(err).Msg("post-drain refresh skipped")
		return
	}
	r.publishConflicts(rec.OrderID, reconcile(rec, server))
}

func (r *Reconciler) publishConflicts(orderID string, conflicts []conflict) {
	for _, c := range conflicts {
		r.svc.bus.PublishSyncConflict(eventbus.SyncConflictPayload{
			OrderID: orderID,
			ItemID:  c.ItemID,
			Detail:  c.Detail,
		})
	}
}

func respondItemID(m outbox.Mutation) string {
	if m.Respond != nil {
		return m.Respond.ItemID
	}
	return ""
}
