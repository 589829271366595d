package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v5"

	"github.com/tallerpro/checkup/internal/core/checklist"
	"github.com/tallerpro/checkup/internal/core/eventbus"
	"github.com/tallerpro/checkup/internal/data/stores"
	"github.com/tallerpro/checkup/internal/remote"
)

// ForceRefresh discards local derived state and re-fetches the authoritative
// instance from the server, polling briefly while the server finishes
// creating records out of band. With queued mutations still pending the
// refresh is refused unless force is set, because a merge would race the
// replay; force reconciles anyway and reports any losing local edits as
// conflicts.
func (s *Service) ForceRefresh(ctx context.Context, orderID string, force bool) (checklist.Instance, error) {
	defer s.locks.acquire(orderID)()

	rec, err := s.store.Get(ctx, orderID)
	if errors.Is(err, checklist.ErrNotFound) {
		// The instance may exist only server-side, created out of band.
		// Seed an empty record so the poll below can adopt it.
		rec, err = s.seedRecord(ctx, orderID)
	}
	if err != nil {
		return checklist.Instance{}, err
	}
	if len(rec.Pending) > 0 && !force {
		return rec.Instance, ErrPendingMutations
	}

	fetch := func() (checklist.Instance, error) {
		server, err := s.remote.FetchInstanceByOrder(ctx, orderID)
		switch {
		case err == nil:
			return server, nil
		case errors.Is(err, remote.ErrNotFound):
			// The server may still be materializing the instance; keep
			// polling inside the wait budget.
			return checklist.Instance{}, err
		case remote.IsUnavailable(err):
			return checklist.Instance{}, err
		default:
			return checklist.Instance{}, backoff.Permanent(err)
		}
	}

	server, err := backoff.Retry(ctx, fetch,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(s.cfg.Sync.RefreshMaxWait()),
	)
	if err != nil {
		return rec.Instance, err
	}

	conflicts := reconcile(&rec, server)
	now := s.now()
	rec.LastSyncedAt = &now
	if err := s.store.Put(ctx, rec); err != nil {
		return checklist.Instance{}, err
	}
	s.publishUpdated(rec)
	for _, c := range conflicts {
		s.bus.PublishSyncConflict(eventbus.SyncConflictPayload{
			OrderID: orderID,
			ItemID:  c.ItemID,
			Detail:  c.Detail,
		})
	}
	return rec.Instance, nil
}

// seedRecord builds a fresh record for an order with no local state yet:
// lifecycle gate plus template, the same inputs Start resolves.
func (s *Service) seedRecord(ctx context.Context, orderID string) (stores.OrderRecord, error) {
	order, err := s.remote.FetchOrder(ctx, orderID)
	if err != nil {
		return stores.OrderRecord{}, fmt.Errorf("check order lifecycle: %w", err)
	}
	tmpl, err := s.catalog.Get(ctx, order.Category)
	if err != nil {
		return stores.OrderRecord{}, err
	}
	return stores.OrderRecord{OrderID: orderID, Template: tmpl}, nil
}
