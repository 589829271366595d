package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tallerpro/checkup/internal/core/catalog"
	"github.com/tallerpro/checkup/internal/core/checklist"
	"github.com/tallerpro/checkup/internal/core/config"
	"github.com/tallerpro/checkup/internal/core/eventbus"
	"github.com/tallerpro/checkup/internal/core/outbox"
	"github.com/tallerpro/checkup/internal/data/stores"
	"github.com/tallerpro/checkup/internal/remote"
	"github.com/tallerpro/checkup/pkg/randid"
)

const mutationIDLength = 12

// Store is the slice of the local persistence layer the engine uses.
// Implemented by stores.InstanceStore.
type Store interface {
	Get(ctx context.Context, orderID string) (stores.OrderRecord, error)
	Put(ctx context.Context, rec stores.OrderRecord) error
	Delete(ctx context.Context, orderID string) error
	List(ctx context.Context) ([]stores.OrderRecord, error)
}

// Service drives checklist instances through their lifecycle. Every
// transition is applied optimistically to the local store before the remote
// call; a failed remote call lands in the order's replay queue instead of
// failing the operation.
type Service struct {
	store   Store
	remote  remote.Client
	catalog *catalog.Catalog
	bus     *eventbus.EventBus
	cfg     *config.Config
	log     zerolog.Logger
	locks   *lockMap
	now     func() time.Time
}

// NewService creates the checklist engine service.
func NewService(
	store Store,
	remoteClient remote.Client,
	cat *catalog.Catalog,
	bus *eventbus.EventBus,
	cfg *config.Config,
	log zerolog.Logger,
) *Service {
	return &Service{
		store:   store,
		remote:  remoteClient,
		catalog: cat,
		bus:     bus,
		cfg:     cfg,
		log:     log.With().Str("component", "engine").Logger(),
		locks:   newLockMap(),
		now:     time.Now,
	}
}

// Start creates the checklist instance for an order. The order's lifecycle
// gate and the template fetch need connectivity (or a warm template cache);
// the server-side instance creation itself is queued on failure.
func (s *Service) Start(ctx context.Context, orderID string) (Result, error) {
	defer s.locks.acquire(orderID)()

	if rec, err := s.store.Get(ctx, orderID); err == nil {
		return rejected(rec.Instance, &checklist.InvalidTransitionError{
			Attempted: "start",
			From:      rec.Instance.State,
		}), nil
	} else if !errors.Is(err, checklist.ErrNotFound) {
		return Result{}, err
	}

	order, err := s.remote.FetchOrder(ctx, orderID)
	if err != nil {
		return Result{}, fmt.Errorf("check order lifecycle: %w", err)
	}
	if !order.ChecklistRequired {
		return rejected(checklist.Instance{}, ErrOrderNotEligible), nil
	}

	tmpl, err := s.catalog.Get(ctx, order.Category)
	if err != nil {
		return Result{}, err
	}

	now := s.now()
	inst, err := s.remote.CreateInstance(ctx, orderID, tmpl.ID)
	switch {
	case err == nil:
		inst = adopt(tmpl, inst, orderID)
		rec := stores.OrderRecord{
			OrderID:      orderID,
			Template:     tmpl,
			Instance:     inst,
			LastSyncedAt: &now,
		}
		if err := s.store.Put(ctx, rec); err != nil {
			return Result{}, err
		}
		s.publishUpdated(rec)
		return Result{Status: StatusApplied, Instance: inst}, nil

	case remote.IsUnavailable(err):
		inst = checklist.Start(tmpl, uuid.NewString(), orderID, now)
		rec := stores.OrderRecord{OrderID: orderID, Template: tmpl, Instance: inst}
		s.enqueue(&rec, outbox.Mutation{
			Kind:       outbox.KindStart,
			InstanceID: inst.ID,
		})
		if err := s.store.Put(ctx, rec); err != nil {
			return Result{}, err
		}
		s.publishUpdated(rec)
		return Result{Status: StatusPendingSync, Instance: inst}, nil

	default:
		return Result{}, fmt.Errorf("create instance: %w", err)
	}
}

// Respond records an answer for one item. The response is visible locally
// immediately; the remote submit is queued behind any pending mutations to
// preserve replay order.
func (s *Service) Respond(ctx context.Context, orderID, itemID string, value checklist.Value) (Result, error) {
	defer s.locks.acquire(orderID)()

	rec, err := s.loadRecord(ctx, orderID, "respond")
	if err != nil {
		if r, ok := asRejection(err); ok {
			return r, nil
		}
		return Result{}, err
	}

	now := s.now()
	next, err := checklist.Respond(rec.Template, rec.Instance, itemID, value, now)
	if err != nil {
		return rejected(rec.Instance, err), nil
	}
	rec.Instance = next
	rec.MarkItem(itemID, now)

	if len(rec.Pending) > 0 {
		return s.queueAndReturn(ctx, rec, outbox.Mutation{
			Kind:       outbox.KindRespond,
			InstanceID: rec.Instance.ID,
			Respond:    respondPayload(next, itemID),
		}, StatusPendingSync)
	}

	resp, _ := next.Response(itemID)
	_, err = s.remote.SubmitResponse(ctx, rec.Instance.ID, resp)
	switch {
	case err == nil:
		rec.ClearMark(itemID)
		rec.LastSyncedAt = &now
		if err := s.store.Put(ctx, rec); err != nil {
			return Result{}, err
		}
		s.publishUpdated(rec)
		return Result{Status: StatusApplied, Instance: rec.Instance}, nil

	case remote.IsUnavailable(err):
		return s.queueAndReturn(ctx, rec, outbox.Mutation{
			Kind:       outbox.KindRespond,
			InstanceID: rec.Instance.ID,
			Respond:    respondPayload(next, itemID),
		}, StatusPendingSync)

	default:
		return Result{}, fmt.Errorf("submit response: %w", err)
	}
}

// Pause suspends the instance. Responses are retained.
func (s *Service) Pause(ctx context.Context, orderID string) (Result, error) {
	return s.updateState(ctx, orderID, outbox.KindPause, func(rec stores.OrderRecord, now time.Time) (checklist.Instance, error) {
		return checklist.Pause(rec.Instance, now)
	})
}

// Resume returns a paused instance to progress.
func (s *Service) Resume(ctx context.Context, orderID string) (Result, error) {
	return s.updateState(ctx, orderID, outbox.KindResume, func(rec stores.OrderRecord, now time.Time) (checklist.Instance, error) {
		return checklist.Resume(rec.Template, rec.Instance, now)
	})
}

func (s *Service) updateState(
	ctx context.Context,
	orderID string,
	kind outbox.Kind,
	transition func(stores.OrderRecord, time.Time) (checklist.Instance, error),
) (Result, error) {
	defer s.locks.acquire(orderID)()

	rec, err := s.loadRecord(ctx, orderID, string(kind))
	if err != nil {
		if r, ok := asRejection(err); ok {
			return r, nil
		}
		return Result{}, err
	}

	now := s.now()
	next, err := transition(rec, now)
	if err != nil {
		return rejected(rec.Instance, err), nil
	}
	rec.Instance = next

	if len(rec.Pending) > 0 {
		return s.queueAndReturn(ctx, rec, outbox.Mutation{
			Kind:       kind,
			InstanceID: rec.Instance.ID,
		}, StatusPendingSync)
	}

	_, err = s.remote.UpdateState(ctx, rec.Instance.ID, kind)
	switch {
	case err == nil:
		rec.LastSyncedAt = &now
		if err := s.store.Put(ctx, rec); err != nil {
			return Result{}, err
		}
		s.publishUpdated(rec)
		return Result{Status: StatusApplied, Instance: rec.Instance}, nil

	case remote.IsUnavailable(err):
		return s.queueAndReturn(ctx, rec, outbox.Mutation{
			Kind:       kind,
			InstanceID: rec.Instance.ID,
		}, StatusPendingSync)

	default:
		return Result{}, fmt.Errorf("update state: %w", err)
	}
}

// Finalize irreversibly closes the checklist with signatures and a GPS fix.
// When the remote call cannot be confirmed the result is
// StatusPendingConfirmation: the operator must be told the outcome is
// unconfirmed until sync succeeds.
func (s *Service) Finalize(ctx context.Context, orderID string, in checklist.FinalizeInput) (Result, error) {
	defer s.locks.acquire(orderID)()

	rec, err := s.loadRecord(ctx, orderID, "finalize")
	if err != nil {
		if r, ok := asRejection(err); ok {
			return r, nil
		}
		return Result{}, err
	}

	now := s.now()
	next, err := checklist.Finalize(rec.Template, rec.Instance, in, now)
	if err != nil {
		return rejected(rec.Instance, err), nil
	}
	rec.Instance = next

	// The idempotency key is minted once and rides along on every replay,
	// so the server can recognize duplicates.
	key := uuid.NewString()
	mutation := outbox.Mutation{
		Kind:       outbox.KindFinalize,
		InstanceID: rec.Instance.ID,
		Finalize:   &outbox.FinalizePayload{Input: in, IdempotencyKey: key},
	}

	if len(rec.Pending) > 0 {
		res, err := s.queueAndReturn(ctx, rec, mutation, StatusPendingConfirmation)
		if err == nil {
			s.bus.PublishFinalizePending(eventbus.FinalizePendingPayload{OrderID: orderID, Instance: &res.Instance})
		}
		return res, err
	}

	confirmed, err := s.remote.FinalizeInstance(ctx, rec.Instance.ID, in, key)
	switch {
	case err == nil:
		rec.Instance = adopt(rec.Template, confirmed, orderID)
		rec.LastSyncedAt = &now
		rec.FinalizeConfirmed = true
		if err := s.store.Put(ctx, rec); err != nil {
			return Result{}, err
		}
		s.publishUpdated(rec)
		s.bus.PublishInstanceFinalized(eventbus.InstanceFinalizedPayload{OrderID: orderID, Instance: &rec.Instance})
		s.log.Info().Str("order_id", orderID).Msg("checklist finalized and confirmed")
		return Result{Status: StatusApplied, Instance: rec.Instance}, nil

	case remote.IsUnavailable(err):
		res, err := s.queueAndReturn(ctx, rec, mutation, StatusPendingConfirmation)
		if err == nil {
			s.bus.PublishFinalizePending(eventbus.FinalizePendingPayload{OrderID: orderID, Instance: &res.Instance})
		}
		return res, err

	default:
		return Result{}, fmt.Errorf("finalize instance: %w", err)
	}
}

// Current returns the local snapshot for an order.
// Returns checklist.ErrNotFound when no instance exists.
func (s *Service) Current(ctx context.Context, orderID string) (checklist.Instance, error) {
	rec, err := s.store.Get(ctx, orderID)
	if err != nil {
		return checklist.Instance{}, err
	}
	return rec.Instance, nil
}

// Pending returns the order's queued mutations, oldest first.
func (s *Service) Pending(ctx context.Context, orderID string) ([]outbox.Mutation, error) {
	rec, err := s.store.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, checklist.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]outbox.Mutation, len(rec.Pending))
	copy(out, rec.Pending)
	return out, nil
}

// Subscribe invokes fn with a fresh snapshot on every local state change of
// the given order. This is a local notification, not a network subscription.
// The returned function removes the subscription.
func (s *Service) Subscribe(orderID string, fn func(checklist.Instance)) func() {
	return s.bus.SubscribeInstanceUpdated(func(p eventbus.InstanceUpdatedPayload) {
		if p.OrderID == orderID && p.Instance != nil {
			fn(*p.Instance)
		}
	})
}

// loadRecord fetches the order record, converting a missing record into a
// rejection error for the attempted operation.
func (s *Service) loadRecord(ctx context.Context, orderID, attempted string) (stores.OrderRecord, error) {
	rec, err := s.store.Get(ctx, orderID)
	if errors.Is(err, checklist.ErrNotFound) {
		return rec, &rejectionError{result: rejected(checklist.Instance{}, &checklist.InvalidTransitionError{
			Attempted: attempted,
			From:      checklist.StateNotStarted,
		})}
	}
	return rec, err
}

// rejectionError smuggles a typed rejection through the error return of
// loadRecord so call sites stay flat.
type rejectionError struct {
	result Result
}

func (e *rejectionError) Error() string { return "operation rejected" }

func asRejection(err error) (Result, bool) {
	var re *rejectionError
	if errors.As(err, &re) {
		return re.result, true
	}
	return Result{}, false
}

// enqueue stamps identity and creation time onto a mutation and appends it
// to the record's queue.
func (s *Service) enqueue(rec *stores.OrderRecord, m outbox.Mutation) outbox.Mutation {
	m.ID = randid.Generate(mutationIDLength)
	m.OrderID = rec.OrderID
	m.CreatedAt = s.now()
	stored := rec.Enqueue(m)
	s.log.Debug().
		Str("order_id", rec.OrderID).
		Str("kind", string(stored.Kind)).
		Uint64("seq", stored.Seq).
		Msg("mutation queued for replay")
	s.bus.PublishMutationEnqueued(eventbus.MutationEnqueuedPayload{OrderID: rec.OrderID, Mutation: &stored})
	return stored
}

// queueAndReturn persists the optimistic record with the mutation queued
// and reports the pending status to the caller.
func (s *Service) queueAndReturn(ctx context.Context, rec stores.OrderRecord, m outbox.Mutation, status Status) (Result, error) {
	s.enqueue(&rec, m)
	if err := s.store.Put(ctx, rec); err != nil {
		return Result{}, err
	}
	s.publishUpdated(rec)
	return Result{Status: status, Instance: rec.Instance}, nil
}

func (s *Service) publishUpdated(rec stores.OrderRecord) {
	inst := rec.Instance
	s.bus.PublishInstanceUpdated(eventbus.InstanceUpdatedPayload{OrderID: rec.OrderID, Instance: &inst})
}

// respondPayload extracts the stored response for a queued RESPOND mutation.
func respondPayload(inst checklist.Instance, itemID string) *outbox.RespondPayload {
	resp, _ := inst.Response(itemID)
	return &outbox.RespondPayload{
		ItemID:     itemID,
		Value:      resp.Value,
		CapturedAt: resp.CapturedAt,
	}
}

// adopt normalizes a server-supplied instance: binds it to the order,
// backfills the category, and recomputes the derived fields so they can
// never disagree with the responses.
func adopt(tmpl checklist.Template, inst checklist.Instance, orderID string) checklist.Instance {
	if inst.OrderID == "" {
		inst.OrderID = orderID
	}
	if inst.Category == "" {
		inst.Category = tmpl.Category
	}
	if inst.TemplateID == "" {
		inst.TemplateID = tmpl.ID
	}
	return checklist.Recompute(tmpl, inst)
}
