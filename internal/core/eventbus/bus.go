package eventbus

import (
	"context"
	"sync"
)

// envelope pairs an event with its payload on the dispatch channel.
type envelope struct {
	event   Event
	payload any
}

// subscription pairs a handler with the id used to remove it.
type subscription struct {
	id uint64
	fn func(any)
}

// EventBus dispatches typed events to subscribers from a single goroutine.
// Publishing never blocks: if the buffer is full the event is dropped and
// the OnDrop hooks fire.
type EventBus struct {
	ch chan envelope

	mu     sync.RWMutex
	subs   map[Event][]subscription
	nextID uint64

	hooks hooks
}

// New creates an event bus with the given channel buffer size.
func New(buffer int) *EventBus {
	return &EventBus{
		ch:   make(chan envelope, buffer),
		subs: make(map[Event][]subscription),
	}
}

// Start runs the dispatch loop until the context is canceled. Subscribers
// run sequentially on the dispatch goroutine; a panicking subscriber is
// recovered and reported via the OnPanic hooks.
func (bus *EventBus) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-bus.ch:
			bus.dispatch(env)
		}
	}
}

func (bus *EventBus) dispatch(env envelope) {
	bus.mu.RLock()
	subs := make([]subscription, len(bus.subs[env.event]))
	copy(subs, bus.subs[env.event])
	bus.mu.RUnlock()

	for _, sub := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					bus.runOnPanic(env.event, env.payload, r)
				}
			}()
			sub.fn(env.payload)
		}()
	}
}

// subscribe registers a handler and returns the function that removes it.
func (bus *EventBus) subscribe(event Event, fn func(any)) func() {
	bus.mu.Lock()
	bus.nextID++
	id := bus.nextID
	bus.subs[event] = append(bus.subs[event], subscription{id: id, fn: fn})
	bus.mu.Unlock()
	bus.runOnSubscribe(event)

	return func() {
		bus.mu.Lock()
		defer bus.mu.Unlock()
		list := bus.subs[event]
		for i := range list {
			if list[i].id == id {
				bus.subs[event] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// SubscribeInstanceUpdated registers a handler for instance snapshot changes.
func (bus *EventBus) SubscribeInstanceUpdated(fn func(InstanceUpdatedPayload)) func() {
	return bus.subscribe(EventInstanceUpdated, func(p any) {
		if v, ok := p.(InstanceUpdatedPayload); ok {
			fn(v)
		}
	})
}

// PublishInstanceUpdated emits an instance snapshot change.
func (bus *EventBus) PublishInstanceUpdated(p InstanceUpdatedPayload) {
	bus.send(EventInstanceUpdated, p)
}

// SubscribeInstanceFinalized registers a handler for confirmed finalizations.
func (bus *EventBus) SubscribeInstanceFinalized(fn func(InstanceFinalizedPayload)) func() {
	return bus.subscribe(EventInstanceFinalized, func(p any) {
		if v, ok := p.(InstanceFinalizedPayload); ok {
			fn(v)
		}
	})
}

// PublishInstanceFinalized emits a server-confirmed finalization.
func (bus *EventBus) PublishInstanceFinalized(p InstanceFinalizedPayload) {
	bus.send(EventInstanceFinalized, p)
}

// SubscribeFinalizePending registers a handler for locally-applied,
// unconfirmed finalizations.
func (bus *EventBus) SubscribeFinalizePending(fn func(FinalizePendingPayload)) func() {
	return bus.subscribe(EventFinalizePending, func(p any) {
		if v, ok := p.(FinalizePendingPayload); ok {
			fn(v)
		}
	})
}

// PublishFinalizePending emits an unconfirmed finalization.
func (bus *EventBus) PublishFinalizePending(p FinalizePendingPayload) {
	bus.send(EventFinalizePending, p)
}

// SubscribeMutationEnqueued registers a handler for queued mutations.
func (bus *EventBus) SubscribeMutationEnqueued(fn func(MutationEnqueuedPayload)) func() {
	return bus.subscribe(EventMutationEnqueued, func(p any) {
		if v, ok := p.(MutationEnqueuedPayload); ok {
			fn(v)
		}
	})
}

// PublishMutationEnqueued emits a queued mutation.
func (bus *EventBus) PublishMutationEnqueued(p MutationEnqueuedPayload) {
	bus.send(EventMutationEnqueued, p)
}

// SubscribeQueueDrained registers a handler for emptied replay queues.
func (bus *EventBus) SubscribeQueueDrained(fn func(QueueDrainedPayload)) func() {
	return bus.subscribe(EventQueueDrained, func(p any) {
		if v, ok := p.(QueueDrainedPayload); ok {
			fn(v)
		}
	})
}

// PublishQueueDrained emits an emptied replay queue.
func (bus *EventBus) PublishQueueDrained(p QueueDrainedPayload) {
	bus.send(EventQueueDrained, p)
}

// SubscribeSyncConflict registers a handler for reconciliation conflicts.
func (bus *EventBus) SubscribeSyncConflict(fn func(SyncConflictPayload)) func() {
	return bus.subscribe(EventSyncConflict, func(p any) {
		if v, ok := p.(SyncConflictPayload); ok {
			fn(v)
		}
	})
}

// PublishSyncConflict emits a reconciliation conflict.
func (bus *EventBus) PublishSyncConflict(p SyncConflictPayload) {
	bus.send(EventSyncConflict, p)
}
