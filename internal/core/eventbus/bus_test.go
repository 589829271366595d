package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallerpro/checkup/internal/core/checklist"
)

func startBus(t *testing.T, buffer int) *EventBus {
	t.Helper()
	bus := New(buffer)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go bus.Start(ctx)
	return bus
}

func TestEventBus(t *testing.T) {
	t.Run("delivers typed payloads", func(t *testing.T) {
		bus := startBus(t, 8)

		var (
			mu  sync.Mutex
			got []InstanceUpdatedPayload
		)
		bus.SubscribeInstanceUpdated(func(p InstanceUpdatedPayload) {
			mu.Lock()
			got = append(got, p)
			mu.Unlock()
		})

		inst := &checklist.Instance{ID: "inst-1", OrderID: "order-1"}
		bus.PublishInstanceUpdated(InstanceUpdatedPayload{OrderID: "order-1", Instance: inst})

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(got) == 1
		}, time.Second, 5*time.Millisecond)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "order-1", got[0].OrderID)
		assert.Same(t, inst, got[0].Instance)
	})

	t.Run("drop hook fires when buffer full", func(t *testing.T) {
		bus := New(1) // not started: nothing drains the channel

		var (
			mu      sync.Mutex
			dropped []Event
		)
		bus.OnDrop(func(e Event, _ any) {
			mu.Lock()
			dropped = append(dropped, e)
			mu.Unlock()
		})

		bus.PublishQueueDrained(QueueDrainedPayload{OrderID: "order-1"})
		bus.PublishQueueDrained(QueueDrainedPayload{OrderID: "order-2"})

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, dropped, 1)
		assert.Equal(t, EventQueueDrained, dropped[0])
	})

	t.Run("unsubscribe stops delivery", func(t *testing.T) {
		bus := startBus(t, 8)

		var (
			mu            sync.Mutex
			first, second int
		)
		unsubscribe := bus.SubscribeQueueDrained(func(QueueDrainedPayload) {
			mu.Lock()
			first++
			mu.Unlock()
		})
		bus.SubscribeQueueDrained(func(QueueDrainedPayload) {
			mu.Lock()
			second++
			mu.Unlock()
		})

		bus.PublishQueueDrained(QueueDrainedPayload{OrderID: "order-1"})
		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return first == 1 && second == 1
		}, time.Second, 5*time.Millisecond)

		unsubscribe()
		bus.PublishQueueDrained(QueueDrainedPayload{OrderID: "order-1"})
		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return second == 2
		}, time.Second, 5*time.Millisecond)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 1, first, "removed subscriber still received an event")
	})

	t.Run("panicking subscriber does not stop dispatch", func(t *testing.T) {
		bus := startBus(t, 8)

		var (
			mu       sync.Mutex
			panicked bool
			handled  bool
		)
		bus.OnPanic(func(Event, any, any) {
			mu.Lock()
			panicked = true
			mu.Unlock()
		})
		bus.SubscribeSyncConflict(func(SyncConflictPayload) {
			panic("boom")
		})
		bus.SubscribeSyncConflict(func(SyncConflictPayload) {
			mu.Lock()
			handled = true
			mu.Unlock()
		})

		bus.PublishSyncConflict(SyncConflictPayload{OrderID: "order-1", ItemID: "pads"})

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return panicked && handled
		}, time.Second, 5*time.Millisecond)
	})
}
