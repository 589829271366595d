// Package eventbus provides a typed publish/subscribe event bus for
// cross-component communication within checkup. The UI layer subscribes to
// instance snapshots here instead of owning engine state.
package eventbus

import (
	"github.com/tallerpro/checkup/internal/core/checklist"
	"github.com/tallerpro/checkup/internal/core/outbox"
)

// Event identifies an event type on the bus.
type Event string

// All event types, sorted A-Z.
const (
	EventFinalizePending   Event = "instance.finalize-pending"
	EventInstanceFinalized Event = "instance.finalized"
	EventInstanceUpdated   Event = "instance.updated"
	EventMutationEnqueued  Event = "mutation.enqueued"
	EventQueueDrained      Event = "queue.drained"
	EventSyncConflict      Event = "sync.conflict"
)

// InstanceUpdatedPayload is emitted after every local state change of an
// instance, including the optimistic write that precedes a remote call.
type InstanceUpdatedPayload struct {
	OrderID  string
	Instance *checklist.Instance
}

// InstanceFinalizedPayload is emitted exactly once per instance, when the
// server has confirmed finalization.
type InstanceFinalizedPayload struct {
	OrderID  string
	Instance *checklist.Instance
}

// FinalizePendingPayload is emitted when a finalization was applied locally
// but awaits server confirmation. Finalization has legal significance, so
// this state is surfaced distinctly rather than folded into "updated".
type FinalizePendingPayload struct {
	OrderID  string
	Instance *checklist.Instance
}

// MutationEnqueuedPayload is emitted when a failed remote call is queued
// for replay.
type MutationEnqueuedPayload struct {
	OrderID  string
	Mutation *outbox.Mutation
}

// QueueDrainedPayload is emitted when an order's pending queue empties
// after a successful replay pass.
type QueueDrainedPayload struct {
	OrderID  string
	Replayed int
}

// SyncConflictPayload is emitted when reconciliation cannot resolve a local
// vs. server disagreement by last-writer-wins and falls back to the server
// value.
type SyncConflictPayload struct {
	OrderID string
	ItemID  string
	Detail  string
}
