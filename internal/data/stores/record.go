// Package stores implements the Badger-backed local persistence layer.
// One record per order is the unit of offline durability and invalidation.
package stores

import (
	"time"

	"github.com/tallerpro/checkup/internal/core/checklist"
	"github.com/tallerpro/checkup/internal/core/outbox"
)

// OrderRecord is the persisted state for one order: the checklist instance,
// its cached template, and the pending-mutation queue. The engine is the
// single writer; the reconciler is the only component that dequeues.
type OrderRecord struct {
	OrderID  string              `json:"order_id"`
	Template checklist.Template  `json:"template"`
	Instance checklist.Instance  `json:"instance"`
	Pending  []outbox.Mutation   `json:"pending,omitempty"`
	NextSeq  uint64              `json:"next_seq"`
	// SyncMarks records, per item, when the item was last modified locally
	// without server acknowledgement. Reconciliation preserves marked items
	// under last-writer-wins; a successful sync clears the mark.
	SyncMarks    map[string]time.Time `json:"sync_marks,omitempty"`
	LastSyncedAt *time.Time           `json:"last_synced_at,omitempty"`
	// FinalizeConfirmed guards the one-shot finalization confirmation: the
	// operator is told exactly once that the server accepted the finalize,
	// no matter how many times the mutation is replayed.
	FinalizeConfirmed bool `json:"finalize_confirmed,omitempty"`
}

// Enqueue appends a mutation to the record's queue, assigning the next
// monotonic sequence number. Returns the stored mutation.
func (r *OrderRecord) Enqueue(m outbox.Mutation) outbox.Mutation {
	r.NextSeq++
	m.Seq = r.NextSeq
	r.Pending = append(r.Pending, m)
	return m
}

// Head returns the oldest pending mutation, if any. Replay is strictly FIFO.
func (r *OrderRecord) Head() (outbox.Mutation, bool) {
	if len(r.Pending) == 0 {
		return outbox.Mutation{}, false
	}
	return r.Pending[0], true
}

// DequeueHead removes the oldest pending mutation after a successful replay.
func (r *OrderRecord) DequeueHead() {
	if len(r.Pending) > 0 {
		r.Pending = r.Pending[1:]
	}
}

// MarkItem notes a local, unacknowledged modification of an item.
func (r *OrderRecord) MarkItem(itemID string, at time.Time) {
	if r.SyncMarks == nil {
		r.SyncMarks = make(map[string]time.Time)
	}
	r.SyncMarks[itemID] = at
}

// ClearMark removes an item's modification mark once the server has
// acknowledged it.
func (r *OrderRecord) ClearMark(itemID string) {
	delete(r.SyncMarks, itemID)
}

// ClearMarks removes all modification marks, used when a full authoritative
// snapshot has been accepted.
func (r *OrderRecord) ClearMarks() {
	r.SyncMarks = nil
}
