// Package outbox defines the pending-mutation queue entries that make
// checklist transitions durable across connectivity loss. Mutations are
// appended when a remote call fails and replayed strictly FIFO per instance;
// only the sync reconciler dequeues.
package outbox

import (
	"time"

	"github.com/tallerpro/checkup/internal/core/checklist"
)

// Kind identifies which transition a queued mutation replays.
type Kind string

const (
	KindStart    Kind = "start"
	KindPause    Kind = "pause"
	KindResume   Kind = "resume"
	KindRespond  Kind = "respond"
	KindFinalize Kind = "finalize"
)

// RespondPayload carries the answer for a queued RESPOND mutation.
type RespondPayload struct {
	ItemID     string          `json:"item_id"`
	Value      checklist.Value `json:"value"`
	CapturedAt time.Time       `json:"captured_at"`
}

// FinalizePayload carries the legal evidence for a queued FINALIZE mutation.
// IdempotencyKey is generated once when the mutation is first queued and
// reused on every replay, so the server can recognize duplicates.
type FinalizePayload struct {
	Input          checklist.FinalizeInput `json:"input"`
	IdempotencyKey string                  `json:"idempotency_key"`
}

// Mutation is one queued transition awaiting remote confirmation.
//
// Seq is assigned from the order record's monotonic counter at enqueue time;
// replay order follows Seq. Attempts counts failed replays and feeds the
// reconciler's backoff gate.
type Mutation struct {
	ID         string `json:"id"`
	Seq        uint64 `json:"seq"`
	OrderID    string `json:"order_id"`
	InstanceID string `json:"instance_id"`
	Kind       Kind   `json:"kind"`

	Respond  *RespondPayload  `json:"respond,omitempty"`
	Finalize *FinalizePayload `json:"finalize,omitempty"`

	CreatedAt     time.Time  `json:"created_at"`
	Attempts      int        `json:"attempts"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
}
