// Package engine orchestrates checklist instances: it owns transitions,
// applies them optimistically to the local store, and hands failed remote
// calls to the sync reconciler. It is the sole mutator of instance state.
package engine

import (
	"errors"

	"github.com/tallerpro/checkup/internal/core/checklist"
)

var (
	// ErrOrderNotEligible is returned when the order's lifecycle state does
	// not call for a checklist.
	ErrOrderNotEligible = errors.New("order does not require a checklist")
	// ErrPendingMutations is returned by ForceRefresh when discarding local
	// state would lose queued, unsynced mutations.
	ErrPendingMutations = errors.New("order has pending mutations; sync or force to discard")
)

// Status discriminates how an operation concluded.
type Status string

const (
	// StatusApplied means the transition was applied locally and confirmed
	// by the server.
	StatusApplied Status = "applied"
	// StatusPendingSync means the transition was applied locally and queued
	// for replay; the caller may treat it as succeeded.
	StatusPendingSync Status = "pending_sync"
	// StatusPendingConfirmation means a finalization was applied locally
	// but the server has not confirmed it. Finalization has legal
	// significance, so this is surfaced distinctly from plain pending sync.
	StatusPendingConfirmation Status = "pending_confirmation"
	// StatusRejected means a precondition or validation failed; Err carries
	// the typed reason and no state was touched.
	StatusRejected Status = "rejected"
)

// Result is the outcome of an engine operation.
type Result struct {
	Status   Status
	Instance checklist.Instance
	// Err is the typed rejection reason when Status is StatusRejected.
	Err error
}

func rejected(inst checklist.Instance, err error) Result {
	return Result{Status: StatusRejected, Instance: inst, Err: err}
}
