package checklist

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when no checklist instance exists for an order.
	ErrNotFound = errors.New("checklist instance not found")
	// ErrUnknownItem is returned when a response targets an item that is not
	// part of the instance's template.
	ErrUnknownItem = errors.New("item not in checklist template")
)

// InvalidTransitionError reports a transition attempted from a state that
// does not permit it. Transitions never silently no-op; every precondition
// violation surfaces as this error.
type InvalidTransitionError struct {
	Attempted string
	From      State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s from state %q", e.Attempted, e.From)
}

// ValidationError reports a finalize attempt while required items remain
// incomplete. Missing carries the unsatisfied required items in display
// order so the caller can present actionable guidance.
type ValidationError struct {
	Missing []Item
}

func (e *ValidationError) Error() string {
	ids := make([]string, len(e.Missing))
	for i, item := range e.Missing {
		ids[i] = item.ID
	}
	return fmt.Sprintf("checklist incomplete: %d required item(s) missing: %s",
		len(e.Missing), strings.Join(ids, ", "))
}

// EvidenceMissingError reports a PHOTO or SIGNATURE response submitted
// without a valid evidence reference. Rejected before any remote call.
type EvidenceMissingError struct {
	ItemID     string
	AnswerType AnswerType
}

func (e *EvidenceMissingError) Error() string {
	return fmt.Sprintf("item %q requires %s evidence but none was supplied", e.ItemID, e.AnswerType)
}
