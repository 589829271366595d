package checklist

import (
	"time"

	"github.com/tallerpro/checkup/internal/core/evidence"
)

// State represents the lifecycle state of a checklist instance.
type State string

const (
	StateNotStarted      State = "not_started"
	StateInProgress      State = "in_progress"
	StatePaused          State = "paused"
	StateReadyToFinalize State = "ready_to_finalize"
	StateFinalized       State = "finalized"
)

// Active reports whether responses may still be recorded in this state.
func (s State) Active() bool {
	return s == StateInProgress || s == StateReadyToFinalize
}

// Value holds an answer for a checklist item. Exactly one field is populated,
// matching the item's answer type.
type Value struct {
	Bool      *bool                 `json:"bool,omitempty"`
	Text      string                `json:"text,omitempty"`
	Number    *float64              `json:"number,omitempty"`
	Photo     evidence.PhotoRef     `json:"photo,omitempty"`
	Signature evidence.SignatureRef `json:"signature,omitempty"`
}

// BoolValue builds a boolean answer value.
func BoolValue(v bool) Value { return Value{Bool: &v} }

// TextValue builds a free-text answer value.
func TextValue(s string) Value { return Value{Text: s} }

// NumberValue builds a numeric answer value.
func NumberValue(n float64) Value { return Value{Number: &n} }

// PhotoValue builds a photo-evidence answer value.
func PhotoValue(ref evidence.PhotoRef) Value { return Value{Photo: ref} }

// SignatureValue builds a signature-evidence answer value.
func SignatureValue(ref evidence.SignatureRef) Value { return Value{Signature: ref} }

// Response is a technician's answer to one template item. An instance holds
// at most one response per item; a new answer replaces the previous one.
type Response struct {
	ItemID     string    `json:"item_id"`
	Value      Value     `json:"value"`
	Completed  bool      `json:"completed"`
	CapturedAt time.Time `json:"captured_at"`
}

// FinalizeInput carries the legal evidence required to finalize an instance.
type FinalizeInput struct {
	TechSignature   evidence.SignatureRef `json:"tech_signature"`
	ClientSignature evidence.SignatureRef `json:"client_signature"`
	Location        evidence.Coordinates  `json:"location"`
}

// Instance is one concrete occurrence of a checklist being filled out for a
// specific order. At most one non-superseded instance exists per order.
//
// ProgressPercent and CanFinalize are derived from Responses plus the
// template. Transitions recompute them in the same snapshot as any response
// change; they are never mutated independently.
type Instance struct {
	ID         string     `json:"id"`
	OrderID    string     `json:"order_id"`
	TemplateID string     `json:"template_id"`
	Category   string     `json:"category"`
	State      State      `json:"state"`
	Responses  []Response `json:"responses"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	PausedAt    *time.Time `json:"paused_at,omitempty"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`

	// PausedSeconds accumulates completed pause intervals on each resume.
	// TotalMinutes excludes paused time (see Finalize).
	PausedSeconds int64 `json:"paused_seconds,omitempty"`
	TotalMinutes  *int  `json:"total_minutes,omitempty"`

	Finalization *FinalizeInput `json:"finalization,omitempty"`

	ProgressPercent int  `json:"progress_percent"`
	CanFinalize     bool `json:"can_finalize"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Response returns the recorded response for the given item, if any.
func (inst Instance) Response(itemID string) (Response, bool) {
	for _, r := range inst.Responses {
		if r.ItemID == itemID {
			return r, true
		}
	}
	return Response{}, false
}

// Clone returns a deep copy of the instance. Transitions operate on copies so
// a rejected transition never leaves partial mutations behind.
func (inst Instance) Clone() Instance {
	out := inst
	out.Responses = make([]Response, len(inst.Responses))
	copy(out.Responses, inst.Responses)
	if inst.StartedAt != nil {
		t := *inst.StartedAt
		out.StartedAt = &t
	}
	if inst.PausedAt != nil {
		t := *inst.PausedAt
		out.PausedAt = &t
	}
	if inst.FinalizedAt != nil {
		t := *inst.FinalizedAt
		out.FinalizedAt = &t
	}
	if inst.TotalMinutes != nil {
		m := *inst.TotalMinutes
		out.TotalMinutes = &m
	}
	if inst.Finalization != nil {
		f := *inst.Finalization
		out.Finalization = &f
	}
	return out
}
