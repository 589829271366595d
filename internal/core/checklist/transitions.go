package checklist

import "time"

// Transitions in this file are pure: each takes a snapshot, validates its
// precondition, and returns a new snapshot or a typed error. Callers persist
// the returned snapshot; a rejected transition leaves the input untouched.

// Start creates a new instance in IN_PROGRESS for the given order. The
// caller is responsible for ensuring no non-finalized instance already
// exists for the order (the engine checks its store and the order's
// lifecycle gate before calling).
func Start(tmpl Template, id, orderID string, now time.Time) Instance {
	inst := Instance{
		ID:         id,
		OrderID:    orderID,
		TemplateID: tmpl.ID,
		Category:   tmpl.Category,
		State:      StateInProgress,
		StartedAt:  &now,
		UpdatedAt:  now,
	}
	return Recompute(tmpl, inst)
}

// Pause suspends an in-progress instance. All recorded responses are
// retained.
func Pause(inst Instance, now time.Time) (Instance, error) {
	if !inst.State.Active() {
		return inst, &InvalidTransitionError{Attempted: "pause", From: inst.State}
	}
	out := inst.Clone()
	out.State = StatePaused
	out.PausedAt = &now
	out.UpdatedAt = now
	return out, nil
}

// Resume returns a paused instance to IN_PROGRESS, folding the completed
// pause interval into PausedSeconds.
func Resume(tmpl Template, inst Instance, now time.Time) (Instance, error) {
	if inst.State != StatePaused {
		return inst, &InvalidTransitionError{Attempted: "resume", From: inst.State}
	}
	out := inst.Clone()
	if out.PausedAt != nil {
		out.PausedSeconds += int64(now.Sub(*out.PausedAt).Seconds())
		out.PausedAt = nil
	}
	out.State = StateInProgress
	out.UpdatedAt = now
	// Re-derive READY_TO_FINALIZE if the checklist was already complete.
	return Recompute(tmpl, out), nil
}

// Respond records an answer for one item, replacing any previous response
// for it, and recomputes the derived fields in the same snapshot.
func Respond(tmpl Template, inst Instance, itemID string, value Value, now time.Time) (Instance, error) {
	if !inst.State.Active() {
		return inst, &InvalidTransitionError{Attempted: "respond", From: inst.State}
	}
	item, ok := tmpl.Item(itemID)
	if !ok {
		return inst, ErrUnknownItem
	}
	if err := checkEvidence(item, value); err != nil {
		return inst, err
	}

	resp := Response{
		ItemID:     itemID,
		Value:      value,
		Completed:  ItemSatisfied(item, Response{Value: value}),
		CapturedAt: now,
	}

	out := inst.Clone()
	replaced := false
	for i := range out.Responses {
		if out.Responses[i].ItemID == itemID {
			out.Responses[i] = resp
			replaced = true
			break
		}
	}
	if !replaced {
		out.Responses = append(out.Responses, resp)
	}
	out.UpdatedAt = now
	return Recompute(tmpl, out), nil
}

// Finalize irreversibly closes the instance. It requires every effectively
// required item to be satisfied plus both signatures and a GPS fix. No
// transition exists out of FINALIZED.
//
// TotalMinutes policy: elapsed wall clock from StartedAt to now, minus
// accumulated paused time. Documented in DESIGN.md.
func Finalize(tmpl Template, inst Instance, in FinalizeInput, now time.Time) (Instance, error) {
	if !inst.State.Active() {
		return inst, &InvalidTransitionError{Attempted: "finalize", From: inst.State}
	}
	if in.TechSignature == "" || in.ClientSignature == "" {
		return inst, &EvidenceMissingError{ItemID: "finalization", AnswerType: AnswerSignature}
	}
	if in.Location.Zero() {
		return inst, &EvidenceMissingError{ItemID: "finalization", AnswerType: "gps"}
	}
	if missing := MissingRequired(tmpl, inst); len(missing) > 0 {
		return inst, &ValidationError{Missing: missing}
	}

	out := inst.Clone()
	out.State = StateFinalized
	out.FinalizedAt = &now
	out.Finalization = &in
	if out.StartedAt != nil {
		elapsed := now.Sub(*out.StartedAt) - time.Duration(out.PausedSeconds)*time.Second
		if elapsed < 0 {
			elapsed = 0
		}
		minutes := int(elapsed.Minutes())
		out.TotalMinutes = &minutes
	}
	out.UpdatedAt = now
	out.ProgressPercent = Progress(tmpl, out)
	out.CanFinalize = true
	return out, nil
}

// checkEvidence rejects photo and signature answers submitted without a
// valid reference. These never reach the remote call.
func checkEvidence(item Item, value Value) error {
	switch item.AnswerType {
	case AnswerPhoto:
		if value.Photo == "" {
			return &EvidenceMissingError{ItemID: item.ID, AnswerType: AnswerPhoto}
		}
	case AnswerSignature:
		if value.Signature == "" {
			return &EvidenceMissingError{ItemID: item.ID, AnswerType: AnswerSignature}
		}
	}
	return nil
}
