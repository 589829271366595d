package checklist

import (
	"math"
	"sort"
	"strings"
)

// ItemSatisfied reports whether the response answers the item per the
// answer type's non-empty rule. A missing or mismatched value never
// satisfies the item.
func ItemSatisfied(item Item, resp Response) bool {
	switch item.AnswerType {
	case AnswerBoolean:
		return resp.Value.Bool != nil
	case AnswerText:
		return strings.TrimSpace(resp.Value.Text) != ""
	case AnswerNumber:
		return resp.Value.Number != nil
	case AnswerPhoto:
		return resp.Value.Photo != ""
	case AnswerSignature:
		return resp.Value.Signature != ""
	}
	return false
}

// Progress computes the completion percentage over ALL template items, not
// only required ones, so the figure reflects full checklist completion.
// Result is rounded to the nearest integer in [0, 100].
func Progress(tmpl Template, inst Instance) int {
	if len(tmpl.Items) == 0 {
		return 0
	}
	satisfied := 0
	for _, item := range tmpl.Items {
		if resp, ok := inst.Response(item.ID); ok && ItemSatisfied(item, resp) {
			satisfied++
		}
	}
	return int(math.Round(100 * float64(satisfied) / float64(len(tmpl.Items))))
}

// CanFinalize reports whether every item whose effective required flag is
// true has a satisfied response. CanFinalize(t, i) is true exactly when
// MissingRequired(t, i) is empty.
func CanFinalize(tmpl Template, inst Instance) bool {
	return len(MissingRequired(tmpl, inst)) == 0
}

// MissingRequired returns the required items that lack a satisfied response,
// ordered by display order. Used to produce an itemized finalize rejection
// instead of a generic failure.
func MissingRequired(tmpl Template, inst Instance) []Item {
	var missing []Item
	for _, item := range tmpl.Items {
		if !item.EffectiveRequired() {
			continue
		}
		if resp, ok := inst.Response(item.ID); !ok || !ItemSatisfied(item, resp) {
			missing = append(missing, item)
		}
	}
	sort.SliceStable(missing, func(a, b int) bool {
		return missing[a].DisplayOrder < missing[b].DisplayOrder
	})
	return missing
}

// Recompute returns a snapshot with ProgressPercent, CanFinalize, and the
// IN_PROGRESS / READY_TO_FINALIZE split refreshed from the responses. Every
// transition that touches responses runs through here so the derived fields
// can never drift from the recorded answers.
func Recompute(tmpl Template, inst Instance) Instance {
	inst.ProgressPercent = Progress(tmpl, inst)
	inst.CanFinalize = CanFinalize(tmpl, inst)
	switch {
	case inst.State == StateInProgress && inst.CanFinalize:
		inst.State = StateReadyToFinalize
	case inst.State == StateReadyToFinalize && !inst.CanFinalize:
		inst.State = StateInProgress
	}
	return inst
}
