package engine

import (
	"fmt"

	"github.com/tallerpro/checkup/internal/core/checklist"
	"github.com/tallerpro/checkup/internal/data/stores"
)

// conflict describes one reconciliation decision that went against the
// local copy.
type conflict struct {
	ItemID string
	Detail string
}

// reconcile merges an authoritative server snapshot into the local record.
//
// Scalar lifecycle fields always follow the server. Responses merge per
// item by last writer wins: a local response with an unacknowledged
// modification mark newer than the server's copy survives, everything else
// takes the server value. A tie goes to the server and is reported as a
// conflict. Derived fields are recomputed after the merge so they can never
// disagree with the merged responses.
func reconcile(rec *stores.OrderRecord, server checklist.Instance) []conflict {
	local := rec.Instance
	merged := server.Clone()

	var conflicts []conflict
	for _, lr := range local.Responses {
		mark, dirty := rec.SyncMarks[lr.ItemID]
		if !dirty {
			continue
		}
		sr, ok := merged.Response(lr.ItemID)
		if !ok {
			// Server never saw this item. Keep the local answer; the
			// pending queue will deliver it.
			merged.Responses = append(merged.Responses, lr)
			continue
		}
		switch {
		case mark.After(sr.CapturedAt):
			replaceResponse(&merged, lr)
		case mark.Equal(sr.CapturedAt):
			conflicts = append(conflicts, conflict{
				ItemID: lr.ItemID,
				Detail: fmt.Sprintf("simultaneous edit at %s, server value kept", mark.UTC().Format("2006-01-02T15:04:05Z07:00")),
			})
			rec.ClearMark(lr.ItemID)
		default:
			// Server copy is newer. The local edit lost the race.
			conflicts = append(conflicts, conflict{
				ItemID: lr.ItemID,
				Detail: "server value is newer, local edit discarded",
			})
			rec.ClearMark(lr.ItemID)
		}
	}

	// Finalized is terminal: the server saying finalized wins over any
	// local in-flight state, including a local unconfirmed finalization.
	if server.State == checklist.StateFinalized {
		merged.State = checklist.StateFinalized
		merged.Finalization = server.Finalization
		merged.TotalMinutes = server.TotalMinutes
	}

	rec.Instance = checklist.Recompute(rec.Template, merged)
	return conflicts
}

func replaceResponse(inst *checklist.Instance, resp checklist.Response) {
	for i := range inst.Responses {
		if inst.Responses[i].ItemID == resp.ItemID {
			inst.Responses[i] = resp
			return
		}
	}
	inst.Responses = append(inst.Responses, resp)
}
