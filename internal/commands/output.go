package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/tallerpro/checkup/internal/core/checklist"
	"github.com/tallerpro/checkup/internal/engine"
	"github.com/tallerpro/checkup/pkg/iojson"
)

// reportResult renders an engine result for the operator. Rejections are
// returned as errors so the process exits non-zero.
func reportResult(w io.Writer, jsonOutput bool, res engine.Result) error {
	if res.Status == engine.StatusRejected {
		return rejectionMessage(res.Err)
	}

	if jsonOutput {
		return iojson.WriteWith(w, w, struct {
			Status   engine.Status      `json:"status"`
			Instance checklist.Instance `json:"instance"`
		}{Status: res.Status, Instance: res.Instance})
	}

	switch res.Status {
	case engine.StatusApplied:
		fmt.Fprintln(w, "synced")
	case engine.StatusPendingSync:
		fmt.Fprintln(w, "saved locally, sync pending")
	case engine.StatusPendingConfirmation:
		fmt.Fprintln(w, "finalized locally, AWAITING SERVER CONFIRMATION")
		fmt.Fprintln(w, "run 'checkup sync' once connectivity returns")
	}
	fmt.Fprintf(w, "state: %s  progress: %d%%\n", res.Instance.State, res.Instance.ProgressPercent)
	return nil
}

// rejectionMessage converts typed rejection errors into operator-readable
// messages.
func rejectionMessage(err error) error {
	var ve *checklist.ValidationError
	if errors.As(err, &ve) {
		lines := make([]string, 0, len(ve.Missing)+1)
		lines = append(lines, "cannot finalize, required items missing:")
		for _, item := range ve.Missing {
			lines = append(lines, fmt.Sprintf("  - %s: %s", item.ID, item.Question))
		}
		return errors.New(strings.Join(lines, "\n"))
	}

	var ite *checklist.InvalidTransitionError
	if errors.As(err, &ite) {
		return fmt.Errorf("cannot %s from state %s", ite.Attempted, ite.From)
	}
	return err
}

// writeChecklistTable renders the item-by-item view of an instance.
func writeChecklistTable(w io.Writer, tmpl checklist.Template, inst checklist.Instance) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ITEM\tQUESTION\tREQUIRED\tANSWERED")
	for _, item := range tmpl.Items {
		required := ""
		if item.EffectiveRequired() {
			required = "yes"
		}
		answered := ""
		if resp, ok := inst.Response(item.ID); ok && resp.Completed {
			answered = "yes"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", item.ID, item.Question, required, answered)
	}
	_ = tw.Flush()
}
