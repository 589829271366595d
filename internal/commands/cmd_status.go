package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/tallerpro/checkup/internal/core/checklist"
	"github.com/tallerpro/checkup/internal/engine"
	"github.com/tallerpro/checkup/pkg/iojson"
)

type StatusCmd struct {
	flags *Flags
	app   *engine.App

	// flags
	jsonOutput bool
}

// NewStatusCmd creates a new status command
func NewStatusCmd(flags *Flags, app *engine.App) *StatusCmd {
	return &StatusCmd{flags: flags, app: app}
}

// Register adds the status command to the application
func (cmd *StatusCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "status",
		Usage:     "Show the checklist for an order",
		UsageText: "checkup status <order-id> [--json]",
		Description: `Shows the local snapshot: state, progress, item-by-item answers, and any
mutations still queued for sync.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output the full record as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *StatusCmd) run(ctx context.Context, c *cli.Command) error {
	orderID := c.Args().First()
	if orderID == "" {
		return fmt.Errorf("usage: checkup status <order-id>")
	}

	rec, err := cmd.app.Store.Get(ctx, orderID)
	if err != nil {
		return fmt.Errorf("no checklist for order %s: %w", orderID, err)
	}

	out := c.Root().Writer

	if cmd.jsonOutput {
		return iojson.WriteWith(out, out, rec)
	}

	inst := rec.Instance
	fmt.Fprintf(out, "order:    %s\n", rec.OrderID)
	fmt.Fprintf(out, "template: %s (%s)\n", rec.Template.Name, rec.Template.Category)
	fmt.Fprintf(out, "state:    %s\n", inst.State)
	fmt.Fprintf(out, "progress: %d%%\n", inst.ProgressPercent)
	if inst.CanFinalize && inst.State != checklist.StateFinalized {
		fmt.Fprintln(out, "ready to finalize")
	}
	if inst.State == checklist.StateFinalized && !rec.FinalizeConfirmed {
		fmt.Fprintln(out, "finalization NOT YET CONFIRMED by server")
	}
	if rec.LastSyncedAt != nil {
		fmt.Fprintf(out, "synced:   %s\n", rec.LastSyncedAt.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintln(out)

	writeChecklistTable(out, rec.Template, inst)

	if len(rec.Pending) > 0 {
		fmt.Fprintf(out, "\n%d mutation(s) queued for sync:\n", len(rec.Pending))
		for _, m := range rec.Pending {
			detail := ""
			if m.Respond != nil {
				detail = " " + m.Respond.ItemID
			}
			fmt.Fprintf(out, "  #%d %s%s (attempts: %d)\n", m.Seq, m.Kind, detail, m.Attempts)
		}
	}

	return nil
}
