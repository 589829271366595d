package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/tallerpro/checkup/internal/engine"
	"github.com/tallerpro/checkup/pkg/iojson"
)

type RefreshCmd struct {
	flags *Flags
	app   *engine.App

	// flags
	force      bool
	jsonOutput bool
}

// NewRefreshCmd creates a new refresh command
func NewRefreshCmd(flags *Flags, app *engine.App) *RefreshCmd {
	return &RefreshCmd{flags: flags, app: app}
}

// Register adds the refresh command to the application
func (cmd *RefreshCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "refresh",
		Usage:     "Re-fetch an order's checklist from the server",
		UsageText: "checkup refresh <order-id> [--force]",
		Description: `Replaces the local snapshot with the server's authoritative state. Refused
while mutations are still queued unless --force is given; forcing merges
per item and reports any local edits that lose to the server.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "force",
				Usage:       "refresh even with queued mutations",
				Destination: &cmd.force,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output the refreshed instance as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *RefreshCmd) run(ctx context.Context, c *cli.Command) error {
	orderID := c.Args().First()
	if orderID == "" {
		return fmt.Errorf("usage: checkup refresh <order-id>")
	}

	inst, err := cmd.app.Engine.ForceRefresh(ctx, orderID, cmd.force)
	if err != nil {
		if errors.Is(err, engine.ErrPendingMutations) {
			return fmt.Errorf("order %s has queued mutations; run 'checkup sync' first or pass --force", orderID)
		}
		return fmt.Errorf("refresh: %w", err)
	}

	out := c.Root().Writer
	if cmd.jsonOutput {
		return iojson.WriteWith(out, out, inst)
	}
	fmt.Fprintf(out, "refreshed from server\nstate: %s  progress: %d%%\n", inst.State, inst.ProgressPercent)
	return nil
}
