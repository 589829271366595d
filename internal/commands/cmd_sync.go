package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/tallerpro/checkup/internal/core/eventbus"
	"github.com/tallerpro/checkup/internal/engine"
)

type SyncCmd struct {
	flags *Flags
	app   *engine.App

	// flags
	watch    bool
	interval time.Duration
}

// NewSyncCmd creates a new sync command
func NewSyncCmd(flags *Flags, app *engine.App) *SyncCmd {
	return &SyncCmd{flags: flags, app: app}
}

// Register adds the sync command to the application
func (cmd *SyncCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "sync",
		Usage:     "Replay queued mutations against the server",
		UsageText: "checkup sync [--watch] [--interval 30s]",
		Description: `Replays every order's queued mutations in order, stopping per order at the
first failure. With --watch it keeps running on the given interval until
interrupted.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "watch",
				Aliases:     []string{"w"},
				Usage:       "keep syncing on an interval",
				Destination: &cmd.watch,
			},
			&cli.DurationFlag{
				Name:        "interval",
				Usage:       "replay cadence in watch mode",
				Value:       30 * time.Second,
				Destination: &cmd.interval,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *SyncCmd) run(ctx context.Context, c *cli.Command) error {
	out := c.Root().Writer

	cmd.app.Bus.SubscribeQueueDrained(func(p eventbus.QueueDrainedPayload) {
		fmt.Fprintf(out, "order %s: %d mutation(s) synced\n", p.OrderID, p.Replayed)
	})
	cmd.app.Bus.SubscribeSyncConflict(func(p eventbus.SyncConflictPayload) {
		fmt.Fprintf(out, "order %s: conflict on %s: %s\n", p.OrderID, p.ItemID, p.Detail)
	})
	cmd.app.Bus.SubscribeInstanceFinalized(func(p eventbus.InstanceFinalizedPayload) {
		fmt.Fprintf(out, "order %s: finalization CONFIRMED\n", p.OrderID)
	})

	if cmd.watch {
		fmt.Fprintf(out, "syncing every %s, ctrl-c to stop\n", cmd.interval)
		cmd.app.Reconciler.Run(ctx, cmd.interval)
		return nil
	}

	if err := cmd.app.Reconciler.Drain(ctx); err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	remaining := 0
	recs, err := cmd.app.Store.List(ctx)
	if err != nil {
		return fmt.Errorf("list checklists: %w", err)
	}
	for _, rec := range recs {
		remaining += len(rec.Pending)
	}
	if remaining > 0 {
		fmt.Fprintf(out, "%d mutation(s) still pending, will retry with backoff\n", remaining)
	} else {
		fmt.Fprintln(out, "all checklists synced")
	}
	return nil
}
