package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/tallerpro/checkup/internal/core/checklist"
	"github.com/tallerpro/checkup/internal/engine"
)

type WatchCmd struct {
	flags *Flags
	app   *engine.App

	// flags
	interval time.Duration
}

// NewWatchCmd creates a new watch command
func NewWatchCmd(flags *Flags, app *engine.App) *WatchCmd {
	return &WatchCmd{flags: flags, app: app}
}

// Register adds the watch command to the application
func (cmd *WatchCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "watch",
		Usage:     "Follow an order's checklist state",
		UsageText: "checkup watch <order-id>",
		Description: `Prints a line for every local state change of the order's checklist while
syncing in the background. Intended for a second terminal during service.`,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:        "interval",
				Usage:       "background sync cadence",
				Value:       15 * time.Second,
				Destination: &cmd.interval,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *WatchCmd) run(ctx context.Context, c *cli.Command) error {
	orderID := c.Args().First()
	if orderID == "" {
		return fmt.Errorf("usage: checkup watch <order-id>")
	}

	out := c.Root().Writer

	inst, err := cmd.app.Engine.Current(ctx, orderID)
	if err != nil {
		return fmt.Errorf("no checklist for order %s: %w", orderID, err)
	}
	fmt.Fprintf(out, "%s  state=%s progress=%d%%\n", time.Now().Format("15:04:05"), inst.State, inst.ProgressPercent)

	unsubscribe := cmd.app.Engine.Subscribe(orderID, func(inst checklist.Instance) {
		fmt.Fprintf(out, "%s  state=%s progress=%d%%\n", time.Now().Format("15:04:05"), inst.State, inst.ProgressPercent)
	})
	defer unsubscribe()

	// Blocks until interrupted; the Before hook already started the bus.
	cmd.app.Reconciler.Run(ctx, cmd.interval)
	return nil
}
