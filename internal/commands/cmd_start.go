package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/tallerpro/checkup/internal/engine"
)

type StartCmd struct {
	flags *Flags
	app   *engine.App

	// flags
	jsonOutput bool
}

// NewStartCmd creates a new start command
func NewStartCmd(flags *Flags, app *engine.App) *StartCmd {
	return &StartCmd{flags: flags, app: app}
}

// Register adds the start command to the application
func (cmd *StartCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "start",
		Usage:     "Start the checklist for an order",
		UsageText: "checkup start <order-id> [--json]",
		Description: `Creates the checklist instance for an order whose lifecycle requires one.

The order lookup needs connectivity; the instance creation itself is queued
for replay when the server is unreachable.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output the resulting instance as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *StartCmd) run(ctx context.Context, c *cli.Command) error {
	orderID := c.Args().First()
	if orderID == "" {
		return fmt.Errorf("usage: checkup start <order-id>")
	}

	res, err := cmd.app.Engine.Start(ctx, orderID)
	if err != nil {
		return fmt.Errorf("start checklist: %w", err)
	}
	return reportResult(c.Root().Writer, cmd.jsonOutput, res)
}
