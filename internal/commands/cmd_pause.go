package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/tallerpro/checkup/internal/engine"
)

type PauseCmd struct {
	flags *Flags
	app   *engine.App

	// flags
	jsonOutput bool
}

// NewPauseCmd creates a new pause command
func NewPauseCmd(flags *Flags, app *engine.App) *PauseCmd {
	return &PauseCmd{flags: flags, app: app}
}

// Register adds the pause command to the application
func (cmd *PauseCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "pause",
		Usage:     "Suspend an in-progress checklist",
		UsageText: "checkup pause <order-id>",
		Description: `Suspends the checklist while the technician waits on parts or approval.
Recorded answers are retained; paused time is excluded from the total
service duration.`,
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

func (cmd *PauseCmd) run(ctx context.Context, c *cli.Command) error {
	orderID := c.Args().First()
	if orderID == "" {
		return fmt.Errorf("usage: checkup pause <order-id>")
	}

	res, err := cmd.app.Engine.Pause(ctx, orderID)
	if err != nil {
		return fmt.Errorf("pause checklist: %w", err)
	}
	return reportResult(c.Root().Writer, cmd.jsonOutput, res)
}
