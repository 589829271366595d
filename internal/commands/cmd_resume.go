package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/tallerpro/checkup/internal/engine"
)

type ResumeCmd struct {
	flags *Flags
	app   *engine.App

	// flags
	jsonOutput bool
}

// NewResumeCmd creates a new resume command
func NewResumeCmd(flags *Flags, app *engine.App) *ResumeCmd {
	return &ResumeCmd{flags: flags, app: app}
}

// Register adds the resume command to the application
func (cmd *ResumeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "resume",
		Usage:     "Resume a paused checklist",
		UsageText: "checkup resume <order-id>",
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

func (cmd *ResumeCmd) run(ctx context.Context, c *cli.Command) error {
	orderID := c.Args().First()
	if orderID == "" {
		return fmt.Errorf("usage: checkup resume <order-id>")
	}

	res, err := cmd.app.Engine.Resume(ctx, orderID)
	if err != nil {
		return fmt.Errorf("resume checklist: %w", err)
	}
	return reportResult(c.Root().Writer, cmd.jsonOutput, res)
}
