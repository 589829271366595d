package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/tallerpro/checkup/internal/core/checklist"
	"github.com/tallerpro/checkup/internal/core/evidence"
	"github.com/tallerpro/checkup/internal/engine"
	"github.com/tallerpro/checkup/pkg/iojson"
)

type FinalizeCmd struct {
	flags *Flags
	app   *engine.App

	// flags
	techSig    string
	clientSig  string
	lat        float64
	lng        float64
	jsonOutput bool
	reader     iojson.FileReader[checklist.FinalizeInput]
}

// NewFinalizeCmd creates a new finalize command
func NewFinalizeCmd(flags *Flags, app *engine.App) *FinalizeCmd {
	return &FinalizeCmd{flags: flags, app: app}
}

// Register adds the finalize command to the application
func (cmd *FinalizeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "finalize",
		Usage:     "Finalize a completed checklist",
		UsageText: "checkup finalize <order-id> --tech-signature <ref> --client-signature <ref> --lat <lat> --lng <lng>",
		Description: `Irreversibly closes the checklist. Requires every required item answered,
both signatures, and a GPS fix. The evidence can also be piped as JSON via
--file or stdin.

When the server is unreachable the finalization is recorded locally and
reported as UNCONFIRMED until sync succeeds.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "tech-signature",
				Usage:       "technician signature reference",
				Destination: &cmd.techSig,
			},
			&cli.StringFlag{
				Name:        "client-signature",
				Usage:       "client signature reference",
				Destination: &cmd.clientSig,
			},
			&cli.FloatFlag{
				Name:        "lat",
				Usage:       "GPS latitude at time of capture",
				Destination: &cmd.lat,
			},
			&cli.FloatFlag{
				Name:        "lng",
				Usage:       "GPS longitude at time of capture",
				Destination: &cmd.lng,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output the resulting instance as JSON",
				Destination: &cmd.jsonOutput,
			},
			cmd.reader.Flag(),
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *FinalizeCmd) run(ctx context.Context, c *cli.Command) error {
	orderID := c.Args().First()
	if orderID == "" {
		return fmt.Errorf("usage: checkup finalize <order-id>")
	}

	in, err := cmd.input(ctx, c)
	if err != nil {
		return err
	}

	res, err := cmd.app.Engine.Finalize(ctx, orderID, in)
	if err != nil {
		return fmt.Errorf("finalize checklist: %w", err)
	}
	return reportResult(c.Root().Writer, cmd.jsonOutput, res)
}

// input assembles the finalize evidence from flags, or from JSON when the
// signature flags are absent.
func (cmd *FinalizeCmd) input(ctx context.Context, c *cli.Command) (checklist.FinalizeInput, error) {
	if cmd.techSig == "" && cmd.clientSig == "" {
		return cmd.reader.Read()
	}

	capturer := flagCapturer{techSig: cmd.techSig, clientSig: cmd.clientSig, lat: cmd.lat, lng: cmd.lng}
	tech, err := capturer.CaptureSignature(ctx, evidence.RoleTechnician)
	if err != nil {
		return checklist.FinalizeInput{}, err
	}
	client, err := capturer.CaptureSignature(ctx, evidence.RoleClient)
	if err != nil {
		return checklist.FinalizeInput{}, err
	}
	loc, err := capturer.CaptureLocation(ctx)
	if err != nil {
		return checklist.FinalizeInput{}, err
	}
	return checklist.FinalizeInput{
		TechSignature:   tech,
		ClientSignature: client,
		Location:        loc,
	}, nil
}
