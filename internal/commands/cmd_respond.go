package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/tallerpro/checkup/internal/core/checklist"
	"github.com/tallerpro/checkup/internal/core/evidence"
	"github.com/tallerpro/checkup/internal/engine"
)

type RespondCmd struct {
	flags *Flags
	app   *engine.App

	// flags
	value      string
	jsonOutput bool
}

// NewRespondCmd creates a new respond command
func NewRespondCmd(flags *Flags, app *engine.App) *RespondCmd {
	return &RespondCmd{flags: flags, app: app}
}

// Register adds the respond command to the application
func (cmd *RespondCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "respond",
		Usage:     "Record an answer for a checklist item",
		UsageText: "checkup respond <order-id> <item-id> --value <value>",
		Description: `Records an answer for one item. The value is parsed per the item's answer
type: true/false for booleans, a number for numeric items, free text for
text items, and an evidence reference (blob://... or sig://...) for photo
and signature items.

The answer is visible locally immediately; when the server is unreachable
the submit is queued and replayed in order.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "value",
				Aliases:     []string{"v"},
				Usage:       "the answer value",
				Required:    true,
				Destination: &cmd.value,
			},
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

func (cmd *RespondCmd) run(ctx context.Context, c *cli.Command) error {
	orderID, itemID := c.Args().Get(0), c.Args().Get(1)
	if orderID == "" || itemID == "" {
		return fmt.Errorf("usage: checkup respond <order-id> <item-id> --value <value>")
	}

	rec, err := cmd.app.Store.Get(ctx, orderID)
	if err != nil {
		return fmt.Errorf("no checklist for order %s: %w", orderID, err)
	}
	item, ok := rec.Template.Item(itemID)
	if !ok {
		return fmt.Errorf("item %q is not part of the %s checklist", itemID, rec.Template.Name)
	}

	value, err := parseValue(ctx, item, cmd.value)
	if err != nil {
		return err
	}

	res, err := cmd.app.Engine.Respond(ctx, orderID, itemID, value)
	if err != nil {
		return fmt.Errorf("record answer: %w", err)
	}
	return reportResult(c.Root().Writer, cmd.jsonOutput, res)
}

// parseValue interprets the raw flag value per the item's answer type.
func parseValue(ctx context.Context, item checklist.Item, raw string) (checklist.Value, error) {
	switch item.AnswerType {
	case checklist.AnswerBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return checklist.Value{}, fmt.Errorf("item %s expects true or false, got %q", item.ID, raw)
		}
		return checklist.BoolValue(b), nil
	case checklist.AnswerNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return checklist.Value{}, fmt.Errorf("item %s expects a number, got %q", item.ID, raw)
		}
		return checklist.NumberValue(n), nil
	case checklist.AnswerText:
		return checklist.TextValue(raw), nil
	case checklist.AnswerPhoto:
		ref, err := flagCapturer{photo: raw}.CapturePhoto(ctx)
		if err != nil {
			return checklist.Value{}, fmt.Errorf("item %s: %w", item.ID, err)
		}
		return checklist.PhotoValue(ref), nil
	case checklist.AnswerSignature:
		return checklist.SignatureValue(evidence.SignatureRef(raw)), nil
	}
	return checklist.Value{}, fmt.Errorf("item %s has unknown answer type %q", item.ID, item.AnswerType)
}
