package commands

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/tallerpro/checkup/internal/data/stores"
	"github.com/tallerpro/checkup/internal/engine"
	"github.com/tallerpro/checkup/pkg/iojson"
)

type OrdersCmd struct {
	flags *Flags
	app   *engine.App

	// flags
	jsonOutput bool
}

// NewOrdersCmd creates a new orders command
func NewOrdersCmd(flags *Flags, app *engine.App) *OrdersCmd {
	return &OrdersCmd{flags: flags, app: app}
}

// Register adds the orders command to the application
func (cmd *OrdersCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "orders",
		Usage:     "List all local checklists",
		UsageText: "checkup orders [--json]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON lines",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *OrdersCmd) run(ctx context.Context, c *cli.Command) error {
	recs, err := cmd.app.Store.List(ctx)
	if err != nil {
		return fmt.Errorf("list checklists: %w", err)
	}

	if len(recs) == 0 {
		if !cmd.jsonOutput {
			fmt.Fprintf(os.Stderr, "No checklists found\n")
		}
		return nil
	}

	slices.SortFunc(recs, func(a, b stores.OrderRecord) int {
		return strings.Compare(a.OrderID, b.OrderID)
	})

	out := c.Root().Writer

	if cmd.jsonOutput {
		for _, rec := range recs {
			if err := iojson.WriteLine(out, cmd.buildOrderInfo(rec)); err != nil {
				return fmt.Errorf("encode record: %w", err)
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ORDER\tCATEGORY\tSTATE\tPROGRESS\tPENDING")
	for _, rec := range recs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\t%d\n",
			rec.OrderID,
			rec.Instance.Category,
			rec.Instance.State,
			rec.Instance.ProgressPercent,
			len(rec.Pending),
		)
	}
	_ = w.Flush()

	return nil
}

// orderInfo is the JSON output format for checkup orders --json.
type orderInfo struct {
	OrderID   string `json:"order_id"`
	Category  string `json:"category"`
	State     string `json:"state"`
	Progress  int    `json:"progress"`
	Pending   int    `json:"pending"`
	Confirmed bool   `json:"finalize_confirmed"`
}

func (cmd *OrdersCmd) buildOrderInfo(rec stores.OrderRecord) orderInfo {
	return orderInfo{
		OrderID:   rec.OrderID,
		Category:  rec.Instance.Category,
		State:     string(rec.Instance.State),
		Progress:  rec.Instance.ProgressPercent,
		Pending:   len(rec.Pending),
		Confirmed: rec.FinalizeConfirmed,
	}
}
