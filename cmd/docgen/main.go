// Command docgen generates CLI reference documentation from the checkup
// command definitions. Output is written to docs/cli-reference.md.
package main

import (
	"fmt"
	"os"

	docs "github.com/urfave/cli-docs/v3"
	"github.com/urfave/cli/v3"

	"github.com/tallerpro/checkup/internal/commands"
	"github.com/tallerpro/checkup/internal/engine"
)

func main() {
	flags := &commands.Flags{}
	app := &engine.App{}

	root := &cli.Command{
		Name:      "checkup",
		Usage:     "Offline-first service checklists for repair orders",
		UsageText: "checkup [global options] command [command options]",
		Description: `Checkup drives the mandatory service checklist for vehicle repair orders.

Every transition applies locally first and syncs to the marketplace when
connectivity allows. Run 'checkup sync' or 'checkup watch' to replay queued
work.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (debug, info, warn, error, fatal, panic)",
				Sources: cli.EnvVars("CHECKUP_LOG_LEVEL"),
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "log-file",
				Usage:   "path to log file (defaults to <data-dir>/checkup.log)",
				Sources: cli.EnvVars("CHECKUP_LOG_FILE"),
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
				Sources: cli.EnvVars("CHECKUP_CONFIG"),
				Value:   commands.DefaultConfigPath(),
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "path to data directory",
				Sources: cli.EnvVars("CHECKUP_DATA_DIR"),
				Value:   commands.DefaultDataDir(),
			},
		},
	}

	root = commands.NewStartCmd(flags, app).Register(root)
	root = commands.NewRespondCmd(flags, app).Register(root)
	root = commands.NewPauseCmd(flags, app).Register(root)
	root = commands.NewResumeCmd(flags, app).Register(root)
	root = commands.NewFinalizeCmd(flags, app).Register(root)
	root = commands.NewStatusCmd(flags, app).Register(root)
	root = commands.NewOrdersCmd(flags, app).Register(root)
	root = commands.NewSyncCmd(flags, app).Register(root)
	root = commands.NewRefreshCmd(flags, app).Register(root)
	root = commands.NewWatchCmd(flags, app).Register(root)
	root = commands.NewConfigValidateCmd(flags).Register(root)

	md, err := docs.ToMarkdown(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error generating docs: %v\n", err)
		os.Exit(1)
	}

	outPath := "docs/cli-reference.md"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.WriteFile(outPath, []byte(md), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing %s: %v\n", outPath, err)
		os.Exit(1)
	}

	fmt.Printf("Generated %s\n", outPath)
}
