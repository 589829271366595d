package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/tallerpro/checkup/pkg/iojson"
)

type ConfigValidateCmd struct {
	flags *Flags

	// flags
	jsonOutput bool
}

// NewConfigValidateCmd creates a new config validate command.
func NewConfigValidateCmd(flags *Flags) *ConfigValidateCmd {
	return &ConfigValidateCmd{flags: flags}
}

// Register adds the config validate command to the application.
func (cmd *ConfigValidateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:        "validate",
				Usage:       "Validate configuration file",
				UsageText:   "checkup config validate [--json]",
				Description: "Validates the configuration file and prints the effective settings.",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "json",
						Usage:       "output the effective config as JSON",
						Destination: &cmd.jsonOutput,
					},
				},
				Action: cmd.run,
			},
		},
	})

	return app
}

func (cmd *ConfigValidateCmd) run(ctx context.Context, c *cli.Command) error {
	// Config was already loaded and validated in the Before hook; reaching
	// here means it parsed. Re-run validation for the explicit report.
	if err := cmd.flags.Config.Validate(); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	out := c.Root().Writer
	if cmd.jsonOutput {
		// Token stays out of the output.
		return iojson.WriteWith(out, out, struct {
			ConfigPath            string `json:"config_path"`
			DataDir               string `json:"data_dir"`
			RemoteBaseURL         string `json:"remote_base_url"`
			RemoteTimeoutSeconds  int    `json:"remote_timeout_seconds"`
			RetryBaseSeconds      int    `json:"retry_base_seconds"`
			RetryMaxSeconds       int    `json:"retry_max_seconds"`
			RefreshMaxWaitSeconds int    `json:"refresh_max_wait_seconds"`
		}{
			ConfigPath:            cmd.flags.ConfigPath,
			DataDir:               cmd.flags.DataDir,
			RemoteBaseURL:         cmd.flags.Config.Remote.BaseURL,
			RemoteTimeoutSeconds:  cmd.flags.Config.Remote.TimeoutSeconds,
			RetryBaseSeconds:      cmd.flags.Config.Sync.RetryBaseSeconds,
			RetryMaxSeconds:       cmd.flags.Config.Sync.RetryMaxSeconds,
			RefreshMaxWaitSeconds: cmd.flags.Config.Sync.RefreshMaxWaitSeconds,
		})
	}

	fmt.Fprintf(out, "config file: %s\n", cmd.flags.ConfigPath)
	fmt.Fprintf(out, "data dir:    %s\n", cmd.flags.DataDir)
	fmt.Fprintf(out, "remote:      %s (timeout %s)\n", cmd.flags.Config.Remote.BaseURL, cmd.flags.Config.Remote.Timeout())
	fmt.Fprintf(out, "sync:        retry %s..%s, refresh wait %s\n",
		cmd.flags.Config.Sync.RetryBase(),
		cmd.flags.Config.Sync.RetryMax(),
		cmd.flags.Config.Sync.RefreshMaxWait(),
	)
	fmt.Fprintln(out, "Configuration is valid")
	return nil
}
