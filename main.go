package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/tallerpro/checkup/internal/commands"
	"github.com/tallerpro/checkup/internal/core/config"
	"github.com/tallerpro/checkup/internal/core/eventbus"
	"github.com/tallerpro/checkup/internal/core/logging"
	"github.com/tallerpro/checkup/internal/data/db"
	"github.com/tallerpro/checkup/internal/engine"
	"github.com/tallerpro/checkup/internal/remote"
	"github.com/tallerpro/checkup/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	// When installed via `go install module@version`, ldflags aren't set
	// so version remains "dev". Fall back to runtime/debug.BuildInfo which
	// Go populates automatically with the module version and VCS metadata.
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	var (
		logCloser  func()
		checkupApp = &engine.App{}
		database   *db.DB
		busCancel  context.CancelFunc
		gcCancel   context.CancelFunc
	)

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "checkup",
		Usage:     "Offline-first service checklists for repair orders",
		UsageText: "checkup [global options] command [command options]",
		Description: `Checkup drives the mandatory service checklist for vehicle repair orders.

Every transition applies locally first and syncs to the marketplace when
connectivity allows, so a technician in an underground garage can keep
working. Run 'checkup sync' or 'checkup watch' to replay queued work.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("CHECKUP_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to <data-dir>/checkup.log)",
				Sources:     cli.EnvVars("CHECKUP_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("CHECKUP_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("CHECKUP_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			// Always log to a file; use explicit path or default to <datadir>/checkup.log
			logFile := flags.LogFile
			if logFile == "" {
				logFile = filepath.Join(flags.DataDir, "checkup.log")
			}

			logger, closer, err := logutils.New(flags.LogLevel, logFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			// Stamp order_id / instance_id from the context onto every event.
			log.Logger = logger.Hook(logging.ContextHook{})
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			// Open the local database
			dbOpts := db.OpenOptions{
				SyncWrites: cfg.Database.SyncWritesEnabled(),
				GCInterval: cfg.Database.GCInterval(),
				Logger:     logging.Component("badger"),
			}
			database, err = db.Open(cfg.DataDir, dbOpts)
			if err != nil {
				return ctx, fmt.Errorf("open database: %w", err)
			}

			if dbOpts.GCInterval > 0 {
				gcCtx, cancel := context.WithCancel(context.Background())
				gcCancel = cancel
				go database.RunGC(gcCtx, dbOpts.GCInterval)
			}

			remoteClient, err := remote.NewHTTPClient(
				cfg.Remote.BaseURL,
				cfg.Remote.Token,
				cfg.Remote.Timeout(),
				logging.Component("remote"),
			)
			if err != nil {
				return ctx, fmt.Errorf("create remote client: %w", err)
			}

			// Populate the pre-allocated App struct (commands already hold a pointer to it)
			*checkupApp = *engine.NewApp(cfg, database, remoteClient, log.Logger)
			flags.App = checkupApp

			eventbus.RegisterDebugLogger(checkupApp.Bus, logging.Component("eventbus"))

			busCtx, cancel := context.WithCancel(context.Background())
			busCancel = cancel
			go checkupApp.Bus.Start(busCtx)

			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if busCancel != nil {
				busCancel()
			}
			if gcCancel != nil {
				gcCancel()
			}

			// Close database connection
			if database != nil {
				if err := database.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close database")
					return err
				}
			}

			// Close log file
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	app = commands.NewStartCmd(flags, checkupApp).Register(app)
	app = commands.NewRespondCmd(flags, checkupApp).Register(app)
	app = commands.NewPauseCmd(flags, checkupApp).Register(app)
	app = commands.NewResumeCmd(flags, checkupApp).Register(app)
	app = commands.NewFinalizeCmd(flags, checkupApp).Register(app)
	app = commands.NewStatusCmd(flags, checkupApp).Register(app)
	app = commands.NewOrdersCmd(flags, checkupApp).Register(app)
	app = commands.NewSyncCmd(flags, checkupApp).Register(app)
	app = commands.NewRefreshCmd(flags, checkupApp).Register(app)
	app = commands.NewWatchCmd(flags, checkupApp).Register(app)
	app = commands.NewConfigValidateCmd(flags).Register(app)

	exitCode := 0
	runErr := app.Run(ctx, os.Args)
	if runErr != nil {
		fmt.Println()
		fmt.Println(runErr.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}
