package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dukex/stepflow/pkg/config"
	"github.com/dukex/stepflow/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "stepflow-api",
		Usage:                 "Edit flow versions and record run journals over HTTP",
		EnableShellCompletion: true,
		Flags:                 flags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg, err := loadConfig(command)
			if err != nil {
				return err
			}

			log.Setup(cfg.Log.Level, cfg.Log.Format)

			logger := log.WithModule("api")
			logger.InfoContext(ctx, "Initializing stepflow API", "port", cfg.Server.Port)

			api, err := NewAPI(ctx, logger, cfg)
			if err != nil {
				return err
			}

			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := api.Close(closeCtx); err != nil {
					logger.ErrorContext(closeCtx, "Failed to release API resources", "error", err)
				}
			}()

			if err := api.Start(cfg.Server.Port); err != nil {
				logger.ErrorContext(ctx, "API server stopped", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML configuration file",
			Sources: cli.EnvVars("STEPFLOW_CONFIG"),
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to run the API server on",
			Sources: cli.EnvVars("PORT"),
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Flow version store URL (file://, postgres://)",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "journal-url",
			Usage:   "Run journal store URL (file://, redis://)",
			Sources: cli.EnvVars("JOURNAL_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus provider (gochannel, kafka)",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export traces over OTLP/HTTP",
			Sources: cli.EnvVars("TRACING_ENABLED"),
		},
	}
}

// loadConfig reads the configuration file and applies flag overrides.
func loadConfig(command *cli.Command) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(command.String("config"))
	if err != nil {
		return nil, err
	}

	if command.IsSet("port") {
		cfg.Server.Port = command.Int("port")
	}

	if command.IsSet("database-url") {
		cfg.Database.URL = command.String("database-url")
	}

	if command.IsSet("journal-url") {
		cfg.Journal.URL = command.String("journal-url")
	}

	if command.IsSet("event-bus") {
		cfg.EventBus.Provider = command.String("event-bus")
	}

	if command.IsSet("log-level") {
		cfg.Log.Level = command.String("log-level")
	}

	if command.IsSet("tracing") {
		cfg.Tracing.Enabled = command.Bool("tracing")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
