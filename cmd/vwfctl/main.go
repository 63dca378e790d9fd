package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/lyzr/workflow-router/cmd/router/container"
	"github.com/lyzr/workflow-router/common/bootstrap"
	"github.com/lyzr/workflow-router/common/config"
)

const serviceName = "vwfctl"

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:                  serviceName,
		Usage:                 "Seed, import and export workflows in the router's store",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "store",
				Usage:   "Store backend (postgres, sqlite, rest, memory)",
				Sources: cli.EnvVars("STORE_BACKEND"),
			},
			&cli.StringFlag{
				Name:    "sqlite-path",
				Usage:   "Database file for the sqlite backend",
				Sources: cli.EnvVars("SQLITE_PATH"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			NewSeedCommand(),
			NewImportCommand(),
			NewExportCommand(),
		},
	}
}

// withContainer bootstraps the store and services for one command. Redis and
// telemetry are skipped: the command writes straight to the store and the
// router's list cache expires on its own.
func withContainer(ctx context.Context, command *cli.Command, fn func(*container.Container) error) error {
	cfg, err := config.Load(serviceName)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if v := command.String("store"); v != "" {
		cfg.Store.Backend = v
	}
	if v := command.String("sqlite-path"); v != "" {
		cfg.Store.SQLitePath = v
	}
	cfg.Service.LogLevel = command.String("log-level")

	components, err := bootstrap.Setup(ctx, serviceName,
		bootstrap.WithCustomConfig(cfg),
		bootstrap.WithoutRedis(),
		bootstrap.WithoutTelemetry(),
	)
	if err != nil {
		return err
	}
	defer components.Shutdown(ctx)

	c, err := container.NewContainer(components)
	if err != nil {
		return err
	}
	defer c.Close()

	return fn(c)
}
