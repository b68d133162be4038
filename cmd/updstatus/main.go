package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/udisondev/updstatus/internal/config"
)

const ConfigPath = "config/updstatus.yaml"

// Version is set during build using ldflags
var Version = "dev"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := newApp().Run(ctx, os.Args); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "updstatus",
		Version: Version,
		Usage:   "Inspect and record the node's update status",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				Value:   ConfigPath,
				Sources: cli.EnvVars("UPDSTATUS_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			migrateCommand(),
			showCommand(),
			recordCommand(),
			markUpdatedCommand(),
			clearCommand(),
			ledgerAddCommand(),
			serveCommand(),
		},
	}
}

// loadConfig reads the config selected by --config and installs the slog default.
func loadConfig(cmd *cli.Command) (config.Updater, error) {
	cfg, err := config.LoadUpdater(cmd.String("config"))
	if err != nil {
		return cfg, fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))
	slog.Debug("config loaded", "driver", cfg.Database.Driver, "http", cfg.HTTP.Addr())
	return cfg, nil
}
