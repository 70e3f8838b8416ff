package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/urfave/cli/v2"

	"github.com/riverpatch/uistream/internal/admin/tui"
	"github.com/riverpatch/uistream/internal/config"
	"github.com/riverpatch/uistream/internal/generator"
	"github.com/riverpatch/uistream/internal/registry"
	"github.com/riverpatch/uistream/internal/store"
)

const (
	ServiceName      = "genui-stream"
	ServiceNamespace = "riverpatch"
)

var (
	version        = "0.0.0"
	commit         = "hash"
	commitDate     = time.Now().String()
	branch         = "branch"
	buildTimestamp = ""
)

// Run is the process entrypoint: a bare cli.App whose subcommands
// register their own flags.
func Run() error {
	app := &cli.App{
		Name:  ServiceName,
		Usage: "Multi-session generative-UI streaming backend",
		Commands: []*cli.Command{
			serverCmd(),
			statsCmd(),
		},
	}

	return app.Run(os.Args)
}

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Run the streaming server (HTTP SSE/WS/LP, gRPC, AMQP ingress)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config_file",
				Usage: "Path to the configuration file",
			},
		},
		Action: func(c *cli.Context) error {
			fs := pflag.NewFlagSet("server", pflag.ContinueOnError)
			config.Flags(fs)

			logger := ProvideLogger()
			cfg, err := config.Load(c.String("config_file"), fs, logger)
			if err != nil {
				return err
			}

			app := NewApp(cfg)
			if err := app.Start(c.Context); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("Shutting down...")
			return app.Stop(context.Background())
		},
	}
}

// statsCmd launches the termui dashboard against a Registry it constructs
// in this process over the configured bolt event log. The dashboard lists
// only processors held by that Registry, which starts empty; processors of
// a separately running server process are not visible. bbolt locks the
// database file, so opening it while a server holds it fails after the
// one-second open timeout.
func statsCmd() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Live terminal dashboard of registry/processor metrics",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config_file",
				Usage: "Path to the configuration file",
			},
			&cli.DurationFlag{
				Name:  "refresh",
				Usage: "Dashboard refresh interval",
				Value: 2 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			fs := pflag.NewFlagSet("stats", pflag.ContinueOnError)
			config.Flags(fs)

			logger := ProvideLogger()
			cfg, err := config.Load(c.String("config_file"), fs, logger)
			if err != nil {
				return err
			}

			log, err := store.NewBoltEventLog(cfg.BoltPath, cfg.FullEventLRU)
			if err != nil {
				return err
			}
			defer log.Close()

			reg := registry.New(log, generator.NewMockGenerator(),
				registry.WithIdleTTL(cfg.IdleTTL),
				registry.WithSweepInterval(cfg.SweepInterval),
				registry.WithLogger(logger),
			)
			defer reg.Shutdown()

			return tui.Run(reg, c.Duration("refresh"))
		},
	}
}
