package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/indexsync"
	"github.com/kailas-cloud/indexsync/internal/config"
	logpkg "github.com/kailas-cloud/indexsync/internal/logger"
	"github.com/kailas-cloud/indexsync/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp()
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "indexsync:", err)
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "indexsync",
		Usage:   "keep Postgres records and a Redis/Valkey search index in sync",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Usage:   "configuration environment (config/<env>.yaml)",
				EnvVars: []string{"ENV"},
				Value:   config.GetEnv(),
			},
		},
		Commands: []*cli.Command{
			searchIndexCommand(),
			clearIndexCommand(),
			rebuildIndexCommand(),
			serveCommand(),
		},
	}
}

// runtime holds what every command needs.
type runtime struct {
	cfg    indexsync.Config
	log    *zap.Logger
	client *indexsync.Client
}

// withClient loads the configuration, builds the logger and the client,
// runs fn and releases everything afterwards.
func withClient(c *cli.Context, fn func(ctx context.Context, rt *runtime) error) (err error) {
	env := c.String("env")
	cfg, err := indexsync.LoadConfig(env)
	if err != nil {
		return err
	}
	log, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := logpkg.WithFields(logpkg.ContextWithLogger(c.Context, log), zap.String("command", c.Command.Name))
	log.Info("Starting indexsync",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("command", c.Command.Name),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	client, err := indexsync.New(ctx, cfg, indexsync.WithLogger(log))
	if err != nil {
		log.Error("Startup failed", zap.Error(err))
		return err
	}
	defer func() {
		// Flush with a fresh context: ctx may already be cancelled by a signal.
		if cerr := client.Close(context.WithoutCancel(ctx)); cerr != nil {
			log.Error("Flushing pending signals failed", zap.Error(cerr))
			if err == nil {
				err = cerr
			}
		}
	}()

	if err = fn(ctx, &runtime{cfg: cfg, log: log, client: client}); err != nil {
		log.Error("Command failed", zap.Error(err))
	}
	return err
}
