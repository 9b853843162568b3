package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/indexsync/internal/metrics"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the admin API and consume the change feed",
		Action: func(c *cli.Context) error {
			return withClient(c, serve)
		},
	}
}

func serve(ctx context.Context, rt *runtime) error {
	metrics.RegisterSyncMetrics()
	metrics.RegisterHTTPMetrics()

	addr := fmt.Sprintf(":%d", rt.cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      rt.client.Handler(),
		ReadTimeout:  time.Duration(rt.cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(rt.cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rt.log.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if feed := rt.client.ChangeFeed(); feed != nil {
		g.Go(func() error {
			rt.log.Info("Consuming change feed", zap.String("topic", rt.cfg.Kafka.Topic))
			return feed.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		rt.log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Duration(rt.cfg.HTTP.ShutdownSec)*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	rt.log.Info("Server stopped")
	return err
}
