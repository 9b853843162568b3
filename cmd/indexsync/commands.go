package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/indexsync"
	"github.com/kailas-cloud/indexsync/internal/usecase/indexing"
)

const (
	actionCreate        = "create"
	actionUpdate        = "update"
	actionUpdateMapping = "update-mapping"
	actionDelete        = "delete"
	actionDeleteMapping = "delete-mapping"
)

var actions = []string{actionCreate, actionUpdate, actionUpdateMapping, actionDelete, actionDeleteMapping}

func confirmFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "guilty-as-charged",
		Usage: "confirm a destructive operation",
	}
}

func indexFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "index",
		Usage: "restrict to this index (default: all declared indices)",
	}
}

func batchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "bulk-size",
			Usage: "documents per bulk write",
			Value: indexing.DefaultBatchSize,
		},
		&cli.IntFlag{
			Name:  "num-docs",
			Usage: "maximum number of documents to sync, -1 for all",
			Value: indexing.NoLimit,
		},
	}
}

func searchIndexCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.BoolFlag{Name: actionCreate, Usage: "create the index"},
		&cli.BoolFlag{Name: actionUpdate, Usage: "index the records of the selected models"},
		&cli.BoolFlag{Name: actionUpdateMapping, Usage: "add new descriptor fields to the index schema"},
		&cli.BoolFlag{Name: actionDelete, Usage: "delete the index, or the documents of --models"},
		&cli.BoolFlag{Name: actionDeleteMapping, Usage: "delete every document of the selected models"},
		confirmFlag(),
		&cli.StringSliceFlag{Name: "models", Usage: "record types, comma separated"},
		indexFlag(),
		&cli.StringFlag{Name: "start-date", Usage: "sync records updated at or after (RFC3339 or YYYY-MM-DD)"},
		&cli.StringFlag{Name: "end-date", Usage: "sync records updated at or before (RFC3339 or YYYY-MM-DD)"},
	}
	return &cli.Command{
		Name:  "search-index",
		Usage: "create, update or delete search indices and their documents",
		Flags: append(flags, batchFlags()...),
		Action: func(c *cli.Context) error {
			action, err := selectedAction(c)
			if err != nil {
				return err
			}
			req, err := syncRequest(c)
			if err != nil {
				return err
			}
			return withClient(c, func(ctx context.Context, rt *runtime) error {
				return runSearchIndex(ctx, rt, action, req, c.Bool("guilty-as-charged"))
			})
		},
	}
}

func runSearchIndex(ctx context.Context, rt *runtime, action string, req indexsync.SyncRequest, confirmed bool) error {
	switch action {
	case actionCreate:
		return rt.client.CreateIndices(ctx, req.Index)
	case actionUpdateMapping:
		return rt.client.UpdateMappings(ctx, req.Index, req.Types)
	case actionDeleteMapping:
		return rt.client.DeleteMappings(ctx, req.Index, req.Types, confirmed)
	case actionDelete:
		if len(req.Types) == 0 {
			return rt.client.DeleteIndices(ctx, req.Index, confirmed)
		}
		if !confirmed {
			return fmt.Errorf("%w: deleting documents requires --guilty-as-charged", indexsync.ErrValidation)
		}
		req.Action = indexing.ActionDelete
	}
	sum, err := rt.client.Sync(ctx, req)
	logSummary(rt.log, sum)
	return err
}

func clearIndexCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear-index",
		Usage: "delete and re-create indices",
		Flags: []cli.Flag{confirmFlag(), indexFlag()},
		Action: func(c *cli.Context) error {
			return withClient(c, func(ctx context.Context, rt *runtime) error {
				return rt.client.Clear(ctx, c.String("index"), c.Bool("guilty-as-charged"))
			})
		},
	}
}

func rebuildIndexCommand() *cli.Command {
	return &cli.Command{
		Name:  "rebuild-index",
		Usage: "clear indices and re-index every record",
		Flags: append([]cli.Flag{confirmFlag(), indexFlag()}, batchFlags()...),
		Action: func(c *cli.Context) error {
			req, err := syncRequest(c)
			if err != nil {
				return err
			}
			return withClient(c, func(ctx context.Context, rt *runtime) error {
				sum, err := rt.client.Rebuild(ctx, req.Index, c.Bool("guilty-as-charged"), req)
				logSummary(rt.log, sum)
				return err
			})
		},
	}
}

// selectedAction returns the one action flag set on c.
func selectedAction(c *cli.Context) (string, error) {
	var picked []string
	for _, a := range actions {
		if c.Bool(a) {
			picked = append(picked, a)
		}
	}
	switch len(picked) {
	case 1:
		return picked[0], nil
	case 0:
		return "", errors.New("one of --create, --update, --update-mapping, --delete, --delete-mapping is required")
	default:
		return "", fmt.Errorf("actions %v are mutually exclusive", picked)
	}
}

// syncRequest reads the sync options present on c's command.
func syncRequest(c *cli.Context) (indexsync.SyncRequest, error) {
	req := indexsync.NewSyncRequest()
	req.Index = c.String("index")
	req.Types = c.StringSlice("models")
	if n := c.Int("bulk-size"); c.IsSet("bulk-size") {
		if n <= 0 {
			return req, fmt.Errorf("%w: --bulk-size must be positive, got %d", indexsync.ErrValidation, n)
		}
		req.BatchSize = n
	}
	if c.IsSet("num-docs") {
		req.MaxCount = c.Int("num-docs")
	}
	dr, err := indexing.ParseDateRange(c.String("start-date"), c.String("end-date"))
	if err != nil {
		return req, err
	}
	req.DateRange = dr
	return req, nil
}

func logSummary(log *zap.Logger, sum indexsync.Summary) {
	log.Info("Sync finished",
		zap.Int("total", sum.Total),
		zap.Int("written", sum.Written),
		zap.Int("skipped", sum.Skipped),
		zap.Int("batches", sum.Batches),
	)
}
