package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/kailas-cloud/indexsync"
	"github.com/kailas-cloud/indexsync/internal/usecase/indexing"
)

// runFlags parses args against the search-index flags and hands the
// context to fn instead of connecting anywhere.
func runFlags(t *testing.T, args []string, fn func(*cli.Context) error) error {
	t.Helper()
	cmd := searchIndexCommand()
	cmd.Action = fn
	app := &cli.App{Name: "indexsync", Commands: []*cli.Command{cmd}}
	return app.Run(append([]string{"indexsync", "search-index"}, args...))
}

func TestSelectedAction(t *testing.T) {
	tests := []struct {
		args    []string
		want    string
		wantErr string
	}{
		{args: []string{"--create"}, want: actionCreate},
		{args: []string{"--delete-mapping", "--guilty-as-charged"}, want: actionDeleteMapping},
		{args: nil, wantErr: "is required"},
		{args: []string{"--create", "--update"}, wantErr: "mutually exclusive"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			var got string
			err := runFlags(t, tt.args, func(c *cli.Context) error {
				var err error
				got, err = selectedAction(c)
				return err
			})
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("action = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSyncRequest_Flags(t *testing.T) {
	var req indexsync.SyncRequest
	err := runFlags(t, []string{
		"--update", "--models", "Article,User", "--index", "main",
		"--bulk-size", "50", "--num-docs", "10",
		"--start-date", "2024-01-01", "--end-date", "2024-02-01",
	}, func(c *cli.Context) error {
		var err error
		req, err = syncRequest(c)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(req.Types) != 2 || req.Types[1] != "User" {
		t.Errorf("types = %v", req.Types)
	}
	if req.Index != "main" || req.BatchSize != 50 || req.MaxCount != 10 {
		t.Errorf("req = %+v", req)
	}
	if req.DateRange == nil || req.DateRange.From == nil || req.DateRange.To == nil {
		t.Fatalf("date range = %+v", req.DateRange)
	}
	if req.Action != indexing.ActionIndex {
		t.Errorf("action = %q", req.Action)
	}
}

func TestSyncRequest_Defaults(t *testing.T) {
	var req indexsync.SyncRequest
	err := runFlags(t, []string{"--update"}, func(c *cli.Context) error {
		var err error
		req, err = syncRequest(c)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if req.BatchSize != indexing.DefaultBatchSize || req.MaxCount != indexing.NoLimit || req.DateRange != nil {
		t.Errorf("req = %+v", req)
	}
}

func TestSyncRequest_Invalid(t *testing.T) {
	for _, args := range [][]string{
		{"--update", "--bulk-size", "0"},
		{"--update", "--start-date", "2024-02-01", "--end-date", "2024-01-01"},
		{"--update", "--start-date", "yesterday"},
	} {
		err := runFlags(t, args, func(c *cli.Context) error {
			_, err := syncRequest(c)
			return err
		})
		if !errors.Is(err, indexsync.ErrValidation) {
			t.Errorf("%v: err = %v, want validation", args, err)
		}
	}
}
