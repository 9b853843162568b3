package indexsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/indexsync/internal/domain/search/hit"
	searchuc "github.com/kailas-cloud/indexsync/internal/usecase/search"
)

type fakeSearcher struct {
	fn func(ctx context.Context, req searchuc.Request) (searchuc.Response, error)
}

func (f *fakeSearcher) Search(ctx context.Context, req searchuc.Request) (searchuc.Response, error) {
	return f.fn(ctx, req)
}

func TestSession_BuildsRequest(t *testing.T) {
	var got searchuc.Request
	svc := &fakeSearcher{fn: func(_ context.Context, req searchuc.Request) (searchuc.Response, error) {
		got = req
		return searchuc.Response{Total: 1, Hits: []hit.Hit{{Index: "main", Type: "Article", ID: "1"}}}, nil
	}}

	s := &Session{svc: svc}
	res, err := s.Index("main").
		Model("Article").
		Query("go channels", ModeSyntax).
		Where("lang", "go").
		Between("popularity", 10, 100).
		BetweenDates("created", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Time{}).
		ApplyAlias("by_author", "rob").
		Offset(5).
		Limit(10).
		Only("id", "title").
		Raw().
		Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Total != 1 || len(res.Hits) != 1 {
		t.Errorf("results = %+v", res)
	}

	if len(got.Indices) != 1 || got.Indices[0] != "main" {
		t.Errorf("indices = %v", got.Indices)
	}
	if got.Model != "Article" || got.Text != "go channels" || got.Mode != ModeSyntax {
		t.Errorf("model/text/mode = %q/%q/%q", got.Model, got.Text, got.Mode)
	}
	if n := len(got.Filters.Must()); n != 3 {
		t.Errorf("must conditions = %d, want 3", n)
	}
	if len(got.Aliases) != 1 || got.Aliases[0].Name != "by_author" || got.Aliases[0].Args[0] != "rob" {
		t.Errorf("aliases = %+v", got.Aliases)
	}
	if got.Offset != 5 || got.Limit != 10 || !got.Raw || len(got.Only) != 2 {
		t.Errorf("paging/raw/only = %+v", got)
	}
}

func TestSession_BuilderErrors(t *testing.T) {
	called := false
	svc := &fakeSearcher{fn: func(context.Context, searchuc.Request) (searchuc.Response, error) {
		called = true
		return searchuc.Response{}, nil
	}}

	_, err := (&Session{svc: svc}).Where("", "x").Execute(context.Background())
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
	if called {
		t.Error("search ran despite builder error")
	}
}

func TestSession_PropagatesSearchError(t *testing.T) {
	svc := &fakeSearcher{fn: func(context.Context, searchuc.Request) (searchuc.Response, error) {
		return searchuc.Response{}, ErrNotFound
	}}
	if _, err := (&Session{svc: svc}).Execute(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}
