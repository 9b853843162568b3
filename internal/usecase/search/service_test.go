package search

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/kailas-cloud/indexsync/internal/domain"
	"github.com/kailas-cloud/indexsync/internal/domain/search/hit"
	"github.com/kailas-cloud/indexsync/internal/domain/search/mode"
	"github.com/kailas-cloud/indexsync/internal/domain/search/query"
	"github.com/kailas-cloud/indexsync/internal/usecase/alias"
	"github.com/kailas-cloud/indexsync/internal/usecase/mapping"
)

// --- Mocks ---

type mockEngine struct {
	page hit.Page
	err  error
	got  query.Query
}

func (m *mockEngine) Execute(_ context.Context, q query.Query) (hit.Page, error) {
	m.got = q
	return m.page, m.err
}

type mockMapper struct {
	called bool
	opts   mapping.Options
}

func (m *mockMapper) Map(_ context.Context, hits []hit.Hit, opts mapping.Options) ([]mapping.Result, error) {
	m.called = true
	m.opts = opts
	out := make([]mapping.Result, len(hits))
	for i, h := range hits {
		out[i] = mapping.Result{Hit: h, Record: h.ID, Mapped: true}
	}
	return out, nil
}

type mockRegistry struct {
	indices []string
}

func (m *mockRegistry) Indices(context.Context) ([]string, error) { return m.indices, nil }

func newService(t *testing.T, engine *mockEngine, mapper *mockMapper) *Service {
	t.Helper()
	table := alias.NewTable("")
	err := table.Register("go_only", []string{"Article"}, alias.FilterAlias{Match: map[string]string{"lang": "go"}})
	if err != nil {
		t.Fatal(err)
	}
	return New(engine, mapper, table, &mockRegistry{indices: []string{"main", "archive"}})
}

// --- Tests ---

func TestSearch_DefaultsToAllIndices(t *testing.T) {
	engine := &mockEngine{page: hit.Page{Hits: []hit.Hit{{Index: "main", Type: "Article", ID: "1"}}, Total: 1}}
	mapper := &mockMapper{}
	svc := newService(t, engine, mapper)

	resp, err := svc.Search(context.Background(), Request{Text: "gophers", Only: []string{"title"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(engine.got.Indices(), []string{"main", "archive"}) {
		t.Errorf("indices = %v", engine.got.Indices())
	}
	if engine.got.Mode() != mode.Match {
		t.Errorf("mode = %q", engine.got.Mode())
	}
	if !mapper.called || !slices.Equal(mapper.opts.Only, []string{"title"}) {
		t.Errorf("mapper called=%v opts=%+v", mapper.called, mapper.opts)
	}
	if resp.Total != 1 || len(resp.Results) != 1 || resp.Results[0].Record != "1" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestSearch_Raw(t *testing.T) {
	engine := &mockEngine{page: hit.Page{Hits: []hit.Hit{{ID: "1"}}, Total: 1}}
	mapper := &mockMapper{}
	svc := newService(t, engine, mapper)

	resp, err := svc.Search(context.Background(), Request{Indices: []string{"main"}, Raw: true})
	if err != nil {
		t.Fatal(err)
	}
	if mapper.called {
		t.Error("raw search must not rehydrate")
	}
	if len(resp.Hits) != 1 || resp.Results != nil {
		t.Errorf("resp = %+v", resp)
	}
}

func TestSearch_BoundModelAndAlias(t *testing.T) {
	engine := &mockEngine{}
	svc := newService(t, engine, &mockMapper{})

	_, err := svc.Search(context.Background(), Request{
		Indices: []string{"main"},
		Model:   "Article",
		Aliases: []AliasCall{{Name: "go_only"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(engine.got.Types(), []string{"Article"}) {
		t.Errorf("types = %v", engine.got.Types())
	}
	must := engine.got.Filters().Must()
	if len(must) != 1 || must[0].Key() != "lang" || must[0].Match() != "go" {
		t.Errorf("filters = %+v", must)
	}
}

func TestSearch_Errors(t *testing.T) {
	boom := errors.New("engine down")
	tests := []struct {
		name   string
		req    Request
		engErr error
		want   error
	}{
		{"alias not applicable", Request{Model: "User", Aliases: []AliasCall{{Name: "go_only"}}}, nil, domain.ErrValidation},
		{"unknown alias", Request{Aliases: []AliasCall{{Name: "ghost"}}}, nil, domain.ErrNotFound},
		{"bad mode", Request{Text: "x", Mode: "fuzzy"}, nil, domain.ErrValidation},
		{"engine failure", Request{}, boom, boom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &mockEngine{err: tt.engErr}
			_, err := newService(t, engine, &mockMapper{}).Search(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSearch_NoAliasTable(t *testing.T) {
	svc := New(&mockEngine{}, &mockMapper{}, nil, &mockRegistry{indices: []string{"main"}})
	_, err := svc.Search(context.Background(), Request{Aliases: []AliasCall{{Name: "any"}}})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
