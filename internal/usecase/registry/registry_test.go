package registry

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/kailas-cloud/indexsync/internal/domain"
	"github.com/kailas-cloud/indexsync/internal/domain/descriptor"
	"github.com/kailas-cloud/indexsync/internal/domain/model"
)

type article struct {
	ID    int64  `db:"id,pk"`
	Title string `db:"title"`
}

type user struct {
	ID   int64  `db:"id,pk"`
	Name string `db:"name"`
}

func testCatalog(t *testing.T) *model.Catalog {
	t.Helper()
	a, err := model.FromStruct[article]("Article", "articles")
	if err != nil {
		t.Fatal(err)
	}
	u, err := model.FromStruct[user]("User", "users")
	if err != nil {
		t.Fatal(err)
	}
	c, err := model.NewCatalog(a, u)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func src(defs ...descriptor.Definition) Source {
	return func() []descriptor.Definition { return defs }
}

func def(typ string, isDefault bool) descriptor.Definition {
	return descriptor.Definition{Meta: &descriptor.Meta{Model: typ, Default: isDefault}}
}

func TestLoad_Lookups(t *testing.T) {
	ctx := context.Background()
	r := New(testCatalog(t), nil,
		WithSource("main", src(def("Article", true), def("User", false))),
		WithSource("archive", src(def("Article", false))),
		WithIndex("main_index", "main"),
		WithIndex("archive_index", "archive"),
	)

	indices, err := r.GetIndex(ctx, "Article")
	if err != nil {
		t.Fatalf("GetIndex: %v", err)
	}
	if !slices.Equal(indices, []string{"main_index", "archive_index"}) {
		t.Errorf("GetIndex(Article) = %v", indices)
	}

	d, err := r.ModelIndex(ctx, "Article")
	if err != nil {
		t.Fatalf("ModelIndex: %v", err)
	}
	if main, _ := r.Descriptor(ctx, "main_index", "Article"); d != main {
		t.Error("default Article descriptor should be the one on main_index")
	}

	// User has a single, non-default descriptor: it is the default.
	if _, err := r.ModelIndex(ctx, "User"); err != nil {
		t.Errorf("ModelIndex(User): %v", err)
	}

	all, _ := r.Indices(ctx)
	if !slices.Equal(all, []string{"archive_index", "main_index"}) {
		t.Errorf("Indices() = %v", all)
	}
	models, _ := r.Models(ctx, "main_index")
	if !slices.Equal(models, []string{"Article", "User"}) {
		t.Errorf("Models(main_index) = %v", models)
	}
	ds, _ := r.ModelIndices(ctx, "Article")
	if len(ds) != 2 {
		t.Errorf("ModelIndices(Article) has %d entries", len(ds))
	}
	if !r.IsManaged(ctx, "User") || r.IsManaged(ctx, "Ghost") {
		t.Error("IsManaged mismatch")
	}
}

func TestLookups_NotFound(t *testing.T) {
	ctx := context.Background()
	r := New(testCatalog(t), nil, WithSource("main", src(def("Article", true))), WithIndex("main_index", "main"))

	_, err := r.GetIndex(ctx, "Ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), "Ghost") {
		t.Errorf("error should name the key: %v", err)
	}

	checks := []error{
		func() error { _, err := r.ModelIndex(ctx, "Ghost"); return err }(),
		func() error { _, err := r.Models(ctx, "nope"); return err }(),
		func() error { _, err := r.IndexDescriptors(ctx, "nope"); return err }(),
		func() error { _, err := r.Descriptor(ctx, "main_index", "User"); return err }(),
	}
	for i, err := range checks {
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("lookup %d: err = %v, want ErrNotFound", i, err)
		}
	}
}

func TestLoad_DuplicateDefault(t *testing.T) {
	orders := [][]string{{"a", "b"}, {"b", "a"}}
	for _, order := range orders {
		r := New(testCatalog(t), nil,
			WithSource("a", src(def("Article", true))),
			WithSource("b", src(def("Article", true))),
			WithIndex("idx_"+order[0], order[0]),
			WithIndex("idx_"+order[1], order[1]),
		)
		err := r.Load(context.Background())
		if !errors.Is(err, domain.ErrConfiguration) {
			t.Errorf("order %v: err = %v, want ErrConfiguration", order, err)
		}
	}
}

func TestLoad_DuplicatePair(t *testing.T) {
	r := New(testCatalog(t), nil,
		WithSource("main", src(def("Article", false), def("Article", false))),
		WithIndex("main_index", "main"),
	)
	if err := r.Load(context.Background()); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}

func TestLoad_UnknownSourceOrModel(t *testing.T) {
	r := New(testCatalog(t), nil, WithIndex("main_index", "missing"))
	if err := r.Load(context.Background()); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("unknown source: err = %v", err)
	}

	r = New(testCatalog(t), nil, WithSource("s", src(def("Ghost", true))), WithIndex("i", "s"))
	if err := r.Load(context.Background()); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("unknown model: err = %v", err)
	}
}

func TestLoad_Once(t *testing.T) {
	calls := 0
	r := New(testCatalog(t), nil,
		WithSource("main", func() []descriptor.Definition {
			calls++
			return []descriptor.Definition{def("Article", true)}
		}),
		WithIndex("main_index", "main"),
	)
	for range 3 {
		if err := r.Load(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	_, _ = r.Indices(context.Background())
	if calls != 1 {
		t.Errorf("source called %d times, want 1", calls)
	}
}

func TestLoad_ErrorCached(t *testing.T) {
	r := New(testCatalog(t), nil, WithIndex("main_index", "missing"))
	first := r.Load(context.Background())
	if first == nil {
		t.Fatal("expected error")
	}
	if second := r.Load(context.Background()); second != first {
		t.Errorf("second Load = %v, want cached %v", second, first)
	}
	if r.IsManaged(context.Background(), "Article") {
		t.Error("failed registry should manage nothing")
	}
}
