package alias

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/kailas-cloud/indexsync/internal/domain"
	"github.com/kailas-cloud/indexsync/internal/domain/search/filter"
	"github.com/kailas-cloud/indexsync/internal/domain/search/query"
)

func newQuery(t *testing.T, types ...string) query.Query {
	t.Helper()
	q, err := query.New("go", "", []string{"main"}, types, filter.Expression{}, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	return q
}

func passthrough(calls *int) HandlerFunc {
	return func(q query.Query, _ string, _ ...any) (query.Query, error) {
		*calls++
		return q, nil
	}
}

func TestTable_Prefix(t *testing.T) {
	var calls int
	tbl := NewTable("site")
	if err := tbl.Register("recent", nil, passthrough(&calls)); err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.Resolve("site_recent"); err != nil {
		t.Errorf("prefixed name should resolve: %v", err)
	}
	if _, err := tbl.Resolve("recent"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("bare name: err = %v, want ErrNotFound", err)
	}
	if got := tbl.Names(); !slices.Equal(got, []string{"site_recent"}) {
		t.Errorf("Names() = %v", got)
	}

	plain := NewTable("")
	_ = plain.Register("recent", nil, passthrough(&calls))
	if _, err := plain.Resolve("recent"); err != nil {
		t.Errorf("empty prefix: %v", err)
	}
}

func TestTable_RegisterErrors(t *testing.T) {
	var calls int
	tbl := NewTable("")
	if err := tbl.Register("a", nil, passthrough(&calls)); err != nil {
		t.Fatal(err)
	}
	for name, err := range map[string]error{
		"duplicate":  tbl.Register("a", nil, passthrough(&calls)),
		"no name":    tbl.Register("", nil, passthrough(&calls)),
		"no handler": tbl.Register("b", nil, nil),
	} {
		if !errors.Is(err, domain.ErrConfiguration) {
			t.Errorf("%s: err = %v, want ErrConfiguration", name, err)
		}
	}
}

func TestTable_Apply(t *testing.T) {
	var calls int
	tbl := NewTable("")
	_ = tbl.Register("articles_only", []string{"Article"}, passthrough(&calls))
	_ = tbl.Register("anything", nil, passthrough(&calls))

	if _, err := tbl.Apply(newQuery(t), "ghost", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown alias: err = %v", err)
	}
	if _, err := tbl.Apply(newQuery(t), "articles_only", "User"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("bound type mismatch: err = %v", err)
	}
	if _, err := tbl.Apply(newQuery(t, "Article", "User"), "articles_only", ""); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("query type mismatch: err = %v", err)
	}
	if calls != 0 {
		t.Fatalf("handler ran %d times on rejected applications", calls)
	}

	q, err := tbl.Apply(newQuery(t), "articles_only", "")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(q.Types(), []string{"Article"}) {
		t.Errorf("unbound search should be narrowed to alias models, types = %v", q.Types())
	}

	q, err = tbl.Apply(newQuery(t, "User"), "anything", "User")
	if err != nil || !slices.Equal(q.Types(), []string{"User"}) {
		t.Errorf("Apply = %v, %v", q.Types(), err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestTable_HandlerError(t *testing.T) {
	tbl := NewTable("")
	_ = tbl.Register("broken", nil, HandlerFunc(func(query.Query, string, ...any) (query.Query, error) {
		return query.Query{}, domain.Validationf("bad args")
	}))
	_, err := tbl.Apply(newQuery(t), "broken", "")
	if !errors.Is(err, domain.ErrValidation) || !strings.Contains(err.Error(), "broken") {
		t.Errorf("err = %v", err)
	}
}

func ptr(f float64) *float64 { return &f }

func TestFilterAlias(t *testing.T) {
	h := FilterAlias{
		Match:  map[string]string{"lang": "go", "status": "published"},
		Ranges: map[string]Bounds{"popularity": {GTE: ptr(10)}},
	}
	q, err := h.Apply(newQuery(t), "")
	if err != nil {
		t.Fatal(err)
	}
	must := q.Filters().Must()
	if len(must) != 3 {
		t.Fatalf("must = %d conditions, want 3", len(must))
	}
	if must[0].Key() != "lang" || must[1].Key() != "status" || !must[2].IsRange() {
		t.Errorf("unexpected conditions order: %+v", must)
	}
	if *must[2].Range().GTE() != 10 {
		t.Errorf("gte = %v", *must[2].Range().GTE())
	}

	if _, err := h.Apply(newQuery(t), "", "extra"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("unexpected args: err = %v", err)
	}
}

func TestFilterAlias_Param(t *testing.T) {
	h := FilterAlias{Param: "author_id"}
	q, err := h.Apply(newQuery(t), "", 42)
	if err != nil {
		t.Fatal(err)
	}
	must := q.Filters().Must()
	if len(must) != 1 || must[0].Key() != "author_id" || must[0].Match() != "42" {
		t.Errorf("must = %+v", must)
	}
	if _, err := h.Apply(newQuery(t), ""); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("missing arg: err = %v", err)
	}
}

func TestFilterAlias_BadRange(t *testing.T) {
	h := FilterAlias{Ranges: map[string]Bounds{"popularity": {}}}
	if _, err := h.Apply(newQuery(t), ""); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("err = %v", err)
	}
}
