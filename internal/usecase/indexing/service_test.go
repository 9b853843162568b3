package indexing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/indexsync/internal/domain"
	"github.com/kailas-cloud/indexsync/internal/domain/descriptor"
	"github.com/kailas-cloud/indexsync/internal/domain/document"
	"github.com/kailas-cloud/indexsync/internal/domain/model"
)

// --- Fakes ---

type article struct {
	ID      int64     `db:"id,pk"`
	Title   string    `db:"title"`
	Draft   bool      `db:"draft"`
	Updated time.Time `db:"updated"`
}

type memEngine struct {
	docs      map[string]map[string]map[string]any // index -> id -> body
	bulkCalls [][]document.Item
	refreshed []string
	failOn    int // 1-based bulk call to fail; 0 never
}

func newMemEngine() *memEngine {
	return &memEngine{docs: map[string]map[string]map[string]any{}}
}

func (e *memEngine) BulkWrite(_ context.Context, index, _ string, items []document.Item) ([]document.Result, error) {
	e.bulkCalls = append(e.bulkCalls, items)
	if e.failOn == len(e.bulkCalls) {
		return nil, &domain.BulkWriteError{Index: index, Failed: []domain.ItemError{{ID: items[0].ID(), Err: errors.New("mapper_parsing_exception")}}}
	}
	if e.docs[index] == nil {
		e.docs[index] = map[string]map[string]any{}
	}
	res := make([]document.Result, len(items))
	for i, it := range items {
		if it.Op() == document.OpDelete {
			delete(e.docs[index], it.ID())
		} else {
			e.docs[index][it.ID()] = it.Body()
		}
		res[i] = document.NewOK(it.ID())
	}
	return res, nil
}

func (e *memEngine) Refresh(_ context.Context, index string) error {
	e.refreshed = append(e.refreshed, index)
	return nil
}

type mockStorage struct {
	countFn  func(q model.Query) (int, error)
	filterFn func(q model.Query) ([]any, error)
	fetchFn  func(ids []any) ([]any, error)
	calls    int

	gotFields []string
}

func (m *mockStorage) Count(_ context.Context, q model.Query) (int, error) {
	m.calls++
	return m.countFn(q)
}

func (m *mockStorage) Filter(_ context.Context, q model.Query) ([]any, error) {
	m.calls++
	return m.filterFn(q)
}

func (m *mockStorage) FetchByIDs(_ context.Context, _ *model.Model, _ string, ids []any, fields []string) ([]any, error) {
	m.calls++
	m.gotFields = fields
	return m.fetchFn(ids)
}

type mockRegistry struct {
	indices []string
	descs   map[string]*descriptor.Descriptor
}

func (r *mockRegistry) GetIndex(_ context.Context, typ string) ([]string, error) {
	if typ != "Article" {
		return nil, domain.NewNotFound("index defined for model", typ)
	}
	return r.indices, nil
}

func (r *mockRegistry) Descriptor(_ context.Context, index, _ string) (*descriptor.Descriptor, error) {
	return r.descs[index], nil
}

func newRegistry(t *testing.T, meta descriptor.Meta, cond func(any) bool, indices ...string) *mockRegistry {
	t.Helper()
	m, err := model.FromStruct[article]("Article", "articles")
	if err != nil {
		t.Fatal(err)
	}
	meta.Model = "Article"
	d, err := descriptor.New(context.Background(), descriptor.Definition{Meta: &meta, Condition: cond}, m)
	if err != nil {
		t.Fatal(err)
	}
	r := &mockRegistry{indices: indices, descs: map[string]*descriptor.Descriptor{}}
	for _, idx := range indices {
		r.descs[idx] = d
	}
	return r
}

func articles(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = &article{ID: int64(i + 1), Title: fmt.Sprintf("a%d", i+1)}
	}
	return out
}

func noStorage(t *testing.T) *mockStorage {
	fail := func() { t.Helper(); t.Fatal("storage must not be called") }
	return &mockStorage{
		countFn:  func(model.Query) (int, error) { fail(); return 0, nil },
		filterFn: func(model.Query) ([]any, error) { fail(); return nil, nil },
		fetchFn:  func([]any) ([]any, error) { fail(); return nil, nil },
	}
}

// --- Tests ---

func TestSync_Batches(t *testing.T) {
	eng := newMemEngine()
	svc := New(noStorage(t), eng, newRegistry(t, descriptor.Meta{}, nil, "main"))

	req := NewRequest("Article", ActionIndex)
	req.Records = articles(250)
	req.Refresh = true
	sum, err := svc.Sync(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(eng.bulkCalls) != 3 || len(eng.bulkCalls[2]) != 50 {
		t.Fatalf("expected batches 100/100/50, got %d calls", len(eng.bulkCalls))
	}
	if eng.bulkCalls[0][0].ID() != "1" || eng.bulkCalls[2][49].ID() != "250" {
		t.Error("batches must follow input order")
	}
	if sum.Written != 250 || sum.Batches != 3 {
		t.Errorf("summary = %+v", sum)
	}
	if len(eng.refreshed) != 1 || eng.refreshed[0] != "main" {
		t.Errorf("refreshed = %v", eng.refreshed)
	}
}

func TestSync_NumDocsBoundary(t *testing.T) {
	for _, tc := range []struct {
		maxCount  int
		wantCalls int
	}{{0, 0}, {1, 1}} {
		eng := newMemEngine()
		svc := New(noStorage(t), eng, newRegistry(t, descriptor.Meta{}, nil, "main"))

		req := NewRequest("Article", ActionIndex)
		req.Records = articles(5)
		req.MaxCount = tc.maxCount
		if _, err := svc.Sync(context.Background(), req); err != nil {
			t.Fatal(err)
		}
		if len(eng.bulkCalls) != tc.wantCalls {
			t.Errorf("max %d: %d bulk calls, want %d", tc.maxCount, len(eng.bulkCalls), tc.wantCalls)
		}
		if tc.wantCalls == 1 && len(eng.bulkCalls[0]) != 1 {
			t.Errorf("max 1: batch has %d docs", len(eng.bulkCalls[0]))
		}
	}
}

func TestSync_Idempotent(t *testing.T) {
	eng := newMemEngine()
	svc := New(noStorage(t), eng, newRegistry(t, descriptor.Meta{}, nil, "main"))

	req := NewRequest("Article", ActionIndex)
	req.Records = articles(3)
	for range 2 {
		if _, err := svc.Sync(context.Background(), req); err != nil {
			t.Fatal(err)
		}
	}
	if n := len(eng.docs["main"]); n != 3 {
		t.Errorf("index holds %d documents, want 3", n)
	}
}

func TestSync_FansOutAndFilters(t *testing.T) {
	eng := newMemEngine()
	reg := newRegistry(t, descriptor.Meta{}, func(r any) bool { return !r.(*article).Draft }, "main", "archive")
	svc := New(noStorage(t), eng, reg)

	recs := articles(3)
	recs[1].(*article).Draft = true
	req := NewRequest("Article", ActionIndex)
	req.Records = recs
	sum, err := svc.Sync(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	for _, idx := range []string{"main", "archive"} {
		if _, ok := eng.docs[idx]["2"]; ok {
			t.Errorf("%s: draft should be skipped", idx)
		}
		if len(eng.docs[idx]) != 2 {
			t.Errorf("%s holds %d docs", idx, len(eng.docs[idx]))
		}
	}
	if sum.Skipped != 2 {
		t.Errorf("skipped = %d, want 2 (one per index)", sum.Skipped)
	}
}

func TestSync_SingleIndex(t *testing.T) {
	eng := newMemEngine()
	reg := newRegistry(t, descriptor.Meta{}, nil, "main", "archive")
	svc := New(noStorage(t), eng, reg)

	req := NewRequest("Article", ActionIndex)
	req.Records = articles(2)
	req.Index = "archive"
	if _, err := svc.Sync(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if len(eng.docs["main"]) != 0 || len(eng.docs["archive"]) != 2 {
		t.Errorf("main=%d archive=%d", len(eng.docs["main"]), len(eng.docs["archive"]))
	}

	req.Index = "ghost"
	if _, err := svc.Sync(context.Background(), req); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("unknown index: err = %v", err)
	}
}

func TestSync_LazyQueryPages(t *testing.T) {
	all := articles(5)
	var pages [][2]int
	st := &mockStorage{
		countFn: func(model.Query) (int, error) { return len(all), nil },
		filterFn: func(q model.Query) ([]any, error) {
			pages = append(pages, [2]int{q.Offset, q.Limit})
			return all[q.Offset : q.Offset+q.Limit], nil
		},
	}
	eng := newMemEngine()
	svc := New(st, eng, newRegistry(t, descriptor.Meta{}, nil, "main"))

	req := NewRequest("Article", ActionIndex)
	req.BatchSize = 2
	if _, err := svc.Sync(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	want := [][2]int{{0, 2}, {2, 2}, {4, 1}}
	if fmt.Sprint(pages) != fmt.Sprint(want) {
		t.Errorf("pages = %v, want %v", pages, want)
	}
	if len(eng.docs["main"]) != 5 {
		t.Errorf("indexed %d docs", len(eng.docs["main"]))
	}
}

func TestSync_DateRangeQuery(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var got model.Query
	st := &mockStorage{
		countFn:  func(q model.Query) (int, error) { got = q; return 0, nil },
		filterFn: func(model.Query) ([]any, error) { return nil, nil },
	}
	svc := New(st, newMemEngine(), newRegistry(t, descriptor.Meta{UpdatedField: "updated"}, nil, "main"))

	req := NewRequest("Article", ActionIndex)
	req.DateRange = &DateRange{From: &from}
	if _, err := svc.Sync(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if got.DateField != "updated" || got.From == nil || !got.From.Equal(from) || got.To != nil {
		t.Errorf("count query = %+v", got)
	}
}

func TestSync_DateRangeRecords(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	recs := []any{
		&article{ID: 1, Updated: day(1)},
		&article{ID: 2, Updated: day(5)},
		&article{ID: 3, Updated: day(9)},
	}
	eng := newMemEngine()
	svc := New(noStorage(t), eng, newRegistry(t, descriptor.Meta{UpdatedField: "updated"}, nil, "main"))

	from, to := day(5), day(9)
	req := NewRequest("Article", ActionIndex)
	req.Records = recs
	req.DateRange = &DateRange{From: &from, To: &to}
	if _, err := svc.Sync(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if len(eng.docs["main"]) != 2 || eng.docs["main"]["1"] != nil {
		t.Errorf("inclusive range should keep 2 and 3, got %v", eng.docs["main"])
	}
}

func TestSync_DateRangeWithoutUpdatedField(t *testing.T) {
	eng := newMemEngine()
	st := noStorage(t)
	svc := New(st, eng, newRegistry(t, descriptor.Meta{}, nil, "main"))

	now := time.Now()
	req := NewRequest("Article", ActionIndex)
	req.DateRange = &DateRange{From: &now}
	_, err := svc.Sync(context.Background(), req)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if !strings.Contains(err.Error(), "updated_field") {
		t.Errorf("error should name updated_field: %v", err)
	}
	if st.calls != 0 || len(eng.bulkCalls) != 0 {
		t.Error("no I/O expected before validation")
	}
}

func TestSync_DeleteRequiresExplicitInput(t *testing.T) {
	eng := newMemEngine()
	st := noStorage(t)
	svc := New(st, eng, newRegistry(t, descriptor.Meta{}, nil, "main"))

	q := model.Query{}
	for _, req := range []Request{
		{Type: "Article", Action: ActionDelete, Query: &q, BatchSize: 10, MaxCount: NoLimit},
		{Type: "Article", Action: ActionDelete, BatchSize: 10, MaxCount: NoLimit},
	} {
		if _, err := svc.Sync(context.Background(), req); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("err = %v, want ErrValidation", err)
		}
	}
	if st.calls != 0 || len(eng.bulkCalls) != 0 {
		t.Error("no I/O expected before validation")
	}
}

func TestSync_DeleteByIDs(t *testing.T) {
	eng := newMemEngine()
	svc := New(noStorage(t), eng, newRegistry(t, descriptor.Meta{}, nil, "main"))

	req := NewRequest("Article", ActionIndex)
	req.Records = articles(3)
	if _, err := svc.Sync(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	del := NewRequest("Article", ActionDelete)
	del.IDs = []any{int64(1), int64(3)}
	if _, err := svc.Sync(context.Background(), del); err != nil {
		t.Fatal(err)
	}
	last := eng.bulkCalls[len(eng.bulkCalls)-1]
	if last[0].Op() != document.OpDelete || last[0].Body() != nil {
		t.Errorf("delete items should carry no body: %+v", last[0])
	}
	if len(eng.docs["main"]) != 1 || eng.docs["main"]["2"] == nil {
		t.Errorf("remaining docs = %v", eng.docs["main"])
	}
}

func TestSync_IndexByIDs(t *testing.T) {
	all := articles(3)
	st := &mockStorage{fetchFn: func(ids []any) ([]any, error) {
		return all[:len(ids)], nil
	}}
	eng := newMemEngine()
	svc := New(st, eng, newRegistry(t, descriptor.Meta{}, nil, "main"))

	req := NewRequest("Article", ActionIndex)
	req.IDs = []any{int64(1), int64(2)}
	if _, err := svc.Sync(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if len(eng.docs["main"]) != 2 {
		t.Errorf("indexed %d docs", len(eng.docs["main"]))
	}
}

func TestSync_IndexByIDs_FetchesIndexedColumnsInInputOrder(t *testing.T) {
	all := articles(3)
	st := &mockStorage{fetchFn: func([]any) ([]any, error) {
		return all, nil
	}}
	eng := newMemEngine()
	svc := New(st, eng, newRegistry(t, descriptor.Meta{Fields: []string{"id", "title"}}, nil, "main"))

	req := NewRequest("Article", ActionIndex)
	req.IDs = []any{"3", int64(1), int64(9)}
	if _, err := svc.Sync(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if strings.Join(st.gotFields, ",") != "id,title" {
		t.Errorf("fetched columns = %v, want [id title]", st.gotFields)
	}
	if len(eng.bulkCalls) != 1 {
		t.Fatalf("bulk calls = %d", len(eng.bulkCalls))
	}
	var got []string
	for _, it := range eng.bulkCalls[0] {
		got = append(got, it.ID())
	}
	if strings.Join(got, ",") != "3,1" {
		t.Errorf("item order = %v, want [3 1]", got)
	}
}

func TestSync_BulkErrorAborts(t *testing.T) {
	eng := newMemEngine()
	eng.failOn = 1
	svc := New(noStorage(t), eng, newRegistry(t, descriptor.Meta{}, nil, "main"))

	req := NewRequest("Article", ActionIndex)
	req.Records = articles(300)
	req.Refresh = true
	_, err := svc.Sync(context.Background(), req)
	if !errors.Is(err, domain.ErrRemoteWrite) {
		t.Fatalf("err = %v, want ErrRemoteWrite", err)
	}
	if len(eng.bulkCalls) != 1 {
		t.Errorf("remaining batches should be aborted, got %d calls", len(eng.bulkCalls))
	}
	if len(eng.refreshed) != 0 {
		t.Error("failed sync must not refresh")
	}
}

func TestSync_UnknownType(t *testing.T) {
	svc := New(noStorage(t), newMemEngine(), newRegistry(t, descriptor.Meta{}, nil, "main"))
	req := NewRequest("Ghost", ActionIndex)
	req.Records = []any{}
	if _, err := svc.Sync(context.Background(), req); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestValidate(t *testing.T) {
	base := NewRequest("Article", ActionIndex)
	tests := []struct {
		name string
		mod  func(*Request)
	}{
		{"bad action", func(r *Request) { r.Action = "upsert" }},
		{"no type", func(r *Request) { r.Type = "" }},
		{"zero batch", func(r *Request) { r.BatchSize = 0 }},
		{"max below no-limit", func(r *Request) { r.MaxCount = -2 }},
	}
	for _, tc := range tests {
		req := base
		tc.mod(&req)
		if err := validate(req); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("%s: err = %v, want ErrValidation", tc.name, err)
		}
	}
}
