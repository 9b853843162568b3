package searchindex

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/indexsync/internal/db"
	"github.com/kailas-cloud/indexsync/internal/domain"
	"github.com/kailas-cloud/indexsync/internal/domain/search/hit"
	"github.com/kailas-cloud/indexsync/internal/domain/search/mode"
	"github.com/kailas-cloud/indexsync/internal/domain/search/query"
)

// Execute runs q against each of its indices. Hits of several indices are
// merged by reciprocal rank fusion before the window is applied.
func (r *Repo) Execute(ctx context.Context, q query.Query) (hit.Page, error) {
	if q.Mode() != mode.All && !r.store.SupportsTextSearch(ctx) {
		return hit.Page{}, domain.Validationf("full-text %s queries are not supported by this engine", q.Mode())
	}

	indices := q.Indices()
	if len(indices) == 1 {
		return r.searchIndex(ctx, indices[0], q, q.Offset(), q.Limit())
	}

	// Each index must contribute its top offset+limit hits to the fused window.
	window := q.Offset() + q.Limit()
	lists := make([][]hit.Hit, 0, len(indices))
	var total int
	for _, index := range indices {
		p, err := r.searchIndex(ctx, index, q, 0, window)
		if err != nil {
			return hit.Page{}, err
		}
		lists = append(lists, p.Hits)
		total += p.Total
	}

	fused := fuseRRF(lists)
	start := min(q.Offset(), len(fused))
	end := min(window, len(fused))
	return hit.Page{Hits: fused[start:end], Total: total}, nil
}

func (r *Repo) searchIndex(ctx context.Context, index string, q query.Query, offset, limit int) (hit.Page, error) {
	sq := &db.SearchQuery{
		IndexName:    index,
		Literal:      q.Mode() == mode.Match,
		Filters:      q.Filters(),
		Offset:       offset,
		Limit:        limit,
		ReturnFields: []string{"$"},
		WithScores:   true,
	}
	if q.Mode() != mode.All {
		sq.Query = q.Text()
	}
	if types := q.Types(); len(types) > 0 {
		sq.Tags = []db.TagFilter{{Field: TypeField, Values: types}}
	}

	res, err := r.store.Search(ctx, sq)
	if err != nil {
		return hit.Page{}, fmt.Errorf("search %s: %w", index, err)
	}
	if res == nil {
		return hit.Page{}, nil
	}

	hits := make([]hit.Hit, 0, len(res.Entries))
	for _, e := range res.Entries {
		h, err := r.parseEntry(index, e)
		if err != nil {
			return hit.Page{}, err
		}
		hits = append(hits, h)
	}
	return hit.Page{Hits: hits, Total: res.Total}, nil
}

func (r *Repo) parseEntry(index string, e db.SearchEntry) (hit.Hit, error) {
	typ, id, ok := r.parseKey(index, e.Key)
	if !ok {
		return hit.Hit{}, fmt.Errorf("search %s: unexpected key %q", index, e.Key)
	}
	h := hit.Hit{Index: index, Type: typ, ID: id, Score: e.Score}
	if raw := e.Fields["$"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &h.Source); err != nil {
			return hit.Hit{}, fmt.Errorf("decode %s: %w", e.Key, err)
		}
	}
	return h, nil
}
