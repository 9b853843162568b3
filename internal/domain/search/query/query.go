package query

import (
	"fmt"
	"slices"

	"github.com/kailas-cloud/indexsync/internal/domain/search/filter"
	"github.com/kailas-cloud/indexsync/internal/domain/search/mode"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed query text length.
	MaxQueryLength = 4096
	DefaultLimit   = 20
	MaxLimit       = 100
	// MaxWindow bounds offset+limit, the engine's default result window.
	MaxWindow = 10000
)

// Query is a validated search over one or more indices. It is a value:
// the With* methods return modified copies.
type Query struct {
	text    string
	mode    mode.Mode
	indices []string
	types   []string
	filters filter.Expression
	offset  int
	limit   int
}

// New validates and normalizes search parameters.
// Defaults: mode=match (all when text is empty), limit=20. Limit is clamped to MaxLimit.
func New(
	text string,
	m mode.Mode,
	indices, types []string,
	filters filter.Expression,
	offset, limit int,
) (Query, error) {
	if len(text) > MaxQueryLength {
		return Query{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	if m == "" {
		m = mode.Match
		if text == "" {
			m = mode.All
		}
	}
	if !m.IsValid() {
		return Query{}, fmt.Errorf("invalid query mode: %q", m)
	}
	if m != mode.All && text == "" {
		return Query{}, fmt.Errorf("query text is required for mode %q", m)
	}
	if len(indices) == 0 {
		return Query{}, fmt.Errorf("at least one index is required")
	}
	if offset < 0 {
		return Query{}, fmt.Errorf("offset must not be negative")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset+limit > MaxWindow {
		return Query{}, fmt.Errorf("result window too large (offset+limit max %d)", MaxWindow)
	}
	return Query{
		text:    text,
		mode:    m,
		indices: slices.Clone(indices),
		types:   slices.Clone(types),
		filters: filters,
		offset:  offset,
		limit:   limit,
	}, nil
}

// Text returns the query text.
func (q Query) Text() string { return q.text }

// Mode returns how the text is interpreted.
func (q Query) Mode() mode.Mode { return q.mode }

// Indices returns the target indices.
func (q Query) Indices() []string { return q.indices }

// Types returns the record types the query is restricted to; empty means all.
func (q Query) Types() []string { return q.types }

// Filters returns the filter expression.
func (q Query) Filters() filter.Expression { return q.filters }

// Offset returns the number of hits to skip.
func (q Query) Offset() int { return q.offset }

// Limit returns the page size.
func (q Query) Limit() int { return q.limit }

// WithFilters returns a copy with f combined into the existing filters.
func (q Query) WithFilters(f filter.Expression) (Query, error) {
	combined, err := q.filters.And(f)
	if err != nil {
		return Query{}, err
	}
	q.filters = combined
	return q, nil
}

// WithText returns a copy with new text and mode.
func (q Query) WithText(text string, m mode.Mode) (Query, error) {
	return New(text, m, q.indices, q.types, q.filters, q.offset, q.limit)
}

// WithTypes returns a copy restricted to types.
func (q Query) WithTypes(types ...string) Query {
	q.types = slices.Clone(types)
	return q
}
