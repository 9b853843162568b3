package db

import "github.com/kailas-cloud/indexsync/internal/domain/search/filter"

// SearchQuery is the input for a paged FT.SEARCH.
type SearchQuery struct {
	IndexName string
	// Query is engine query syntax; "*" or empty matches everything.
	Query string
	// Literal marks Query as plain terms: the store escapes query syntax.
	Literal bool
	Filters filter.Expression
	// Tags restricts TAG fields to any of the listed values, ANDed across fields.
	Tags         []TagFilter
	Offset       int
	Limit        int
	ReturnFields []string
	WithScores   bool
}

// TagFilter matches documents whose Field holds any of Values.
type TagFilter struct {
	Field  string
	Values []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
