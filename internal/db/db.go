package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	DocumentStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WriteOp is one pipelined document write: JSON.SET of Data at the root
// path, or DEL of Key when Data is nil.
type WriteOp struct {
	Key  string
	Data []byte
}

// IsDelete reports whether the op removes its key.
func (o WriteOp) IsDelete() bool { return o.Data == nil }

// DocumentStore provides JSON document operations.
type DocumentStore interface {
	// WriteMulti runs ops in one round-trip. The result has one entry per op,
	// nil on success.
	WriteMulti(ctx context.Context, ops []WriteOp) []error
	Del(ctx context.Context, key string) error
	DelMulti(ctx context.Context, keys []string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// IndexInfo is the subset of FT.INFO the service reads.
type IndexInfo struct {
	Name           string
	NumDocs        int64
	Indexing       bool
	PercentIndexed float64
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	AlterIndex(ctx context.Context, name string, field IndexField) error
	DropIndex(ctx context.Context, name string) error
	IndexInfo(ctx context.Context, name string) (*IndexInfo, error)
	SupportsTextSearch(ctx context.Context) bool
}

// Searcher provides search operations over FT indexes.
type Searcher interface {
	Search(ctx context.Context, q *SearchQuery) (*SearchResult, error)
}
