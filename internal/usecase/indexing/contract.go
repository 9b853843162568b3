package indexing

import (
	"context"

	"github.com/kailas-cloud/indexsync/internal/domain/descriptor"
	"github.com/kailas-cloud/indexsync/internal/domain/document"
	"github.com/kailas-cloud/indexsync/internal/domain/model"
)

// Storage reads records from the relational store.
type Storage interface {
	Count(ctx context.Context, q model.Query) (int, error)
	Filter(ctx context.Context, q model.Query) ([]any, error)
	FetchByIDs(ctx context.Context, m *model.Model, column string, ids []any, fields []string) ([]any, error)
}

// Engine writes documents to the search index.
type Engine interface {
	BulkWrite(ctx context.Context, index, typ string, items []document.Item) ([]document.Result, error)
	Refresh(ctx context.Context, index string) error
}

// Registry resolves the indices and descriptors of a record type.
type Registry interface {
	GetIndex(ctx context.Context, typ string) ([]string, error)
	Descriptor(ctx context.Context, index, typ string) (*descriptor.Descriptor, error)
}
