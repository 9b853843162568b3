package manage

import (
	"context"

	"github.com/kailas-cloud/indexsync/internal/domain/descriptor"
	"github.com/kailas-cloud/indexsync/internal/usecase/indexing"
)

// Registry exposes the configured indices and their descriptors.
type Registry interface {
	Indices(ctx context.Context) ([]string, error)
	Types(ctx context.Context) ([]string, error)
	Models(ctx context.Context, index string) ([]string, error)
	IndexDescriptors(ctx context.Context, index string) ([]*descriptor.Descriptor, error)
	Descriptor(ctx context.Context, index, typ string) (*descriptor.Descriptor, error)
}

// Engine manages index schemas in the search engine.
type Engine interface {
	CreateIndex(ctx context.Context, index string, body map[string]any) error
	DeleteIndex(ctx context.Context, index string) error
	PutMapping(ctx context.Context, index, typ string, mapping map[string]any) error
	DeleteMapping(ctx context.Context, index, typ string) error
}

// Syncer pushes records of one type to the search index.
type Syncer interface {
	Sync(ctx context.Context, req indexing.Request) (indexing.Summary, error)
}
