package search

import (
	"context"

	"github.com/kailas-cloud/indexsync/internal/domain/search/hit"
	"github.com/kailas-cloud/indexsync/internal/domain/search/query"
	"github.com/kailas-cloud/indexsync/internal/usecase/mapping"
)

// Engine runs queries against the search index.
type Engine interface {
	Execute(ctx context.Context, q query.Query) (hit.Page, error)
}

// Mapper rehydrates hits into records.
type Mapper interface {
	Map(ctx context.Context, hits []hit.Hit, opts mapping.Options) ([]mapping.Result, error)
}

// Aliases applies named query transformations.
type Aliases interface {
	Apply(q query.Query, name, boundType string, args ...any) (query.Query, error)
}

// Registry lists the declared indices.
type Registry interface {
	Indices(ctx context.Context) ([]string, error)
}
