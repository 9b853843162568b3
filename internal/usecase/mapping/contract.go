package mapping

import (
	"context"

	"github.com/kailas-cloud/indexsync/internal/domain/descriptor"
	"github.com/kailas-cloud/indexsync/internal/domain/model"
)

// Storage fetches records by a key column.
type Storage interface {
	FetchByIDs(ctx context.Context, m *model.Model, column string, ids []any, fields []string) ([]any, error)
}

// Registry resolves the descriptor of an (index, type) pair.
type Registry interface {
	Descriptor(ctx context.Context, index, typ string) (*descriptor.Descriptor, error)
}
