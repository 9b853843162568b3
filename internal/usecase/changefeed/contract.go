package changefeed

import (
	"context"

	"github.com/kailas-cloud/indexsync/internal/domain/model"
)

// Catalog resolves record types by name.
type Catalog interface {
	Get(name string) (*model.Model, error)
}

// Storage loads one record by key.
type Storage interface {
	Get(ctx context.Context, m *model.Model, column string, id any, fields []string) (any, error)
}

// Processor receives record lifecycle signals.
type Processor interface {
	OnSave(ctx context.Context, typ string, record any) error
	OnDelete(ctx context.Context, typ string, record any) error
}
