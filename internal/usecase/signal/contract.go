package signal

import (
	"context"

	"github.com/kailas-cloud/indexsync/internal/domain/descriptor"
	"github.com/kailas-cloud/indexsync/internal/usecase/indexing"
)

// Processor reacts to record mutations. Implementations are swapped by
// configuration name, see New and Register.
type Processor interface {
	// Setup starts handling events of typ.
	Setup(typ string)
	// Teardown stops handling events of typ.
	Teardown(typ string)
	OnSave(ctx context.Context, typ string, record any) error
	OnDelete(ctx context.Context, typ string, record any) error
}

// Flusher is implemented by processors that hold pending work.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Registry answers which types are managed and where they are indexed.
type Registry interface {
	IsManaged(ctx context.Context, typ string) bool
	GetIndex(ctx context.Context, typ string) ([]string, error)
	Descriptor(ctx context.Context, index, typ string) (*descriptor.Descriptor, error)
}

// Syncer runs index syncs.
type Syncer interface {
	Sync(ctx context.Context, req indexing.Request) (indexing.Summary, error)
}

// Deleter removes a single document from an index.
type Deleter interface {
	Delete(ctx context.Context, index, typ, id string) error
}
