package signal

import (
	"context"

	"github.com/kailas-cloud/indexsync/internal/usecase/indexing"
)

// Immediate syncs every saved record as it arrives.
type Immediate struct {
	*hooks
}

// NewImmediate creates a sync-on-save processor.
func NewImmediate(deps Deps) *Immediate {
	return &Immediate{hooks: newHooks(deps)}
}

// OnSave indexes record right away.
func (p *Immediate) OnSave(ctx context.Context, typ string, record any) error {
	if !p.active(ctx, typ) {
		return nil
	}
	req := indexing.NewRequest(typ, indexing.ActionIndex)
	req.Records = []any{record}
	_, err := p.deps.Syncer.Sync(ctx, req)
	return err
}

// OnDelete removes record from every index of its type.
func (p *Immediate) OnDelete(ctx context.Context, typ string, record any) error {
	if !p.active(ctx, typ) {
		return nil
	}
	_, err := p.deleteEverywhere(ctx, typ, record)
	return err
}
