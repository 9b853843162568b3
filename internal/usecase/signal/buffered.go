package signal

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/indexsync/internal/metrics"
	"github.com/kailas-cloud/indexsync/internal/usecase/indexing"
)

// Buffered queues saved records per type and syncs a queue once it
// reaches the buffer size. Deletes are applied immediately.
type Buffered struct {
	*hooks
	size int

	mu      sync.Mutex
	pending map[string][]any
}

// NewBuffered creates a buffered processor.
func NewBuffered(deps Deps) *Buffered {
	size := deps.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Buffered{
		hooks:   newHooks(deps),
		size:    size,
		pending: make(map[string][]any),
	}
}

// OnSave appends record to its type's queue. The queue is swapped out
// under the lock and synced after releasing it.
func (b *Buffered) OnSave(ctx context.Context, typ string, record any) error {
	if !b.active(ctx, typ) {
		return nil
	}

	b.mu.Lock()
	b.pending[typ] = append(b.pending[typ], record)
	var batch []any
	if len(b.pending[typ]) >= b.size {
		batch = b.pending[typ]
		b.pending[typ] = make([]any, 0, b.size)
	}
	n := len(b.pending[typ])
	b.mu.Unlock()

	metrics.BufferPending.WithLabelValues(typ).Set(float64(n))
	if batch == nil {
		return nil
	}
	return b.flush(ctx, typ, batch)
}

// OnDelete removes record from every index of its type and drops any
// pending save of the same document.
func (b *Buffered) OnDelete(ctx context.Context, typ string, record any) error {
	if !b.active(ctx, typ) {
		return nil
	}
	id, err := b.deleteEverywhere(ctx, typ, record)
	if id != "" {
		b.dropPending(ctx, typ, id)
	}
	return err
}

func (b *Buffered) dropPending(ctx context.Context, typ, id string) {
	d, err := b.deps.Registry.Descriptor(ctx, b.firstIndex(ctx, typ), typ)
	if err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	queue := b.pending[typ]
	kept := queue[:0]
	for _, rec := range queue {
		if recID, err := d.DocumentID(rec); err == nil && recID == id {
			continue
		}
		kept = append(kept, rec)
	}
	b.pending[typ] = kept
}

func (b *Buffered) firstIndex(ctx context.Context, typ string) string {
	indices, err := b.deps.Registry.GetIndex(ctx, typ)
	if err != nil || len(indices) == 0 {
		return ""
	}
	return indices[0]
}

// Pending returns the number of queued records of typ.
func (b *Buffered) Pending(typ string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending[typ])
}

// Flush syncs every pending queue. Failed queues are kept for the next flush.
func (b *Buffered) Flush(ctx context.Context) error {
	b.mu.Lock()
	drained := b.pending
	b.pending = make(map[string][]any, len(drained))
	b.mu.Unlock()

	var errs []error
	for _, typ := range sortedTypes(drained) {
		if len(drained[typ]) == 0 {
			continue
		}
		if err := b.flush(ctx, typ, drained[typ]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Buffered) flush(ctx context.Context, typ string, batch []any) error {
	req := indexing.NewRequest(typ, indexing.ActionIndex)
	req.Records = batch
	req.BatchSize = b.size

	metrics.BufferFlushesTotal.WithLabelValues(typ).Inc()
	if _, err := b.deps.Syncer.Sync(ctx, req); err != nil {
		b.requeue(typ, batch)
		return fmt.Errorf("flush %d %s records: %w", len(batch), typ, err)
	}
	return nil
}

// requeue puts a failed batch back in front of the queue, keeping at most
// three buffers worth of records.
func (b *Buffered) requeue(typ string, batch []any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	queue := append(append(make([]any, 0, len(batch)+len(b.pending[typ])), batch...), b.pending[typ]...)
	if limit := b.size * 3; len(queue) > limit {
		b.deps.Logger.Warn("change buffer overflow, records dropped",
			zap.String("type", typ), zap.Int("dropped", len(queue)-limit))
		queue = queue[len(queue)-limit:]
	}
	b.pending[typ] = queue
	metrics.BufferPending.WithLabelValues(typ).Set(float64(len(queue)))
}
