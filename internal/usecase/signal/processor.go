package signal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/indexsync/internal/domain"
)

// Processor kinds accepted by New.
const (
	KindBuffered = "buffered"
	KindSync     = "sync"
	KindNone     = "none"
)

// DefaultBufferSize is the buffered processor's flush threshold.
const DefaultBufferSize = 100

// Deps are the collaborators of a processor.
type Deps struct {
	Registry   Registry
	Syncer     Syncer
	Deleter    Deleter
	Logger     *zap.Logger
	BufferSize int
}

// Constructor builds a processor from its dependencies.
type Constructor func(Deps) (Processor, error)

var (
	ctorsMu sync.RWMutex
	ctors   = map[string]Constructor{
		KindBuffered: func(d Deps) (Processor, error) { return NewBuffered(d), nil },
		KindSync:     func(d Deps) (Processor, error) { return NewImmediate(d), nil },
		KindNone:     func(Deps) (Processor, error) { return Noop{}, nil },
	}
)

// Register installs or replaces the constructor for kind.
func Register(kind string, ctor Constructor) {
	ctorsMu.Lock()
	defer ctorsMu.Unlock()
	ctors[kind] = ctor
}

// New builds the processor registered under kind. Empty kind means buffered.
func New(kind string, deps Deps) (Processor, error) {
	if kind == "" {
		kind = KindBuffered
	}
	ctorsMu.RLock()
	ctor, ok := ctors[kind]
	ctorsMu.RUnlock()
	if !ok {
		return nil, domain.Configf("unknown signal processor %q", kind)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return ctor(deps)
}

// hooks tracks connected types and the delete path shared by processors.
type hooks struct {
	deps Deps

	mu        sync.RWMutex
	connected map[string]bool
}

func newHooks(deps Deps) *hooks {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &hooks{deps: deps, connected: make(map[string]bool)}
}

func (h *hooks) Setup(typ string) {
	h.mu.Lock()
	h.connected[typ] = true
	h.mu.Unlock()
}

func (h *hooks) Teardown(typ string) {
	h.mu.Lock()
	delete(h.connected, typ)
	h.mu.Unlock()
}

// active reports whether events of typ must be handled. Unmanaged types
// are ignored without touching the index.
func (h *hooks) active(ctx context.Context, typ string) bool {
	h.mu.RLock()
	on := h.connected[typ]
	h.mu.RUnlock()
	return on && h.deps.Registry.IsManaged(ctx, typ)
}

// deleteEverywhere removes record's document from every index of typ and
// returns its document id. Already-absent documents are logged and skipped.
func (h *hooks) deleteEverywhere(ctx context.Context, typ string, record any) (string, error) {
	indices, err := h.deps.Registry.GetIndex(ctx, typ)
	if err != nil {
		return "", err
	}
	var docID string
	for _, index := range indices {
		d, err := h.deps.Registry.Descriptor(ctx, index, typ)
		if err != nil {
			return "", err
		}
		id, err := d.DocumentID(record)
		if err != nil {
			return "", err
		}
		docID = id
		err = h.deps.Deleter.Delete(ctx, index, typ, id)
		switch {
		case errors.Is(err, domain.ErrRemoteDeleteNotFound):
			h.deps.Logger.Warn("document already absent from index",
				zap.String("index", index), zap.String("type", typ), zap.String("id", id))
		case err != nil:
			return docID, fmt.Errorf("delete %s %s from %s: %w", typ, id, index, err)
		}
	}
	return docID, nil
}

// Noop ignores every event.
type Noop struct{}

func (Noop) Setup(string) {}

func (Noop) Teardown(string) {}

func (Noop) OnSave(context.Context, string, any) error { return nil }

func (Noop) OnDelete(context.Context, string, any) error { return nil }

func sortedTypes(m map[string][]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
