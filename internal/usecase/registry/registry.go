package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/indexsync/internal/domain"
	"github.com/kailas-cloud/indexsync/internal/domain/descriptor"
	"github.com/kailas-cloud/indexsync/internal/domain/model"
)

// Source returns the descriptor definitions of one descriptor-source.
type Source func() []descriptor.Definition

// Option configures a Registry.
type Option func(*Registry)

// WithSource registers a named descriptor-source.
func WithSource(name string, src Source) Option {
	return func(r *Registry) {
		r.sources[name] = src
	}
}

// WithIndex binds index to the descriptors of the named sources.
func WithIndex(index string, sources ...string) Option {
	return func(r *Registry) {
		if _, ok := r.bindings[index]; !ok {
			r.order = append(r.order, index)
		}
		r.bindings[index] = append(r.bindings[index], sources...)
	}
}

type pair struct{ index, typ string }

// Registry resolves record types to indices and descriptors. It is built
// once, lazily, and read-only afterwards.
type Registry struct {
	catalog  *model.Catalog
	log      *zap.Logger
	sources  map[string]Source
	bindings map[string][]string
	order    []string

	once sync.Once
	err  error

	typeIndices      map[string][]string
	typeDescriptors  map[string][]*descriptor.Descriptor
	defaults         map[string]*descriptor.Descriptor
	indexTypes       map[string][]string
	indexDescriptors map[string][]*descriptor.Descriptor
	byPair           map[pair]*descriptor.Descriptor
}

// New creates a registry over the models in catalog.
func New(catalog *model.Catalog, log *zap.Logger, opts ...Option) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{
		catalog:  catalog,
		log:      log,
		sources:  make(map[string]Source),
		bindings: make(map[string][]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load instantiates every declared descriptor. It runs once; later calls
// return the first result.
func (r *Registry) Load(ctx context.Context) error {
	r.once.Do(func() {
		r.err = r.load(ctx)
	})
	return r.err
}

func (r *Registry) load(ctx context.Context) error {
	r.typeIndices = make(map[string][]string)
	r.typeDescriptors = make(map[string][]*descriptor.Descriptor)
	r.defaults = make(map[string]*descriptor.Descriptor)
	r.indexTypes = make(map[string][]string)
	r.indexDescriptors = make(map[string][]*descriptor.Descriptor)
	r.byPair = make(map[pair]*descriptor.Descriptor)

	for _, index := range r.order {
		r.indexTypes[index] = nil
		for _, srcName := range r.bindings[index] {
			src, ok := r.sources[srcName]
			if !ok {
				return domain.Configf("index %q references unknown descriptor source %q", index, srcName)
			}
			for _, def := range src() {
				if err := r.add(ctx, index, def); err != nil {
					return err
				}
			}
		}
	}

	// A lone descriptor is its type's default.
	for typ, ds := range r.typeDescriptors {
		if _, ok := r.defaults[typ]; !ok && len(ds) == 1 {
			r.defaults[typ] = ds[0]
		}
	}

	r.log.Info("search registry loaded",
		zap.Int("indices", len(r.order)),
		zap.Int("types", len(r.typeDescriptors)),
	)
	return nil
}

func (r *Registry) add(ctx context.Context, index string, def descriptor.Definition) error {
	if def.Meta == nil {
		return domain.Configf("index %q: descriptor does not declare a Meta block", index)
	}
	m, err := r.catalog.Get(def.Meta.Model)
	if err != nil {
		return domain.Configf("index %q: %v", index, err)
	}
	d, err := descriptor.New(ctx, def, m)
	if err != nil {
		return fmt.Errorf("index %q: %w", index, err)
	}

	typ := d.Type()
	key := pair{index: index, typ: typ}
	if _, dup := r.byPair[key]; dup {
		return domain.Configf("type %s is declared twice on index %s", typ, index)
	}
	if d.IsDefault() {
		if prev, ok := r.defaults[typ]; ok {
			return domain.Configf("descriptor of %s on index %s is marked as default, but the one on %s already is",
				typ, index, r.indexOf(prev))
		}
		r.defaults[typ] = d
	}

	r.byPair[key] = d
	r.typeIndices[typ] = append(r.typeIndices[typ], index)
	r.typeDescriptors[typ] = append(r.typeDescriptors[typ], d)
	r.indexTypes[index] = append(r.indexTypes[index], typ)
	r.indexDescriptors[index] = append(r.indexDescriptors[index], d)
	return nil
}

func (r *Registry) indexOf(d *descriptor.Descriptor) string {
	for k, v := range r.byPair {
		if v == d {
			return k.index
		}
	}
	return ""
}

// GetIndex returns the indices type is declared on.
func (r *Registry) GetIndex(ctx context.Context, typ string) ([]string, error) {
	if err := r.Load(ctx); err != nil {
		return nil, err
	}
	indices, ok := r.typeIndices[typ]
	if !ok {
		return nil, domain.NewNotFound("index defined for model", typ)
	}
	return append([]string(nil), indices...), nil
}

// ModelIndex returns the default descriptor of type.
func (r *Registry) ModelIndex(ctx context.Context, typ string) (*descriptor.Descriptor, error) {
	if err := r.Load(ctx); err != nil {
		return nil, err
	}
	d, ok := r.defaults[typ]
	if !ok {
		return nil, domain.NewNotFound("default model index for model", typ)
	}
	return d, nil
}

// ModelIndices returns every descriptor of type, in declaration order.
func (r *Registry) ModelIndices(ctx context.Context, typ string) ([]*descriptor.Descriptor, error) {
	if err := r.Load(ctx); err != nil {
		return nil, err
	}
	ds, ok := r.typeDescriptors[typ]
	if !ok {
		return nil, domain.NewNotFound("model index for model", typ)
	}
	return append([]*descriptor.Descriptor(nil), ds...), nil
}

// Indices returns every declared index, sorted.
func (r *Registry) Indices(ctx context.Context) ([]string, error) {
	if err := r.Load(ctx); err != nil {
		return nil, err
	}
	out := append([]string(nil), r.order...)
	sort.Strings(out)
	return out, nil
}

// Types returns every managed record type, sorted.
func (r *Registry) Types(ctx context.Context) ([]string, error) {
	if err := r.Load(ctx); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(r.typeDescriptors))
	for typ := range r.typeDescriptors {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out, nil
}

// Models returns the record types declared on index.
func (r *Registry) Models(ctx context.Context, index string) ([]string, error) {
	if err := r.Load(ctx); err != nil {
		return nil, err
	}
	types, ok := r.indexTypes[index]
	if !ok {
		return nil, domain.NewNotFound("index named", index)
	}
	return append([]string(nil), types...), nil
}

// IndexDescriptors returns the descriptors declared on index.
func (r *Registry) IndexDescriptors(ctx context.Context, index string) ([]*descriptor.Descriptor, error) {
	if err := r.Load(ctx); err != nil {
		return nil, err
	}
	ds, ok := r.indexDescriptors[index]
	if !ok {
		return nil, domain.NewNotFound("index named", index)
	}
	return append([]*descriptor.Descriptor(nil), ds...), nil
}

// Descriptor returns the descriptor of type on index.
func (r *Registry) Descriptor(ctx context.Context, index, typ string) (*descriptor.Descriptor, error) {
	if err := r.Load(ctx); err != nil {
		return nil, err
	}
	d, ok := r.byPair[pair{index: index, typ: typ}]
	if !ok {
		return nil, domain.NewNotFound("model index", index+"."+typ)
	}
	return d, nil
}

// IsManaged reports whether type has at least one descriptor. A failed
// load manages nothing.
func (r *Registry) IsManaged(ctx context.Context, typ string) bool {
	if err := r.Load(ctx); err != nil {
		return false
	}
	_, ok := r.typeDescriptors[typ]
	return ok
}
