package descriptor

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/indexsync/internal/domain"
	"github.com/kailas-cloud/indexsync/internal/domain/field"
	"github.com/kailas-cloud/indexsync/internal/domain/model"
	"github.com/kailas-cloud/indexsync/internal/logger"
)

// IDKey is the reserved field holding the engine document id.
const IDKey = "_id"

// Meta is the declarative part of a descriptor.
type Meta struct {
	Model            string
	Fields           []string // include list; empty means all columns
	Exclude          []string
	Hotfixes         map[string]map[string]any
	AdditionalFields []string
	IDField          string // defaults to model.DefaultIDColumn
	UpdatedField     string
	Default          bool
	OptimizeQueries  bool
}

// Definition declares one descriptor: its Meta, explicit fields and an
// optional indexing condition.
type Definition struct {
	Meta      *Meta
	Fields    map[string]*field.Field
	Condition func(record any) bool
}

// Getter fetches one record restricted to fields.
type Getter interface {
	Get(ctx context.Context, m *model.Model, column string, id any, fields []string) (any, error)
}

// Descriptor binds a record type to its index fields. Immutable after New.
type Descriptor struct {
	model     *model.Model
	meta      Meta
	fields    map[string]*field.Field
	fetch     []string
	condition func(any) bool
}

// New builds a descriptor for m from def.
//
// Columns of m that are not relations, pass the include/exclude lists and are
// not declared explicitly get a field inferred from their storage type, with
// hotfixes applied and the column default as null_value. Explicit fields are
// overlaid, the id field is duplicated under IDKey and fields to fetch are
// computed.
func New(ctx context.Context, def Definition, m *model.Model) (*Descriptor, error) {
	if def.Meta == nil {
		return nil, domain.Configf("descriptor does not declare a Meta block")
	}
	if m == nil {
		return nil, domain.Configf("descriptor for %q has no model", def.Meta.Model)
	}
	meta := *def.Meta
	if meta.IDField == "" {
		meta.IDField = model.DefaultIDColumn
	}

	d := &Descriptor{
		model:     m,
		meta:      meta,
		fields:    make(map[string]*field.Field),
		condition: def.Condition,
	}

	include := toSet(meta.Fields)
	exclude := toSet(meta.Exclude)
	for _, c := range m.Columns() {
		if _, explicit := def.Fields[c.Name]; explicit {
			continue
		}
		if len(include) > 0 && !include[c.Name] {
			continue
		}
		if exclude[c.Name] || c.Relation {
			continue
		}
		attrs := map[string]any{field.AttrModelAttr: c.Name}
		if c.HasDefault {
			attrs["null_value"] = c.Default
		}
		maps.Copy(attrs, meta.Hotfixes[c.Name])
		f, err := field.ForColumn(c.Type, attrs)
		if err != nil {
			return nil, fmt.Errorf("model %s column %s: %w", m.Name(), c.Name, err)
		}
		d.fields[c.Name] = f
	}

	log := logger.FromContext(ctx)
	for name, f := range def.Fields {
		if f == nil {
			return nil, domain.Configf("model %s: explicit field %q is nil", m.Name(), name)
		}
		if prev, ok := d.fields[name]; ok {
			log.Info("Overwriting implicitly defined field",
				zap.String("model", m.Name()),
				zap.String("field", name),
				zap.String("implicit", string(prev.Core())),
				zap.String("explicit", string(f.Core())),
			)
		}
		d.fields[name] = f
	}

	idf, ok := d.fields[meta.IDField]
	if !ok {
		return nil, domain.Configf("model %s: id field %q is not an indexed field", m.Name(), meta.IDField)
	}
	d.fields[IDKey] = idf

	fetch := toSet(meta.AdditionalFields)
	for name := range d.fields {
		fetch[name] = true
	}
	d.fetch = sortedKeys(fetch)
	return d, nil
}

// Model returns the record type.
func (d *Descriptor) Model() *model.Model { return d.model }

// Type returns the record type name.
func (d *Descriptor) Type() string { return d.model.Name() }

// Meta returns a copy of the declared meta.
func (d *Descriptor) Meta() Meta { return d.meta }

// IDField returns the attribute used as document id.
func (d *Descriptor) IDField() string { return d.meta.IDField }

// UpdatedField returns the last-modified attribute, empty when undeclared.
func (d *Descriptor) UpdatedField() string { return d.meta.UpdatedField }

// IsDefault reports whether this is the canonical descriptor of its type.
func (d *Descriptor) IsDefault() bool { return d.meta.Default }

// OptimizeQueries reports whether rehydration fetches only FieldsToFetch.
func (d *Descriptor) OptimizeQueries() bool { return d.meta.OptimizeQueries }

// Field returns the field declared under name.
func (d *Descriptor) Field(name string) (*field.Field, bool) {
	f, ok := d.fields[name]
	return f, ok
}

// FieldNames returns all field keys, IDKey included, sorted.
func (d *Descriptor) FieldNames() []string {
	return sortedKeys(d.fields)
}

// FieldsToFetch returns the union of field keys and additional fields.
func (d *Descriptor) FieldsToFetch() []string {
	return slices.Clone(d.fetch)
}

// FetchColumns restricts fields to the model's columns, always keeping the id column.
func FetchColumns(m *model.Model, fields []string) []string {
	want := toSet(fields)
	var out []string
	for _, name := range m.ColumnNames() {
		if want[name] || name == m.IDColumn() {
			out = append(out, name)
		}
	}
	return out
}

// Mapping returns {"properties": {name: field JSON}}.
func (d *Descriptor) Mapping() map[string]any {
	props := make(map[string]any, len(d.fields))
	for name, f := range d.fields {
		props[name] = f.JSON()
	}
	return map[string]any{"properties": props}
}

// Analysis collects the analysis definitions of every custom analyzer used by the fields.
func (d *Descriptor) Analysis() map[string]any {
	out := map[string]any{}
	for _, name := range d.FieldNames() {
		for _, a := range d.fields[name].Analyzers() {
			MergeAnalysis(out, a.Definition())
		}
	}
	return out
}

// MergeAnalysis merges src into dst. Nested maps are merged key by key;
// existing leaf values are kept.
func MergeAnalysis(dst, src map[string]any) {
	for k, v := range src {
		cur, ok := dst[k]
		if !ok {
			dst[k] = cloneValue(v)
			continue
		}
		cm, cok := cur.(map[string]any)
		vm, vok := v.(map[string]any)
		if cok && vok {
			MergeAnalysis(cm, vm)
		}
	}
}

func cloneValue(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	out := make(map[string]any, len(m))
	for k, vv := range m {
		out[k] = cloneValue(vv)
	}
	return out
}

// Serialize produces the index document of record.
func (d *Descriptor) Serialize(record any) (map[string]any, error) {
	doc := make(map[string]any, len(d.fields))
	for name, f := range d.fields {
		v, err := f.NamedValue(name, record)
		if err != nil {
			return nil, fmt.Errorf("serialize %s.%s: %w", d.Type(), name, err)
		}
		doc[name] = v
	}
	return doc, nil
}

// SerializeByID fetches the record by primary key, restricted to the
// fields to fetch, and serializes it.
func (d *Descriptor) SerializeByID(ctx context.Context, g Getter, id any) (map[string]any, error) {
	rec, err := g.Get(ctx, d.model, d.model.IDColumn(), id, FetchColumns(d.model, d.fetch))
	if err != nil {
		return nil, fmt.Errorf("fetch %s %v: %w", d.Type(), id, err)
	}
	return d.Serialize(rec)
}

// Matches reports whether record should be indexed.
func (d *Descriptor) Matches(record any) bool {
	if d.condition == nil {
		return true
	}
	return d.condition(record)
}

// DocumentID returns the engine id of record: the value of the IDKey field.
func (d *Descriptor) DocumentID(record any) (string, error) {
	v, err := d.fields[IDKey].NamedValue(IDKey, record)
	if err != nil {
		return "", fmt.Errorf("document id of %s: %w", d.Type(), err)
	}
	if v == nil {
		return "", domain.Validationf("%s record has no %s", d.Type(), d.meta.IDField)
	}
	return model.FormatID(v), nil
}

func toSet(keys []string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
