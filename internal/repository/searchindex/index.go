package searchindex

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
	"unicode"

	"github.com/kailas-cloud/indexsync/internal/db"
	"github.com/kailas-cloud/indexsync/internal/domain"
	"github.com/kailas-cloud/indexsync/internal/domain/descriptor"
)

// Analyzers the engine cannot stem through.
var noStemAnalyzers = map[string]bool{"keyword": true, "whitespace": true, "simple": true}

// CreateIndex creates the FT index of index from a body of the form
// {"mappings": {type: {"properties": ...}}, "analysis": ...}. The schema is
// the union of all type mappings. An existing index is db.ErrIndexExists.
func (r *Repo) CreateIndex(ctx context.Context, index string, body map[string]any) error {
	mappings, _ := body["mappings"].(map[string]any)
	textSearch := r.store.SupportsTextSearch(ctx)

	def := db.NewIndex(index).Prefix(r.indexPrefix(index)).
		Tag(jsonPath(TypeField), db.As(TypeField), db.CaseSensitive())
	seen := map[string]db.IndexFieldType{TypeField: db.IndexFieldTag}

	types := make([]string, 0, len(mappings))
	for typ := range mappings {
		types = append(types, typ)
	}
	sort.Strings(types)

	for _, typ := range types {
		mapping, _ := mappings[typ].(map[string]any)
		fields, err := schemaFields(mapping, textSearch)
		if err != nil {
			return fmt.Errorf("index %s type %s: %w", index, typ, err)
		}
		for _, f := range fields {
			prev, ok := seen[f.Alias]
			if ok && prev != f.Type {
				return domain.Configf("index %s: field %q is mapped with conflicting types", index, f.Alias)
			}
			if ok {
				continue
			}
			seen[f.Alias] = f.Type
			def.Field(f)
		}
	}

	idx, err := def.Build()
	if err != nil {
		return domain.Configf("index %s: %v", index, err)
	}
	if err := r.store.CreateIndex(ctx, idx); err != nil {
		return fmt.Errorf("create index %s: %w", index, err)
	}
	return nil
}

// DeleteIndex drops the FT index and its documents. An unknown index is not
// an error.
func (r *Repo) DeleteIndex(ctx context.Context, index string) error {
	if err := r.store.DropIndex(ctx, index); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", index, err)
	}
	if _, err := r.deleteKeys(ctx, r.indexPrefix(index)+"*"); err != nil {
		return fmt.Errorf("delete documents of %s: %w", index, err)
	}
	return nil
}

// PutMapping adds the fields of a type mapping to the index schema. Fields
// already in the schema are left as they are.
func (r *Repo) PutMapping(ctx context.Context, index, typ string, mapping map[string]any) error {
	fields, err := schemaFields(mapping, r.store.SupportsTextSearch(ctx))
	if err != nil {
		return fmt.Errorf("index %s type %s: %w", index, typ, err)
	}
	for _, f := range fields {
		err := r.store.AlterIndex(ctx, index, f)
		if err == nil || errors.Is(err, db.ErrFieldExists) {
			continue
		}
		return fmt.Errorf("alter index %s field %s: %w", index, f.Alias, err)
	}
	return nil
}

// DeleteMapping removes every document of typ from index.
func (r *Repo) DeleteMapping(ctx context.Context, index, typ string) error {
	if _, err := r.deleteKeys(ctx, r.typePrefix(index, typ)+"*"); err != nil {
		return fmt.Errorf("delete %s documents of %s: %w", typ, index, err)
	}
	return nil
}

// Refresh waits until the engine has indexed every pending document.
func (r *Repo) Refresh(ctx context.Context, index string) error {
	ticker := time.NewTicker(r.refreshInterval)
	defer ticker.Stop()
	for {
		info, err := r.store.IndexInfo(ctx, index)
		if err != nil {
			return fmt.Errorf("refresh %s: %w", index, err)
		}
		if !info.Indexing {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// schemaFields translates a descriptor mapping into FT fields, sorted by
// name. The document id and fields declared "index": "no" are not indexed.
func schemaFields(mapping map[string]any, textSearch bool) ([]db.IndexField, error) {
	props, _ := mapping["properties"].(map[string]any)
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]db.IndexField, 0, len(names))
	for _, name := range names {
		if name == descriptor.IDKey || name == TypeField {
			continue
		}
		prop, ok := props[name].(map[string]any)
		if !ok {
			return nil, domain.Configf("field %q: mapping is not an object", name)
		}
		if prop["index"] == "no" {
			continue
		}
		f, err := schemaField(name, prop, textSearch)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func schemaField(name string, prop map[string]any, textSearch bool) (db.IndexField, error) {
	f := db.IndexField{Name: jsonPath(name), Alias: name}
	typ, _ := prop["type"].(string)
	switch typ {
	case "string":
		if prop["index"] == "not_analyzed" || !textSearch {
			f.Type = db.IndexFieldTag
			break
		}
		f.Type = db.IndexFieldText
		if boost, ok := toFloat(prop["boost"]); ok {
			f.TextWeight = boost
		}
		if a, _ := prop["analyzer"].(string); noStemAnalyzers[a] {
			f.TextNoStem = true
		}
	case "integer", "long", "short", "float", "double", "date":
		f.Type = db.IndexFieldNumeric
	case "boolean":
		f.Type = db.IndexFieldTag
	default:
		return db.IndexField{}, domain.Configf("field %q: unsupported type %q", name, typ)
	}
	return f, nil
}

func jsonPath(name string) string {
	for _, c := range name {
		if c != '_' && !unicode.IsLetter(c) && !unicode.IsDigit(c) {
			return fmt.Sprintf("$[%q]", name)
		}
	}
	return "$." + name
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
