// Package schema turns the declarative configuration into record models,
// registry sources and search aliases.
package schema

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/indexsync/internal/config"
	"github.com/kailas-cloud/indexsync/internal/domain"
	"github.com/kailas-cloud/indexsync/internal/domain/descriptor"
	"github.com/kailas-cloud/indexsync/internal/domain/expr"
	"github.com/kailas-cloud/indexsync/internal/domain/field"
	"github.com/kailas-cloud/indexsync/internal/domain/model"
	"github.com/kailas-cloud/indexsync/internal/logger"
	"github.com/kailas-cloud/indexsync/internal/usecase/alias"
	"github.com/kailas-cloud/indexsync/internal/usecase/registry"
)

// Introspector reads a model's columns from storage.
type Introspector interface {
	Introspect(ctx context.Context, m *model.Model) (*model.Model, error)
}

// Catalog builds dynamic models from declarations.
func Catalog(decls []config.ModelConfig) (*model.Catalog, error) {
	models := make([]*model.Model, 0, len(decls))
	for _, d := range decls {
		cols := make([]model.Column, 0, len(d.Columns))
		for _, c := range d.Columns {
			cols = append(cols, model.Column{
				Name:       c.Name,
				Type:       c.Type,
				Relation:   c.Relation,
				Default:    c.Default,
				HasDefault: c.Default != nil,
			})
		}
		m, err := model.Dynamic(d.Name, d.Table, d.IDColumn, cols)
		if err != nil {
			return nil, domain.Configf("model %s: %v", d.Name, err)
		}
		models = append(models, m)
	}
	return model.NewCatalog(models...)
}

// Introspect refreshes every model of c from storage.
func Introspect(ctx context.Context, c *model.Catalog, in Introspector) error {
	log := logger.FromContext(ctx)
	for _, name := range c.Names() {
		m, err := c.Get(name)
		if err != nil {
			return err
		}
		refined, err := in.Introspect(ctx, m)
		if err != nil {
			return fmt.Errorf("introspect %s: %w", name, err)
		}
		c.Replace(refined)
		log.Debug("Introspected model", zap.String("model", name), zap.Int("columns", len(refined.Columns())))
	}
	return nil
}

// Registry declares one source per configured index, named after it.
func Registry(indices map[string][]config.DescriptorConfig) ([]registry.Option, error) {
	names := make([]string, 0, len(indices))
	for name := range indices {
		names = append(names, name)
	}
	sort.Strings(names)

	opts := make([]registry.Option, 0, 2*len(names))
	for _, index := range names {
		defs := make([]descriptor.Definition, 0, len(indices[index]))
		for i, d := range indices[index] {
			def, err := Definition(d)
			if err != nil {
				return nil, fmt.Errorf("indices.%s[%d]: %w", index, i, err)
			}
			defs = append(defs, def)
		}
		opts = append(opts,
			registry.WithSource(index, func() []descriptor.Definition { return defs }),
			registry.WithIndex(index, index),
		)
	}
	return opts, nil
}

// Definition builds a descriptor definition from its declaration.
func Definition(d config.DescriptorConfig) (descriptor.Definition, error) {
	def := descriptor.Definition{
		Meta: &descriptor.Meta{
			Model:            d.Model,
			Fields:           d.Fields,
			Exclude:          d.Exclude,
			Hotfixes:         d.Hotfixes,
			AdditionalFields: d.AdditionalFields,
			IDField:          d.IDField,
			UpdatedField:     d.UpdatedField,
			Default:          d.Default,
			OptimizeQueries:  d.OptimizeQueries,
		},
	}

	if len(d.Explicit) > 0 {
		def.Fields = make(map[string]*field.Field, len(d.Explicit))
		for name, fc := range d.Explicit {
			f, err := Field(fc)
			if err != nil {
				return descriptor.Definition{}, fmt.Errorf("field %s: %w", name, err)
			}
			def.Fields[name] = f
		}
	}

	if d.Condition != "" {
		p, err := expr.Compile(d.Condition)
		if err != nil {
			return descriptor.Definition{}, domain.Configf("condition %q: %v", d.Condition, err)
		}
		def.Condition = func(record any) bool {
			v, err := p.EvalRecord(record)
			if err != nil {
				return false
			}
			b, ok := v.(bool)
			return ok && b
		}
	}
	return def, nil
}

// Field builds an explicit field.
func Field(fc config.FieldConfig) (*field.Field, error) {
	attrs := make(map[string]any, len(fc.Attrs)+1)
	for k, v := range fc.Attrs {
		attrs[k] = v
	}
	if a := fc.Analyzer; a != nil {
		if a.Name == "" {
			return nil, domain.Configf("analyzer needs a name")
		}
		attrs["analyzer"] = &field.Analyzer{
			Name:        a.Name,
			Type:        a.Type,
			Tokenizer:   a.Tokenizer,
			Filters:     a.Filters,
			CharFilters: a.CharFilters,
			FilterDefs:  a.FilterDefs,
		}
	}

	typ := fc.Type
	if typ == "" {
		typ = string(field.StringType)
	}
	return field.New(field.Core(typ), attrs)
}

// Aliases builds the alias table of filter aliases.
func Aliases(prefix string, decls map[string]config.AliasConfig) (*alias.Table, error) {
	t := alias.NewTable(prefix)
	names := make([]string, 0, len(decls))
	for name := range decls {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		d := decls[name]
		h := alias.FilterAlias{Match: d.Match, Param: d.Param}
		if len(d.Ranges) > 0 {
			h.Ranges = make(map[string]alias.Bounds, len(d.Ranges))
			for key, r := range d.Ranges {
				h.Ranges[key] = alias.Bounds{GT: r.GT, GTE: r.GTE, LT: r.LT, LTE: r.LTE}
			}
		}
		if err := t.Register(name, d.Models, h); err != nil {
			return nil, err
		}
	}
	return t, nil
}
