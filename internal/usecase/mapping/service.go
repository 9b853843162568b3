package mapping

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/kailas-cloud/indexsync/internal/domain"
	"github.com/kailas-cloud/indexsync/internal/domain/descriptor"
	"github.com/kailas-cloud/indexsync/internal/domain/model"
	"github.com/kailas-cloud/indexsync/internal/domain/search/hit"
	"github.com/kailas-cloud/indexsync/internal/logger"
	"github.com/kailas-cloud/indexsync/internal/metrics"
)

// Options restricts the columns fetched for each record.
type Options struct {
	// Only lists the columns to fetch; the id column is always added.
	Only []string
	// OnlyModel fetches just the descriptor's fields to fetch.
	OnlyModel bool
}

// Result is one rehydrated hit. Unmapped hits keep Mapped false; a mapped
// hit whose record no longer exists has a nil Record.
type Result struct {
	Hit    hit.Hit
	Record any
	Meta   hit.Meta
	Mapped bool
}

// Service turns search hits back into records.
type Service struct {
	storage  Storage
	registry Registry
}

// New creates a result mapper.
func New(storage Storage, registry Registry) *Service {
	return &Service{storage: storage, registry: registry}
}

type group struct {
	desc  *descriptor.Descriptor
	ids   []any
	slots map[string][]int
}

// Map rehydrates hits in order. Hits of the same (index, type) are fetched
// with a single storage query.
func (s *Service) Map(ctx context.Context, hits []hit.Hit, opts Options) ([]Result, error) {
	out := make([]Result, len(hits))
	groups := make(map[[2]string]*group)
	var order [][2]string
	log := logger.FromContext(ctx)

	for i, h := range hits {
		out[i] = Result{Hit: h, Meta: hit.Meta{Index: h.Index, Type: h.Type, ID: h.ID, Score: h.Score}}
		key := [2]string{h.Index, h.Type}
		g, ok := groups[key]
		if !ok {
			d, err := s.registry.Descriptor(ctx, h.Index, h.Type)
			if err != nil {
				if !errors.Is(err, domain.ErrNotFound) {
					return nil, fmt.Errorf("resolve %s/%s: %w", h.Index, h.Type, err)
				}
				log.Warn("Unmapped search hit returned raw",
					zap.String("index", h.Index),
					zap.String("type", h.Type),
					zap.String("id", h.ID),
				)
				metrics.MapperUnmappedHitsTotal.Inc()
				groups[key] = nil
				continue
			}
			g = &group{desc: d, slots: make(map[string][]int)}
			groups[key] = g
			order = append(order, key)
		} else if g == nil {
			metrics.MapperUnmappedHitsTotal.Inc()
			continue
		}

		out[i].Mapped = true
		id, err := parseID(g.desc, h.ID)
		if err != nil {
			return nil, domain.Validationf("hit %s/%s/%s: %v", h.Index, h.Type, h.ID, err)
		}
		if _, seen := g.slots[h.ID]; !seen {
			g.ids = append(g.ids, id)
		}
		g.slots[h.ID] = append(g.slots[h.ID], i)
	}

	for _, key := range order {
		g := groups[key]
		if err := s.fetch(ctx, g, opts, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Service) fetch(ctx context.Context, g *group, opts Options, out []Result) error {
	m := g.desc.Model()
	column := g.desc.IDField()

	var fields []string
	switch {
	case opts.OnlyModel || g.desc.OptimizeQueries():
		fields = descriptor.FetchColumns(m, append(g.desc.FieldsToFetch(), column))
	case len(opts.Only) > 0:
		fields = descriptor.FetchColumns(m, append(slices.Clone(opts.Only), column))
	}

	records, err := s.storage.FetchByIDs(ctx, m, column, g.ids, fields)
	if err != nil {
		return fmt.Errorf("fetch %s records: %w", m.Name(), err)
	}

	for _, rec := range records {
		v, err := model.Attr(rec, column)
		if err != nil {
			return fmt.Errorf("read %s.%s: %w", m.Name(), column, err)
		}
		for _, i := range g.slots[model.FormatID(v)] {
			out[i].Record = rec
			if ms, ok := rec.(hit.MetaSetter); ok {
				ms.SetSearchMeta(out[i].Meta)
			}
		}
	}
	return nil
}

// parseID converts a hit id to the id column's type. Ids keyed by another
// column stay textual.
func parseID(d *descriptor.Descriptor, s string) (any, error) {
	m := d.Model()
	if d.IDField() != m.IDColumn() {
		return s, nil
	}
	return m.ParseID(s)
}

// Records returns the records of results, nil entries included.
func Records(results []Result) []any {
	out := make([]any, len(results))
	for i, r := range results {
		out[i] = r.Record
	}
	return out
}
