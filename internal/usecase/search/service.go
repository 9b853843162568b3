package search

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/indexsync/internal/domain"
	"github.com/kailas-cloud/indexsync/internal/domain/search/filter"
	"github.com/kailas-cloud/indexsync/internal/domain/search/hit"
	"github.com/kailas-cloud/indexsync/internal/domain/search/mode"
	"github.com/kailas-cloud/indexsync/internal/domain/search/query"
	"github.com/kailas-cloud/indexsync/internal/usecase/mapping"
)

// AliasCall is one alias application with its arguments.
type AliasCall struct {
	Name string
	Args []any
}

// Request describes a search. Model binds the search to one record type:
// the query is restricted to it and aliases must apply to it.
type Request struct {
	Indices   []string // empty means every declared index
	Model     string
	Types     []string
	Text      string
	Mode      mode.Mode
	Filters   filter.Expression
	Aliases   []AliasCall
	Offset    int
	Limit     int
	Only      []string
	OnlyModel bool
	Raw       bool
}

// Response holds the engine hits and, unless the request was raw, the
// rehydrated results in hit order.
type Response struct {
	Total   int
	Hits    []hit.Hit
	Results []mapping.Result
}

// Service runs searches and maps their hits back to records.
type Service struct {
	engine   Engine
	mapper   Mapper
	aliases  Aliases
	registry Registry
}

// New creates a search service. aliases may be nil when none are declared.
func New(engine Engine, mapper Mapper, aliases Aliases, registry Registry) *Service {
	return &Service{engine: engine, mapper: mapper, aliases: aliases, registry: registry}
}

// Search builds the query, applies aliases in order, executes it and maps the hits.
func (s *Service) Search(ctx context.Context, req Request) (Response, error) {
	q, err := s.Query(ctx, req)
	if err != nil {
		return Response{}, err
	}

	page, err := s.engine.Execute(ctx, q)
	if err != nil {
		return Response{}, fmt.Errorf("execute search: %w", err)
	}
	resp := Response{Total: page.Total, Hits: page.Hits}
	if req.Raw {
		return resp, nil
	}

	resp.Results, err = s.mapper.Map(ctx, page.Hits, mapping.Options{Only: req.Only, OnlyModel: req.OnlyModel})
	if err != nil {
		return Response{}, fmt.Errorf("map hits: %w", err)
	}
	return resp, nil
}

// Query validates req and returns the engine query it describes.
func (s *Service) Query(ctx context.Context, req Request) (query.Query, error) {
	indices := req.Indices
	if len(indices) == 0 {
		all, err := s.registry.Indices(ctx)
		if err != nil {
			return query.Query{}, fmt.Errorf("list indices: %w", err)
		}
		indices = all
	}
	types := req.Types
	if req.Model != "" {
		types = []string{req.Model}
	}

	q, err := query.New(req.Text, req.Mode, indices, types, req.Filters, req.Offset, req.Limit)
	if err != nil {
		return query.Query{}, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	if len(req.Aliases) > 0 && s.aliases == nil {
		return query.Query{}, domain.NewNotFound("search alias", req.Aliases[0].Name)
	}
	for _, call := range req.Aliases {
		if q, err = s.aliases.Apply(q, call.Name, req.Model, call.Args...); err != nil {
			return query.Query{}, err
		}
	}
	return q, nil
}
