package chi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kailas-cloud/indexsync/internal/domain"
	"github.com/kailas-cloud/indexsync/internal/domain/search/filter"
	"github.com/kailas-cloud/indexsync/internal/domain/search/mode"
	searchuc "github.com/kailas-cloud/indexsync/internal/usecase/search"
)

// Search handles POST /v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var body SearchRequest
	if err := decodeBody(r, &body); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	req, err := searchRequestFromBody(body)
	if err != nil {
		s.handleDomainError(w, r, fmt.Errorf("%w: %w", domain.ErrValidation, err))
		return
	}

	resp, err := s.search.Search(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	out := SearchResponse{Total: resp.Total, Items: make([]SearchItem, 0, len(resp.Hits))}
	if req.Raw {
		for _, h := range resp.Hits {
			out.Items = append(out.Items, rawItem(h))
		}
	} else {
		for _, res := range resp.Results {
			item := rawItem(res.Hit)
			item.Mapped = res.Mapped
			if res.Mapped {
				item.Source = nil
				item.Record = res.Record
			}
			out.Items = append(out.Items, item)
		}
	}
	out.Took = took(start)
	writeJSON(w, http.StatusOK, out)
}

func searchRequestFromBody(body SearchRequest) (searchuc.Request, error) {
	filters, err := filtersFromBody(body.Filters)
	if err != nil {
		return searchuc.Request{}, err
	}
	req := searchuc.Request{
		Indices:   body.Indices,
		Model:     body.Model,
		Types:     body.Models,
		Text:      body.Query,
		Mode:      mode.Mode(body.Mode),
		Filters:   filters,
		Offset:    body.Offset,
		Limit:     body.Limit,
		Only:      body.Only,
		OnlyModel: body.OnlyModel,
		Raw:       body.Raw,
	}
	for _, a := range body.Aliases {
		if a.Name == "" {
			return searchuc.Request{}, errors.New("alias name is required")
		}
		req.Aliases = append(req.Aliases, searchuc.AliasCall{Name: a.Name, Args: a.Args})
	}
	return req, nil
}

func filtersFromBody(f *FilterExpression) (filter.Expression, error) {
	if f == nil {
		return filter.Expression{}, nil
	}
	must, err := conditionsFromBody(f.Must)
	if err != nil {
		return filter.Expression{}, err
	}
	should, err := conditionsFromBody(f.Should)
	if err != nil {
		return filter.Expression{}, err
	}
	mustNot, err := conditionsFromBody(f.MustNot)
	if err != nil {
		return filter.Expression{}, err
	}
	expr, err := filter.NewExpression(must, should, mustNot)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("filters: %w", err)
	}
	return expr, nil
}

func conditionsFromBody(cs []FilterCondition) ([]filter.Condition, error) {
	if len(cs) == 0 {
		return nil, nil
	}
	out := make([]filter.Condition, 0, len(cs))
	for _, c := range cs {
		cond, err := conditionFromBody(c)
		if err != nil {
			return nil, err
		}
		out = append(out, cond)
	}
	return out, nil
}

func conditionFromBody(c FilterCondition) (filter.Condition, error) {
	switch {
	case c.Match != nil && c.Range != nil:
		return filter.Condition{}, fmt.Errorf("filter condition for %q must have match or range, not both", c.Key)
	case c.Match != nil:
		cond, err := filter.NewMatch(c.Key, *c.Match)
		if err != nil {
			return filter.Condition{}, fmt.Errorf("match filter: %w", err)
		}
		return cond, nil
	case c.Range != nil:
		rf, err := filter.NewRangeFilter(c.Range.GT, c.Range.GTE, c.Range.LT, c.Range.LTE)
		if err != nil {
			return filter.Condition{}, fmt.Errorf("range filter: %w", err)
		}
		cond, err := filter.NewRange(c.Key, rf)
		if err != nil {
			return filter.Condition{}, fmt.Errorf("range condition: %w", err)
		}
		return cond, nil
	default:
		return filter.Condition{}, errors.New("filter condition must have either match or range")
	}
}
