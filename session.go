package indexsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/indexsync/internal/domain/search/filter"
	"github.com/kailas-cloud/indexsync/internal/domain/search/hit"
	"github.com/kailas-cloud/indexsync/internal/domain/search/mode"
	"github.com/kailas-cloud/indexsync/internal/usecase/mapping"
	searchuc "github.com/kailas-cloud/indexsync/internal/usecase/search"
)

// Query modes.
const (
	ModeMatch  = mode.Match
	ModeSyntax = mode.Syntax
	ModeAll    = mode.All
)

// Hit is one engine hit: index, type, id, score and the stored document.
type Hit = hit.Hit

// Result pairs a hit with its rehydrated record (nil when the record is gone).
type Result = mapping.Result

// Results is the outcome of a search session.
type Results struct {
	Total int
	Hits  []Hit
	// Results is empty for raw sessions.
	Results []Result
}

// Records returns the rehydrated records in hit order, nil entries included.
func (r Results) Records() []any { return mapping.Records(r.Results) }

type searcher interface {
	Search(ctx context.Context, req searchuc.Request) (searchuc.Response, error)
}

// Session is a fluent search builder. Errors from the builder methods are
// collected and returned by Execute.
type Session struct {
	svc  searcher
	req  searchuc.Request
	must []filter.Condition
	errs []error
}

// Index restricts the search to the given indices. Default: all.
func (s *Session) Index(names ...string) *Session {
	s.req.Indices = append(s.req.Indices, names...)
	return s
}

// Types restricts the search to the given record types.
func (s *Session) Types(types ...string) *Session {
	s.req.Types = append(s.req.Types, types...)
	return s
}

// Model binds the session to one record type; aliases must apply to it.
func (s *Session) Model(typ string) *Session {
	s.req.Model = typ
	return s
}

// Query sets the query text. The mode defaults to ModeMatch, or ModeAll
// for empty text.
func (s *Session) Query(text string, m ...mode.Mode) *Session {
	s.req.Text = text
	if len(m) > 0 {
		s.req.Mode = m[0]
	}
	return s
}

// Where adds an exact match on field.
func (s *Session) Where(field, value string) *Session {
	c, err := filter.NewMatch(field, value)
	return s.addCondition(c, err)
}

// Between adds an inclusive numeric range on field.
func (s *Session) Between(field string, low, high float64) *Session {
	r, err := filter.NewRangeFilter(nil, &low, nil, &high)
	if err != nil {
		return s.fail(err)
	}
	c, err := filter.NewRange(field, r)
	return s.addCondition(c, err)
}

// BetweenDates adds an inclusive date range on field. Zero times are open bounds.
func (s *Session) BetweenDates(field string, from, to time.Time) *Session {
	var lo, hi *time.Time
	if !from.IsZero() {
		lo = &from
	}
	if !to.IsZero() {
		hi = &to
	}
	c, err := filter.NewDateRange(field, lo, hi)
	return s.addCondition(c, err)
}

// Offset skips the first n hits.
func (s *Session) Offset(n int) *Session {
	s.req.Offset = n
	return s
}

// Limit caps the number of hits.
func (s *Session) Limit(n int) *Session {
	s.req.Limit = n
	return s
}

// Only restricts rehydrated records to the given columns.
func (s *Session) Only(fields ...string) *Session {
	s.req.Only = append(s.req.Only, fields...)
	return s
}

// OnlyModel fetches exactly the columns each descriptor indexes.
func (s *Session) OnlyModel() *Session {
	s.req.OnlyModel = true
	return s
}

// Raw skips rehydration: Execute returns engine hits only.
func (s *Session) Raw() *Session {
	s.req.Raw = true
	return s
}

// ApplyAlias applies the named alias with args when the session executes.
func (s *Session) ApplyAlias(name string, args ...any) *Session {
	s.req.Aliases = append(s.req.Aliases, searchuc.AliasCall{Name: name, Args: args})
	return s
}

// Execute runs the search.
func (s *Session) Execute(ctx context.Context) (Results, error) {
	req, err := s.request()
	if err != nil {
		return Results{}, err
	}
	resp, err := s.svc.Search(ctx, req)
	if err != nil {
		return Results{}, err
	}
	return Results{Total: resp.Total, Hits: resp.Hits, Results: resp.Results}, nil
}

func (s *Session) request() (searchuc.Request, error) {
	if len(s.errs) > 0 {
		return searchuc.Request{}, fmt.Errorf("%w: %w", ErrValidation, errors.Join(s.errs...))
	}
	req := s.req
	if len(s.must) > 0 {
		expr, err := filter.NewExpression(s.must, nil, nil)
		if err != nil {
			return searchuc.Request{}, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		req.Filters = expr
	}
	return req, nil
}

func (s *Session) addCondition(c filter.Condition, err error) *Session {
	if err != nil {
		return s.fail(err)
	}
	s.must = append(s.must, c)
	return s
}

func (s *Session) fail(err error) *Session {
	s.errs = append(s.errs, err)
	return s
}
