package alias

import (
	"fmt"
	"sort"

	"github.com/kailas-cloud/indexsync/internal/domain"
	"github.com/kailas-cloud/indexsync/internal/domain/search/filter"
	"github.com/kailas-cloud/indexsync/internal/domain/search/query"
)

// Bounds is a numeric range of a FilterAlias. Nil bounds are open.
type Bounds struct {
	GT  *float64 `yaml:"gt"`
	GTE *float64 `yaml:"gte"`
	LT  *float64 `yaml:"lt"`
	LTE *float64 `yaml:"lte"`
}

// FilterAlias adds fixed match and range conditions to a query. When Param
// is set the first argument is matched against that field.
type FilterAlias struct {
	Match  map[string]string
	Ranges map[string]Bounds
	Param  string
}

// Apply implements Handler.
func (f FilterAlias) Apply(q query.Query, _ string, args ...any) (query.Query, error) {
	var must []filter.Condition

	for _, key := range sortedKeys(f.Match) {
		c, err := filter.NewMatch(key, f.Match[key])
		if err != nil {
			return query.Query{}, domain.Validationf("%v", err)
		}
		must = append(must, c)
	}
	for _, key := range sortedKeys(f.Ranges) {
		b := f.Ranges[key]
		r, err := filter.NewRangeFilter(b.GT, b.GTE, b.LT, b.LTE)
		if err != nil {
			return query.Query{}, domain.Validationf("range on %q: %v", key, err)
		}
		c, err := filter.NewRange(key, r)
		if err != nil {
			return query.Query{}, domain.Validationf("%v", err)
		}
		must = append(must, c)
	}

	switch {
	case f.Param != "" && len(args) == 0:
		return query.Query{}, domain.Validationf("argument for %q is required", f.Param)
	case f.Param == "" && len(args) > 0:
		return query.Query{}, domain.Validationf("takes no arguments, got %d", len(args))
	case f.Param != "":
		c, err := filter.NewMatch(f.Param, fmt.Sprint(args[0]))
		if err != nil {
			return query.Query{}, domain.Validationf("%v", err)
		}
		must = append(must, c)
	}

	expr, err := filter.NewExpression(must, nil, nil)
	if err != nil {
		return query.Query{}, domain.Validationf("%v", err)
	}
	out, err := q.WithFilters(expr)
	if err != nil {
		return query.Query{}, domain.Validationf("%v", err)
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
