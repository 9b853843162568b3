package alias

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/kailas-cloud/indexsync/internal/domain"
	"github.com/kailas-cloud/indexsync/internal/domain/search/query"
)

// Handler rewrites a query. boundType is the record type the search is
// bound to, empty for unbound searches.
type Handler interface {
	Apply(q query.Query, boundType string, args ...any) (query.Query, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(q query.Query, boundType string, args ...any) (query.Query, error)

// Apply calls f.
func (f HandlerFunc) Apply(q query.Query, boundType string, args ...any) (query.Query, error) {
	return f(q, boundType, args...)
}

// Alias is a named, reusable query rewrite. Models lists the record types it
// applies to; empty means every type.
type Alias struct {
	Name    string
	Models  []string
	Handler Handler
}

// AppliesTo reports whether the alias may be used for typ.
func (a Alias) AppliesTo(typ string) bool {
	return len(a.Models) == 0 || slices.Contains(a.Models, typ)
}

// Table holds aliases by their prefixed name.
type Table struct {
	prefix string

	mu      sync.RWMutex
	aliases map[string]Alias
}

// NewTable creates an alias table. A non-empty prefix is joined to every
// alias name with an underscore.
func NewTable(prefix string) *Table {
	if prefix != "" {
		prefix += "_"
	}
	return &Table{prefix: prefix, aliases: make(map[string]Alias)}
}

// Register adds an alias under the prefixed name.
func (t *Table) Register(name string, models []string, h Handler) error {
	if name == "" {
		return domain.Configf("alias name is required")
	}
	if h == nil {
		return domain.Configf("alias %q has no handler", name)
	}
	full := t.prefix + name

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.aliases[full]; ok {
		return domain.Configf("alias %q is already registered", full)
	}
	t.aliases[full] = Alias{Name: full, Models: slices.Clone(models), Handler: h}
	return nil
}

// Resolve returns the alias registered under name (prefix included).
func (t *Table) Resolve(name string) (Alias, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.aliases[name]
	if !ok {
		return Alias{}, domain.NewNotFound("search alias", name)
	}
	return a, nil
}

// Names returns the registered alias names, sorted.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.aliases))
	for name := range t.aliases {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Apply resolves name and runs its handler on q.
//
// A bound search must use an alias that applies to its type. An unbound
// search restricted to types needs an alias applying to all of them; an
// unrestricted one is narrowed to the alias models.
func (t *Table) Apply(q query.Query, name, boundType string, args ...any) (query.Query, error) {
	a, err := t.Resolve(name)
	if err != nil {
		return query.Query{}, err
	}

	switch {
	case boundType != "":
		if !a.AppliesTo(boundType) {
			return query.Query{}, domain.Validationf("alias %s is not applicable to %s (models: %v)", name, boundType, a.Models)
		}
	case len(q.Types()) > 0:
		for _, typ := range q.Types() {
			if !a.AppliesTo(typ) {
				return query.Query{}, domain.Validationf("alias %s is not applicable to %s (models: %v)", name, typ, a.Models)
			}
		}
	case len(a.Models) > 0:
		q = q.WithTypes(a.Models...)
	}

	out, err := a.Handler.Apply(q, boundType, args...)
	if err != nil {
		return query.Query{}, fmt.Errorf("alias %s: %w", name, err)
	}
	return out, nil
}
