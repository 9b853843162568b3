package model

import (
	"reflect"
	"sort"
	"sync"

	"github.com/kailas-cloud/indexsync/internal/domain"
)

// Catalog holds the known record types by name and by Go type.
type Catalog struct {
	mu     sync.RWMutex
	byName map[string]*Model
	byType map[reflect.Type]*Model
}

// NewCatalog creates a catalog from models. Duplicate names are a configuration error.
func NewCatalog(models ...*Model) (*Catalog, error) {
	c := &Catalog{
		byName: make(map[string]*Model, len(models)),
		byType: make(map[reflect.Type]*Model, len(models)),
	}
	for _, m := range models {
		if err := c.Add(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add registers m.
func (c *Catalog) Add(m *Model) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.byName[m.Name()]; dup {
		return domain.Configf("model %q registered twice", m.Name())
	}
	c.put(m)
	return nil
}

// Replace swaps the registration of m.Name(), used after column introspection.
func (c *Catalog) Replace(m *Model) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(m)
}

func (c *Catalog) put(m *Model) {
	c.byName[m.Name()] = m
	if m.Type() != nil {
		c.byType[m.Type()] = m
	}
}

// Get returns the model registered under name.
func (c *Catalog) Get(name string) (*Model, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.byName[name]
	if !ok {
		return nil, domain.NewNotFound("model", name)
	}
	return m, nil
}

// Lookup finds the model of a typed record. Dynamic rows are not resolvable by type.
func (c *Catalog) Lookup(record any) (*Model, bool) {
	t := reflect.TypeOf(record)
	if t == nil {
		return nil, false
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.byType[t]
	return m, ok
}

// Names returns registered model names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.byName))
	for name := range c.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
