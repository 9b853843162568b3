package searchindex

import (
	"context"
	"strings"
	"time"

	"github.com/kailas-cloud/indexsync/internal/db"
)

// TypeField is the document field holding the record type.
const TypeField = "_type"

const (
	defaultRefreshInterval = 50 * time.Millisecond
	deleteChunk            = 500
)

// store is the consumer interface for the search engine (ISP).
type store interface {
	WriteMulti(ctx context.Context, ops []db.WriteOp) []error
	Del(ctx context.Context, key string) error
	DelMulti(ctx context.Context, keys []string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	AlterIndex(ctx context.Context, name string, field db.IndexField) error
	DropIndex(ctx context.Context, name string) error
	IndexInfo(ctx context.Context, name string) (*db.IndexInfo, error)
	Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error)
	SupportsTextSearch(ctx context.Context) bool
}

// Option configures a Repo.
type Option func(*Repo)

// WithRefreshInterval sets how often Refresh polls FT.INFO.
func WithRefreshInterval(d time.Duration) Option {
	return func(r *Repo) { r.refreshInterval = d }
}

// Repo stores index documents as JSON values under
// <prefix><index>:<type>:<id>, one FT index per search index.
type Repo struct {
	store           store
	prefix          string
	refreshInterval time.Duration
}

// New creates a search index repository. keyPrefix namespaces every key.
func New(s store, keyPrefix string, opts ...Option) *Repo {
	r := &Repo{store: s, prefix: keyPrefix, refreshInterval: defaultRefreshInterval}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Repo) indexPrefix(index string) string {
	return r.prefix + index + ":"
}

func (r *Repo) typePrefix(index, typ string) string {
	return r.indexPrefix(index) + typ + ":"
}

func (r *Repo) docKey(index, typ, id string) string {
	return r.typePrefix(index, typ) + id
}

// parseKey splits a document key of index into its type and id.
func (r *Repo) parseKey(index, key string) (typ, id string, ok bool) {
	rest, found := strings.CutPrefix(key, r.indexPrefix(index))
	if !found {
		return "", "", false
	}
	return strings.Cut(rest, ":")
}

// deleteKeys removes every key matching pattern in chunks.
func (r *Repo) deleteKeys(ctx context.Context, pattern string) (int64, error) {
	keys, err := r.store.Scan(ctx, pattern)
	if err != nil {
		return 0, err
	}
	var total int64
	for start := 0; start < len(keys); start += deleteChunk {
		end := min(start+deleteChunk, len(keys))
		n, err := r.store.DelMulti(ctx, keys[start:end])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
