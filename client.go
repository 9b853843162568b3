// Package indexsync keeps Postgres records and a Redis/Valkey search index
// in sync. A Client wires the declared models and indices to the sync,
// management and search services.
package indexsync

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/indexsync/internal/config"
	"github.com/kailas-cloud/indexsync/internal/db"
	dbPostgres "github.com/kailas-cloud/indexsync/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/indexsync/internal/db/redis"
	"github.com/kailas-cloud/indexsync/internal/repository/record"
	"github.com/kailas-cloud/indexsync/internal/repository/searchindex"
	"github.com/kailas-cloud/indexsync/internal/schema"
	chiTransport "github.com/kailas-cloud/indexsync/internal/transport/chi"
	"github.com/kailas-cloud/indexsync/internal/transport/kafka"
	"github.com/kailas-cloud/indexsync/internal/usecase/changefeed"
	healthuc "github.com/kailas-cloud/indexsync/internal/usecase/health"
	"github.com/kailas-cloud/indexsync/internal/usecase/indexing"
	"github.com/kailas-cloud/indexsync/internal/usecase/manage"
	"github.com/kailas-cloud/indexsync/internal/usecase/mapping"
	"github.com/kailas-cloud/indexsync/internal/usecase/registry"
	searchuc "github.com/kailas-cloud/indexsync/internal/usecase/search"
	"github.com/kailas-cloud/indexsync/internal/usecase/signal"
)

// Config is the service configuration, see LoadConfig.
type Config = config.Config

// SyncRequest selects what a bulk sync covers.
type SyncRequest = manage.SyncRequest

// Summary counts the outcome of a sync.
type Summary = indexing.Summary

// Report is a health check result.
type Report = healthuc.Report

// LoadConfig reads config/<env>.yaml, applies defaults and validates it.
func LoadConfig(env string) (Config, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return Config{}, fmt.Errorf("indexsync: %w", err)
	}
	return cfg, nil
}

// NewSyncRequest returns an index request with the default batch size and no cap.
func NewSyncRequest() SyncRequest { return manage.NewSyncRequest() }

// backend is the relational store: record queries plus a health ping.
type backend interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Client is the indexsync entry point.
type Client struct {
	cfg     Config
	log     *zap.Logger
	closers []func()

	records   *record.Repo
	registry  *registry.Registry
	engine    *searchindex.Repo
	manage    *manage.Service
	searcher  *searchuc.Service
	processor signal.Processor
	feed      *changefeed.Service
	health    *healthuc.Service
}

// New connects to the search engine and Postgres and wires every service.
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	cc := &clientConfig{}
	for _, o := range opts {
		o(cc)
	}
	if cc.logger == nil {
		cc.logger = zap.NewNop()
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:      cfg.Database.Addrs,
		Password:   cfg.Database.Password,
		TextSearch: cfg.Database.Driver == "redis",
	})
	if err != nil {
		return nil, fmt.Errorf("indexsync: create %s store: %w", cfg.Database.Driver, err)
	}
	pg, err := dbPostgres.New(ctx, dbPostgres.Config{DSN: cfg.Postgres.DSN, MaxConns: cfg.Postgres.MaxConns})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("indexsync: %w", err)
	}
	closeAll := func() {
		pg.Close()
		store.Close()
	}

	if !cc.noWait {
		if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			closeAll()
			return nil, fmt.Errorf("indexsync: search engine not ready: %w", err)
		}
		if err := pg.WaitForReady(ctx, time.Duration(cfg.Postgres.ReadinessTimeout)*time.Second); err != nil {
			closeAll()
			return nil, fmt.Errorf("indexsync: %w", err)
		}
	}

	c, err := wire(ctx, cfg, store, pg, cc)
	if err != nil {
		closeAll()
		return nil, err
	}
	c.closers = append(c.closers, closeAll)
	return c, nil
}

func wire(ctx context.Context, cfg Config, store db.Store, pg backend, cc *clientConfig) (*Client, error) {
	log := cc.logger
	records := record.New(pg)

	catalog, err := schema.Catalog(cfg.Models)
	if err != nil {
		return nil, fmt.Errorf("indexsync: %w", err)
	}
	if cfg.Search.Introspect {
		if err := schema.Introspect(ctx, catalog, records); err != nil {
			return nil, fmt.Errorf("indexsync: %w", err)
		}
	}
	regOpts, err := schema.Registry(cfg.Indices)
	if err != nil {
		return nil, fmt.Errorf("indexsync: %w", err)
	}
	reg := registry.New(catalog, log, regOpts...)
	if err := reg.Load(ctx); err != nil {
		return nil, fmt.Errorf("indexsync: load registry: %w", err)
	}
	aliases, err := schema.Aliases(cfg.Search.AliasPrefix, cfg.Aliases)
	if err != nil {
		return nil, fmt.Errorf("indexsync: %w", err)
	}

	engine := searchindex.New(store, cfg.Search.KeyPrefix)
	indexer := indexing.New(records, engine, reg)

	kind := cfg.Search.SignalProcessor
	if cc.processor != "" {
		kind = cc.processor
	}
	processor, err := signal.New(kind, signal.Deps{
		Registry:   reg,
		Syncer:     indexer,
		Deleter:    engine,
		Logger:     log,
		BufferSize: cfg.Search.BufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("indexsync: %w", err)
	}
	types, err := reg.Types(ctx)
	if err != nil {
		return nil, fmt.Errorf("indexsync: %w", err)
	}
	for _, typ := range types {
		processor.Setup(typ)
	}

	return &Client{
		cfg:       cfg,
		log:       log,
		records:   records,
		registry:  reg,
		engine:    engine,
		manage:    manage.New(reg, engine, indexer),
		searcher:  searchuc.New(engine, mapping.New(records, reg), aliases, reg),
		processor: processor,
		feed:      changefeed.New(catalog, records, processor),
		health:    healthuc.New(store, pg),
	}, nil
}

// Close flushes pending signals and releases all connections.
func (c *Client) Close(ctx context.Context) error {
	err := c.Flush(ctx)
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	return err
}

// Health pings the search engine and Postgres.
func (c *Client) Health(ctx context.Context) Report {
	return c.health.Check(ctx)
}

// Sync bulk-syncs the records selected by req.
func (c *Client) Sync(ctx context.Context, req SyncRequest) (Summary, error) {
	return c.manage.Sync(ctx, req)
}

// CreateIndices creates index, or every declared index when empty.
func (c *Client) CreateIndices(ctx context.Context, index string) error {
	return c.manage.CreateIndices(ctx, index)
}

// DeleteIndices drops index, or every declared index when empty.
func (c *Client) DeleteIndices(ctx context.Context, index string, confirmed bool) error {
	return c.manage.DeleteIndices(ctx, index, confirmed)
}

// UpdateMappings adds the current descriptor fields of types to the index schemas.
func (c *Client) UpdateMappings(ctx context.Context, index string, types []string) error {
	return c.manage.UpdateMappings(ctx, index, types)
}

// DeleteMappings removes every document of types from the index.
func (c *Client) DeleteMappings(ctx context.Context, index string, types []string, confirmed bool) error {
	return c.manage.DeleteMappings(ctx, index, types, confirmed)
}

// Clear deletes and re-creates index.
func (c *Client) Clear(ctx context.Context, index string, confirmed bool) error {
	return c.manage.Clear(ctx, index, confirmed)
}

// Rebuild clears index and re-syncs its models.
func (c *Client) Rebuild(ctx context.Context, index string, confirmed bool, req SyncRequest) (Summary, error) {
	return c.manage.Rebuild(ctx, index, confirmed, req)
}

// OnSave signals that record of typ was created or updated.
func (c *Client) OnSave(ctx context.Context, typ string, rec any) error {
	return c.processor.OnSave(ctx, typ, rec)
}

// OnDelete signals that record of typ was deleted.
func (c *Client) OnDelete(ctx context.Context, typ string, rec any) error {
	return c.processor.OnDelete(ctx, typ, rec)
}

// Flush writes buffered signals. No-op for processors without a buffer.
func (c *Client) Flush(ctx context.Context) error {
	if f, ok := c.processor.(signal.Flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}

// Document previews the document the default descriptor of typ builds for
// the record with the given id.
func (c *Client) Document(ctx context.Context, typ string, id any) (map[string]any, error) {
	d, err := c.registry.ModelIndex(ctx, typ)
	if err != nil {
		return nil, err
	}
	if s, ok := id.(string); ok {
		if id, err = d.Model().ParseID(s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	return d.SerializeByID(ctx, c.records, id)
}

// Search starts a search session.
func (c *Client) Search() *Session {
	return &Session{svc: c.searcher}
}

// Handler returns the admin HTTP API.
func (c *Client) Handler() http.Handler {
	srv := chiTransport.NewServer(c.manage, c.searcher, c.health, c.log)
	return chiTransport.NewRouter(srv, c.cfg.Auth.APIKeys)
}

// ChangeFeed returns a consumer of the configured change topic, or nil when
// no brokers are configured.
func (c *Client) ChangeFeed() *kafka.Consumer {
	k := c.cfg.Kafka
	if !k.Enabled() {
		return nil
	}
	return kafka.NewConsumer(c.feedConfig(), c.feed.Handle, c.log)
}

// feedConfig holds offsets back until a buffering processor has flushed.
func (c *Client) feedConfig() kafka.Config {
	k := c.cfg.Kafka
	kc := kafka.Config{
		Brokers: k.Brokers,
		Topic:   k.Topic,
		GroupID: k.GroupID,
	}
	if f, ok := c.processor.(signal.Flusher); ok {
		kc.Flusher = f
		kc.FlushEvery = c.cfg.Search.BufferSize
		kc.FlushInterval = time.Duration(k.FlushIntervalSec) * time.Second
	}
	return kc
}
