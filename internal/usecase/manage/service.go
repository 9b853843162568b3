package manage

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/indexsync/internal/domain"
	"github.com/kailas-cloud/indexsync/internal/domain/descriptor"
	"github.com/kailas-cloud/indexsync/internal/logger"
	"github.com/kailas-cloud/indexsync/internal/usecase/indexing"
)

// SyncRequest selects what a bulk sync covers. Empty Types means the models
// of Index, or every model when Index is empty too.
type SyncRequest struct {
	Types     []string
	Index     string
	Action    indexing.Action
	BatchSize int
	MaxCount  int
	DateRange *indexing.DateRange
	Refresh   bool
}

// NewSyncRequest returns an index request with the default batch size and no cap.
func NewSyncRequest() SyncRequest {
	return SyncRequest{
		Action:    indexing.ActionIndex,
		BatchSize: indexing.DefaultBatchSize,
		MaxCount:  indexing.NoLimit,
	}
}

// Service implements the index management operations.
type Service struct {
	registry Registry
	engine   Engine
	syncer   Syncer
}

// New creates a management service.
func New(registry Registry, engine Engine, syncer Syncer) *Service {
	return &Service{registry: registry, engine: engine, syncer: syncer}
}

// Sync bulk-syncs every selected type in turn and sums the results.
func (s *Service) Sync(ctx context.Context, req SyncRequest) (indexing.Summary, error) {
	types := req.Types
	if len(types) == 0 {
		var err error
		if req.Index != "" {
			types, err = s.registry.Models(ctx, req.Index)
		} else {
			types, err = s.registry.Types(ctx)
		}
		if err != nil {
			return indexing.Summary{}, err
		}
	}

	log := logger.FromContext(ctx)
	var sum indexing.Summary
	for _, typ := range types {
		r := indexing.NewRequest(typ, req.Action)
		r.Index = req.Index
		if req.BatchSize > 0 {
			r.BatchSize = req.BatchSize
		}
		r.MaxCount = req.MaxCount
		r.DateRange = req.DateRange
		r.Refresh = req.Refresh

		log.Info("Syncing model", zap.String("type", typ), zap.String("action", string(req.Action)))
		got, err := s.syncer.Sync(ctx, r)
		sum.Total += got.Total
		sum.Written += got.Written
		sum.Skipped += got.Skipped
		sum.Batches += got.Batches
		if err != nil {
			return sum, fmt.Errorf("sync %s: %w", typ, err)
		}
	}
	return sum, nil
}

// CreateIndices creates index, or every configured index when empty, with
// the mappings of all its descriptors and their merged analysis.
func (s *Service) CreateIndices(ctx context.Context, index string) error {
	indices, err := s.indices(ctx, index)
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx)
	for _, idx := range indices {
		descs, err := s.registry.IndexDescriptors(ctx, idx)
		if err != nil {
			return err
		}
		mappings := make(map[string]any, len(descs))
		analysis := map[string]any{}
		for _, d := range descs {
			mappings[d.Type()] = d.Mapping()
			descriptor.MergeAnalysis(analysis, d.Analysis())
		}
		log.Info("Creating index", zap.String("index", idx), zap.Int("types", len(descs)))
		if err := s.engine.CreateIndex(ctx, idx, map[string]any{"mappings": mappings, "analysis": analysis}); err != nil {
			return err
		}
	}
	return nil
}

// DeleteIndices drops index, or every configured index when empty.
func (s *Service) DeleteIndices(ctx context.Context, index string, confirmed bool) error {
	if !confirmed {
		return domain.Validationf("deleting indices requires confirmation (guilty-as-charged)")
	}
	indices, err := s.indices(ctx, index)
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx)
	for _, idx := range indices {
		log.Info("Deleting index", zap.String("index", idx))
		if err := s.engine.DeleteIndex(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}

// UpdateMappings adds the current descriptor fields of types (default: all
// models of the index) to the index schemas. Across all indices, types an
// index does not hold are skipped.
func (s *Service) UpdateMappings(ctx context.Context, index string, types []string) error {
	return s.eachMapping(ctx, index, types, func(idx string, d *descriptor.Descriptor) error {
		logger.FromContext(ctx).Info("Updating mapping", zap.String("index", idx), zap.String("type", d.Type()))
		return s.engine.PutMapping(ctx, idx, d.Type(), d.Mapping())
	})
}

// DeleteMappings removes every document of types from the index.
func (s *Service) DeleteMappings(ctx context.Context, index string, types []string, confirmed bool) error {
	if !confirmed {
		return domain.Validationf("deleting mappings requires confirmation (guilty-as-charged)")
	}
	return s.eachMapping(ctx, index, types, func(idx string, d *descriptor.Descriptor) error {
		logger.FromContext(ctx).Info("Deleting mapping", zap.String("index", idx), zap.String("type", d.Type()))
		return s.engine.DeleteMapping(ctx, idx, d.Type())
	})
}

// Clear deletes and re-creates index, or every index when empty.
func (s *Service) Clear(ctx context.Context, index string, confirmed bool) error {
	if err := s.DeleteIndices(ctx, index, confirmed); err != nil {
		return err
	}
	return s.CreateIndices(ctx, index)
}

// Rebuild clears index and re-syncs its models.
func (s *Service) Rebuild(ctx context.Context, index string, confirmed bool, req SyncRequest) (indexing.Summary, error) {
	if err := s.Clear(ctx, index, confirmed); err != nil {
		return indexing.Summary{}, err
	}
	req.Index = index
	req.Action = indexing.ActionIndex
	return s.Sync(ctx, req)
}

// indices resolves index to itself, validated, or to every configured index.
func (s *Service) indices(ctx context.Context, index string) ([]string, error) {
	if index == "" {
		return s.registry.Indices(ctx)
	}
	if _, err := s.registry.IndexDescriptors(ctx, index); err != nil {
		return nil, err
	}
	return []string{index}, nil
}

func (s *Service) eachMapping(
	ctx context.Context, index string, types []string,
	fn func(index string, d *descriptor.Descriptor) error,
) error {
	indices, err := s.indices(ctx, index)
	if err != nil {
		return err
	}
	for _, idx := range indices {
		names := types
		if len(names) == 0 {
			if names, err = s.registry.Models(ctx, idx); err != nil {
				return err
			}
		}
		for _, typ := range names {
			d, err := s.registry.Descriptor(ctx, idx, typ)
			if errors.Is(err, domain.ErrNotFound) && index == "" {
				continue
			}
			if err != nil {
				return err
			}
			if err := fn(idx, d); err != nil {
				return fmt.Errorf("%s/%s: %w", idx, typ, err)
			}
		}
	}
	return nil
}
