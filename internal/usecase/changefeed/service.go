package changefeed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/indexsync/internal/domain"
	"github.com/kailas-cloud/indexsync/internal/logger"
)

// Event operations.
const (
	OpSave   = "save"
	OpDelete = "delete"
)

// Event is one record change: {"type": "Article", "op": "save", "id": 42}.
type Event struct {
	Type string `json:"type"`
	Op   string `json:"op"`
	ID   any    `json:"id"`
}

// Service turns change events into processor signals.
type Service struct {
	catalog   Catalog
	storage   Storage
	processor Processor
}

// New creates a change feed service.
func New(catalog Catalog, storage Storage, processor Processor) *Service {
	return &Service{catalog: catalog, storage: storage, processor: processor}
}

// Handle decodes a JSON event and applies it. Malformed events are
// validation errors.
func (s *Service) Handle(ctx context.Context, _, value []byte) error {
	dec := json.NewDecoder(bytes.NewReader(value))
	dec.UseNumber()
	var ev Event
	if err := dec.Decode(&ev); err != nil {
		return domain.Validationf("decode change event: %v", err)
	}
	return s.Apply(ctx, ev)
}

// Apply signals one event. A saved record that no longer exists is skipped;
// deletes carry only the record id.
func (s *Service) Apply(ctx context.Context, ev Event) error {
	if ev.Type == "" || ev.ID == nil {
		return domain.Validationf("change event needs a type and an id")
	}
	m, err := s.catalog.Get(ev.Type)
	if err != nil {
		return domain.Validationf("change event for unknown type %q", ev.Type)
	}
	id, err := m.ParseID(fmt.Sprint(ev.ID))
	if err != nil {
		return domain.Validationf("change event %s: %v", ev.Type, err)
	}

	switch ev.Op {
	case OpSave:
		rec, err := s.storage.Get(ctx, m, m.IDColumn(), id, nil)
		if errors.Is(err, domain.ErrNotFound) {
			logger.FromContext(ctx).Warn("Saved record no longer exists, skipping",
				zap.String("type", ev.Type),
				zap.Any("id", id),
			)
			return nil
		}
		if err != nil {
			return fmt.Errorf("load %s %v: %w", ev.Type, id, err)
		}
		return s.processor.OnSave(ctx, ev.Type, rec)
	case OpDelete:
		rec, err := m.Skeleton(id)
		if err != nil {
			return domain.Validationf("change event %s: %v", ev.Type, err)
		}
		return s.processor.OnDelete(ctx, ev.Type, rec)
	}
	return domain.Validationf("unknown change event op %q", ev.Op)
}
