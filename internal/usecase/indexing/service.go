package indexing

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/indexsync/internal/domain"
	"github.com/kailas-cloud/indexsync/internal/domain/descriptor"
	"github.com/kailas-cloud/indexsync/internal/domain/document"
	"github.com/kailas-cloud/indexsync/internal/domain/model"
	"github.com/kailas-cloud/indexsync/internal/logger"
	"github.com/kailas-cloud/indexsync/internal/metrics"
)

// Action is what a sync does to the documents of its records.
type Action string

// Sync actions.
const (
	ActionIndex  Action = "index"
	ActionDelete Action = "delete"
)

const (
	// NoLimit disables the MaxCount cap.
	NoLimit = -1
	// DefaultBatchSize is the number of documents per bulk write.
	DefaultBatchSize = 100
)

// DateRange bounds the updated field of indexed records. Nil ends are open;
// set ends are inclusive.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// Request describes one sync. Input is taken from Records, else IDs, else
// Query; an index request with none of them syncs every record of Type.
// An empty Index means every index of Type. MaxCount caps the number of
// items; NoLimit syncs everything.
type Request struct {
	Type   string
	Action Action
	Index  string

	Records []any
	IDs     []any
	Query   *model.Query

	BatchSize int
	MaxCount  int
	DateRange *DateRange
	Refresh   bool
}

// NewRequest returns a request with the default batch size and no cap.
func NewRequest(typ string, action Action) Request {
	return Request{Type: typ, Action: action, BatchSize: DefaultBatchSize, MaxCount: NoLimit}
}

// Summary reports what one sync did, summed over indices.
type Summary struct {
	Total   int
	Written int
	Skipped int
	Batches int
}

// Service pushes records to the search index in fixed-size batches.
type Service struct {
	storage  Storage
	engine   Engine
	registry Registry
}

// New creates an indexing service.
func New(storage Storage, engine Engine, registry Registry) *Service {
	return &Service{storage: storage, engine: engine, registry: registry}
}

type target struct {
	index string
	desc  *descriptor.Descriptor
}

// Sync writes the request's records (or delete markers) to every index
// of the record type. Requests are validated before any I/O; a failed
// batch aborts the remaining ones.
func (s *Service) Sync(ctx context.Context, req Request) (Summary, error) {
	if err := validate(req); err != nil {
		return Summary{}, err
	}
	indices, err := s.registry.GetIndex(ctx, req.Type)
	if err != nil {
		return Summary{}, err
	}
	if req.Index != "" {
		if !slices.Contains(indices, req.Index) {
			return Summary{}, domain.Validationf("%s is not indexed in %s", req.Type, req.Index)
		}
		indices = []string{req.Index}
	}

	targets := make([]target, 0, len(indices))
	for _, index := range indices {
		d, err := s.registry.Descriptor(ctx, index, req.Type)
		if err != nil {
			return Summary{}, err
		}
		if req.DateRange != nil && d.UpdatedField() == "" {
			return Summary{}, domain.Validationf(
				"cannot filter %s by date on index %s: no updated_field configured", req.Type, index)
		}
		targets = append(targets, target{index: index, desc: d})
	}

	var sum Summary
	for _, t := range targets {
		got, err := s.syncIndex(ctx, t, req)
		sum.Total += got.Total
		sum.Written += got.Written
		sum.Skipped += got.Skipped
		sum.Batches += got.Batches
		if err != nil {
			return sum, err
		}
		if req.Refresh {
			if err := s.engine.Refresh(ctx, t.index); err != nil {
				return sum, fmt.Errorf("refresh %s: %w", t.index, err)
			}
		}
	}
	return sum, nil
}

func validate(req Request) error {
	switch req.Action {
	case ActionIndex:
	case ActionDelete:
		if req.Query != nil || (req.Records == nil && req.IDs == nil) {
			return domain.Validationf("delete of %s requires an explicit list of records or ids, not a query", req.Type)
		}
	default:
		return domain.Validationf("unknown sync action %q", req.Action)
	}
	if req.Type == "" {
		return domain.Validationf("record type is required")
	}
	if req.BatchSize <= 0 {
		return domain.Validationf("batch size must be positive, got %d", req.BatchSize)
	}
	if req.MaxCount < NoLimit {
		return domain.Validationf("max count must be %d or non-negative, got %d", NoLimit, req.MaxCount)
	}
	return nil
}

// source yields the records or ids of [offset, offset+limit).
type source struct {
	count int
	page  func(ctx context.Context, offset, limit int) ([]any, error)
	ids   bool
}

func (s *Service) source(ctx context.Context, t target, req Request) (source, error) {
	switch {
	case req.Records != nil:
		recs := req.Records
		if req.DateRange != nil {
			var err error
			if recs, err = filterByDate(recs, t.desc.UpdatedField(), req.DateRange); err != nil {
				return source{}, err
			}
		}
		return source{count: len(recs), page: slicePage(recs)}, nil

	case req.IDs != nil:
		return source{count: len(req.IDs), page: slicePage(req.IDs), ids: true}, nil
	}

	q := model.All(t.desc.Model())
	if req.Query != nil {
		q = *req.Query
		q.Model = t.desc.Model()
	}
	if req.DateRange != nil {
		q = q.Between(t.desc.UpdatedField(), req.DateRange.From, req.DateRange.To)
	}
	logger.FromContext(ctx).Info("Fetching number of documents to be added",
		zap.String("type", req.Type), zap.String("index", t.index))
	n, err := s.storage.Count(ctx, q)
	if err != nil {
		return source{}, fmt.Errorf("count %s: %w", req.Type, err)
	}
	return source{
		count: n,
		page: func(ctx context.Context, offset, limit int) ([]any, error) {
			return s.storage.Filter(ctx, q.Page(offset, limit))
		},
	}, nil
}

func slicePage(items []any) func(context.Context, int, int) ([]any, error) {
	return func(_ context.Context, offset, limit int) ([]any, error) {
		end := min(offset+limit, len(items))
		return items[offset:end], nil
	}
}

func (s *Service) syncIndex(ctx context.Context, t target, req Request) (Summary, error) {
	log := logger.FromContext(ctx).With(zap.String("index", t.index), zap.String("type", req.Type))

	src, err := s.source(ctx, t, req)
	if err != nil {
		return Summary{}, err
	}
	total := src.count
	if req.MaxCount >= 0 && req.MaxCount < total {
		log.Warn(fmt.Sprintf("Limiting the number of items to be indexed to %d", req.MaxCount))
		total = req.MaxCount
	}
	log.Info(fmt.Sprintf("Indexing %d documents", total))

	sum := Summary{Total: total}
	for offset := 0; offset < total; offset += req.BatchSize {
		end := min(offset+req.BatchSize, total)
		log.Info(fmt.Sprintf("Indexing documents %d to %d of %d total", offset, end, total))

		chunk, err := src.page(ctx, offset, end-offset)
		if err != nil {
			return sum, fmt.Errorf("fetch %s [%d:%d]: %w", req.Type, offset, end, err)
		}
		if src.ids && req.Action == ActionIndex {
			if chunk, err = s.fetchByIDs(ctx, t.desc, chunk, req.DateRange); err != nil {
				return sum, err
			}
		}

		items, skipped, err := buildItems(t.desc, req.Action, chunk, src.ids)
		if err != nil {
			return sum, err
		}
		sum.Skipped += skipped
		if len(items) == 0 {
			continue
		}

		start := time.Now()
		_, err = s.engine.BulkWrite(ctx, t.index, req.Type, items)
		metrics.SyncBatchDuration.WithLabelValues(t.index, req.Type, string(req.Action)).
			Observe(time.Since(start).Seconds())
		sum.Batches++
		if err != nil {
			metrics.SyncErrorsTotal.WithLabelValues(t.index, req.Type).Inc()
			return sum, fmt.Errorf("bulk %s %s [%d:%d]: %w", req.Action, req.Type, offset, end, err)
		}
		metrics.SyncDocumentsTotal.WithLabelValues(t.index, req.Type, string(req.Action)).Add(float64(len(items)))
		sum.Written += len(items)
	}
	return sum, nil
}

func (s *Service) fetchByIDs(
	ctx context.Context, d *descriptor.Descriptor, ids []any, dr *DateRange,
) ([]any, error) {
	m := d.Model()
	fetch := d.FieldsToFetch()
	if dr != nil && d.UpdatedField() != "" {
		fetch = append(fetch, d.UpdatedField())
	}
	found, err := s.storage.FetchByIDs(ctx, m, m.IDColumn(), ids, descriptor.FetchColumns(m, fetch))
	if err != nil {
		return nil, fmt.Errorf("fetch %s by id: %w", d.Type(), err)
	}
	recs, err := inIDOrder(m, ids, found)
	if err != nil {
		return nil, err
	}
	if len(recs) < len(ids) {
		logger.FromContext(ctx).Warn("some ids were not found in storage",
			zap.String("type", d.Type()), zap.Int("requested", len(ids)), zap.Int("found", len(recs)))
	}
	if dr != nil {
		return filterByDate(recs, d.UpdatedField(), dr)
	}
	return recs, nil
}

func buildItems(d *descriptor.Descriptor, action Action, chunk []any, ids bool) ([]document.Item, int, error) {
	items := make([]document.Item, 0, len(chunk))
	skipped := 0
	for _, v := range chunk {
		if action == ActionDelete {
			id, err := deleteID(d, v, ids)
			if err != nil {
				return nil, 0, err
			}
			item, err := document.NewDelete(id)
			if err != nil {
				return nil, 0, domain.Validationf("%s: %v", d.Type(), err)
			}
			items = append(items, item)
			continue
		}

		if !d.Matches(v) {
			skipped++
			continue
		}
		body, err := d.Serialize(v)
		if err != nil {
			return nil, 0, err
		}
		id, err := d.DocumentID(v)
		if err != nil {
			return nil, 0, err
		}
		item, err := document.NewIndex(id, body)
		if err != nil {
			return nil, 0, domain.Validationf("%s: %v", d.Type(), err)
		}
		items = append(items, item)
	}
	return items, skipped, nil
}

// inIDOrder orders recs like ids. Ids without a record are dropped.
func inIDOrder(m *model.Model, ids, recs []any) ([]any, error) {
	byID := make(map[string]any, len(recs))
	for _, r := range recs {
		id, err := m.ID(r)
		if err != nil {
			return nil, fmt.Errorf("read %s id: %w", m.Name(), err)
		}
		byID[model.FormatID(id)] = r
	}
	out := make([]any, 0, len(recs))
	for _, id := range ids {
		if r, ok := byID[model.FormatID(id)]; ok {
			out = append(out, r)
			delete(byID, model.FormatID(id))
		}
	}
	return out, nil
}

func deleteID(d *descriptor.Descriptor, v any, isID bool) (string, error) {
	if isID {
		if v == nil {
			return "", domain.Validationf("%s: nil id in delete request", d.Type())
		}
		return model.FormatID(v), nil
	}
	return d.DocumentID(v)
}

func filterByDate(recs []any, field string, dr *DateRange) ([]any, error) {
	out := make([]any, 0, len(recs))
	for _, r := range recs {
		v, err := model.Attr(r, field)
		if err != nil {
			return nil, err
		}
		ts, ok := asTime(v)
		if !ok {
			continue
		}
		if dr.From != nil && ts.Before(*dr.From) {
			continue
		}
		if dr.To != nil && ts.After(*dr.To) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	}
	return time.Time{}, false
}
