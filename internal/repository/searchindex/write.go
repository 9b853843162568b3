package searchindex

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/indexsync/internal/db"
	"github.com/kailas-cloud/indexsync/internal/domain"
	"github.com/kailas-cloud/indexsync/internal/domain/document"
)

// BulkWrite pipelines items into index. Index items are stored with their
// type; delete items remove the key. Every failed item is reported in a
// *domain.BulkWriteError.
func (r *Repo) BulkWrite(ctx context.Context, index, typ string, items []document.Item) ([]document.Result, error) {
	if len(items) == 0 {
		return nil, nil
	}

	results := make([]document.Result, len(items))
	pending := make([]db.WriteOp, 0, len(items))
	slots := make([]int, 0, len(items))
	var failed []domain.ItemError
	for i, it := range items {
		op := db.WriteOp{Key: r.docKey(index, typ, it.ID())}
		if it.Op() == document.OpIndex {
			data, err := encodeBody(typ, it.Body())
			if err != nil {
				results[i] = document.NewError(it.ID(), err)
				failed = append(failed, domain.ItemError{ID: it.ID(), Err: err})
				continue
			}
			op.Data = data
		}
		pending = append(pending, op)
		slots = append(slots, i)
	}

	errs := r.store.WriteMulti(ctx, pending)
	for j, i := range slots {
		id := items[i].ID()
		if j < len(errs) && errs[j] != nil {
			results[i] = document.NewError(id, errs[j])
			failed = append(failed, domain.ItemError{ID: id, Err: errs[j]})
			continue
		}
		results[i] = document.NewOK(id)
	}

	if len(failed) > 0 {
		return results, &domain.BulkWriteError{Index: index, Type: typ, Failed: failed}
	}
	return results, nil
}

// Delete removes one document. A missing document is
// domain.ErrRemoteDeleteNotFound.
func (r *Repo) Delete(ctx context.Context, index, typ, id string) error {
	key := r.docKey(index, typ, id)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", domain.ErrRemoteDeleteNotFound, key)
	}
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// encodeBody renders a serialized document as stored JSON: dates become
// epoch milliseconds, booleans tag strings, and the type is added.
func encodeBody(typ string, body map[string]any) ([]byte, error) {
	out := make(map[string]any, len(body)+1)
	for k, v := range body {
		out[k] = encodeValue(v)
	}
	out[TypeField] = typ
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return data, nil
}

func encodeValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UnixMilli()
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UnixMilli()
	case bool:
		return strconv.FormatBool(t)
	case *bool:
		if t == nil {
			return nil
		}
		return strconv.FormatBool(*t)
	}
	return v
}
