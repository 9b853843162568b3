package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/indexsync/internal/db"
)

// WriteMulti pipelines document writes in a single DoMulti round-trip.
// Deleting a missing key is not an error.
func (s *Store) WriteMulti(ctx context.Context, ops []db.WriteOp) []error {
	if len(ops) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, len(ops))
	for i, op := range ops {
		if op.IsDelete() {
			cmds[i] = s.b().Del().Key(op.Key).Build()
			continue
		}
		cmds[i] = s.b().Arbitrary("JSON.SET").Keys(op.Key).Args("$", string(op.Data)).Build()
	}

	errs := make([]error, len(ops))
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		err := res.Error()
		if err == nil {
			continue
		}
		opName := db.OpJSONSet
		if ops[i].IsDelete() {
			opName = db.OpDel
		}
		errs[i] = &db.Error{Op: opName, Err: fmt.Errorf("key %s: %w", ops[i].Key, err)}
	}
	return errs
}
