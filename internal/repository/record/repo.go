package record

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/kailas-cloud/indexsync/internal/domain"
	"github.com/kailas-cloud/indexsync/internal/domain/model"
)

// querier is the consumer interface for the relational store (ISP).
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repo reads records of catalog models from Postgres.
type Repo struct {
	db querier
}

// New creates a record repository.
func New(db querier) *Repo {
	return &Repo{db: db}
}

// Count returns the number of records q selects. Paging is ignored.
func (r *Repo) Count(ctx context.Context, q model.Query) (int, error) {
	if q.Model == nil {
		return 0, domain.Validationf("query has no model")
	}
	where, args := whereClause(q)
	sql := "SELECT count(*) FROM " + ident(q.Model.Table()) + where

	var n int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", q.Model.Name(), err)
	}
	return int(n), nil
}

// Filter returns the records q selects, ordered by id.
func (r *Repo) Filter(ctx context.Context, q model.Query) ([]any, error) {
	if q.Model == nil {
		return nil, domain.Validationf("query has no model")
	}
	m := q.Model
	where, args := whereClause(q)

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(selectList(m, q.Fields))
	b.WriteString(" FROM ")
	b.WriteString(ident(m.Table()))
	b.WriteString(where)
	b.WriteString(" ORDER BY ")
	b.WriteString(ident(m.IDColumn()))
	if q.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		b.WriteString(" OFFSET " + strconv.Itoa(q.Offset))
	}

	rows, err := r.db.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", m.Name(), err)
	}
	return scanRecords(m, rows)
}

// FetchByIDs returns the records whose column is one of ids, in storage
// order. Missing ids are absent from the result. Empty fields selects every
// column.
func (r *Repo) FetchByIDs(ctx context.Context, m *model.Model, column string, ids []any, fields []string) ([]any, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sql := "SELECT " + selectList(m, fields) + " FROM " + ident(m.Table()) +
		" WHERE " + ident(column) + " = ANY($1)"

	rows, err := r.db.Query(ctx, sql, idArray(ids))
	if err != nil {
		return nil, fmt.Errorf("fetch %s by %s: %w", m.Name(), column, err)
	}
	return scanRecords(m, rows)
}

// Get returns the single record whose column equals id.
func (r *Repo) Get(ctx context.Context, m *model.Model, column string, id any, fields []string) (any, error) {
	recs, err := r.FetchByIDs(ctx, m, column, []any{id}, fields)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, domain.NewNotFound(m.Name(), model.FormatID(id))
	}
	return recs[0], nil
}

func whereClause(q model.Query) (string, []any) {
	if q.DateField == "" || (q.From == nil && q.To == nil) {
		return "", nil
	}
	var (
		conds []string
		args  []any
	)
	col := ident(q.DateField)
	if q.From != nil {
		args = append(args, *q.From)
		conds = append(conds, col+" >= $"+strconv.Itoa(len(args)))
	}
	if q.To != nil {
		args = append(args, *q.To)
		conds = append(conds, col+" <= $"+strconv.Itoa(len(args)))
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// selectList quotes fields, or every model column when fields is empty.
// A dynamic model without known columns selects *.
func selectList(m *model.Model, fields []string) string {
	if len(fields) == 0 {
		fields = m.ColumnNames()
	}
	if len(fields) == 0 {
		return "*"
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = ident(f)
	}
	return strings.Join(quoted, ", ")
}

func scanRecords(m *model.Model, rows pgx.Rows) ([]any, error) {
	defer rows.Close()

	fds := rows.FieldDescriptions()
	columns := make([]string, len(fds))
	for i, fd := range fds {
		columns[i] = fd.Name
	}

	var out []any
	for rows.Next() {
		rec := m.New()
		targets, err := m.ScanTargets(rec, columns)
		if err != nil {
			return nil, err
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", m.Name(), err)
		}
		m.Assign(rec, columns, targets)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s rows: %w", m.Name(), err)
	}
	return out, nil
}

// idArray gives pgx a homogeneous slice to encode as a Postgres array.
func idArray(ids []any) any {
	switch ids[0].(type) {
	case int64:
		return typed[int64](ids)
	case int:
		return typed[int](ids)
	case int32:
		return typed[int32](ids)
	case string:
		return typed[string](ids)
	}
	return ids
}

func typed[T any](ids []any) any {
	out := make([]T, len(ids))
	for i, id := range ids {
		v, ok := id.(T)
		if !ok {
			return ids
		}
		out[i] = v
	}
	return out
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
