package record

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/indexsync/internal/domain/model"
)

const columnsSQL = `
SELECT c.column_name, c.data_type, c.column_default,
	EXISTS (
		SELECT 1
		FROM information_schema.key_column_usage k
		JOIN information_schema.table_constraints tc
			ON tc.constraint_name = k.constraint_name AND tc.table_schema = k.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND k.table_schema = c.table_schema
			AND k.table_name = c.table_name
			AND k.column_name = c.column_name
	)
FROM information_schema.columns c
WHERE c.table_schema = current_schema() AND c.table_name = $1
ORDER BY c.ordinal_position`

// Columns introspects the columns of table: storage type, literal default
// and foreign-key flag.
func (r *Repo) Columns(ctx context.Context, table string) ([]model.Column, error) {
	rows, err := r.db.Query(ctx, columnsSQL, table)
	if err != nil {
		return nil, fmt.Errorf("introspect %s: %w", table, err)
	}
	defer rows.Close()

	var out []model.Column
	for rows.Next() {
		var (
			c   model.Column
			def *string
		)
		if err := rows.Scan(&c.Name, &c.Type, &def, &c.Relation); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		if def != nil {
			c.Default, c.HasDefault = parseDefault(*def, c.Type)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("introspect %s: %w", table, err)
	}
	return out, nil
}

// Introspect refines m with the storage columns of its table.
func (r *Repo) Introspect(ctx context.Context, m *model.Model) (*model.Model, error) {
	cols, err := r.Columns(ctx, m.Table())
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("introspect %s: table %q has no columns", m.Name(), m.Table())
	}
	return m.WithColumns(cols)
}

// parseDefault keeps literal defaults only; expressions such as nextval()
// or now() are dropped.
func parseDefault(raw, typ string) (any, bool) {
	s := raw
	if i := strings.LastIndex(s, "::"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'") {
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'"), true
	}
	if s == "" || s == "NULL" || strings.Contains(s, "(") {
		return nil, false
	}
	switch strings.ToLower(typ) {
	case "boolean":
		b, err := strconv.ParseBool(s)
		return b, err == nil
	case "smallint", "integer", "bigint":
		n, err := strconv.ParseInt(s, 10, 64)
		return n, err == nil
	case "numeric", "real", "double precision":
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return s, true
}
