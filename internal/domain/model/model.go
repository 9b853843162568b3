package model

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

const (
	tagKey     = "db"
	typeTagKey = "dbtype"
	defTagKey  = "default"

	// DefaultIDColumn is used when no column carries the pk option.
	DefaultIDColumn = "id"
)

var (
	timeType = reflect.TypeOf(time.Time{})
	uuidType = reflect.TypeOf([16]byte{})
)

// Column describes one persisted attribute of a record type.
type Column struct {
	Name       string
	Type       string // storage column type, e.g. "integer", "timestamp with time zone"
	Relation   bool
	Default    any
	HasDefault bool

	index []int // struct field path; nil for dynamic models
}

// Model describes a record type backed by one table.
// Records are struct pointers for typed models and map[string]any for dynamic ones.
type Model struct {
	name    string
	table   string
	idCol   string
	typ     reflect.Type
	columns []Column
	byName  map[string]int
}

// FromStruct reflects on T and builds a typed model.
// Columns come from `db:"name[,pk][,fk]"` tags; `dbtype` overrides the inferred
// storage type and `default` declares a column default.
func FromStruct[T any](name, table string) (*Model, error) {
	var zero T
	return FromType(name, table, reflect.TypeOf(zero))
}

// FromType is FromStruct for a runtime type.
func FromType(name, table string, t reflect.Type) (*Model, error) {
	if t == nil {
		return nil, fmt.Errorf("model %s: nil type", name)
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("model %s: type %s is not a struct", name, t)
	}
	if name == "" {
		name = t.Name()
	}

	m := &Model{name: name, table: table, typ: t, byName: make(map[string]int)}
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get(tagKey)
		if tag == "" || tag == "-" {
			continue
		}
		if err := m.applyTag(f, tag); err != nil {
			return nil, err
		}
	}
	if m.idCol == "" {
		m.idCol = DefaultIDColumn
	}
	if _, ok := m.byName[m.idCol]; !ok {
		return nil, fmt.Errorf("model %s: no id column %q", name, m.idCol)
	}
	return m, nil
}

func (m *Model) applyTag(f reflect.StructField, tag string) error {
	parts := strings.Split(tag, ",")
	col := Column{Name: parts[0], index: f.Index}
	for _, opt := range parts[1:] {
		switch opt {
		case "pk":
			if m.idCol != "" {
				return fmt.Errorf("model %s: duplicate pk on field %s", m.name, f.Name)
			}
			m.idCol = col.Name
		case "fk":
			col.Relation = true
		default:
			return fmt.Errorf("model %s: unknown option %q on field %s", m.name, opt, f.Name)
		}
	}

	col.Type = f.Tag.Get(typeTagKey)
	if col.Type == "" {
		col.Type = storageType(f.Type)
	}
	if raw, ok := f.Tag.Lookup(defTagKey); ok {
		v, err := parseDefault(f.Type, raw)
		if err != nil {
			return fmt.Errorf("model %s: default of %s: %w", m.name, f.Name, err)
		}
		col.Default, col.HasDefault = v, true
	}
	return m.addColumn(col)
}

// Dynamic creates a model whose records are map[string]any rows.
// columns may be empty and filled in later from storage introspection.
func Dynamic(name, table, idColumn string, columns []Column) (*Model, error) {
	if name == "" || table == "" {
		return nil, fmt.Errorf("model name and table are required")
	}
	if idColumn == "" {
		idColumn = DefaultIDColumn
	}
	m := &Model{name: name, table: table, idCol: idColumn, byName: make(map[string]int)}
	for _, c := range columns {
		c.index = nil
		if err := m.addColumn(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Model) addColumn(c Column) error {
	if c.Name == "" {
		return fmt.Errorf("model %s: empty column name", m.name)
	}
	if _, dup := m.byName[c.Name]; dup {
		return fmt.Errorf("model %s: duplicate column %q", m.name, c.Name)
	}
	m.byName[c.Name] = len(m.columns)
	m.columns = append(m.columns, c)
	return nil
}

// WithColumns returns a copy refined by introspected columns: types, defaults
// and relation flags are taken from cols for matching names. Dynamic models
// without declared columns adopt cols wholesale.
func (m *Model) WithColumns(cols []Column) (*Model, error) {
	out := &Model{name: m.name, table: m.table, idCol: m.idCol, typ: m.typ, byName: make(map[string]int)}
	if m.typ == nil && len(m.columns) == 0 {
		for _, c := range cols {
			if err := out.addColumn(Column{
				Name: c.Name, Type: c.Type, Relation: c.Relation,
				Default: c.Default, HasDefault: c.HasDefault,
			}); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	known := make(map[string]Column, len(cols))
	for _, c := range cols {
		known[c.Name] = c
	}
	for _, c := range m.columns {
		if k, ok := known[c.Name]; ok {
			c.Type = k.Type
			c.Relation = c.Relation || k.Relation
			if !c.HasDefault && k.HasDefault {
				c.Default, c.HasDefault = k.Default, true
			}
		}
		if err := out.addColumn(c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Name returns the record type name.
func (m *Model) Name() string { return m.name }

// Table returns the backing table.
func (m *Model) Table() string { return m.table }

// IDColumn returns the primary key column.
func (m *Model) IDColumn() string { return m.idCol }

// Type returns the struct type, nil for dynamic models.
func (m *Model) Type() reflect.Type { return m.typ }

// IsDynamic reports whether records are map rows.
func (m *Model) IsDynamic() bool { return m.typ == nil }

// Columns returns a copy of the column list in declaration order.
func (m *Model) Columns() []Column {
	out := make([]Column, len(m.columns))
	copy(out, m.columns)
	return out
}

// Column looks up a column by name.
func (m *Model) Column(name string) (Column, bool) {
	i, ok := m.byName[name]
	if !ok {
		return Column{}, false
	}
	return m.columns[i], true
}

// ColumnNames returns column names in declaration order.
func (m *Model) ColumnNames() []string {
	out := make([]string, len(m.columns))
	for i, c := range m.columns {
		out[i] = c.Name
	}
	return out
}

// New allocates an empty record.
func (m *Model) New() any {
	if m.typ == nil {
		return map[string]any{}
	}
	return reflect.New(m.typ).Interface()
}

// ID returns the primary key value of record.
func (m *Model) ID(record any) (any, error) {
	return Attr(record, m.idCol)
}

// ParseID converts a textual id (as carried by search hits) to the id column's Go type.
func (m *Model) ParseID(s string) (any, error) {
	c, ok := m.Column(m.idCol)
	if !ok {
		return s, nil
	}
	if c.index != nil {
		return parseScalar(m.typ.FieldByIndex(c.index).Type, s)
	}
	switch normalizeType(c.Type) {
	case "uuid":
		u, err := ParseUUID(s)
		if err != nil {
			return nil, err
		}
		return FormatUUID(u), nil
	case "smallint", "int2", "smallserial", "integer", "int", "int4", "serial", "bigint", "int8", "bigserial":
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse id %q: %w", s, err)
		}
		return n, nil
	}
	return s, nil
}

// Skeleton returns a record carrying only its id, used for delete events.
func (m *Model) Skeleton(id any) (any, error) {
	rec := m.New()
	if err := m.Set(rec, m.idCol, id); err != nil {
		return nil, err
	}
	return rec, nil
}

// Set assigns value to column on record.
func (m *Model) Set(record any, column string, value any) error {
	if row, ok := record.(map[string]any); ok {
		row[column] = value
		return nil
	}
	c, ok := m.Column(column)
	if !ok || c.index == nil {
		return fmt.Errorf("model %s: unknown column %q", m.name, column)
	}
	v := reflect.ValueOf(record)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return fmt.Errorf("model %s: record must be a non-nil pointer", m.name)
	}
	dst := v.Elem().FieldByIndex(c.index)
	if value == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	src := reflect.ValueOf(value)
	switch {
	case src.Type().AssignableTo(dst.Type()):
		dst.Set(src)
	case src.Type().ConvertibleTo(dst.Type()):
		dst.Set(src.Convert(dst.Type()))
	default:
		return fmt.Errorf("model %s: cannot assign %T to column %q", m.name, value, column)
	}
	return nil
}

// ScanTargets returns pointers into record for each column, in order.
// Dynamic records get intermediate holders; call Assign after scanning.
func (m *Model) ScanTargets(record any, columns []string) ([]any, error) {
	targets := make([]any, len(columns))
	if _, ok := record.(map[string]any); ok {
		for i := range targets {
			targets[i] = new(any)
		}
		return targets, nil
	}
	v := reflect.ValueOf(record)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return nil, fmt.Errorf("model %s: record must be a non-nil pointer", m.name)
	}
	for i, name := range columns {
		c, ok := m.Column(name)
		if !ok || c.index == nil {
			return nil, fmt.Errorf("model %s: unknown column %q", m.name, name)
		}
		targets[i] = v.Elem().FieldByIndex(c.index).Addr().Interface()
	}
	return targets, nil
}

// Assign copies scanned holders into a dynamic record, normalized. Typed
// records are a no-op.
func (m *Model) Assign(record any, columns []string, targets []any) {
	row, ok := record.(map[string]any)
	if !ok {
		return
	}
	for i, name := range columns {
		if p, ok := targets[i].(*any); ok {
			row[name] = Normalize(*p)
		}
	}
}

func storageType(t reflect.Type) string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return "timestamp with time zone"
	}
	if t == uuidType {
		return "uuid"
	}
	switch t.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.Int8, reflect.Int16, reflect.Uint8:
		return "smallint"
	case reflect.Int, reflect.Int32, reflect.Uint16, reflect.Uint32:
		return "integer"
	case reflect.Int64, reflect.Uint, reflect.Uint64:
		return "bigint"
	case reflect.Float32:
		return "real"
	case reflect.Float64:
		return "double precision"
	case reflect.Struct, reflect.Map:
		return "jsonb"
	default:
		return "text"
	}
}

func parseDefault(t reflect.Type, raw string) (any, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return parseScalar(t, raw)
}

func parseScalar(t reflect.Type, s string) (any, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("parse time %q: %w", s, err)
		}
		return ts, nil
	}
	if t == uuidType {
		u, err := ParseUUID(s)
		if err != nil {
			return nil, err
		}
		return u, nil
	}
	var (
		v   any
		err error
	)
	switch t.Kind() {
	case reflect.Bool:
		v, err = strconv.ParseBool(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		n, err = strconv.ParseInt(s, 10, t.Bits())
		v = reflect.ValueOf(n).Convert(t).Interface()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var n uint64
		n, err = strconv.ParseUint(s, 10, t.Bits())
		v = reflect.ValueOf(n).Convert(t).Interface()
	case reflect.Float32, reflect.Float64:
		var f float64
		f, err = strconv.ParseFloat(s, t.Bits())
		v = reflect.ValueOf(f).Convert(t).Interface()
	case reflect.String:
		v = reflect.ValueOf(s).Convert(t).Interface()
	default:
		return nil, fmt.Errorf("unsupported kind %s", t.Kind())
	}
	if err != nil {
		return nil, fmt.Errorf("parse %q as %s: %w", s, t, err)
	}
	return v, nil
}

// normalizeType lowercases a storage type and drops modifiers: "numeric(10,2)" -> "numeric".
func normalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}
