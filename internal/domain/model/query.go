package model

import "time"

// Query is a lazy storage query. Nothing is read until a repository runs it.
type Query struct {
	Model     *Model
	DateField string
	From      *time.Time // inclusive
	To        *time.Time // inclusive
	Fields    []string
	Offset    int
	Limit     int // 0 means no limit
}

// All selects every record of m.
func All(m *Model) Query {
	return Query{Model: m}
}

// Between restricts the query to field within [from, to]. Nil bounds are open.
func (q Query) Between(field string, from, to *time.Time) Query {
	q.DateField = field
	q.From = from
	q.To = to
	return q
}

// Only restricts the fetched columns.
func (q Query) Only(fields ...string) Query {
	q.Fields = append([]string(nil), fields...)
	return q
}

// Page returns the window [offset, offset+limit).
func (q Query) Page(offset, limit int) Query {
	q.Offset = offset
	q.Limit = limit
	return q
}
