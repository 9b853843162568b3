package query

import (
	"strings"
	"testing"

	"github.com/kailas-cloud/indexsync/internal/domain/search/filter"
	"github.com/kailas-cloud/indexsync/internal/domain/search/mode"
)

func TestNew_Defaults(t *testing.T) {
	q, err := New("gophers", "", []string{"main"}, nil, filter.Expression{}, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Mode() != mode.Match {
		t.Errorf("Mode() = %q, want match", q.Mode())
	}
	if q.Limit() != DefaultLimit {
		t.Errorf("Limit() = %d, want %d", q.Limit(), DefaultLimit)
	}

	all, err := New("", "", []string{"main"}, nil, filter.Expression{}, 0, 500)
	if err != nil {
		t.Fatal(err)
	}
	if all.Mode() != mode.All {
		t.Errorf("empty text mode = %q, want all", all.Mode())
	}
	if all.Limit() != MaxLimit {
		t.Errorf("Limit() = %d, want clamp to %d", all.Limit(), MaxLimit)
	}
}

func TestNew_Errors(t *testing.T) {
	idx := []string{"main"}
	tests := []struct {
		name    string
		text    string
		m       mode.Mode
		indices []string
		offset  int
		want    string
	}{
		{"too long", strings.Repeat("x", MaxQueryLength+1), "", idx, 0, "too long"},
		{"bad mode", "x", "fuzzy", idx, 0, "invalid query mode"},
		{"no text", "", mode.Syntax, idx, 0, "required"},
		{"no index", "x", "", nil, 0, "index"},
		{"negative offset", "x", "", idx, -1, "negative"},
		{"window", "x", "", idx, MaxWindow, "window"},
	}
	for _, tt := range tests {
		_, err := New(tt.text, tt.m, tt.indices, nil, filter.Expression{}, tt.offset, 10)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: err = %v, want %q", tt.name, err, tt.want)
		}
	}
}

func TestQuery_CopiesOnWrite(t *testing.T) {
	indices := []string{"main"}
	q, err := New("x", "", indices, []string{"Article"}, filter.Expression{}, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	indices[0] = "mutated"
	if q.Indices()[0] != "main" {
		t.Error("indices slice leaked into query")
	}

	c, _ := filter.NewMatch("lang", "go")
	f, _ := filter.NewExpression([]filter.Condition{c}, nil, nil)
	q2, err := q.WithFilters(f)
	if err != nil {
		t.Fatal(err)
	}
	if !q.Filters().IsEmpty() {
		t.Error("WithFilters mutated the original")
	}
	if len(q2.Filters().Must()) != 1 {
		t.Errorf("filters = %+v", q2.Filters())
	}

	q3 := q2.WithTypes("User")
	if q2.Types()[0] != "Article" || q3.Types()[0] != "User" {
		t.Errorf("types = %v / %v", q2.Types(), q3.Types())
	}

	q4, err := q3.WithText("@title:go", mode.Syntax)
	if err != nil || q4.Text() != "@title:go" || q4.Mode() != mode.Syntax {
		t.Errorf("WithText = %+v, %v", q4, err)
	}
}
