package document

import (
	"fmt"
	"maps"
	"strings"
	"unicode"
)

// Op is the bulk operation of an item.
type Op string

// Bulk operations.
const (
	OpIndex  Op = "index"
	OpDelete Op = "delete"
)

// MaxIDLength bounds a document id.
const MaxIDLength = 256

// Item is one entry of a bulk write: an operation tag, the document id and,
// for index operations, the serialized body. Immutable.
type Item struct {
	op   Op
	id   string
	body map[string]any
}

// NewIndex creates an index item. The body is cloned.
func NewIndex(id string, body map[string]any) (Item, error) {
	if err := validateID(id); err != nil {
		return Item{}, err
	}
	if body == nil {
		return Item{}, fmt.Errorf("document %q: body is required", id)
	}
	return Item{op: OpIndex, id: id, body: maps.Clone(body)}, nil
}

// NewDelete creates a delete marker item.
func NewDelete(id string) (Item, error) {
	if err := validateID(id); err != nil {
		return Item{}, err
	}
	return Item{op: OpDelete, id: id}, nil
}

func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("document ID is required")
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("document ID too long (max %d)", MaxIDLength)
	}
	if strings.IndexFunc(id, unicode.IsSpace) >= 0 {
		return fmt.Errorf("document ID %q contains whitespace", id)
	}
	return nil
}

// Op returns the bulk operation.
func (i Item) Op() Op { return i.op }

// ID returns the document id.
func (i Item) ID() string { return i.id }

// Body returns the document body; nil for deletes.
func (i Item) Body() map[string]any { return i.body }

// Status is the outcome of one bulk item.
type Status string

// Item outcomes.
const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Result is the outcome of writing one item.
type Result struct {
	id     string
	status Status
	err    error
}

// NewOK creates a successful result.
func NewOK(id string) Result { return Result{id: id, status: StatusOK} }

// NewError creates a failed result.
func NewError(id string, err error) Result { return Result{id: id, status: StatusError, err: err} }

// ID returns the item id.
func (r Result) ID() string { return r.id }

// Status returns the outcome.
func (r Result) Status() Status { return r.status }

// Err returns the failure, nil on success.
func (r Result) Err() error { return r.err }
