package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration signals an invalid descriptor, field or registry setup.
	ErrConfiguration = errors.New("configuration error")
	// ErrValidation signals a request rejected before any I/O.
	ErrValidation = errors.New("validation error")
	// ErrNotFound signals an unregistered record type, index or alias.
	ErrNotFound = errors.New("not found")
	// ErrRemoteWrite signals a failed bulk write to the search engine.
	ErrRemoteWrite = errors.New("remote write failed")
	// ErrRemoteDeleteNotFound signals a delete of a document already absent from the index.
	ErrRemoteDeleteNotFound = errors.New("document not found in index")
)

// Configf returns an error wrapping ErrConfiguration.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Validationf returns an error wrapping ErrValidation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundError names the lookup key that had no registration.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: could not find any %s %q", ErrNotFound.Error(), e.Kind, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFound creates a not-found error for kind/key.
func NewNotFound(kind, key string) error {
	return &NotFoundError{Kind: kind, Key: key}
}

// EvalError adds field and expression context to a value-computation failure.
// Unwrap returns the original error so its class survives.
type EvalError struct {
	Field string
	Expr  string
	Err   error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("could not compute value of field %s (eval_as=`%s`): %v", e.Field, e.Expr, e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }

// ItemError is the failure of one document inside a bulk write.
type ItemError struct {
	ID  string
	Err error
}

// BulkWriteError reports every failed item of one bulk write.
type BulkWriteError struct {
	Index  string
	Type   string
	Failed []ItemError
}

func (e *BulkWriteError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		parts = append(parts, f.ID+": "+f.Err.Error())
	}
	return fmt.Sprintf("%s: %d document(s) failed on %s/%s: %s",
		ErrRemoteWrite.Error(), len(e.Failed), e.Index, e.Type, strings.Join(parts, "; "))
}

func (e *BulkWriteError) Unwrap() error { return ErrRemoteWrite }
