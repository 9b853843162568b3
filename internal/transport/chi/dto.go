package chi

import (
	"time"

	"github.com/kailas-cloud/indexsync/internal/domain/search/hit"
	"github.com/kailas-cloud/indexsync/internal/usecase/indexing"
)

// ErrorCode is a machine-readable error class.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest       ErrorCode = "bad_request"
	CodeValidationFailed ErrorCode = "validation_failed"
	CodeUnauthorized     ErrorCode = "unauthorized"
	CodeNotFound         ErrorCode = "not_found"
	CodeAlreadyExists    ErrorCode = "already_exists"
	CodeRemoteWrite      ErrorCode = "remote_write_failed"
	CodeInternal         ErrorCode = "internal_error"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// SyncRequest is the body of POST /v1/sync.
type SyncRequest struct {
	Models    []string `json:"models"`
	Index     string   `json:"index"`
	Action    string   `json:"action"` // index (default) or delete
	BulkSize  *int     `json:"bulk_size"`
	NumDocs   *int     `json:"num_docs"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Refresh   bool     `json:"refresh"`
}

// SyncResponse reports a finished sync.
type SyncResponse struct {
	Total   int `json:"total"`
	Written int `json:"written"`
	Skipped int `json:"skipped"`
	Batches int `json:"batches"`
}

func syncResponse(s indexing.Summary) SyncResponse {
	return SyncResponse{Total: s.Total, Written: s.Written, Skipped: s.Skipped, Batches: s.Batches}
}

// MappingsRequest is the optional body of the mapping routes.
type MappingsRequest struct {
	Models []string `json:"models"`
}

// RangeFilter is a numeric range. Dates are epoch milliseconds.
type RangeFilter struct {
	GT  *float64 `json:"gt,omitempty"`
	GTE *float64 `json:"gte,omitempty"`
	LT  *float64 `json:"lt,omitempty"`
	LTE *float64 `json:"lte,omitempty"`
}

// FilterCondition holds either Match or Range.
type FilterCondition struct {
	Key   string       `json:"key"`
	Match *string      `json:"match,omitempty"`
	Range *RangeFilter `json:"range,omitempty"`
}

// FilterExpression groups conditions.
type FilterExpression struct {
	Must    []FilterCondition `json:"must,omitempty"`
	Should  []FilterCondition `json:"should,omitempty"`
	MustNot []FilterCondition `json:"must_not,omitempty"`
}

// AliasCall applies a named alias.
type AliasCall struct {
	Name string `json:"name"`
	Args []any  `json:"args,omitempty"`
}

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Indices   []string          `json:"indices"`
	Model     string            `json:"model"`
	Models    []string          `json:"models"`
	Query     string            `json:"query"`
	Mode      string            `json:"mode"`
	Filters   *FilterExpression `json:"filters"`
	Aliases   []AliasCall       `json:"aliases"`
	Offset    int               `json:"offset"`
	Limit     int               `json:"limit"`
	Only      []string          `json:"only"`
	OnlyModel bool              `json:"only_model"`
	Raw       bool              `json:"raw"`
}

// SearchItem is one search result. Record is null when the hit's record no
// longer exists; Source is set for raw and unmapped hits.
type SearchItem struct {
	Index  string         `json:"index"`
	Type   string         `json:"type"`
	ID     string         `json:"id"`
	Score  float64        `json:"score"`
	Mapped bool           `json:"mapped"`
	Record any            `json:"record,omitempty"`
	Source map[string]any `json:"source,omitempty"`
}

// SearchResponse is the body of a search reply.
type SearchResponse struct {
	Total int          `json:"total"`
	Items []SearchItem `json:"items"`
	Took  string       `json:"took"`
}

func rawItem(h hit.Hit) SearchItem {
	return SearchItem{Index: h.Index, Type: h.Type, ID: h.ID, Score: h.Score, Source: h.Source}
}

func took(start time.Time) string {
	return time.Since(start).Round(time.Microsecond).String()
}
