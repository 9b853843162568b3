package indexsync

import "github.com/kailas-cloud/indexsync/internal/domain"

// Error sentinels, usable with errors.Is on anything the Client returns.
var (
	ErrConfiguration        = domain.ErrConfiguration
	ErrValidation           = domain.ErrValidation
	ErrNotFound             = domain.ErrNotFound
	ErrRemoteWrite          = domain.ErrRemoteWrite
	ErrRemoteDeleteNotFound = domain.ErrRemoteDeleteNotFound
)

// BulkWriteError carries the per-item failures of one bulk write.
type BulkWriteError = domain.BulkWriteError
