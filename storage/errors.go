package storage

import "errors"

// Sentinel errors for store and manager operations.
var (
	ErrUnknownBackend     = errors.New("unknown storage backend")
	ErrBackendUnavailable = errors.New("storage backend failed self-test")
	ErrCorruptSnapshot    = errors.New("corrupt snapshot")
	ErrLoadFailed         = errors.New("load failed")
	ErrSaveFailed         = errors.New("save failed")
)
