package domain

import "errors"

var (
	ErrDeviceNotFound  = errors.New("device not found")
	ErrRecordNotFound  = errors.New("scan record not found")
	ErrSelfPairing     = errors.New("device cannot pair with itself")
	ErrNotPaired       = errors.New("devices are not paired")
	ErrUnknownProvider = errors.New("unknown AI provider")
	ErrNotRegistered   = errors.New("connection has not registered a device")
	ErrEmptyImage      = errors.New("image is empty")
	ErrMissingContext  = errors.New("text-only analysis requires context")

	// ErrPersistence marks a write that failed after the in-memory state was
	// already updated. Callers log it and carry on.
	ErrPersistence = errors.New("persistence failed")
)
