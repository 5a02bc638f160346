package lock

import "errors"

var (
	// ErrNestedLock is returned when a context already holding a lock acquires another.
	ErrNestedLock = errors.New("lock: nested lock acquisition is not allowed")

	// ErrAlreadyReleased is returned by a second Release of the same lock.
	ErrAlreadyReleased = errors.New("lock: already released")

	// ErrInvalidScope is returned for scopes without a kind or id.
	ErrInvalidScope = errors.New("lock: invalid scope")
)
