package tracker

import "errors"

var (
	// ErrInvalidArgument rejects a write before anything is persisted.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStorageUnavailable wraps a failed read or write against the backing store.
	// Queries never return it; they degrade to "not limited / not cached".
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrMalformedEntry marks a stored value that could not be decoded.
	// The tracker deletes such entries when it meets them.
	ErrMalformedEntry = errors.New("malformed entry")
)
