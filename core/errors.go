package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUserProvidedID is returned by Create when the caller supplied an
	// explicit session id. Identifiers are always store-assigned.
	ErrUserProvidedID = errors.New("user-provided session ID is not supported")

	// ErrNotFound is returned when an operation that requires an existing
	// session (AppendEvent, ApplyDelta) targets one that does not exist.
	ErrNotFound = errors.New("session not found")

	// ErrStoreUnavailable indicates a transport or auth failure reaching
	// the backing store. It is never retried at this layer.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// MalformedRecordError reports a persisted document that cannot be decoded
// into a valid domain value, typically because a required field is absent.
type MalformedRecordError struct {
	Field string // Missing or invalid field
}

// Error implements the error interface.
func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record: missing or invalid field %q", e.Field)
}

// AppendFailedError reports that the atomic multi-write backing an event
// append did not commit. The session's persisted state is unchanged.
type AppendFailedError struct {
	SessionID string
	Err       error // Underlying cause
}

// Error implements the error interface.
func (e *AppendFailedError) Error() string {
	return fmt.Sprintf("append event to session %q failed: %v", e.SessionID, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *AppendFailedError) Unwrap() error { return e.Err }
