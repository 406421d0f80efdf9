package model

import (
	"errors"
	"fmt"
)

// Failure kinds. All of them are recovered locally; none of them is fatal to the host.
var (
	// ErrPersistenceRead means the snapshot could not be read or decoded.
	ErrPersistenceRead = errors.New("persistence read failure")

	// ErrSnapshotCorrupt means the snapshot was read but is not a valid document.
	// It always comes wrapped together with ErrPersistenceRead.
	ErrSnapshotCorrupt = errors.New("snapshot corrupt")

	// ErrPersistenceWrite means the snapshot could not be written or removed.
	ErrPersistenceWrite = errors.New("persistence write failure")

	// ErrTransport means the collector could not be reached (network error or timeout).
	ErrTransport = errors.New("transport failure")

	// ErrServerRejected means the collector answered with a non-2xx status.
	ErrServerRejected = errors.New("server rejected batch")
)

// Error carries the operation that failed, its kind and the underlying cause.
// errors.Is matches both the kind sentinel and the cause.
type Error struct {
	Op   string // e.g. "store.Save"
	Kind error  // one of the Err* sentinels above
	Err  error  // underlying cause, may be nil
}

// NewError builds an Error.
func NewError(op string, kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Kind)
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
