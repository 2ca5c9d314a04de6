// ABOUTME: Error types for mixer control operations
// ABOUTME: Sentinels plus StateError carrying the operation and stream id
package mixer

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by fade and crossfade operations on unknown ids
	ErrNotFound = errors.New("stream not found")

	// ErrInvalidState is returned when a stream's state forbids the operation
	ErrInvalidState = errors.New("invalid stream state")

	// ErrClosed is returned once the mixer has been closed
	ErrClosed = errors.New("mixer closed")
)

// StateError describes a rejected control operation. It unwraps to
// ErrNotFound or ErrInvalidState.
type StateError struct {
	Op       string
	StreamID string
	Reason   string
	Err      error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("mixer: %s %s: %s", e.Op, e.StreamID, e.Reason)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

func notFound(op, id string) error {
	return &StateError{Op: op, StreamID: id, Reason: "stream not found", Err: ErrNotFound}
}

func invalidState(op, id, reason string) error {
	return &StateError{Op: op, StreamID: id, Reason: reason, Err: ErrInvalidState}
}
