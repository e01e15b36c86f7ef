package verbex

import "errors"

// Sentinel error kinds, per the error handling design. Wrap with
// fmt.Errorf("verbex: %s: %w", op, ErrX) and compare with errors.Is.
var (
	// ErrInvalidArgument is returned for empty/invalid ids, bad configuration,
	// or negative limits.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when a mutation targets a missing document,
	// index, or term. Pure lookups return a nil/false zero value instead.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when add_document_with_id reuses an existing id.
	ErrDuplicate = errors.New("duplicate document id")

	// ErrDisposed is returned once an Index has been closed.
	ErrDisposed = errors.New("index is disposed")

	// ErrNotOpen is returned when an operation runs before Open succeeds.
	ErrNotOpen = errors.New("index is not open")

	// ErrIO wraps durable-storage failures (corruption, permissions, disk).
	ErrIO = errors.New("storage io error")

	// ErrCancelled is returned when a caller's context is cancelled.
	ErrCancelled = errors.New("operation cancelled")
)
