// Package apperr defines the error taxonomy shared across the memory substrate.
//
// Every exported sentinel is wrapped with fmt.Errorf("%w: ...") at the call
// site so callers can test classification with errors.Is while still getting
// a human-readable message.
package apperr

import "errors"

var (
	// ErrInvalidInput marks a malformed payload, missing required field, or
	// illegal state transition. Not retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorageUnavailable marks a storage driver I/O failure. The caller may
	// retry idempotently; partial results may have already been produced.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrAIUnavailable marks an AI provider failure or null response. Callers
	// continue with deterministic fallbacks; this is never fatal on its own.
	ErrAIUnavailable = errors.New("ai provider unavailable")

	// ErrConflict marks an optimistic concurrency failure on a belief version
	// chain, surfaced after the retry budget is exhausted.
	ErrConflict = errors.New("conflict")

	// ErrNotFound marks a belief/memory/contradiction/job referenced by id
	// that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCancelled marks a deadline exceeded or external cancellation.
	ErrCancelled = errors.New("cancelled")

	// ErrInvalidTransition marks an FSM transition not present in the lifecycle
	// table. A specialization of ErrInvalidInput callers can match on directly.
	ErrInvalidTransition = errors.New("invalid transition")
)

// Is reports whether err is classified under one of the taxonomy sentinels.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
