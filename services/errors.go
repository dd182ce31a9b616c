package services

import "errors"

// Sentinel errors surfaced by the engagement core. Handlers map these onto
// HTTP statuses; everything else propagates as a storage failure.
var (
	// ErrInvalidInput: request rejected before any state read (no side effects).
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTimestamp: the resolved calendar day precedes the stored
	// lastActiveDate — clock skew or an out-of-order replay. State unchanged.
	ErrInvalidTimestamp = errors.New("invalid timestamp: resolved day precedes last active date")

	// ErrConflict: optimistic version mismatch persisted after one retry.
	// Retryable — the caller should resubmit the original request.
	ErrConflict = errors.New("engagement state version conflict")

	// ErrNotFound: no engagement state row for the user yet.
	ErrNotFound = errors.New("engagement state not found")
)
