package domain

import (
	"errors"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors: compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Feed errors
var (
	// ErrUpstream is returned when a feed fetch fails (network, non-2xx,
	// timeout). The whole cycle is aborted.
	ErrUpstream = errors.New("upstream fetch failed")

	// ErrMalformedRecord marks a single fetched record whose nested fields could
	// not be decoded. The record is degraded, the batch continues.
	ErrMalformedRecord = errors.New("malformed upstream record")
)

// Store errors
var (
	// ErrNotFound is returned when no row matches the given key.
	ErrNotFound = errors.New("not found")

	// ErrStoreConflict is returned when an insert hits an existing identity
	// key. Callers treat it as "already handled".
	ErrStoreConflict = errors.New("store conflict: key already exists")

	// ErrStoreFailure wraps every other store error.
	ErrStoreFailure = errors.New("store operation failed")
)

// Transport and command errors
var (
	// ErrTransport is returned when a chat message could not be delivered.
	ErrTransport = errors.New("chat transport failed")

	// ErrValidation is returned for malformed command arguments.
	ErrValidation = errors.New("invalid command arguments")

	// ErrUnauthorized is returned when a trigger or webhook secret is wrong.
	ErrUnauthorized = errors.New("unauthorized")
)

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// IsNotFound returns true when err (or any error in its chain) is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true for duplicate-key inserts.
func IsConflict(err error) bool {
	return errors.Is(err, ErrStoreConflict)
}

// IsValidation returns true for command argument errors.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsUpstream returns true for feed failures.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstream)
}
