// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrInvalidState indicates an operation is not valid for the entity's current
// lifecycle state (e.g. approving a proposal that is not proposed, completing
// an already-completed session, resolving a resolved intervention).
var ErrInvalidState = errors.New("invalid state")

// ErrPermissionDenied indicates the caller's role is below the required level.
var ErrPermissionDenied = errors.New("permission denied")

// ErrValidation indicates malformed or missing input.
var ErrValidation = errors.New("validation failed")

// ErrUnavailable indicates a transient store or infrastructure failure.
// Callers may retry; all other sentinel errors are deterministic.
var ErrUnavailable = errors.New("temporarily unavailable")
