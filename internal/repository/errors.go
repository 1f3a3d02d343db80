// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers and services to distinguish between different failure
// scenarios without inspecting error strings. For example, ErrForbidden
// indicates that the current user is not authorized to act on a
// resource owned by someone else, while ErrConflict signals that an
// operation cannot proceed due to conflicting state (e.g. a sample
// whose status changed under a concurrent request).
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because
// of conflicting state, such as a guarded status UPDATE matching zero
// rows. Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")
