// Package service contains the borrow lifecycle manager and the
// notification scanner. Handlers stay thin adapters over this layer so
// every state change touching a borrow and its sample goes through one
// place, inside one transaction.
package service

import "errors"

// Error taxonomy for lifecycle operations. Handlers map these onto
// HTTP statuses: ErrValidation 400, ErrNotFound 404, ErrConflict 409.
// Anything else is an internal error (500) and the transaction has
// been rolled back.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)
