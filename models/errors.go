package models

import "errors"

// Failure taxonomy shared by services and controllers. Handlers translate
// these to HTTP statuses; nothing else crosses the handler boundary.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrRateLimited  = errors.New("rate limited")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation failed")
)
