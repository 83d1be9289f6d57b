package domain

import "errors"

// Sentinel errors shared by the stores and the API layer. Storage code wraps
// them with context; handlers unwrap with errors.Is to pick a response code.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrAlreadyExists       = errors.New("already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrConflict            = errors.New("conflict")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrGenerationExhausted = errors.New("username generation exhausted")
)
