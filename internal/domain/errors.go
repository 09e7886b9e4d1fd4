package domain

import "errors"

// Failure taxonomy. Services wrap these with %w and a stable message;
// handlers translate them to HTTP status codes.
var (
	ErrValidation        = errors.New("validation")         // 400
	ErrInsufficientStock = errors.New("insufficient stock") // 400
	ErrUnauthorized      = errors.New("unauthorized")       // 401
	ErrForbidden         = errors.New("forbidden")          // 403
	ErrNotFound          = errors.New("not found")          // 404
	ErrConflict          = errors.New("conflict")           // 409
)
