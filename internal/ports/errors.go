package ports

import "errors"

// Standard application-level errors.
// Components wrap these with context; callers match them with errors.Is.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrConflict           = errors.New("resource was modified concurrently")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Engine Errors (local validation, raised before any state mutation)
	ErrInvalidSchedule      = errors.New("invalid payout schedule")
	ErrInvalidRecalculation = errors.New("invalid schedule recalculation")
	ErrInvalidSession       = errors.New("invalid simulation session")
	ErrInvalidInput         = errors.New("invalid input")

	// Database Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrQueryFailed    = errors.New("database query failed")
	ErrUpdateFailed   = errors.New("database update failed")
)
