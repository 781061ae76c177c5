package model

import "errors"

// Error taxonomy shared by the core packages. Callers classify failures with
// errors.Is; the HTTP layer maps each class to a status code.
var (
	ErrValidation   = errors.New("validation failed")
	ErrPermission   = errors.New("permission denied")
	ErrInvalidState = errors.New("operation not legal for current status")
	ErrNotFound     = errors.New("not found")
	ErrToolFailure  = errors.New("analysis tool failed")
	ErrStorage      = errors.New("storage failure")
)
