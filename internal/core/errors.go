package core

import "errors"

// Engine error kinds. Every business-rule failure wraps exactly one of these;
// the HTTP adapter maps them to status codes with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrUnavailable     = errors.New("unavailable")
)
