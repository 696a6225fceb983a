package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrDuplicateResponse = errors.New("donor already responded to this request")
	ErrRequestClosed     = errors.New("request is no longer open")
	ErrInvalidTransition = errors.New("invalid response status transition")
	ErrInvalidState      = errors.New("operation not allowed in current state")
	ErrLocationUnset     = errors.New("donor location is not set")
)
