package services

import "errors"

// Pipeline service errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidPath     = errors.New("invalid path")
	ErrTooManySessions = errors.New("too many sessions")
)
