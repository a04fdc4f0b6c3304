package usecase

import "errors"

// Repository-level sentinel errors.
var (
	// ErrMetaNotFound indicates no durable metadata row exists for the
	// requested username.
	ErrMetaNotFound = errors.New("session metadata not found")
)
