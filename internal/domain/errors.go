package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrNoRows            = errors.New("No rows returned")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid status transition")
)
