package model

import "errors"

var (
	// ErrInvalidArgument is returned for missing filters, bad types or out-of-range values.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnknownCollection is returned when a collection name is not one of Collections.
	ErrUnknownCollection = errors.New("unknown collection")
	// ErrNotFound is returned when an operation needs an entity the mirror does not hold.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a create would duplicate a natural key.
	ErrConflict = errors.New("already exists")
	// ErrReconciliationMismatch is returned when an accepted mutation cannot be mapped
	// back onto the caller's input.
	ErrReconciliationMismatch = errors.New("reconciliation mismatch")
)
