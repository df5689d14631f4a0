package errors

import "errors"

var (
	ErrNotFound = errors.New("slot not found")

	ErrInvalidID = errors.New("invalid slot ID format")

	// ErrUnavailable means the conditional write matched no document: the
	// slot is booked, blocked, or held by a live reservation.
	ErrUnavailable = errors.New("slot not available")
)
