package storage

import "errors"

var (
	// ErrDuplicateKey is returned when a batch repeats a stored key:
	// (address, timestamp_ms) for candles, event_id for events.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned for nil records or records without a key.
	ErrInvalidInput = errors.New("invalid input")
)
