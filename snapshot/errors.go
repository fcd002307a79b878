package snapshot

import "errors"

var (
	// ErrNoData is returned when an ingress body is absent or not valid JSON.
	ErrNoData = errors.New("snapshot: no data received")

	// ErrNotArray is returned when a value must be a JSON array and is not.
	ErrNotArray = errors.New("snapshot: expected a JSON array")

	// ErrNotContainer is returned when a value is neither object nor array.
	ErrNotContainer = errors.New("snapshot: expected a JSON object or array")
)
