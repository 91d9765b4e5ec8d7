package promrates

import "errors"

var (
	// ErrNoURL is returned when no Prometheus address is configured.
	ErrNoURL = errors.New("promrates: prometheus url is required")

	// ErrUnexpectedResult is returned when a query yields neither a vector
	// nor a scalar.
	ErrUnexpectedResult = errors.New("promrates: unexpected query result type")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("promrates: already started")
)
