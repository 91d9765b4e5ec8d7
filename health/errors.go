package health

import "errors"

var (
	// ErrCheckerNotFound indicates a checker was not found.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrAlreadyStarted indicates Start was called on a running checker.
	ErrAlreadyStarted = errors.New("health: checker already started")

	// ErrInvalidWatermarks indicates the watermarks violate 0 <= low < high <= 1.
	ErrInvalidWatermarks = errors.New("health: invalid watermarks")

	// ErrUnrecognizedEvent indicates a watch delivered an event type the
	// connectivity checker does not understand.
	ErrUnrecognizedEvent = errors.New("health: unrecognized watch event")

	// ErrWatchClosed indicates the source ended a watch that was never
	// cancelled.
	ErrWatchClosed = errors.New("health: watch closed by source")
)
