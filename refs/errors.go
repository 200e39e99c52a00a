package refs

import "errors"

// Sentinel errors for ref construction and execution.
var (
	// ErrNilProducer is returned when an async ref is constructed without
	// a producer function.
	ErrNilProducer = errors.New("nil producer")

	// ErrNoReducer is returned when Execute runs on a reducable ref
	// before any reducer has been installed.
	ErrNoReducer = errors.New("no reducer installed")
)
