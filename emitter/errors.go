package emitter

import "errors"

// ErrNilListener is returned by Listen when the callback is nil. This is a
// caller-contract violation, not a recoverable runtime state.
var ErrNilListener = errors.New("listener must not be nil")
