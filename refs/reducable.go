package refs

import (
	"context"
	"sync"

	"github.com/statekit/statekit/emitter"
)

// AsyncReducable folds produced values into accumulated state instead of
// replacing it: every settle runs the installed reducer over the previous
// value and the freshly produced one.
type AsyncReducable[T any] struct {
	core     *asyncCore[T]
	initial  T
	initArgs []any

	mu      sync.Mutex
	reducer func(prev, latest T) T
}

// NewAsyncReducable creates a reducable reference. initArgs are replayed as
// the producer arguments of the initial Execute triggered by the first
// Reduce call. producer must be non-nil.
func NewAsyncReducable[T any](initial T, producer Producer[T], opts emitter.Options[T], initArgs ...any) (*AsyncReducable[T], error) {
	core, err := newAsyncCore(initial, producer, opts)
	if err != nil {
		return nil, err
	}
	return &AsyncReducable[T]{
		core:     core,
		initial:  initial,
		initArgs: initArgs,
	}, nil
}

// Get returns the current accumulated value.
func (a *AsyncReducable[T]) Get() T { return a.core.em.Get() }

// Reduce installs fn as the reducer. The first installation triggers an
// initial Execute with the constructor arguments; later installations only
// swap the reducer. The error, if any, is the initial Execute's.
func (a *AsyncReducable[T]) Reduce(ctx context.Context, fn func(prev, latest T) T) error {
	a.mu.Lock()
	first := a.reducer == nil
	a.reducer = fn
	a.mu.Unlock()

	if !first {
		return nil
	}
	_, err := a.Execute(ctx, a.initArgs...)
	return err
}

// Execute runs the producer with args and folds the result into the current
// value through the installed reducer. Without a reducer it fails with
// ErrNoReducer.
func (a *AsyncReducable[T]) Execute(ctx context.Context, args ...any) (T, error) {
	a.mu.Lock()
	reducer := a.reducer
	a.mu.Unlock()

	if reducer == nil {
		var zero T
		return zero, ErrNoReducer
	}

	return a.core.execute(ctx, func(latest T) T {
		return reducer(a.core.em.Get(), latest)
	}, args...)
}

// Reset restores the initial value without running the producer. The
// installed reducer stays in place.
func (a *AsyncReducable[T]) Reset() {
	a.core.em.Set(a.initial)
}

// IsAwaiting reports whether an Execute is in flight.
func (a *AsyncReducable[T]) IsAwaiting() bool { return a.core.isAwaiting() }

// OnResolved installs a one-shot callback fired with the settled value after
// the next successful Execute.
func (a *AsyncReducable[T]) OnResolved(fn func(T)) { a.core.setOnResolved(fn) }

// Listen registers cb for every subsequent change.
func (a *AsyncReducable[T]) Listen(cb func(T), onUnsubscribe ...func(T)) (func(), error) {
	return a.core.em.Listen(cb, onUnsubscribe...)
}

// Close releases the underlying emitter.
func (a *AsyncReducable[T]) Close() { a.core.em.Close() }
