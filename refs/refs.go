// Package refs provides typed reference factories over the emitter: writable
// and readable values, async variants driven by a producer function, and a
// reducable variant that folds produced values into accumulated state.
package refs

import (
	"context"

	"github.com/statekit/statekit/emitter"
)

// Writable is a readable and externally settable reference.
type Writable[T any] struct {
	em *emitter.Emitter[T]
}

// NewWritable creates a writable reference seeded with initial.
func NewWritable[T any](initial T, opts emitter.Options[T]) (*Writable[T], error) {
	em, err := emitter.New(initial, opts)
	if err != nil {
		return nil, err
	}
	return &Writable[T]{em: em}, nil
}

// Get returns the current value.
func (w *Writable[T]) Get() T { return w.em.Get() }

// Set replaces the current value. The value crosses the emitter's clone
// boundary, so later mutation of the argument does not leak in.
func (w *Writable[T]) Set(value T) { w.em.Set(value) }

// Update applies fn to the current value and stores the result.
func (w *Writable[T]) Update(fn func(T) T) { w.em.Update(fn) }

// Listen registers cb for every subsequent change.
func (w *Writable[T]) Listen(cb func(T), onUnsubscribe ...func(T)) (func(), error) {
	return w.em.Listen(cb, onUnsubscribe...)
}

// Next blocks until the next change and returns the new value.
func (w *Writable[T]) Next(ctx context.Context) (T, error) { return w.em.Next(ctx) }

// Close releases the underlying emitter.
func (w *Writable[T]) Close() { w.em.Close() }

// Readable is a reference without an exported setter. Only the Options.Start
// callback supplied at construction can drive its value.
type Readable[T any] struct {
	em *emitter.Emitter[T]
}

// NewReadable creates a read-only reference seeded with initial. Updates flow
// exclusively through opts.Start, which receives the internal setter.
func NewReadable[T any](initial T, opts emitter.Options[T]) (*Readable[T], error) {
	em, err := emitter.New(initial, opts)
	if err != nil {
		return nil, err
	}
	return &Readable[T]{em: em}, nil
}

// Get returns the current value.
func (r *Readable[T]) Get() T { return r.em.Get() }

// Listen registers cb for every subsequent change.
func (r *Readable[T]) Listen(cb func(T), onUnsubscribe ...func(T)) (func(), error) {
	return r.em.Listen(cb, onUnsubscribe...)
}

// Next blocks until the next change and returns the new value.
func (r *Readable[T]) Next(ctx context.Context) (T, error) { return r.em.Next(ctx) }

// Close releases the underlying emitter.
func (r *Readable[T]) Close() { r.em.Close() }
