package refs

import (
	"context"
	"sync"
	"time"

	"github.com/statekit/statekit/emitter"
	"github.com/statekit/statekit/observability"
)

// Producer computes a value for an async ref. It receives the arguments
// passed to Execute and may block; cancellation flows through ctx.
type Producer[T any] func(ctx context.Context, args ...any) (T, error)

// asyncCore is the shared machinery behind the async ref variants: an
// emitter for the settled value, the producer, the awaiting flag, and a
// one-shot resolved callback. Overlapping Executes race on a generation
// counter and only the most recent one stores its result.
type asyncCore[T any] struct {
	em       *emitter.Emitter[T]
	producer Producer[T]
	observer observability.Observer

	mu         sync.Mutex
	awaiting   int
	generation uint64
	onResolved func(T)
}

func newAsyncCore[T any](initial T, producer Producer[T], opts emitter.Options[T]) (*asyncCore[T], error) {
	if producer == nil {
		return nil, ErrNilProducer
	}

	observer := opts.Observer
	if observer == nil {
		observer = observability.NoOpObserver{}
	}

	em, err := emitter.New(initial, opts)
	if err != nil {
		return nil, err
	}

	return &asyncCore[T]{
		em:       em,
		producer: producer,
		observer: observer,
	}, nil
}

// execute runs the producer and settles the result through fold, which maps
// the produced value onto the stored one. The awaiting flag covers the full
// producer run and resets on success and failure alike. When Executes
// overlap, the one that started last is the only one allowed to settle.
func (c *asyncCore[T]) execute(ctx context.Context, fold func(latest T) T, args ...any) (T, error) {
	c.mu.Lock()
	c.awaiting++
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	c.emit(observability.EventRefExecute, map[string]any{"args": len(args)})

	defer func() {
		c.mu.Lock()
		c.awaiting--
		c.mu.Unlock()
	}()

	value, err := c.producer(ctx, args...)
	if err != nil {
		c.emit(observability.EventRefSettle, map[string]any{"error": err.Error()})
		var zero T
		return zero, err
	}

	c.mu.Lock()
	stale := gen != c.generation
	resolved := c.onResolved
	if !stale {
		c.onResolved = nil
	}
	c.mu.Unlock()

	if stale {
		return value, nil
	}

	settled := fold(value)
	c.em.Set(settled)
	c.emit(observability.EventRefSettle, nil)

	if resolved != nil {
		resolved(settled)
	}
	return settled, nil
}

// isAwaiting reports whether at least one Execute is in flight.
func (c *asyncCore[T]) isAwaiting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.awaiting > 0
}

// setOnResolved installs the one-shot callback fired after the next
// successful settle.
func (c *asyncCore[T]) setOnResolved(fn func(T)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onResolved = fn
}

func (c *asyncCore[T]) emit(eventType observability.EventType, data map[string]any) {
	c.observer.OnEvent(context.Background(), observability.Event{
		Type:      eventType,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    "refs",
		Data:      data,
	})
}

// AsyncWritable is a writable reference whose value can also be produced
// asynchronously through Execute.
type AsyncWritable[T any] struct {
	core *asyncCore[T]
}

// NewAsyncWritable creates an async writable reference. producer must be
// non-nil.
func NewAsyncWritable[T any](initial T, producer Producer[T], opts emitter.Options[T]) (*AsyncWritable[T], error) {
	core, err := newAsyncCore(initial, producer, opts)
	if err != nil {
		return nil, err
	}
	return &AsyncWritable[T]{core: core}, nil
}

// Get returns the current value.
func (a *AsyncWritable[T]) Get() T { return a.core.em.Get() }

// Set replaces the current value directly, bypassing the producer.
func (a *AsyncWritable[T]) Set(value T) { a.core.em.Set(value) }

// Execute runs the producer with args and stores the result. Producer errors
// return to the caller without touching the stored value.
func (a *AsyncWritable[T]) Execute(ctx context.Context, args ...any) (T, error) {
	return a.core.execute(ctx, func(latest T) T { return latest }, args...)
}

// IsAwaiting reports whether an Execute is in flight.
func (a *AsyncWritable[T]) IsAwaiting() bool { return a.core.isAwaiting() }

// OnResolved installs a one-shot callback fired with the settled value after
// the next successful Execute.
func (a *AsyncWritable[T]) OnResolved(fn func(T)) { a.core.setOnResolved(fn) }

// Listen registers cb for every subsequent change.
func (a *AsyncWritable[T]) Listen(cb func(T), onUnsubscribe ...func(T)) (func(), error) {
	return a.core.em.Listen(cb, onUnsubscribe...)
}

// Close releases the underlying emitter.
func (a *AsyncWritable[T]) Close() { a.core.em.Close() }

// AsyncReadable is a read-only reference whose value is produced exclusively
// through Execute.
type AsyncReadable[T any] struct {
	core *asyncCore[T]
}

// NewAsyncReadable creates an async read-only reference. producer must be
// non-nil.
func NewAsyncReadable[T any](initial T, producer Producer[T], opts emitter.Options[T]) (*AsyncReadable[T], error) {
	core, err := newAsyncCore(initial, producer, opts)
	if err != nil {
		return nil, err
	}
	return &AsyncReadable[T]{core: core}, nil
}

// Get returns the current value.
func (a *AsyncReadable[T]) Get() T { return a.core.em.Get() }

// Execute runs the producer with args and stores the result. Producer errors
// return to the caller without touching the stored value.
func (a *AsyncReadable[T]) Execute(ctx context.Context, args ...any) (T, error) {
	return a.core.execute(ctx, func(latest T) T { return latest }, args...)
}

// IsAwaiting reports whether an Execute is in flight.
func (a *AsyncReadable[T]) IsAwaiting() bool { return a.core.isAwaiting() }

// OnResolved installs a one-shot callback fired with the settled value after
// the next successful Execute.
func (a *AsyncReadable[T]) OnResolved(fn func(T)) { a.core.setOnResolved(fn) }

// Listen registers cb for every subsequent change.
func (a *AsyncReadable[T]) Listen(cb func(T), onUnsubscribe ...func(T)) (func(), error) {
	return a.core.em.Listen(cb, onUnsubscribe...)
}

// Close releases the underlying emitter.
func (a *AsyncReadable[T]) Close() { a.core.em.Close() }
