// Package emitter provides the state container at the heart of statekit: one
// logical value, an ordered subscriber list, and optional persistence plus
// cross-context synchronization keyed by a channel name.
package emitter

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/statekit/statekit/broadcast"
	"github.com/statekit/statekit/observability"
	"github.com/statekit/statekit/storage"
)

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Emitter holds one piece of state and notifies listeners of changes. When a
// channel name is configured, every Set is persisted under that name and
// broadcast to other contexts, and inbound broadcasts for the name replay
// through the local notification path without re-broadcasting.
type Emitter[T any] struct {
	value       T
	subscribers []subscriber[T]
	nextSubID   uint64

	channel  string
	store    storage.Store
	bus      broadcast.Bus
	busSub   *broadcast.Subscription
	busLease *broadcast.Handle

	clone    func(T) T
	observer observability.Observer
	closed   bool
	mu       sync.Mutex
}

// New creates an Emitter seeded with initial. Channel-backed emitters (a
// non-empty Options.ChannelName) seed instead from the persisted snapshot
// when one exists and decodes cleanly; corrupted snapshots are discarded in
// favor of initial. Options.Start, when set, runs once before New returns,
// receiving the emitter's own setter.
func New[T any](initial T, opts Options[T]) (*Emitter[T], error) {
	e := &Emitter[T]{
		channel:  opts.ChannelName,
		clone:    opts.Clone,
		observer: opts.Observer,
	}
	if e.clone == nil {
		e.clone = cloneJSON[T]
	}
	if e.observer == nil {
		e.observer = observability.NoOpObserver{}
	}

	e.value = e.clone(initial)

	if e.channel != "" {
		e.store = opts.Store
		if e.store == nil {
			e.store = processStore()
		}
		e.seed(initial)

		e.bus = opts.Bus
		if e.bus == nil {
			e.busLease = broadcast.Shared()
			e.bus = e.busLease.Bus()
		}
		e.busSub = e.bus.Subscribe(e.onEnvelope)
	}

	e.emit(observability.EventEmitterCreate, map[string]any{"channel": e.channel})

	if opts.Start != nil {
		opts.Start(e.Set)
	}

	return e, nil
}

// seed replaces the initial value with the persisted snapshot, if any.
func (e *Emitter[T]) seed(initial T) {
	raw, exists, err := e.store.Get(e.channel)
	if err != nil || !exists {
		return
	}

	var persisted T
	if err := storage.DecodeSnapshot(raw, &persisted); err != nil {
		// Corrupt snapshots degrade to the configured initial value.
		e.emit(observability.EventStorageCorrupt, map[string]any{
			"channel": e.channel,
			"error":   err.Error(),
		})
		return
	}
	e.value = persisted
}

// Get returns the current value.
func (e *Emitter[T]) Get() T {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

// Set deep-clones value, stores the clone as current state, persists and
// broadcasts it when channel-backed, then invokes every subscriber with the
// new value in subscription order. Subscriber panics are not recovered: a
// misbehaving subscriber aborts notification of later subscribers and the
// panic reaches Set's caller.
func (e *Emitter[T]) Set(value T) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}

	cloned := e.clone(value)
	e.value = cloned
	busSub := e.busSub
	targets := make([]subscriber[T], len(e.subscribers))
	copy(targets, e.subscribers)
	e.mu.Unlock()

	if e.channel != "" {
		e.persist(cloned)
		e.publish(busSub, cloned)
	}

	e.emit(observability.EventEmitterSet, map[string]any{"channel": e.channel})

	for _, sub := range targets {
		sub.fn(cloned)
	}
}

// Update applies fn to the current value and Sets the result. A nil fn is a
// no-op.
func (e *Emitter[T]) Update(fn func(T) T) {
	if fn == nil {
		return
	}
	e.Set(fn(e.Get()))
}

// Listen registers cb for every subsequent Set. The returned closure removes
// cb (a no-op when already removed) and then invokes onUnsubscribe, if
// given, with the value current at that moment. A nil cb is a contract
// violation and returns ErrNilListener.
func (e *Emitter[T]) Listen(cb func(T), onUnsubscribe ...func(T)) (func(), error) {
	if cb == nil {
		return nil, ErrNilListener
	}

	e.mu.Lock()
	e.nextSubID++
	id := e.nextSubID
	e.subscribers = append(e.subscribers, subscriber[T]{id: id, fn: cb})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		for i, sub := range e.subscribers {
			if sub.id == id {
				e.subscribers = append(e.subscribers[:i], e.subscribers[i+1:]...)
				break
			}
		}
		current := e.value
		e.mu.Unlock()

		for _, after := range onUnsubscribe {
			if after != nil {
				after(current)
			}
		}
	}, nil
}

// Unlisten removes every registered subscriber. Listen keeps working
// afterwards.
func (e *Emitter[T]) Unlisten() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers = nil
}

// Next blocks until the next value is delivered to subscribers and returns
// it, then detaches. Values set before the call are never returned; ctx
// cancellation returns ctx.Err().
func (e *Emitter[T]) Next(ctx context.Context) (T, error) {
	ch := make(chan T, 1)
	unsubscribe, err := e.Listen(func(v T) {
		select {
		case ch <- v:
		default:
		}
	})
	if err != nil {
		var zero T
		return zero, err
	}
	defer unsubscribe()

	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Close drops the subscriber list and the stored value, detaches the
// broadcast subscription, and releases the shared-bus lease when one is
// held. Close is idempotent; the emitter is terminal afterwards.
func (e *Emitter[T]) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.subscribers = nil
	var zero T
	e.value = zero
	busSub := e.busSub
	lease := e.busLease
	e.busSub = nil
	e.busLease = nil
	e.mu.Unlock()

	if busSub != nil {
		busSub.Cancel()
	}
	if lease != nil {
		lease.Release()
	}

	e.emit(observability.EventEmitterClose, map[string]any{"channel": e.channel})
}

// onEnvelope applies an inbound broadcast for this emitter's channel: update
// the value, persist it locally, and notify subscribers. No re-broadcast, so
// propagation stays one hop.
func (e *Emitter[T]) onEnvelope(env broadcast.Envelope) {
	if env.Type != e.channel {
		return
	}

	var value T
	if err := json.Unmarshal(env.Data, &value); err != nil {
		return
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.value = value
	targets := make([]subscriber[T], len(e.subscribers))
	copy(targets, e.subscribers)
	e.mu.Unlock()

	e.persist(value)

	e.emit(observability.EventBroadcastDeliver, map[string]any{"channel": e.channel})

	for _, sub := range targets {
		sub.fn(value)
	}
}

// persist writes the checksummed snapshot. Failures are surfaced through the
// observer only; state changes never fail on storage trouble.
func (e *Emitter[T]) persist(value T) {
	encoded, err := storage.EncodeSnapshot(value)
	if err == nil {
		err = e.store.Set(e.channel, encoded)
	}
	if err != nil {
		e.observer.OnEvent(context.Background(), observability.Event{
			Type:      observability.EventStorageCorrupt,
			Level:     observability.LevelWarning,
			Timestamp: time.Now(),
			Source:    "emitter",
			Data:      map[string]any{"channel": e.channel, "error": err.Error()},
		})
	}
}

// publish broadcasts value to other contexts.
func (e *Emitter[T]) publish(busSub *broadcast.Subscription, value T) {
	if busSub == nil {
		return
	}
	env, err := broadcast.NewEnvelope(e.channel, value)
	if err == nil {
		err = e.bus.Publish(context.Background(), busSub.ID(), env)
	}
	if err != nil {
		e.observer.OnEvent(context.Background(), observability.Event{
			Type:      observability.EventBroadcastPublish,
			Level:     observability.LevelWarning,
			Timestamp: time.Now(),
			Source:    "emitter",
			Data:      map[string]any{"channel": e.channel, "error": err.Error()},
		})
		return
	}

	e.emit(observability.EventBroadcastPublish, map[string]any{"channel": e.channel})
}

func (e *Emitter[T]) emit(eventType observability.EventType, data map[string]any) {
	e.observer.OnEvent(context.Background(), observability.Event{
		Type:      eventType,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    "emitter",
		Data:      data,
	})
}
