package broadcast

import (
	"context"
	"errors"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
)

// ErrBusClosed is returned by operations on a closed bus.
var ErrBusClosed = errors.New("bus closed")

// Cap on remembered envelope IDs in the duplicate guard.
const seenLimit = 1024

// Handler receives delivered envelopes.
type Handler func(Envelope)

// Bus is the pub/sub primitive linking execution contexts. Envelopes are
// never delivered back to the subscription that published them.
type Bus interface {
	// Publish delivers env to every subscription except the sender's own.
	Publish(ctx context.Context, senderID string, env Envelope) error
	// Subscribe registers handler and returns its subscription. The
	// subscription's ID doubles as the sender identity for Publish.
	Subscribe(handler Handler) *Subscription
	// Close detaches all subscriptions; further operations fail.
	Close() error
}

// Subscription is one attached handler on a bus.
type Subscription struct {
	id     string
	cancel func()
	once   sync.Once
}

// ID returns the subscription's identity, used as the sender ID on Publish.
func (s *Subscription) ID() string { return s.id }

// Cancel detaches the handler. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

type memorySubscriber struct {
	id      string
	handler Handler
}

// MemoryBus is the in-process Bus. Delivery is synchronous and in
// subscription order. Envelope IDs already seen are dropped, so a bridge
// echoing traffic back cannot cause more than one-hop propagation.
type MemoryBus struct {
	subscribers []*memorySubscriber
	seen        mapset.Set[string]
	seenOrder   []string
	closed      bool
	mu          sync.Mutex
}

// NewMemoryBus creates an empty MemoryBus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{seen: mapset.NewThreadUnsafeSet[string]()}
}

func (b *MemoryBus) Publish(_ context.Context, senderID string, env Envelope) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}

	if b.seen.Contains(env.ID) {
		b.mu.Unlock()
		return nil
	}
	b.remember(env.ID)

	targets := make([]*memorySubscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		if sub.id != senderID {
			targets = append(targets, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range targets {
		sub.handler(env)
	}
	return nil
}

func (b *MemoryBus) Subscribe(handler Handler) *Subscription {
	sub := &memorySubscriber{
		id:      uuid.NewString(),
		handler: handler,
	}

	b.mu.Lock()
	if !b.closed {
		b.subscribers = append(b.subscribers, sub)
	}
	b.mu.Unlock()

	return &Subscription{
		id:     sub.id,
		cancel: func() { b.remove(sub.id) },
	}
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subscribers = nil
	return nil
}

func (b *MemoryBus) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subscribers {
		if sub.id == id {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			return
		}
	}
}

// remember records an envelope ID, evicting the oldest past seenLimit.
// Must hold mu.
func (b *MemoryBus) remember(id string) {
	b.seen.Add(id)
	b.seenOrder = append(b.seenOrder, id)
	if len(b.seenOrder) > seenLimit {
		b.seen.Remove(b.seenOrder[0])
		b.seenOrder = b.seenOrder[1:]
	}
}
