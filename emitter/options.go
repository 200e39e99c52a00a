package emitter

import (
	"sync"

	"github.com/statekit/statekit/broadcast"
	"github.com/statekit/statekit/observability"
	"github.com/statekit/statekit/storage"
)

// Options configure an Emitter. The zero value is a plain in-memory emitter
// with no persistence or broadcast.
type Options[T any] struct {
	// ChannelName enables persistence and cross-context broadcast. The
	// name keys both the persisted snapshot and the routing tag on
	// broadcast envelopes.
	ChannelName string

	// Start, when set, runs exactly once during construction with the
	// emitter's own setter, letting an external source drive updates.
	Start func(set func(T))

	// Store overrides the backend for persisted snapshots. Defaults to a
	// process-wide in-memory store; pass a storage.FileStore or
	// storage.Manager for durability.
	Store storage.Store

	// Bus overrides the broadcast transport. Defaults to a lease on the
	// process-wide shared bus, released on Close.
	Bus broadcast.Bus

	// Clone replaces the deep-clone strategy applied on every Set.
	// Defaults to a JSON round-trip; structural copy of large graphs on
	// every write is a known cost of the isolation guarantee.
	Clone func(T) T

	// Observer receives emitter lifecycle events. Defaults to NoOpObserver.
	Observer observability.Observer
}

var (
	processStoreOnce sync.Once
	processStoreInst *storage.MemoryStore
)

// processStore is the fallback snapshot store shared by every channel-backed
// emitter constructed without an explicit Store.
func processStore() storage.Store {
	processStoreOnce.Do(func() {
		processStoreInst = storage.NewMemoryStore()
	})
	return processStoreInst
}
