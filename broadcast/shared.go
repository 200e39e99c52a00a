package broadcast

import "sync"

var (
	sharedMu   sync.Mutex
	sharedBus  *MemoryBus
	sharedRefs int
)

// Handle is a reference-counted lease on the process-wide shared bus.
type Handle struct {
	bus  *MemoryBus
	once sync.Once
}

// Bus returns the shared bus behind this handle.
func (h *Handle) Bus() Bus { return h.bus }

// Release gives the lease back. When the last handle is released the shared
// bus is closed and a later Shared call creates a fresh one.
func (h *Handle) Release() {
	h.once.Do(func() {
		sharedMu.Lock()
		defer sharedMu.Unlock()

		sharedRefs--
		if sharedRefs == 0 && sharedBus == h.bus {
			sharedBus.Close()
			sharedBus = nil
		}
	})
}

// Shared returns a handle on the process-wide bus, creating it on first use.
// Every channel-backed emitter in the process shares the same bus, which is
// how same-process contexts observe each other's writes.
func Shared() *Handle {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedBus == nil {
		sharedBus = NewMemoryBus()
	}
	sharedRefs++
	return &Handle{bus: sharedBus}
}
