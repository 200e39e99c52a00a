package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/statekit/statekit/observability"
)

// Built-in backend names accepted by Manager.Select.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendCookie = "cookie"
)

// Manager owns the set of registered backends and the currently active one.
// It implements Store by delegating to the active backend, so callers can
// hold a Manager where a Store is expected and switch backends underneath.
type Manager struct {
	backends map[string]Store
	active   Store
	name     string
	observer observability.Observer
	mu       sync.RWMutex
}

// NewManager creates a Manager with the given backends registered. The first
// name in order of registration is NOT auto-selected; call Select before use
// or construct via NewDefaultManager. A nil observer defaults to NoOpObserver.
func NewManager(observer observability.Observer) *Manager {
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	return &Manager{
		backends: make(map[string]Store),
		observer: observer,
	}
}

// Register adds a named backend. Registering an existing name replaces it.
func (m *Manager) Register(name string, store Store) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backends[name] = store
}

// Active returns the currently selected backend and its name.
func (m *Manager) Active() (Store, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active, m.name
}

// Select makes the named backend active. The candidate must pass a
// write/read/remove self-test; a failing backend is rejected with
// ErrBackendUnavailable and the previous selection stays active. On success
// every key held by the previously active backend is migrated to the new one
// and removed from the old, so no data is lost across the switch.
func (m *Manager) Select(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	candidate, exists := m.backends[name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}

	if err := selfTest(candidate); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, name, err)
	}

	previous := m.active
	if previous != nil && previous != candidate {
		migrated, err := migrate(previous, candidate)
		if err != nil {
			return err
		}
		m.observer.OnEvent(context.Background(), observability.Event{
			Type:      observability.EventStorageMigrate,
			Level:     observability.LevelInfo,
			Timestamp: time.Now(),
			Source:    "storage",
			Data:      map[string]any{"from": m.name, "to": name, "keys": migrated},
		})
	}

	m.active = candidate
	m.name = name

	m.observer.OnEvent(context.Background(), observability.Event{
		Type:      observability.EventStorageSelect,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    "storage",
		Data:      map[string]any{"backend": name},
	})

	return nil
}

// selfTest verifies a backend can round-trip a probe value.
func selfTest(store Store) error {
	probe := ".selftest-" + uuid.NewString()

	if err := store.Set(probe, "ok"); err != nil {
		return err
	}
	value, exists, err := store.Get(probe)
	if err != nil {
		return err
	}
	if !exists || value != "ok" {
		return fmt.Errorf("probe value did not round-trip")
	}
	return store.Remove(probe)
}

// migrate copies every key from src to dst, then removes it from src.
// Returns the number of keys moved.
func migrate(src, dst Store) (int, error) {
	keys, err := src.Keys()
	if err != nil {
		return 0, fmt.Errorf("migration aborted: %w", err)
	}

	for _, key := range keys {
		value, exists, err := src.Get(key)
		if err != nil {
			return 0, fmt.Errorf("migration aborted: %s: %w", key, err)
		}
		if !exists {
			continue
		}
		if err := dst.Set(key, value); err != nil {
			return 0, fmt.Errorf("migration aborted: %s: %w", key, err)
		}
	}

	// Remove only after every key landed on the destination.
	for _, key := range keys {
		if err := src.Remove(key); err != nil {
			return 0, fmt.Errorf("migration cleanup failed: %s: %w", key, err)
		}
	}

	return len(keys), nil
}

// Store delegation.

func (m *Manager) Get(key string) (string, bool, error) {
	store, err := m.require()
	if err != nil {
		return "", false, err
	}
	return store.Get(key)
}

func (m *Manager) Set(key string, value any) error {
	store, err := m.require()
	if err != nil {
		return err
	}
	return store.Set(key, value)
}

func (m *Manager) Remove(key string) error {
	store, err := m.require()
	if err != nil {
		return err
	}
	return store.Remove(key)
}

func (m *Manager) Clear() error {
	store, err := m.require()
	if err != nil {
		return err
	}
	return store.Clear()
}

func (m *Manager) Keys() ([]string, error) {
	store, err := m.require()
	if err != nil {
		return nil, err
	}
	return store.Keys()
}

func (m *Manager) require() (Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == nil {
		return nil, fmt.Errorf("%w: no backend selected", ErrBackendUnavailable)
	}
	return m.active, nil
}

// NewDefaultManager builds a Manager with the three standard backends
// registered (memory, file under dir, cookie jar under dir) and tries to
// select them most-durable first. It fails only when no backend passes its
// self-test.
func NewDefaultManager(dir string, observer observability.Observer) (*Manager, error) {
	m := NewManager(observer)
	m.Register(BackendFile, NewFileStore(dir))
	m.Register(BackendCookie, NewCookieStore(dir+"/cookies.json", 0))
	m.Register(BackendMemory, NewMemoryStore())

	for _, name := range []string{BackendFile, BackendCookie, BackendMemory} {
		if err := m.Select(name); err == nil {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: no backend passed self-test", ErrBackendUnavailable)
}
