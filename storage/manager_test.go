package storage

import (
	"errors"
	"os"
	"sort"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

// failingStore rejects every write, so it can never pass a self-test.
type failingStore struct{ MemoryStore }

func (*failingStore) Set(key string, value any) error {
	return errors.New("disk full")
}

func TestManager_SelectUnknown(t *testing.T) {
	m := NewManager(nil)

	err := m.Select("redis")
	if !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("Select() error = %v, want ErrUnknownBackend", err)
	}
}

func TestManager_SelectRejectsFailingBackend(t *testing.T) {
	m := NewManager(nil)
	m.Register(BackendMemory, NewMemoryStore())
	m.Register("broken", &failingStore{})

	if err := m.Select(BackendMemory); err != nil {
		t.Fatalf("Select(memory) error = %v", err)
	}

	err := m.Select("broken")
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("Select(broken) error = %v, want ErrBackendUnavailable", err)
	}

	// Previous selection must remain active.
	if _, name := m.Active(); name != BackendMemory {
		t.Errorf("Active() = %s, want %s", name, BackendMemory)
	}
}

func TestManager_SelectMigratesKeys(t *testing.T) {
	session := NewMemoryStore()
	durable := NewFileStore(t.TempDir())

	m := NewManager(nil)
	m.Register(BackendMemory, session)
	m.Register(BackendFile, durable)

	if err := m.Select(BackendMemory); err != nil {
		t.Fatalf("Select(memory) error = %v", err)
	}
	for _, key := range []string{"alpha", "beta"} {
		if err := m.Set(key, key+"-value"); err != nil {
			t.Fatalf("Set(%q) error = %v", key, err)
		}
	}

	if err := m.Select(BackendFile); err != nil {
		t.Fatalf("Select(file) error = %v", err)
	}

	// All keys readable from the new backend.
	keys, err := durable.Keys()
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "alpha" || keys[1] != "beta" {
		t.Fatalf("Keys() = %v, want [alpha beta]", keys)
	}
	value, exists, err := m.Get("alpha")
	if err != nil || !exists || value != "alpha-value" {
		t.Errorf("Get(alpha) = %q, %v, %v, want alpha-value, true, nil", value, exists, err)
	}

	// The old backend no longer holds them.
	old, err := session.Keys()
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(old) != 0 {
		t.Errorf("old backend keys = %v, want empty", old)
	}
}

func TestManager_RequiresSelection(t *testing.T) {
	m := NewManager(nil)
	m.Register(BackendMemory, NewMemoryStore())

	if err := m.Set("k", "v"); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("Set() error = %v, want ErrBackendUnavailable", err)
	}
}

func TestNewDefaultManager(t *testing.T) {
	m, err := NewDefaultManager(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewDefaultManager() error = %v", err)
	}
	if _, name := m.Active(); name != BackendFile {
		t.Errorf("Active() = %s, want %s", name, BackendFile)
	}
}
