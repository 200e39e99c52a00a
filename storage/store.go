// Package storage provides string-keyed persistence for statekit. A Store is
// a flat key-value namespace behind which interchangeable backends sit; the
// Manager selects the active backend at runtime and migrates keys between
// backends without data loss.
package storage

import "encoding/json"

// Store is a synchronous string-keyed store. Non-string values passed to Set
// are serialized as JSON; Get returns the stored string form.
// Implementations perform I/O on each call without caching.
type Store interface {
	// Get retrieves the value for key. The second return is false when the
	// key is absent.
	Get(key string) (string, bool, error)
	// Set persists value under key, creating or overwriting as needed.
	Set(key string, value any) error
	// Remove deletes key. Missing keys are ignored.
	Remove(key string) error
	// Clear removes every key in the store.
	Clear() error
	// Keys returns all keys currently present.
	Keys() ([]string, error)
}

// encode renders a value to its stored string form. Strings pass through
// unchanged; everything else is JSON-encoded.
func encode(value any) (string, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
