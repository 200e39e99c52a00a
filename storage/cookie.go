package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const cookiePrefix = "statekit."

// cookieEntry is one persisted cookie: its value and an optional expiry.
type cookieEntry struct {
	Value   string    `json:"value"`
	Expires time.Time `json:"expires,omitzero"`
}

// CookieStore persists values in a single jar file with per-entry expiry,
// mirroring cookie semantics: every key lives under a fixed name prefix and
// expired entries read as absent and are purged lazily on the next write.
type CookieStore struct {
	path   string
	maxAge time.Duration
	now    func() time.Time
	mu     sync.Mutex
}

// NewCookieStore creates a CookieStore backed by the jar file at path.
// Entries written through Set expire after maxAge; zero means no expiry.
func NewCookieStore(path string, maxAge time.Duration) *CookieStore {
	return &CookieStore{path: path, maxAge: maxAge, now: time.Now}
}

func (s *CookieStore) load() (map[string]cookieEntry, error) {
	jar := make(map[string]cookieEntry)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return jar, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	// A damaged jar is treated as empty rather than poisoning every read.
	if err := json.Unmarshal(data, &jar); err != nil {
		return make(map[string]cookieEntry), nil
	}
	return jar, nil
}

func (s *CookieStore) save(jar map[string]cookieEntry) error {
	data, err := json.Marshal(jar)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	return nil
}

func (s *CookieStore) expired(e cookieEntry) bool {
	return !e.Expires.IsZero() && !s.now().Before(e.Expires)
}

func (s *CookieStore) purge(jar map[string]cookieEntry) {
	for name, e := range jar {
		if s.expired(e) {
			delete(jar, name)
		}
	}
}

func (s *CookieStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jar, err := s.load()
	if err != nil {
		return "", false, err
	}

	e, exists := jar[cookiePrefix+key]
	if !exists || s.expired(e) {
		return "", false, nil
	}
	return e.Value, true, nil
}

func (s *CookieStore) Set(key string, value any) error {
	encoded, err := encode(value)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jar, err := s.load()
	if err != nil {
		return err
	}
	s.purge(jar)

	e := cookieEntry{Value: encoded}
	if s.maxAge > 0 {
		e.Expires = s.now().Add(s.maxAge)
	}
	jar[cookiePrefix+key] = e

	return s.save(jar)
}

func (s *CookieStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jar, err := s.load()
	if err != nil {
		return err
	}
	delete(jar, cookiePrefix+key)
	return s.save(jar)
}

func (s *CookieStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jar, err := s.load()
	if err != nil {
		return err
	}
	for name := range jar {
		if strings.HasPrefix(name, cookiePrefix) {
			delete(jar, name)
		}
	}
	return s.save(jar)
}

func (s *CookieStore) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jar, err := s.load()
	if err != nil {
		return nil, err
	}

	var keys []string
	for name, e := range jar {
		if s.expired(e) || !strings.HasPrefix(name, cookiePrefix) {
			continue
		}
		keys = append(keys, strings.TrimPrefix(name, cookiePrefix))
	}
	return keys, nil
}
