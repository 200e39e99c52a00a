package reactive

import (
	"reflect"
	"strconv"
	"strings"
)

// isContainer reports whether v is a wrappable graph node. Primitives are
// never wrapped.
func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}

// sameContainer reports whether two container values are the same underlying
// map or slice instance.
func sameContainer(a, b any) bool {
	switch a.(type) {
	case map[string]any:
		if _, ok := b.(map[string]any); !ok {
			return false
		}
	case []any:
		if _, ok := b.([]any); !ok {
			return false
		}
	default:
		return false
	}
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

// containerChild resolves one path segment against a container.
func containerChild(container any, segment string) (any, bool) {
	switch c := container.(type) {
	case map[string]any:
		child, exists := c[segment]
		return child, exists
	case []any:
		index, err := strconv.Atoi(segment)
		if err != nil || index < 0 || index >= len(c) {
			return nil, false
		}
		return c[index], true
	default:
		return nil, false
	}
}

// containerStore writes value under key on the real target. Slice writes
// must land in range; growth happens by replacing the slice at its parent.
func containerStore(container any, key string, value any) error {
	switch c := container.(type) {
	case map[string]any:
		c[key] = value
		return nil
	case []any:
		index, err := strconv.Atoi(key)
		if err != nil || index < 0 || index >= len(c) {
			return ErrPathNotFound
		}
		c[index] = value
		return nil
	default:
		return ErrPathNotFound
	}
}

// ownKeys returns the keys present on a container right now. Every index of
// a slice is an own key, mirroring array element semantics.
func ownKeys(container any) map[string]bool {
	known := make(map[string]bool)
	switch c := container.(type) {
	case map[string]any:
		for k := range c {
			known[k] = true
		}
	case []any:
		for i := range c {
			known[strconv.Itoa(i)] = true
		}
	}
	return known
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

func joinPath(parent, segment string) string {
	if parent == "" {
		return segment
	}
	return parent + "/" + segment
}
