// Package reactive makes arbitrary-depth mutation of a plain object graph
// observable. Dynamic property interception does not exist in Go, so the
// proxy scheme becomes an explicit path-addressed interface: Get lazily
// materializes tracking nodes for the containers it visits, Set writes
// through to the raw graph and notifies root-level observers.
package reactive

import (
	"errors"
	"sync"
)

// Sentinel errors for tree operations.
var (
	ErrNotContainer = errors.New("root is not a container")
	ErrEmptyPath    = errors.New("empty path")
	ErrPathNotFound = errors.New("path not found")
)

// node tracks one materialized container in the graph. known holds the child
// keys that were present at materialization or have been read since; only
// writes to known keys materialize their new value in turn.
type node struct {
	target any
	known  map[string]bool
}

// Tree wraps one raw object graph (nested map[string]any / []any). All reads
// and writes address the graph by /-separated paths; every write, at any
// depth, notifies observers with the ROOT graph, never a sub-tree.
type Tree struct {
	root      any
	notify    func(root any)
	listeners []listenerEntry
	nextID    uint64
	nodes     map[string]*node
	mu        sync.Mutex
}

type listenerEntry struct {
	id uint64
	fn func(root any)
}

// Wrap establishes a reactive graph rooted at raw. notify, when non-nil, is
// invoked with the root graph after every write; it is how a Tree drives an
// emitter or any other trigger mechanism. Non-container roots are rejected.
func Wrap(raw any, notify func(root any)) (*Tree, error) {
	if !isContainer(raw) {
		return nil, ErrNotContainer
	}

	t := &Tree{
		root:   raw,
		notify: notify,
		nodes:  make(map[string]*node),
	}
	t.materialize("", raw)
	return t, nil
}

// Root returns the raw graph.
func (t *Tree) Root() any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.root
}

// Get resolves path against the graph. Every container visited on the way
// down is materialized (memoized per path), so a key becomes fully reactive
// after its first read even when it was added after Wrap. The empty path
// resolves to the root.
func (t *Tree) Get(path string) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if path == "" {
		return t.root, true
	}

	segments := splitPath(path)
	current := t.root
	currentPath := ""

	for _, segment := range segments {
		child, ok := containerChild(current, segment)
		if !ok {
			return nil, false
		}

		if n, exists := t.nodes[currentPath]; exists {
			n.known[segment] = true
		}

		currentPath = joinPath(currentPath, segment)
		if isContainer(child) {
			t.materialize(currentPath, child)
		}
		current = child
	}

	return current, true
}

// Set writes value at path on the underlying raw target and then notifies
// observers with the root graph. A container value is materialized before
// storage only when its key is already known to the parent (present at wrap
// time or read since); a brand-new key is stored as-is and becomes reactive
// on its first read. Missing intermediate segments fail with ErrPathNotFound.
func (t *Tree) Set(path string, value any) error {
	t.mu.Lock()

	if path == "" {
		t.mu.Unlock()
		return ErrEmptyPath
	}

	segments := splitPath(path)
	parentSegments, key := segments[:len(segments)-1], segments[len(segments)-1]

	parent := t.root
	parentPath := ""
	for _, segment := range parentSegments {
		child, ok := containerChild(parent, segment)
		if !ok || !isContainer(child) {
			t.mu.Unlock()
			return ErrPathNotFound
		}
		parentPath = joinPath(parentPath, segment)
		parent = child
	}

	childPath := joinPath(parentPath, key)

	// The subtree is being replaced wholesale: stale nodes under it must
	// not shadow the new value.
	t.invalidate(childPath)

	if isContainer(value) {
		if n, exists := t.nodes[parentPath]; exists && n.known[key] {
			t.materialize(childPath, value)
		}
	}

	if err := containerStore(parent, key, value); err != nil {
		t.mu.Unlock()
		return err
	}

	root := t.root
	notify := t.notify
	targets := make([]listenerEntry, len(t.listeners))
	copy(targets, t.listeners)
	t.mu.Unlock()

	if notify != nil {
		notify(root)
	}
	for _, l := range targets {
		l.fn(root)
	}
	return nil
}

// Subscribe registers fn to run with the root graph after every write.
// The returned closure detaches it.
func (t *Tree) Subscribe(fn func(root any)) func() {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.listeners = append(t.listeners, listenerEntry{id: id, fn: fn})
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		for i, l := range t.listeners {
			if l.id == id {
				t.listeners = append(t.listeners[:i], t.listeners[i+1:]...)
				return
			}
		}
	}
}

// materialize memoizes a tracking node for the container at path. An
// existing node is reused while it still tracks the same target, keeping
// wrapper identity stable across repeated reads.
func (t *Tree) materialize(path string, target any) {
	if n, exists := t.nodes[path]; exists && sameContainer(n.target, target) {
		return
	}

	t.nodes[path] = &node{
		target: target,
		known:  ownKeys(target),
	}
}

// invalidate drops the node at path and every node beneath it. Must hold mu.
func (t *Tree) invalidate(path string) {
	prefix := path + "/"
	for p := range t.nodes {
		if p == path || (len(p) > len(prefix) && p[:len(prefix)] == prefix) {
			delete(t.nodes, p)
		}
	}
}
