// Package registry provides a typed singleton container: at most one
// instance per token and namespace, constructed lazily on first request.
package registry

import (
	"errors"
	"sync"
)

// ErrNotProvided is returned by Resolve when no instance has been provided
// for the token and namespace.
var ErrNotProvided = errors.New("not provided")

// DefaultNamespace scopes instances provided without an explicit namespace.
const DefaultNamespace = "default"

// Token identifies a provided type. Two tokens with the same name address
// the same instance slot, so names should be unique per type.
type Token[T any] struct {
	name string
}

// NewToken creates a token for T under name.
func NewToken[T any](name string) Token[T] {
	return Token[T]{name: name}
}

// Name returns the token's identity string.
func (t Token[T]) Name() string { return t.name }

// Scope controls where an instance lives and what runs when it is first
// constructed.
type Scope[T any] struct {
	// Namespace isolates instances of the same token. Empty means
	// DefaultNamespace.
	Namespace string

	// OnInit runs exactly once per constructed instance, right after the
	// factory returns.
	OnInit func(*T)
}

type instanceKey struct {
	token     string
	namespace string
}

// Registry holds the singleton instances. The zero value is not usable;
// construct with New.
type Registry struct {
	mu        sync.RWMutex
	instances map[instanceKey]any
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{instances: make(map[instanceKey]any)}
}

// Flush drops every instance. Later Provide calls construct fresh ones.
func (r *Registry) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances = make(map[instanceKey]any)
}

// Provide returns the instance for token in scope, constructing it with
// factory on first request. scope.OnInit fires exactly once per constructed
// instance; concurrent callers racing on first construction observe a single
// instance and a single OnInit.
func Provide[T any](r *Registry, token Token[T], scope Scope[T], factory func() *T) *T {
	key := instanceKey{token: token.name, namespace: namespaceOf(scope.Namespace)}

	r.mu.RLock()
	existing, ok := r.instances[key]
	r.mu.RUnlock()
	if ok {
		return existing.(*T)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.instances[key]; ok {
		return existing.(*T)
	}

	instance := factory()
	r.instances[key] = instance
	if scope.OnInit != nil {
		scope.OnInit(instance)
	}
	return instance
}

// Resolve returns the already-provided instance for token in namespace.
func Resolve[T any](r *Registry, token Token[T], namespace string) (*T, error) {
	key := instanceKey{token: token.name, namespace: namespaceOf(namespace)}

	r.mu.RLock()
	defer r.mu.RUnlock()
	existing, ok := r.instances[key]
	if !ok {
		return nil, ErrNotProvided
	}
	return existing.(*T), nil
}

// Forget drops the instance for token in namespace, if any. The next Provide
// constructs a new one.
func Forget[T any](r *Registry, token Token[T], namespace string) {
	key := instanceKey{token: token.name, namespace: namespaceOf(namespace)}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, key)
}

func namespaceOf(namespace string) string {
	if namespace == "" {
		return DefaultNamespace
	}
	return namespace
}
