package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrUnknownKind is returned by a Registry asked to resolve a kind nobody registered.
var ErrUnknownKind = errors.New("unknown entity kind")

// Ref identifies an external entity (an agent or a reason) by kind and id.
// Two refs are equal iff both fields match, so Ref is usable as a map key.
type Ref struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// NewRef builds a Ref from a kind discriminator and an opaque id.
func NewRef(kind, id string) Ref {
	return Ref{Kind: kind, ID: id}
}

// IsZero reports whether the ref is missing its kind or id.
func (r Ref) IsZero() bool {
	return strings.TrimSpace(r.Kind) == "" || strings.TrimSpace(r.ID) == ""
}

func (r Ref) String() string {
	return r.Kind + ":" + r.ID
}

// Entity is any application type that can take part in a transaction.
type Entity interface {
	EntityKind() string
	EntityID() string
}

// RefOf returns the reference for an entity.
func RefOf(e Entity) Ref {
	return Ref{Kind: e.EntityKind(), ID: e.EntityID()}
}

// Resolver loads the entity behind a reference.
type Resolver interface {
	Resolve(ctx context.Context, ref Ref) (any, error)
}

// ResolveFunc loads one entity of a single kind by id.
type ResolveFunc func(ctx context.Context, id string) (any, error)

// Registry dispatches lookups to kind-specific functions supplied by the host
// application.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]ResolveFunc
}

// NewRegistry returns an empty resolver registry.
func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string]ResolveFunc)}
}

// Register binds fn to kind, replacing any previous binding.
func (r *Registry) Register(kind string, fn ResolveFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.kinds[kind] = fn
}

// Resolve implements Resolver.
func (r *Registry) Resolve(ctx context.Context, ref Ref) (any, error) {
	r.mu.RLock()
	fn, ok := r.kinds[ref.Kind]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, ref.Kind)
	}

	return fn(ctx, ref.ID)
}
