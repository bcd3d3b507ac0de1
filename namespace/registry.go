package namespace

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Registry maps between live namespace handles and portable
// descriptors. Implementations must be safe for concurrent use by
// independent serialize and deserialize calls.
type Registry interface {
	// Describe returns the descriptor for a live handle, minting one
	// on first sight. Deterministic per handle for the registry's
	// lifetime.
	Describe(ns Namespace) (Descriptor, error)

	// Resolve returns a live handle for a descriptor, loading or
	// creating an equivalent namespace if none exists locally.
	Resolve(desc Descriptor) (Namespace, error)
}

// LoaderFunc constructs a namespace for a descriptor the registry has
// never seen, typically from the descriptor's origin hint.
type LoaderFunc func(Descriptor) (Namespace, error)

// MapRegistry is an in-memory Registry. Descriptors minted by Describe
// resolve back to the same handle; peers exchange mappings with Bind
// or provide a loader for on-demand construction.
type MapRegistry struct {
	mu     sync.RWMutex
	byNS   map[Namespace]Descriptor
	byUID  map[uuid.UUID]Namespace
	loader LoaderFunc
}

var _ Registry = (*MapRegistry)(nil)

// NewMapRegistry creates an empty registry.
func NewMapRegistry() *MapRegistry {
	return &MapRegistry{
		byNS:  make(map[Namespace]Descriptor),
		byUID: make(map[uuid.UUID]Namespace),
	}
}

// SetLoader installs the fallback used by Resolve for unknown
// descriptors.
func (r *MapRegistry) SetLoader(fn LoaderFunc) {
	r.mu.Lock()
	r.loader = fn
	r.mu.Unlock()
}

// Describe implements Registry.
func (r *MapRegistry) Describe(ns Namespace) (Descriptor, error) {
	if ns == nil {
		return Descriptor{}, ErrNilNamespace
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.byNS[ns]; ok {
		return d, nil
	}

	d := Descriptor{UID: uuid.New()}
	if s, ok := ns.(*Scope); ok {
		d.Label = s.Label()
	}
	r.byNS[ns] = d
	r.byUID[d.UID] = ns
	return d, nil
}

// Resolve implements Registry.
func (r *MapRegistry) Resolve(desc Descriptor) (Namespace, error) {
	if desc.IsZero() {
		return nil, fmt.Errorf("%w: zero descriptor", ErrUnknownNamespace)
	}

	r.mu.RLock()
	ns, ok := r.byUID[desc.UID]
	loader := r.loader
	r.mu.RUnlock()
	if ok {
		return ns, nil
	}

	if loader == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNamespace, desc)
	}
	ns, err := loader(desc)
	if err != nil {
		return nil, fmt.Errorf("load namespace %s: %w", desc, err)
	}
	if ns == nil {
		return nil, fmt.Errorf("%w: loader returned nil for %s", ErrUnknownNamespace, desc)
	}

	r.mu.Lock()
	r.byUID[desc.UID] = ns
	r.byNS[ns] = desc
	r.mu.Unlock()
	return ns, nil
}

// Bind records a known descriptor for a handle, as when a peer shares
// its namespace table out of band. Rebinding a descriptor replaces the
// previous handle.
func (r *MapRegistry) Bind(desc Descriptor, ns Namespace) error {
	if ns == nil {
		return ErrNilNamespace
	}
	if desc.IsZero() {
		return fmt.Errorf("%w: zero descriptor", ErrUnknownNamespace)
	}

	r.mu.Lock()
	r.byUID[desc.UID] = ns
	r.byNS[ns] = desc
	r.mu.Unlock()
	return nil
}
