package namespace

import (
	"fmt"
	"reflect"
	"sync"
)

// Namespace is a live handle to an isolated type-loading context. Two
// namespaces may host types with identical wire names that are not
// interchangeable.
type Namespace interface {
	// Lookup resolves a registered wire name to a Go type, delegating
	// to the parent namespace first.
	Lookup(name string) (reflect.Type, error)

	// Parent returns the enclosing namespace, or nil for the root.
	Parent() Namespace
}

// Universe owns one process-local namespace tree: the root scope plus
// the index mapping each registered Go type to the scope hosting it. A
// Go type registers in exactly one scope of a universe. Safe for
// concurrent use.
type Universe struct {
	mu     sync.RWMutex
	root   *Scope
	owners map[reflect.Type]*Scope
	names  map[reflect.Type]string
}

// NewUniverse creates an empty universe with a fresh root scope.
func NewUniverse() *Universe {
	u := &Universe{
		owners: make(map[reflect.Type]*Scope),
		names:  make(map[reflect.Type]string),
	}
	u.root = &Scope{label: "root", uni: u, types: make(map[string]reflect.Type)}
	return u
}

// Root returns the bootstrap scope shared by both ends of a
// serialization boundary.
func (u *Universe) Root() *Scope {
	return u.root
}

// NewScope creates a scope under parent. A nil parent means the root.
func (u *Universe) NewScope(label string, parent Namespace) *Scope {
	if parent == nil {
		parent = u.root
	}
	return &Scope{label: label, parent: parent, uni: u, types: make(map[string]reflect.Type)}
}

// Home reports the scope hosting t and the wire name t registered
// under. An unregistered type has no home; it travels under its
// canonical name and resolves against the root on the far side.
func (u *Universe) Home(t reflect.Type) (Namespace, string) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if s, ok := u.owners[t]; ok {
		return s, u.names[t]
	}
	return nil, TypeName(t)
}

// Scope is a concrete namespace: a set of named types with
// parent-first lookup delegation.
type Scope struct {
	label  string
	parent Namespace
	uni    *Universe
	types  map[string]reflect.Type
}

var _ Namespace = (*Scope)(nil)

// Label returns the diagnostic name of the scope.
func (s *Scope) Label() string {
	return s.label
}

// Parent implements Namespace.
func (s *Scope) Parent() Namespace {
	return s.parent
}

// Register binds a wire name to a Go type within this scope. The type
// becomes owned by this scope for the whole universe; registering the
// same pair again is a no-op.
func (s *Scope) Register(name string, t reflect.Type) error {
	if t == nil {
		return fmt.Errorf("%w: nil type for %q", ErrUnknownType, name)
	}
	if name == "" {
		return fmt.Errorf("%w: empty name for %s", ErrTypeRegistered, t)
	}

	s.uni.mu.Lock()
	defer s.uni.mu.Unlock()

	if owner, ok := s.uni.owners[t]; ok {
		if owner == s && s.uni.names[t] == name {
			return nil
		}
		return fmt.Errorf("%w: %s already owned by scope %s", ErrTypeRegistered, t, owner.label)
	}
	if _, ok := s.types[name]; ok {
		return fmt.Errorf("%w: name %q taken in scope %s", ErrTypeRegistered, name, s.label)
	}

	s.types[name] = t
	s.uni.owners[t] = s
	s.uni.names[t] = name
	return nil
}

// RegisterValue registers the dynamic type of v under its canonical
// name. Pointer values register their element type.
func (s *Scope) RegisterValue(v any) error {
	t := reflect.TypeOf(v)
	if t == nil {
		return fmt.Errorf("%w: nil value", ErrUnknownType)
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return s.Register(TypeName(t), t)
}

// Lookup implements Namespace.
func (s *Scope) Lookup(name string) (reflect.Type, error) {
	if s.parent != nil {
		if t, err := s.parent.Lookup(name); err == nil {
			return t, nil
		}
	}

	s.uni.mu.RLock()
	t, ok := s.types[name]
	s.uni.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q in scope %s", ErrUnknownType, name, s.label)
	}
	return t, nil
}

// TypeName returns the canonical wire name of a Go type.
func TypeName(t reflect.Type) string {
	if t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}
