package payload

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/danmuck/scopewire/namespace"
)

// SerializeMap lets a caller reuse id assignments across many
// payloads, for example on a long-lived channel, by classifying types
// into its own correlation buckets instead of one bucket per
// namespace handle.
type SerializeMap interface {
	// VisitType returns the correlation key for a type. t is nil when
	// the reference is a synthesized proxy type.
	VisitType(t reflect.Type) uuid.UUID

	// Descriptors enumerates every descriptor the map has assigned.
	// Only descriptors whose keys were visited during the call end up
	// in the payload header.
	Descriptors() []namespace.Descriptor
}

// DeserializeMap resolves descriptors ahead of the registry. Returning
// false defers the entry to the registry.
type DeserializeMap interface {
	ResolveNamespace(d namespace.Descriptor) (namespace.Namespace, bool)
}

// serializeSession assigns namespace ids for the duration of exactly
// one serialize call.
type serializeSession interface {
	idForType(t reflect.Type, home namespace.Namespace) (ID, error)
	header() map[ID]namespace.Descriptor
}

// rootSet collects the root namespace and its ancestors. Types homed
// anywhere in this set take the root shortcut.
func rootSet(root namespace.Namespace) map[namespace.Namespace]struct{} {
	set := make(map[namespace.Namespace]struct{})
	for ns := root; ns != nil; ns = ns.Parent() {
		set[ns] = struct{}{}
	}
	return set
}

type defaultSession struct {
	reg   namespace.Registry
	roots map[namespace.Namespace]struct{}
	ids   map[namespace.Namespace]ID
	descs map[ID]namespace.Descriptor
}

func newDefaultSession(root namespace.Namespace, reg namespace.Registry) *defaultSession {
	return &defaultSession{
		reg:   reg,
		roots: rootSet(root),
		ids:   make(map[namespace.Namespace]ID),
		descs: make(map[ID]namespace.Descriptor),
	}
}

func (s *defaultSession) idForType(_ reflect.Type, home namespace.Namespace) (ID, error) {
	if home == nil {
		return RootID, nil
	}
	if _, ok := s.roots[home]; ok {
		return RootID, nil
	}
	if id, ok := s.ids[home]; ok {
		return id, nil
	}
	if len(s.ids) >= maxAssignable {
		return 0, ErrNamespaceOverflow
	}

	d, err := s.reg.Describe(home)
	if err != nil {
		return 0, fmt.Errorf("describe namespace: %w", err)
	}
	id := ID(len(s.ids)) + RootID + 1
	s.ids[home] = id
	s.descs[id] = d
	return id, nil
}

func (s *defaultSession) header() map[ID]namespace.Descriptor {
	return s.descs
}

type mapSession struct {
	overrides SerializeMap
	roots     map[namespace.Namespace]struct{}
	ids       map[uuid.UUID]ID
}

func newMapSession(root namespace.Namespace, overrides SerializeMap) *mapSession {
	return &mapSession{
		overrides: overrides,
		roots:     rootSet(root),
		ids:       make(map[uuid.UUID]ID),
	}
}

func (s *mapSession) idForType(t reflect.Type, home namespace.Namespace) (ID, error) {
	if home == nil {
		return RootID, nil
	}
	if _, ok := s.roots[home]; ok {
		return RootID, nil
	}

	key := s.overrides.VisitType(t)
	if id, ok := s.ids[key]; ok {
		return id, nil
	}
	if len(s.ids) >= maxAssignable {
		return 0, ErrNamespaceOverflow
	}
	id := ID(len(s.ids)) + RootID + 1
	s.ids[key] = id
	return id, nil
}

func (s *mapSession) header() map[ID]namespace.Descriptor {
	out := make(map[ID]namespace.Descriptor, len(s.ids))
	for _, d := range s.overrides.Descriptors() {
		if id, ok := s.ids[d.UID]; ok {
			out[id] = d
		}
	}
	return out
}

// deserializeSession resolves namespace ids for the duration of
// exactly one deserialize call. The table is built eagerly so an
// unresolvable header entry aborts before any body byte is decoded.
type deserializeSession struct {
	handles map[ID]namespace.Namespace
}

func newDeserializeSession(root namespace.Namespace, header map[ID]namespace.Descriptor, overrides DeserializeMap, reg namespace.Registry) (*deserializeSession, error) {
	handles := make(map[ID]namespace.Namespace, len(header)+1)
	handles[RootID] = root

	for id, d := range header {
		if id <= RootID {
			return nil, fmt.Errorf("%w: %d", ErrReservedHeaderID, id)
		}

		var ns namespace.Namespace
		if overrides != nil {
			if o, ok := overrides.ResolveNamespace(d); ok && o != nil {
				ns = o
			}
		}
		if ns == nil {
			resolved, err := reg.Resolve(d)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrUnresolvableNamespace, d, err)
			}
			ns = resolved
		}
		handles[id] = ns
	}
	return &deserializeSession{handles: handles}, nil
}

func (s *deserializeSession) resolve(id ID) (namespace.Namespace, error) {
	ns, ok := s.handles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNamespaceID, id)
	}
	return ns, nil
}
