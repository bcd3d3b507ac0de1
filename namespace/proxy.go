package namespace

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// ProxyType is a runtime-synthesized type with no canonical declared
// name, identified only by its home namespace and the ordered set of
// interfaces it implements.
type ProxyType struct {
	home   Namespace
	ifaces []reflect.Type
}

// Namespace returns the namespace the proxy type is bound to.
func (p *ProxyType) Namespace() Namespace {
	return p.home
}

// Interfaces returns the ordered interface set.
func (p *ProxyType) Interfaces() []reflect.Type {
	out := make([]reflect.Type, len(p.ifaces))
	copy(out, p.ifaces)
	return out
}

// Implements reports whether t is one of the proxy's interfaces.
func (p *ProxyType) Implements(t reflect.Type) bool {
	for _, it := range p.ifaces {
		if it == t {
			return true
		}
	}
	return false
}

func (p *ProxyType) String() string {
	names := make([]string, len(p.ifaces))
	for i, it := range p.ifaces {
		names[i] = TypeName(it)
	}
	return "proxy[" + strings.Join(names, ",") + "]"
}

// Handler is the dispatch contract for proxy invocation state.
type Handler interface {
	Invoke(method string, args []any) (any, error)
}

// Proxy is a value of a synthesized type: the type plus the invocation
// state that travels with it through serialization.
type Proxy struct {
	Type  *ProxyType
	State any
}

// NewProxy creates a proxy value.
func NewProxy(t *ProxyType, state any) *Proxy {
	return &Proxy{Type: t, State: state}
}

// Invoke dispatches a call through the proxy's state. The state must
// implement Handler.
func (p *Proxy) Invoke(method string, args ...any) (any, error) {
	h, ok := p.State.(Handler)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, p.Type)
	}
	return h.Invoke(method, args)
}

// Synthesizer constructs proxy types, cached by (namespace, interface
// set) so equal requests yield the identical *ProxyType. Safe for
// concurrent use.
type Synthesizer struct {
	mu    sync.Mutex
	cache map[proxyKey]*ProxyType
}

type proxyKey struct {
	home Namespace
	sig  string
}

// NewSynthesizer creates an empty synthesizer.
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{cache: make(map[proxyKey]*ProxyType)}
}

// Synthesize returns the proxy type implementing exactly the ordered
// interface set, bound to home.
func (s *Synthesizer) Synthesize(home Namespace, ifaces []reflect.Type) (*ProxyType, error) {
	if len(ifaces) == 0 {
		return nil, ErrNoInterfaces
	}

	names := make([]string, len(ifaces))
	for i, it := range ifaces {
		if it == nil || it.Kind() != reflect.Interface {
			return nil, fmt.Errorf("%w: %v", ErrNotInterface, it)
		}
		names[i] = TypeName(it)
	}

	key := proxyKey{home: home, sig: strings.Join(names, ",")}

	s.mu.Lock()
	defer s.mu.Unlock()
	if pt, ok := s.cache[key]; ok {
		return pt, nil
	}
	pt := &ProxyType{home: home, ifaces: append([]reflect.Type(nil), ifaces...)}
	s.cache[key] = pt
	return pt, nil
}
