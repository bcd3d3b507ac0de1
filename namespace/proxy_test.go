package namespace

import (
	"errors"
	"reflect"
	"testing"
)

type greeter interface {
	Greet() string
}

type closer interface {
	Close() error
}

var (
	greeterType = reflect.TypeOf((*greeter)(nil)).Elem()
	closerType  = reflect.TypeOf((*closer)(nil)).Elem()
)

func TestSynthesizeCachesByNamespaceAndInterfaceSet(t *testing.T) {
	uni := NewUniverse()
	synth := NewSynthesizer()
	scope := uni.NewScope("plugin-a", nil)

	first, err := synth.Synthesize(scope, []reflect.Type{greeterType, closerType})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	second, err := synth.Synthesize(scope, []reflect.Type{greeterType, closerType})
	if err != nil {
		t.Fatalf("synthesize again: %v", err)
	}
	if first != second {
		t.Fatalf("same key produced distinct proxy types")
	}

	// Interface order is part of the identity.
	reordered, err := synth.Synthesize(scope, []reflect.Type{closerType, greeterType})
	if err != nil {
		t.Fatalf("synthesize reordered: %v", err)
	}
	if reordered == first {
		t.Fatalf("order should distinguish proxy types")
	}

	other, err := synth.Synthesize(uni.NewScope("plugin-b", nil), []reflect.Type{greeterType, closerType})
	if err != nil {
		t.Fatalf("synthesize other scope: %v", err)
	}
	if other == first {
		t.Fatalf("namespace should distinguish proxy types")
	}
}

func TestSynthesizeValidatesInterfaces(t *testing.T) {
	synth := NewSynthesizer()

	if _, err := synth.Synthesize(nil, nil); !errors.Is(err, ErrNoInterfaces) {
		t.Fatalf("expected ErrNoInterfaces, got %v", err)
	}
	if _, err := synth.Synthesize(nil, []reflect.Type{reflect.TypeOf(0)}); !errors.Is(err, ErrNotInterface) {
		t.Fatalf("expected ErrNotInterface, got %v", err)
	}
}

func TestProxyTypeAccessors(t *testing.T) {
	uni := NewUniverse()
	synth := NewSynthesizer()
	scope := uni.NewScope("plugin-a", nil)

	pt, err := synth.Synthesize(scope, []reflect.Type{greeterType, closerType})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if pt.Namespace() != Namespace(scope) {
		t.Fatalf("namespace mismatch")
	}
	got := pt.Interfaces()
	if len(got) != 2 || got[0] != greeterType || got[1] != closerType {
		t.Fatalf("interfaces: got %v", got)
	}
	if !pt.Implements(greeterType) || pt.Implements(reflect.TypeOf((*error)(nil)).Elem()) {
		t.Fatalf("implements mismatch")
	}
}

type recordingHandler struct {
	Method string
	Args   []any
}

func (h *recordingHandler) Invoke(method string, args []any) (any, error) {
	h.Method = method
	h.Args = args
	return "done", nil
}

func TestProxyInvokeDispatchesToState(t *testing.T) {
	synth := NewSynthesizer()
	pt, err := synth.Synthesize(nil, []reflect.Type{greeterType})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}

	h := &recordingHandler{}
	p := NewProxy(pt, h)
	out, err := p.Invoke("Greet", 1, "x")
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out != "done" || h.Method != "Greet" || len(h.Args) != 2 {
		t.Fatalf("dispatch mismatch: %v %+v", out, h)
	}

	plain := NewProxy(pt, "not a handler")
	if _, err := plain.Invoke("Greet"); !errors.Is(err, ErrNoHandler) {
		t.Fatalf("expected ErrNoHandler, got %v", err)
	}
}
