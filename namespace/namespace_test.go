package namespace

import (
	"errors"
	"reflect"
	"testing"
)

type widget struct {
	Name string
}

type gadget struct {
	Size int
}

func TestScopeRegisterAndLookup(t *testing.T) {
	uni := NewUniverse()
	plugin := uni.NewScope("plugin-a", nil)

	wt := reflect.TypeOf(widget{})
	if err := plugin.Register("test.widget", wt); err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := plugin.Lookup("test.widget")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got != wt {
		t.Fatalf("lookup returned %v", got)
	}

	if _, err := plugin.Lookup("test.missing"); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestScopeLookupDelegatesToParentFirst(t *testing.T) {
	uni := NewUniverse()
	wt := reflect.TypeOf(widget{})
	if err := uni.Root().Register("test.widget", wt); err != nil {
		t.Fatalf("register root: %v", err)
	}

	child := uni.NewScope("child", nil)
	got, err := child.Lookup("test.widget")
	if err != nil {
		t.Fatalf("lookup via parent: %v", err)
	}
	if got != wt {
		t.Fatalf("lookup returned %v", got)
	}
}

func TestRegisterConflicts(t *testing.T) {
	uni := NewUniverse()
	a := uni.NewScope("a", nil)
	b := uni.NewScope("b", nil)

	wt := reflect.TypeOf(widget{})
	if err := a.Register("test.widget", wt); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Idempotent for the same scope and name.
	if err := a.Register("test.widget", wt); err != nil {
		t.Fatalf("re-register: %v", err)
	}

	// One universe, one owner per Go type.
	if err := b.Register("test.widget", wt); !errors.Is(err, ErrTypeRegistered) {
		t.Fatalf("expected ErrTypeRegistered, got %v", err)
	}

	// Names are unique within a scope.
	if err := a.Register("test.widget", reflect.TypeOf(gadget{})); !errors.Is(err, ErrTypeRegistered) {
		t.Fatalf("expected ErrTypeRegistered, got %v", err)
	}
}

func TestUniverseHome(t *testing.T) {
	uni := NewUniverse()
	plugin := uni.NewScope("plugin-a", nil)
	if err := plugin.Register("test.widget", reflect.TypeOf(widget{})); err != nil {
		t.Fatalf("register: %v", err)
	}

	home, name := uni.Home(reflect.TypeOf(widget{}))
	if home != Namespace(plugin) {
		t.Fatalf("home: got %v", home)
	}
	if name != "test.widget" {
		t.Fatalf("name: got %q", name)
	}

	home, name = uni.Home(reflect.TypeOf(gadget{}))
	if home != nil {
		t.Fatalf("expected no home for unregistered type, got %v", home)
	}
	if name != TypeName(reflect.TypeOf(gadget{})) {
		t.Fatalf("name: got %q", name)
	}
}

func TestRegisterValueUsesCanonicalName(t *testing.T) {
	uni := NewUniverse()
	if err := uni.Root().RegisterValue(&widget{}); err != nil {
		t.Fatalf("register value: %v", err)
	}

	want := TypeName(reflect.TypeOf(widget{}))
	got, err := uni.Root().Lookup(want)
	if err != nil {
		t.Fatalf("lookup %q: %v", want, err)
	}
	if got != reflect.TypeOf(widget{}) {
		t.Fatalf("lookup returned %v", got)
	}
}

func TestScopeParentChain(t *testing.T) {
	uni := NewUniverse()
	mid := uni.NewScope("mid", nil)
	leaf := uni.NewScope("leaf", mid)

	if leaf.Parent() != Namespace(mid) {
		t.Fatalf("leaf parent mismatch")
	}
	if mid.Parent() != Namespace(uni.Root()) {
		t.Fatalf("mid parent should be root")
	}
	if uni.Root().Parent() != nil {
		t.Fatalf("root parent should be nil")
	}
}
