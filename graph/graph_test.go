package graph

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/scopewire/namespace"
)

// stubCoder is a self-contained type coder for exercising the codec
// without namespace sessions: names map straight to types.
type stubCoder struct {
	types map[string]reflect.Type
	synth *namespace.Synthesizer
}

func newStubCoder(samples ...any) *stubCoder {
	s := &stubCoder{types: make(map[string]reflect.Type), synth: namespace.NewSynthesizer()}
	for _, v := range samples {
		t := reflect.TypeOf(v)
		s.types[namespace.TypeName(t)] = t
	}
	return s
}

func (s *stubCoder) alias(name string, t reflect.Type) {
	s.types[name] = t
}

func (s *stubCoder) EncodeType(w io.Writer, t reflect.Type) error {
	name := namespace.TypeName(t)
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], uint16(len(name)))
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	_, err := io.WriteString(w, name)
	return err
}

func (s *stubCoder) DecodeType(r io.Reader) (reflect.Type, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, ErrTruncated
	}
	name := make([]byte, binary.BigEndian.Uint16(buf[:]))
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, ErrTruncated
	}
	t, ok := s.types[string(name)]
	if !ok {
		return nil, errors.New("stub: unknown type " + string(name))
	}
	return t, nil
}

func (s *stubCoder) EncodeProxy(w io.Writer, pt *namespace.ProxyType) error {
	ifaces := pt.Interfaces()
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], uint16(len(ifaces)))
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	for _, it := range ifaces {
		if err := s.EncodeType(w, it); err != nil {
			return err
		}
	}
	return nil
}

func (s *stubCoder) DecodeProxy(r io.Reader) (*namespace.ProxyType, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, ErrTruncated
	}
	count := binary.BigEndian.Uint16(buf[:])
	ifaces := make([]reflect.Type, 0, count)
	for i := uint16(0); i < count; i++ {
		t, err := s.DecodeType(r)
		if err != nil {
			return nil, err
		}
		ifaces = append(ifaces, t)
	}
	return s.synth.Synthesize(nil, ifaces)
}

func roundTrip(t *testing.T, coder *stubCoder, v any) any {
	t.Helper()
	c := New()
	var buf bytes.Buffer
	if err := c.Encode(&buf, v, coder); err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := c.Decode(bytes.NewReader(buf.Bytes()), coder)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

type pet struct {
	Name string
	Age  int
}

type person struct {
	Name  string
	Tags  []string
	Pets  []pet
	Attrs map[string]string
	Blob  []byte
}

func TestRoundTripStruct(t *testing.T) {
	coder := newStubCoder(person{}, pet{})
	in := person{
		Name:  "ada",
		Tags:  []string{"x", "y"},
		Pets:  []pet{{Name: "rex", Age: 3}, {Name: "flo", Age: 1}},
		Attrs: map[string]string{"team": "core", "site": "edge"},
		Blob:  []byte{0x01, 0x02, 0x03},
	}

	out := roundTrip(t, coder, in)
	got, ok := out.(person)
	if !ok {
		t.Fatalf("decoded %T", out)
	}
	if !reflect.DeepEqual(got, in) {
		t.Fatalf("round-trip mismatch:\n got %+v\nwant %+v", got, in)
	}
}

func TestRoundTripScalars(t *testing.T) {
	coder := newStubCoder()
	if out := roundTrip(t, coder, "hello"); out != "hello" {
		t.Fatalf("string: got %v", out)
	}
	if out := roundTrip(t, coder, true); out != true {
		t.Fatalf("bool: got %v", out)
	}
	if out := roundTrip(t, coder, nil); out != nil {
		t.Fatalf("nil: got %v", out)
	}
}

type color int

type holder struct {
	V any
}

func TestNamedScalarSurvivesInterfaceField(t *testing.T) {
	coder := newStubCoder(holder{}, color(0))
	out := roundTrip(t, coder, holder{V: color(3)})
	got := out.(holder)
	if c, ok := got.V.(color); !ok || c != 3 {
		t.Fatalf("got %T %v", got.V, got.V)
	}
}

type node struct {
	Label string
	Next  *node
}

type twoRefs struct {
	A *node
	B *node
}

func TestPointerSharingPreserved(t *testing.T) {
	coder := newStubCoder(node{}, twoRefs{})
	shared := &node{Label: "shared"}
	out := roundTrip(t, coder, twoRefs{A: shared, B: shared})

	got := out.(twoRefs)
	if got.A == nil || got.A != got.B {
		t.Fatalf("shared pointer not preserved: %p %p", got.A, got.B)
	}
	if got.A.Label != "shared" {
		t.Fatalf("label: got %q", got.A.Label)
	}
}

func TestReferenceCycle(t *testing.T) {
	coder := newStubCoder(node{})
	a := &node{Label: "a"}
	b := &node{Label: "b", Next: a}
	a.Next = b

	out := roundTrip(t, coder, a)
	got := out.(*node)
	if got.Label != "a" || got.Next.Label != "b" {
		t.Fatalf("labels: %q %q", got.Label, got.Next.Label)
	}
	if got.Next.Next != got {
		t.Fatalf("cycle not preserved")
	}
}

type timed struct {
	When time.Time
	Note string
}

func TestTimeField(t *testing.T) {
	coder := newStubCoder(timed{})
	in := timed{When: time.Date(2026, 8, 30, 12, 0, 0, 123456789, time.UTC), Note: "n"}
	got := roundTrip(t, coder, in).(timed)
	if !got.When.Equal(in.When) {
		t.Fatalf("time: got %v want %v", got.When, in.When)
	}
	if got.Note != "n" {
		t.Fatalf("note: got %q", got.Note)
	}
}

type recOld struct {
	A string
	B int
}

type recNew struct {
	A string
	C bool
}

func TestStructEvolutionSkipsUnknownFields(t *testing.T) {
	coder := newStubCoder(recOld{})
	// The decoding side resolves the same wire name to an evolved
	// layout: B disappeared, C is new.
	coder.alias(namespace.TypeName(reflect.TypeOf(recOld{})), reflect.TypeOf(recNew{}))

	out := roundTrip(t, coder, recOld{A: "keep", B: 7})
	got, ok := out.(recNew)
	if !ok {
		t.Fatalf("decoded %T", out)
	}
	if got.A != "keep" || got.C {
		t.Fatalf("got %+v", got)
	}
}

type linkedOld struct {
	Gone  *node
	Kept1 *node
	Kept2 *node
}

type linkedNew struct {
	Kept1 *node
	Kept2 *node
}

func TestDroppedPointerFieldKeepsSharedIdentity(t *testing.T) {
	coder := newStubCoder(node{}, linkedOld{})
	// The decoding side no longer declares Gone, but Kept2 shares its
	// pointer with it.
	coder.alias(namespace.TypeName(reflect.TypeOf(linkedOld{})), reflect.TypeOf(linkedNew{}))

	p1 := &node{Label: "p1"}
	p2 := &node{Label: "p2"}
	out := roundTrip(t, coder, linkedOld{Gone: p1, Kept1: p2, Kept2: p1})

	got, ok := out.(linkedNew)
	if !ok {
		t.Fatalf("decoded %T", out)
	}
	if got.Kept1 == nil || got.Kept1.Label != "p2" {
		t.Fatalf("Kept1: got %+v", got.Kept1)
	}
	if got.Kept2 == nil || got.Kept2.Label != "p1" {
		t.Fatalf("Kept2: got %+v", got.Kept2)
	}
	if got.Kept1 == got.Kept2 {
		t.Fatalf("dropped field collapsed distinct pointers")
	}
}

func TestEncodeOversizedFieldName(t *testing.T) {
	long := strings.Repeat("A", math.MaxUint16+1)
	wide := reflect.StructOf([]reflect.StructField{
		{Name: long, Type: reflect.TypeOf(0)},
	})

	coder := newStubCoder()
	var buf bytes.Buffer
	err := New().Encode(&buf, reflect.New(wide).Elem().Interface(), coder)
	if !errors.Is(err, ErrOversized) {
		t.Fatalf("expected ErrOversized, got %v", err)
	}
}

func TestDecodeHugeDeclaredLength(t *testing.T) {
	coder := newStubCoder()
	data := []byte{tagScalar, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}
	if _, err := New().Decode(bytes.NewReader(data), coder); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

type greeter interface {
	Greet() string
}

type closer interface {
	Close() error
}

type proxyState struct {
	Target string
	Hops   int
}

func TestProxyRoundTrip(t *testing.T) {
	coder := newStubCoder(proxyState{})
	greeterType := reflect.TypeOf((*greeter)(nil)).Elem()
	closerType := reflect.TypeOf((*closer)(nil)).Elem()
	coder.alias(namespace.TypeName(greeterType), greeterType)
	coder.alias(namespace.TypeName(closerType), closerType)

	pt, err := coder.synth.Synthesize(nil, []reflect.Type{greeterType, closerType})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	in := namespace.NewProxy(pt, proxyState{Target: "svc", Hops: 2})

	out := roundTrip(t, coder, in)
	got, ok := out.(*namespace.Proxy)
	if !ok {
		t.Fatalf("decoded %T", out)
	}
	ifaces := got.Type.Interfaces()
	if len(ifaces) != 2 || ifaces[0] != greeterType || ifaces[1] != closerType {
		t.Fatalf("interfaces: %v", ifaces)
	}
	if got.Type != pt {
		t.Fatalf("synthesizer cache should return the identical proxy type")
	}
	state, ok := got.State.(proxyState)
	if !ok || state.Target != "svc" || state.Hops != 2 {
		t.Fatalf("state: %T %+v", got.State, got.State)
	}
}

func TestEncodeUnsupportedKind(t *testing.T) {
	coder := newStubCoder()
	var buf bytes.Buffer
	err := New().Encode(&buf, make(chan int), coder)
	if !errors.Is(err, ErrUnsupportedKind) {
		t.Fatalf("expected ErrUnsupportedKind, got %v", err)
	}
}

func TestDecodeBadBackReference(t *testing.T) {
	coder := newStubCoder()
	data := []byte{tagRef, 0x00, 0x00, 0x00, 0x09}
	if _, err := New().Decode(bytes.NewReader(data), coder); !errors.Is(err, ErrBadReference) {
		t.Fatalf("expected ErrBadReference, got %v", err)
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	coder := newStubCoder()
	if _, err := New().Decode(bytes.NewReader([]byte{0xff}), coder); !errors.Is(err, ErrUnknownTag) {
		t.Fatalf("expected ErrUnknownTag, got %v", err)
	}
}

func TestDecodeTruncated(t *testing.T) {
	coder := newStubCoder()
	if _, err := New().Decode(bytes.NewReader(nil), coder); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}
