package graph

import (
	"bytes"
	"encoding/binary"
	"io"
	"reflect"

	"github.com/danmuck/scopewire/namespace"
)

// TypeEncoder is the serialize-side extension point. The codec calls
// it at every type reference and proxy type it encounters; everything
// else about walking fields, slices, maps, and leaf values stays
// inside the codec.
type TypeEncoder interface {
	// EncodeType writes a reference to t.
	EncodeType(w io.Writer, t reflect.Type) error

	// EncodeProxy writes a reference to a synthesized proxy type.
	EncodeProxy(w io.Writer, pt *namespace.ProxyType) error
}

// TypeDecoder is the deserialize-side extension point, mirroring
// TypeEncoder.
type TypeDecoder interface {
	// DecodeType reads a type reference and resolves it to a live
	// Go type.
	DecodeType(r io.Reader) (reflect.Type, error)

	// DecodeProxy reads a proxy type reference and resolves it to a
	// synthesized type.
	DecodeProxy(r io.Reader) (*namespace.ProxyType, error)
}

// Codec encodes and decodes one object graph per call. Implementations
// must keep all mutable state per call so a single Codec is safe for
// concurrent use.
type Codec interface {
	Encode(w io.Writer, v any, types TypeEncoder) error
	Decode(r io.Reader, types TypeDecoder) (any, error)
}

// Node tags on the wire.
const (
	tagNil     = 0x00
	tagScalar  = 0x01
	tagNamed   = 0x02
	tagStruct  = 0x03
	tagPointer = 0x04
	tagRef     = 0x05
	tagSlice   = 0x06
	tagMap     = 0x07
	tagProxy   = 0x08
)

// preallocCap bounds collection preallocation so a corrupt length
// cannot force a huge allocation before the stream runs dry.
const preallocCap = 4096

type refCodec struct{}

var _ Codec = refCodec{}

// New returns the reference graph codec.
func New() Codec {
	return refCodec{}
}

func (refCodec) Encode(w io.Writer, v any, types TypeEncoder) error {
	e := &encoder{types: types, refs: make(map[any]uint32)}
	return e.encode(w, reflect.ValueOf(v))
}

func (refCodec) Decode(r io.Reader, types TypeDecoder) (any, error) {
	d := &decoder{types: types}
	v, err := d.decode(r)
	if err != nil {
		return nil, err
	}
	if !v.IsValid() {
		return nil, nil
	}
	return v.Interface(), nil
}

func writeU8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func writeU16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readU8(r io.Reader) (uint8, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, ErrTruncated
	}
	return buf[0], nil
}

func readU16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, ErrTruncated
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, ErrTruncated
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func readBlock(r io.Reader) ([]byte, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	// Grow with the data actually read so a corrupt length word cannot
	// force one huge upfront allocation.
	var buf bytes.Buffer
	buf.Grow(min(int(n), preallocCap))
	if _, err := io.CopyN(&buf, r, int64(n)); err != nil {
		return nil, ErrTruncated
	}
	return buf.Bytes(), nil
}
