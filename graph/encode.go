package graph

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
	"time"

	"github.com/danmuck/scopewire/internal/codec"
	"github.com/danmuck/scopewire/namespace"
)

var (
	timeType     = reflect.TypeOf(time.Time{})
	proxyPtrType = reflect.TypeOf((*namespace.Proxy)(nil))
	proxyValType = reflect.TypeOf(namespace.Proxy{})
	bytesType    = reflect.TypeOf([]byte(nil))
)

type encoder struct {
	types TypeEncoder

	// refs maps pointer identities already written to their
	// back-reference index.
	refs map[any]uint32
}

func (e *encoder) encode(w io.Writer, v reflect.Value) error {
	if !v.IsValid() {
		return writeU8(w, tagNil)
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return writeU8(w, tagNil)
		}
		return e.encode(w, v.Elem())

	case reflect.Pointer:
		if v.IsNil() {
			return writeU8(w, tagNil)
		}
		if v.Type() == proxyPtrType {
			return e.encodeProxy(w, v)
		}
		key := v.Interface()
		if idx, ok := e.refs[key]; ok {
			if err := writeU8(w, tagRef); err != nil {
				return err
			}
			return writeU32(w, idx)
		}
		e.refs[key] = uint32(len(e.refs))
		if err := writeU8(w, tagPointer); err != nil {
			return err
		}
		return e.encode(w, v.Elem())

	case reflect.Struct:
		if v.Type() == timeType {
			return e.encodeScalar(w, v.Interface().(time.Time).Format(time.RFC3339Nano))
		}
		if v.Type() == proxyValType {
			return fmt.Errorf("%w: proxy must be encoded as *namespace.Proxy", ErrUnsupportedKind)
		}
		return e.encodeStruct(w, v)

	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Type() == bytesType {
			return e.encodeScalar(w, v.Interface())
		}
		if err := writeU8(w, tagSlice); err != nil {
			return err
		}
		if err := writeU32(w, uint32(v.Len())); err != nil {
			return err
		}
		for i := 0; i < v.Len(); i++ {
			if err := e.encode(w, v.Index(i)); err != nil {
				return err
			}
		}
		return nil

	case reflect.Map:
		return e.encodeMap(w, v)

	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		if v.Type().PkgPath() != "" {
			return e.encodeNamed(w, v)
		}
		return e.encodeScalar(w, v.Interface())

	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedKind, v.Kind())
	}
}

func (e *encoder) encodeScalar(w io.Writer, v any) error {
	data, err := codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode scalar: %w", err)
	}
	if err := writeU8(w, tagScalar); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(data))); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// encodeNamed writes a scalar that carries a declared type, so enum
// values survive interface-typed fields.
func (e *encoder) encodeNamed(w io.Writer, v reflect.Value) error {
	if err := writeU8(w, tagNamed); err != nil {
		return err
	}
	if err := e.types.EncodeType(w, v.Type()); err != nil {
		return err
	}
	data, err := codec.Marshal(v.Interface())
	if err != nil {
		return fmt.Errorf("encode scalar: %w", err)
	}
	if err := writeU32(w, uint32(len(data))); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (e *encoder) encodeStruct(w io.Writer, v reflect.Value) error {
	if err := writeU8(w, tagStruct); err != nil {
		return err
	}
	if err := e.types.EncodeType(w, v.Type()); err != nil {
		return err
	}

	t := v.Type()
	var exported []int
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			exported = append(exported, i)
		}
	}

	if len(exported) > math.MaxUint16 {
		return fmt.Errorf("%w: %d fields in %s", ErrOversized, len(exported), t)
	}
	if err := writeU16(w, uint16(len(exported))); err != nil {
		return err
	}
	for _, i := range exported {
		name := t.Field(i).Name
		if len(name) > math.MaxUint16 {
			return fmt.Errorf("%w: field name %d bytes in %s", ErrOversized, len(name), t)
		}
		if err := writeU16(w, uint16(len(name))); err != nil {
			return err
		}
		if _, err := io.WriteString(w, name); err != nil {
			return err
		}

		// Field values are length-prefixed so a decoder without the
		// field can skip it.
		var fb bytes.Buffer
		if err := e.encode(&fb, v.Field(i)); err != nil {
			return err
		}
		if err := writeU32(w, uint32(fb.Len())); err != nil {
			return err
		}
		if _, err := w.Write(fb.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) encodeMap(w io.Writer, v reflect.Value) error {
	if err := writeU8(w, tagMap); err != nil {
		return err
	}
	if err := writeU32(w, uint32(v.Len())); err != nil {
		return err
	}

	// Entries sort by encoded key so the same map always produces the
	// same bytes.
	type entry struct {
		sortKey []byte
		key     reflect.Value
	}
	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		k := iter.Key()
		sk, err := codec.Marshal(k.Interface())
		if err != nil {
			return fmt.Errorf("encode map key: %w", err)
		}
		entries = append(entries, entry{sortKey: sk, key: k})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].sortKey, entries[j].sortKey) < 0
	})

	for _, ent := range entries {
		if err := e.encode(w, ent.key); err != nil {
			return err
		}
		if err := e.encode(w, v.MapIndex(ent.key)); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) encodeProxy(w io.Writer, v reflect.Value) error {
	p := v.Interface().(*namespace.Proxy)
	key := v.Interface()
	if idx, ok := e.refs[key]; ok {
		if err := writeU8(w, tagRef); err != nil {
			return err
		}
		return writeU32(w, idx)
	}
	e.refs[key] = uint32(len(e.refs))

	if err := writeU8(w, tagProxy); err != nil {
		return err
	}
	if err := e.types.EncodeProxy(w, p.Type); err != nil {
		return err
	}
	return e.encode(w, reflect.ValueOf(p.State))
}
