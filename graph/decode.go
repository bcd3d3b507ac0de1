package graph

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/danmuck/scopewire/internal/codec"
	"github.com/danmuck/scopewire/namespace"
)

type decoder struct {
	types TypeDecoder

	// refs holds decoded pointer values in encounter order, indexed
	// by back-references.
	refs []reflect.Value
}

func (d *decoder) decode(r io.Reader) (reflect.Value, error) {
	tag, err := readU8(r)
	if err != nil {
		return reflect.Value{}, err
	}
	return d.decodeTagged(r, tag)
}

func (d *decoder) decodeTagged(r io.Reader, tag uint8) (reflect.Value, error) {
	switch tag {
	case tagNil:
		return reflect.Value{}, nil

	case tagScalar:
		data, err := readBlock(r)
		if err != nil {
			return reflect.Value{}, err
		}
		var out any
		if err := codec.Unmarshal(data, &out); err != nil {
			return reflect.Value{}, fmt.Errorf("decode scalar: %w", err)
		}
		if out == nil {
			return reflect.Value{}, nil
		}
		return reflect.ValueOf(out), nil

	case tagNamed:
		t, err := d.types.DecodeType(r)
		if err != nil {
			return reflect.Value{}, err
		}
		data, err := readBlock(r)
		if err != nil {
			return reflect.Value{}, err
		}
		pv := reflect.New(t)
		if err := codec.Unmarshal(data, pv.Interface()); err != nil {
			return reflect.Value{}, fmt.Errorf("decode %s: %w", t, err)
		}
		return pv.Elem(), nil

	case tagStruct:
		t, err := d.types.DecodeType(r)
		if err != nil {
			return reflect.Value{}, err
		}
		if t.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("%w: %s", ErrNotStruct, t)
		}
		sv := reflect.New(t).Elem()
		if err := d.fillStruct(r, sv); err != nil {
			return reflect.Value{}, err
		}
		return sv, nil

	case tagPointer:
		return d.decodePointer(r)

	case tagRef:
		idx, err := readU32(r)
		if err != nil {
			return reflect.Value{}, err
		}
		if int(idx) >= len(d.refs) || !d.refs[idx].IsValid() {
			return reflect.Value{}, fmt.Errorf("%w: index %d", ErrBadReference, idx)
		}
		return d.refs[idx], nil

	case tagSlice:
		n, err := readU32(r)
		if err != nil {
			return reflect.Value{}, err
		}
		out := make([]any, 0, min(int(n), preallocCap))
		for i := uint32(0); i < n; i++ {
			ev, err := d.decode(r)
			if err != nil {
				return reflect.Value{}, err
			}
			if ev.IsValid() {
				out = append(out, ev.Interface())
			} else {
				out = append(out, nil)
			}
		}
		return reflect.ValueOf(out), nil

	case tagMap:
		return d.decodeMap(r)

	case tagProxy:
		return d.decodeProxy(r)

	default:
		return reflect.Value{}, fmt.Errorf("%w: 0x%02x", ErrUnknownTag, tag)
	}
}

// decodePointer reserves the back-reference slot before filling the
// pointee so reference cycles through struct pointers resolve.
func (d *decoder) decodePointer(r io.Reader) (reflect.Value, error) {
	slot := len(d.refs)
	d.refs = append(d.refs, reflect.Value{})

	tag, err := readU8(r)
	if err != nil {
		return reflect.Value{}, err
	}

	if tag == tagStruct {
		t, err := d.types.DecodeType(r)
		if err != nil {
			return reflect.Value{}, err
		}
		if t.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("%w: %s", ErrNotStruct, t)
		}
		pv := reflect.New(t)
		d.refs[slot] = pv
		if err := d.fillStruct(r, pv.Elem()); err != nil {
			return reflect.Value{}, err
		}
		return pv, nil
	}

	v, err := d.decodeTagged(r, tag)
	if err != nil {
		return reflect.Value{}, err
	}
	if !v.IsValid() {
		return reflect.Value{}, fmt.Errorf("%w: pointer to nothing", ErrBadReference)
	}
	pv := reflect.New(v.Type())
	pv.Elem().Set(v)
	d.refs[slot] = pv
	return pv, nil
}

func (d *decoder) fillStruct(r io.Reader, sv reflect.Value) error {
	count, err := readU16(r)
	if err != nil {
		return err
	}
	t := sv.Type()

	for i := uint16(0); i < count; i++ {
		nameLen, err := readU16(r)
		if err != nil {
			return err
		}
		nameBuf := make([]byte, nameLen)
		if _, err := io.ReadFull(r, nameBuf); err != nil {
			return ErrTruncated
		}
		block, err := readBlock(r)
		if err != nil {
			return err
		}

		// Unknown fields still decode so back-reference slots stay
		// aligned with what the encoder assigned; only the value is
		// discarded.
		fv, err := d.decode(bytes.NewReader(block))
		if err != nil {
			return err
		}

		field, ok := t.FieldByName(string(nameBuf))
		if !ok || !field.IsExported() {
			continue
		}
		if err := assign(sv.FieldByIndex(field.Index), fv); err != nil {
			return fmt.Errorf("field %s.%s: %w", t, field.Name, err)
		}
	}
	return nil
}

func (d *decoder) decodeMap(r io.Reader) (reflect.Value, error) {
	n, err := readU32(r)
	if err != nil {
		return reflect.Value{}, err
	}

	type pair struct{ k, v any }
	pairs := make([]pair, 0, min(int(n), preallocCap))
	allStrings := true
	for i := uint32(0); i < n; i++ {
		kv, err := d.decode(r)
		if err != nil {
			return reflect.Value{}, err
		}
		vv, err := d.decode(r)
		if err != nil {
			return reflect.Value{}, err
		}
		if !kv.IsValid() {
			return reflect.Value{}, fmt.Errorf("%w: nil map key", ErrFieldMismatch)
		}
		k := kv.Interface()
		if !reflect.TypeOf(k).Comparable() {
			return reflect.Value{}, fmt.Errorf("%w: %T map key", ErrUnsupportedKind, k)
		}
		if _, ok := k.(string); !ok {
			allStrings = false
		}
		var val any
		if vv.IsValid() {
			val = vv.Interface()
		}
		pairs = append(pairs, pair{k: k, v: val})
	}

	if allStrings {
		out := make(map[string]any, len(pairs))
		for _, p := range pairs {
			out[p.k.(string)] = p.v
		}
		return reflect.ValueOf(out), nil
	}
	out := make(map[any]any, len(pairs))
	for _, p := range pairs {
		out[p.k] = p.v
	}
	return reflect.ValueOf(out), nil
}

func (d *decoder) decodeProxy(r io.Reader) (reflect.Value, error) {
	slot := len(d.refs)
	d.refs = append(d.refs, reflect.Value{})

	pt, err := d.types.DecodeProxy(r)
	if err != nil {
		return reflect.Value{}, err
	}
	sv, err := d.decode(r)
	if err != nil {
		return reflect.Value{}, err
	}
	var state any
	if sv.IsValid() {
		state = sv.Interface()
	}
	pv := reflect.ValueOf(namespace.NewProxy(pt, state))
	d.refs[slot] = pv
	return pv, nil
}

// assign stores src into dst, tolerating the representation drift the
// wire format allows: numeric width changes, named scalar targets,
// []any into typed slices, generic maps into typed maps, and struct
// values from an evolved peer type.
func assign(dst, src reflect.Value) error {
	if !src.IsValid() {
		return nil
	}
	if src.Kind() == reflect.Interface {
		if src.IsNil() {
			return nil
		}
		src = src.Elem()
	}

	st, dt := src.Type(), dst.Type()
	if st.AssignableTo(dt) {
		dst.Set(src)
		return nil
	}

	if st.Kind() == reflect.Pointer && dt.Kind() != reflect.Pointer && dt.Kind() != reflect.Interface {
		if src.IsNil() {
			return nil
		}
		return assign(dst, src.Elem())
	}

	switch {
	case dt == timeType && st.Kind() == reflect.String:
		ts, err := time.Parse(time.RFC3339Nano, src.String())
		if err != nil {
			return fmt.Errorf("%w: %v", ErrFieldMismatch, err)
		}
		dst.Set(reflect.ValueOf(ts))
		return nil

	case dt.Kind() == reflect.Interface:
		if st.Implements(dt) {
			dst.Set(src)
			return nil
		}

	case isNumeric(dt.Kind()) && isNumeric(st.Kind()):
		dst.Set(src.Convert(dt))
		return nil

	case dt.Kind() == reflect.String && st.Kind() == reflect.String:
		dst.Set(src.Convert(dt))
		return nil

	case dt.Kind() == reflect.Bool && st.Kind() == reflect.Bool:
		dst.Set(src.Convert(dt))
		return nil

	case dt.Kind() == reflect.Slice && (st.Kind() == reflect.Slice || st.Kind() == reflect.Array):
		n := src.Len()
		out := reflect.MakeSlice(dt, n, n)
		for i := 0; i < n; i++ {
			if err := assign(out.Index(i), src.Index(i)); err != nil {
				return err
			}
		}
		dst.Set(out)
		return nil

	case dt.Kind() == reflect.Array && (st.Kind() == reflect.Slice || st.Kind() == reflect.Array):
		if src.Len() != dt.Len() {
			return fmt.Errorf("%w: length %d into [%d]%s", ErrFieldMismatch, src.Len(), dt.Len(), dt.Elem())
		}
		for i := 0; i < src.Len(); i++ {
			if err := assign(dst.Index(i), src.Index(i)); err != nil {
				return err
			}
		}
		return nil

	case dt.Kind() == reflect.Map && st.Kind() == reflect.Map:
		out := reflect.MakeMapWithSize(dt, src.Len())
		iter := src.MapRange()
		for iter.Next() {
			k := reflect.New(dt.Key()).Elem()
			if err := assign(k, iter.Key()); err != nil {
				return err
			}
			v := reflect.New(dt.Elem()).Elem()
			if err := assign(v, iter.Value()); err != nil {
				return err
			}
			out.SetMapIndex(k, v)
		}
		dst.Set(out)
		return nil

	case dt.Kind() == reflect.Pointer:
		pv := reflect.New(dt.Elem())
		if err := assign(pv.Elem(), src); err != nil {
			return err
		}
		dst.Set(pv)
		return nil

	case dt.Kind() == reflect.Struct && st.Kind() == reflect.Struct:
		for i := 0; i < st.NumField(); i++ {
			sf := st.Field(i)
			if !sf.IsExported() {
				continue
			}
			df, ok := dt.FieldByName(sf.Name)
			if !ok {
				continue
			}
			if err := assign(dst.FieldByIndex(df.Index), src.Field(i)); err != nil {
				return err
			}
		}
		return nil
	}

	return fmt.Errorf("%w: %s into %s", ErrFieldMismatch, st, dt)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
