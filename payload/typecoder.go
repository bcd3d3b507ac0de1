package payload

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"reflect"

	"github.com/danmuck/scopewire/graph"
	"github.com/danmuck/scopewire/namespace"
)

// Wire shape of the two graph codec extension points:
//
//	type-ref   = [id:2][nameLen:2][nameBytes]
//	proxy-type = [id:2][ifaceCount:4][ifaceCount × type-ref]
//
// All integers big-endian.

// typeEncoder binds a serialize session to the graph codec's type
// reference extension points. One instance per call.
type typeEncoder struct {
	uni     *namespace.Universe
	session serializeSession
}

var _ graph.TypeEncoder = (*typeEncoder)(nil)

func (c *typeEncoder) EncodeType(w io.Writer, t reflect.Type) error {
	home, name := c.uni.Home(t)
	id, err := c.session.idForType(t, home)
	if err != nil {
		return err
	}
	if err := writeWireID(w, id); err != nil {
		return err
	}
	return writeWireName(w, name)
}

func (c *typeEncoder) EncodeProxy(w io.Writer, pt *namespace.ProxyType) error {
	id, err := c.session.idForType(nil, pt.Namespace())
	if err != nil {
		return err
	}
	if err := writeWireID(w, id); err != nil {
		return err
	}

	ifaces := pt.Interfaces()
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(len(ifaces)))
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	for _, it := range ifaces {
		if err := c.EncodeType(w, it); err != nil {
			return err
		}
	}
	return nil
}

// typeDecoder binds a deserialize session to the graph codec's type
// reference extension points. One instance per call.
type typeDecoder struct {
	session *deserializeSession
	synth   *namespace.Synthesizer
}

var _ graph.TypeDecoder = (*typeDecoder)(nil)

func (c *typeDecoder) DecodeType(r io.Reader) (reflect.Type, error) {
	id, err := readWireID(r)
	if err != nil {
		return nil, err
	}
	ns, err := c.session.resolve(id)
	if err != nil {
		return nil, err
	}
	name, err := readWireName(r)
	if err != nil {
		return nil, err
	}

	t, err := ns.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("resolve type %q: %w", name, err)
	}
	return t, nil
}

func (c *typeDecoder) DecodeProxy(r io.Reader) (*namespace.ProxyType, error) {
	id, err := readWireID(r)
	if err != nil {
		return nil, err
	}
	ns, err := c.session.resolve(id)
	if err != nil {
		return nil, err
	}

	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, ErrTruncated
	}
	count := binary.BigEndian.Uint32(buf[:])

	ifaces := make([]reflect.Type, 0, min(int(count), 64))
	for i := uint32(0); i < count; i++ {
		it, err := c.DecodeType(r)
		if err != nil {
			return nil, err
		}
		ifaces = append(ifaces, it)
	}
	return c.synth.Synthesize(ns, ifaces)
}

func writeWireID(w io.Writer, id ID) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], uint16(id))
	_, err := w.Write(buf[:])
	return err
}

func readWireID(r io.Reader) (ID, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, ErrTruncated
	}
	return ID(binary.BigEndian.Uint16(buf[:])), nil
}

func writeWireName(w io.Writer, name string) error {
	if len(name) > math.MaxUint16 {
		return fmt.Errorf("%w: %d bytes", ErrNameTooLong, len(name))
	}
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], uint16(len(name)))
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	_, err := io.WriteString(w, name)
	return err
}

func readWireName(r io.Reader) (string, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return "", ErrTruncated
	}
	n := binary.BigEndian.Uint16(buf[:])
	name := make([]byte, n)
	if _, err := io.ReadFull(r, name); err != nil {
		return "", ErrTruncated
	}
	return string(name), nil
}
