package payload

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/klauspost/compress/zstd"

	"github.com/danmuck/scopewire/internal/codec"
	"github.com/danmuck/scopewire/namespace"
)

// ID identifies a namespace within one payload. Ids are meaningless
// outside the payload that assigned them.
type ID int16

// RootID is reserved for the bootstrap namespace shared by both ends
// of the boundary. It never appears in a header.
const RootID ID = 1

// maxAssignable caps the distinct non-root namespaces one payload may
// reference; assigned ids run 2..32767.
const maxAssignable = math.MaxInt16 - 1

// sectionPrealloc bounds the upfront allocation for an envelope
// section so a corrupt length word cannot demand gigabytes before the
// stream runs dry.
const sectionPrealloc = 64 * 1024

// Payload is one serialized object graph: the body bytes plus the
// id→descriptor table for every non-root namespace the body
// references.
type Payload struct {
	Header map[ID]namespace.Descriptor
	Body   []byte
}

// Envelope wire constants.
const (
	Magic   uint32 = 0x53575031 // "SWP1"
	Version uint16 = 1

	FlagBodyCompressed uint16 = 1 << 0
)

type headerEntry struct {
	ID   int16                `cbor:"id"`
	Desc namespace.Descriptor `cbor:"ns"`
}

var (
	zstdEnc *zstd.Encoder
	zstdDec *zstd.Decoder
)

func init() {
	var err error
	zstdEnc, err = zstd.NewWriter(nil, zstd.WithZeroFrames(true))
	if err != nil {
		panic("payload: zstd encoder initialization failed: " + err.Error())
	}
	zstdDec, err = zstd.NewReader(nil)
	if err != nil {
		panic("payload: zstd decoder initialization failed: " + err.Error())
	}
}

// EncodeEnvelope frames one payload onto w. With compress set the body
// is zstd-compressed.
func EncodeEnvelope(w io.Writer, p *Payload, compress bool) error {
	if p == nil {
		return fmt.Errorf("payload: nil payload")
	}

	entries := make([]headerEntry, 0, len(p.Header))
	for id, d := range p.Header {
		entries = append(entries, headerEntry{ID: int16(id), Desc: d})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	header, err := codec.Marshal(entries)
	if err != nil {
		return fmt.Errorf("payload: encode header: %w", err)
	}

	body := p.Body
	var flags uint16
	if compress && len(body) > 0 {
		body = zstdEnc.EncodeAll(body, nil)
		flags |= FlagBodyCompressed
	}

	head := make([]byte, 8)
	binary.BigEndian.PutUint32(head[0:4], Magic)
	binary.BigEndian.PutUint16(head[4:6], Version)
	binary.BigEndian.PutUint16(head[6:8], flags)
	if _, err := w.Write(head); err != nil {
		return err
	}
	if err := writeSection(w, header); err != nil {
		return err
	}
	return writeSection(w, body)
}

// DecodeEnvelope parses one framed payload from r, decompressing the
// body if needed.
func DecodeEnvelope(r io.Reader) (*Payload, error) {
	head := make([]byte, 8)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, ErrTruncated
	}
	if binary.BigEndian.Uint32(head[0:4]) != Magic {
		return nil, ErrInvalidMagic
	}
	if binary.BigEndian.Uint16(head[4:6]) != Version {
		return nil, ErrUnsupportedVersion
	}
	flags := binary.BigEndian.Uint16(head[6:8])

	header, err := readSection(r)
	if err != nil {
		return nil, err
	}
	body, err := readSection(r)
	if err != nil {
		return nil, err
	}

	if flags&FlagBodyCompressed != 0 {
		body, err = zstdDec.DecodeAll(body, nil)
		if err != nil {
			return nil, fmt.Errorf("payload: decompress body: %w", err)
		}
	}

	var entries []headerEntry
	if len(header) > 0 {
		if err := codec.Unmarshal(header, &entries); err != nil {
			return nil, fmt.Errorf("payload: decode header: %w", err)
		}
	}
	p := &Payload{Header: make(map[ID]namespace.Descriptor, len(entries)), Body: body}
	for _, ent := range entries {
		p.Header[ID(ent.ID)] = ent.Desc
	}
	return p, nil
}

func writeSection(w io.Writer, data []byte) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(len(data)))
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	_, err := w.Write(data)
	return err
}

func readSection(r io.Reader) ([]byte, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, ErrTruncated
	}
	n := binary.BigEndian.Uint32(buf[:])
	if n == 0 {
		return nil, nil
	}
	var data bytes.Buffer
	data.Grow(min(int(n), sectionPrealloc))
	if _, err := io.CopyN(&data, r, int64(n)); err != nil {
		return nil, ErrTruncated
	}
	return data.Bytes(), nil
}
