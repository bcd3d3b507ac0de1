package payload

import (
	"bytes"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/scopewire/graph"
	"github.com/danmuck/scopewire/internal/observability"
	"github.com/danmuck/scopewire/namespace"
)

// Options configures a Serializer.
type Options struct {
	// Types supplies type ownership and the default root namespace.
	Types *namespace.Universe

	// Registry maps namespace handles to portable descriptors and
	// back. Shared across calls; must be safe for concurrent use.
	Registry namespace.Registry

	// Root overrides the universe root as the bootstrap namespace
	// bound to RootID. Leave nil for Types.Root().
	Root namespace.Namespace

	// Synthesizer caches proxy types across calls. Leave nil for a
	// private one.
	Synthesizer *namespace.Synthesizer

	// Codec is the underlying object-graph codec. Leave nil for the
	// reference implementation.
	Codec graph.Codec

	// Logger receives per-call debug records. Leave nil to disable.
	Logger *zerolog.Logger
}

// Serializer turns object graphs into payloads and back, preserving
// namespace identity for every type reference. All per-call state is
// allocated fresh, so one Serializer is safe for concurrent use.
type Serializer struct {
	uni   *namespace.Universe
	root  namespace.Namespace
	reg   namespace.Registry
	synth *namespace.Synthesizer
	codec graph.Codec
	log   zerolog.Logger
}

// New creates a Serializer.
func New(opts Options) (*Serializer, error) {
	if opts.Types == nil {
		return nil, fmt.Errorf("payload: universe is nil")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("payload: registry is nil")
	}

	s := &Serializer{
		uni:   opts.Types,
		root:  opts.Root,
		reg:   opts.Registry,
		synth: opts.Synthesizer,
		codec: opts.Codec,
		log:   zerolog.Nop(),
	}
	if s.root == nil {
		s.root = opts.Types.Root()
	}
	if s.synth == nil {
		s.synth = namespace.NewSynthesizer()
	}
	if s.codec == nil {
		s.codec = graph.New()
	}
	if opts.Logger != nil {
		s.log = *opts.Logger
	}
	return s, nil
}

// Serialize encodes one object graph with default id assignment: one
// id per namespace handle, descriptors from the registry.
func (s *Serializer) Serialize(v any) (*Payload, error) {
	return s.serialize(v, newDefaultSession(s.root, s.reg))
}

// SerializeWith encodes one object graph with id assignment delegated
// to m for the duration of this call only.
func (s *Serializer) SerializeWith(v any, m SerializeMap) (*Payload, error) {
	if m == nil {
		return nil, fmt.Errorf("payload: serialize map is nil")
	}
	return s.serialize(v, newMapSession(s.root, m))
}

func (s *Serializer) serialize(v any, session serializeSession) (*Payload, error) {
	start := time.Now()

	var buf bytes.Buffer
	coder := &typeEncoder{uni: s.uni, session: session}
	if err := s.codec.Encode(&buf, v, coder); err != nil {
		observability.RecordSerialize(false, 0, time.Since(start))
		return nil, fmt.Errorf("payload: encode graph: %w", err)
	}

	p := &Payload{Header: session.header(), Body: buf.Bytes()}
	observability.RecordSerialize(true, len(p.Body), time.Since(start))
	s.log.Debug().
		Int("namespaces", len(p.Header)).
		Int("body_bytes", len(p.Body)).
		Msg("payload serialized")
	return p, nil
}

// Deserialize decodes one payload, resolving every header entry
// through the registry.
func (s *Serializer) Deserialize(p *Payload) (any, error) {
	return s.deserialize(p, nil)
}

// DeserializeWith decodes one payload, consulting m before the
// registry for each header entry.
func (s *Serializer) DeserializeWith(p *Payload, m DeserializeMap) (any, error) {
	if m == nil {
		return nil, fmt.Errorf("payload: deserialize map is nil")
	}
	return s.deserialize(p, m)
}

func (s *Serializer) deserialize(p *Payload, m DeserializeMap) (any, error) {
	if p == nil {
		return nil, fmt.Errorf("payload: nil payload")
	}
	start := time.Now()

	session, err := newDeserializeSession(s.root, p.Header, m, s.reg)
	if err != nil {
		observability.RecordDeserialize(false, 0, time.Since(start))
		return nil, err
	}

	coder := &typeDecoder{session: session, synth: s.synth}
	v, err := s.codec.Decode(bytes.NewReader(p.Body), coder)
	if err != nil {
		observability.RecordDeserialize(false, 0, time.Since(start))
		return nil, fmt.Errorf("payload: decode graph: %w", err)
	}

	observability.RecordDeserialize(true, len(p.Body), time.Since(start))
	s.log.Debug().
		Int("namespaces", len(p.Header)).
		Int("body_bytes", len(p.Body)).
		Msg("payload deserialized")
	return v, nil
}
