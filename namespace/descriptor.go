package namespace

import "github.com/google/uuid"

// Descriptor is the portable identity of a namespace. It crosses the
// serialization boundary in the payload header and never mutates.
type Descriptor struct {
	// UID uniquely identifies the namespace for the lifetime of the
	// registry that minted it.
	UID uuid.UUID `cbor:"uid"`

	// Label mirrors the scope label for diagnostics only.
	Label string `cbor:"label,omitempty"`

	// Origin is an opaque hint a registry may use to recreate an
	// equivalent namespace on the far side, such as a plugin path.
	Origin string `cbor:"origin,omitempty"`
}

// Equal reports whether two descriptors identify the same namespace.
func (d Descriptor) Equal(other Descriptor) bool {
	return d.UID == other.UID
}

// IsZero reports whether the descriptor carries no identity.
func (d Descriptor) IsZero() bool {
	return d.UID == uuid.Nil
}

func (d Descriptor) String() string {
	if d.Label == "" {
		return d.UID.String()
	}
	return d.Label + "/" + d.UID.String()
}
