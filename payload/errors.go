package payload

import "errors"

var (
	ErrNamespaceOverflow     = errors.New("payload: too many namespaces in one payload")
	ErrUnknownNamespaceID    = errors.New("payload: unknown namespace id")
	ErrReservedHeaderID      = errors.New("payload: reserved namespace id in header")
	ErrUnresolvableNamespace = errors.New("payload: unresolvable namespace")
	ErrNameTooLong           = errors.New("payload: type name exceeds wire limit")
	ErrInvalidMagic          = errors.New("payload: invalid magic")
	ErrUnsupportedVersion    = errors.New("payload: unsupported version")
	ErrTruncated             = errors.New("payload: truncated envelope")
)
