package graph

import "errors"

var (
	ErrTruncated       = errors.New("graph: truncated data")
	ErrUnknownTag      = errors.New("graph: unknown node tag")
	ErrBadReference    = errors.New("graph: bad back-reference")
	ErrUnsupportedKind = errors.New("graph: unsupported kind")
	ErrNotStruct       = errors.New("graph: type reference is not a struct")
	ErrOversized       = errors.New("graph: value exceeds wire size limit")
	ErrFieldMismatch   = errors.New("graph: incompatible field value")
)
