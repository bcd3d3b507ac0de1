package namespace

import "errors"

var (
	ErrUnknownType      = errors.New("namespace: unknown type")
	ErrTypeRegistered   = errors.New("namespace: type already registered")
	ErrUnknownNamespace = errors.New("namespace: unknown namespace")
	ErrNilNamespace     = errors.New("namespace: nil namespace")
	ErrNotInterface     = errors.New("namespace: not an interface type")
	ErrNoInterfaces     = errors.New("namespace: proxy type requires at least one interface")
	ErrNoHandler        = errors.New("namespace: proxy state has no handler")
)
