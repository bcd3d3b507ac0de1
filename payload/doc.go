// Package payload owns the serialization façade.
//
// Ownership boundary:
// - per-call namespace id sessions
// - the type reference and proxy type wire shape
// - the payload envelope and its framing
package payload
