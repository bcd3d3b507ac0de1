// Package graph owns generic object-graph encoding.
//
// Ownership boundary:
// - node wire format and graph walking
// - pointer identity and back-references
// - type reference and proxy type extension points (implemented by
//   the caller, not here)
package graph
