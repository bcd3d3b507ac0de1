// Package namespace owns type namespace identity.
//
// Ownership boundary:
// - namespace handles and scoped type registration
// - portable descriptors and the registry contract
// - proxy type synthesis
package namespace
