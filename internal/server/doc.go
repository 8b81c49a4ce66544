// Package server owns the expertd HTTP surface.
//
// Ownership boundary:
// - gin engine, middleware and route table
// - request decoding and error -> status mapping
// - per-client rate limiting of query submission
// - operator token checks on provider status changes
// - listener lifecycle, plain or TLS
//
// Handlers translate HTTP to Backend calls and hold no network state.
package server
