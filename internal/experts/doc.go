// Package experts owns provider records.
//
// Ownership boundary:
// - provider record shape and validation
// - in-memory registry (source of truth for routing)
// - performance counters
//
// Records are never deleted; deactivation goes through SetStatus.
package experts
