// Package network owns the expertmesh service object.
//
// Ownership boundary:
// - runtime config defaults and validation
// - wiring of tagger, registry, router, policy, coordinator, ledger, governance and stats
// - bootstrap from the durable store and provider catalog
// - write-through persistence of state changes
// - the background sweep loop
//
// Transports (HTTP, CLI) call Service methods and never reach into the
// components directly.
package network
