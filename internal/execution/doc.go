// Package execution owns query execution.
//
// Ownership boundary:
// - simulated provider invocation (Responder)
// - response combination and placeholder digest (Digester)
// - call-count and ledger accounting
// - query history
//
// Lifecycle order:
// - accept -> invoke (rank order) -> account -> combine -> record
//
// A failure at any provider fails the whole query. Accounting already applied
// for earlier providers in the same query is kept (at-least-once, not atomic).
//
// Execution does not rank or select providers.
package execution
