// Package governance owns the provider admission vote.
//
// Ownership boundary:
// - proposal lifecycle (pending -> approved | rejected)
// - vote tallying and quorum resolution
// - registry mutation on approval
//
// Each proposal has its own lock; the vote increment, quorum check, status
// transition and provider registration happen inside one critical section.
package governance
