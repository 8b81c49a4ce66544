// Package store defines persistence contracts for network state.
//
// Ownership boundary:
// - durable provider, proposal, credit and query result records
// - in-memory reference implementation
//
// The in-memory registry, ledger, proposal table and history stay authoritative
// while the process runs. A Store only receives write-through copies and is read
// back at startup.
package store

import (
	"context"
	"errors"

	"github.com/danmuck/expertmesh/internal/execution"
	"github.com/danmuck/expertmesh/internal/experts"
	"github.com/danmuck/expertmesh/internal/governance"
	"github.com/danmuck/expertmesh/internal/ledger"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// Store persists network state. Put operations upsert by id. List operations
// return records in first-write order.
type Store interface {
	PutProvider(ctx context.Context, p experts.Provider) error
	GetProvider(ctx context.Context, id string) (experts.Provider, error)
	ListProviders(ctx context.Context) ([]experts.Provider, error)

	PutProposal(ctx context.Context, p governance.Proposal) error
	GetProposal(ctx context.Context, id string) (governance.Proposal, error)
	ListProposals(ctx context.Context) ([]governance.Proposal, error)

	// PutCredit records the current balance of an address.
	PutCredit(ctx context.Context, address string, amount float64) error
	ListCredits(ctx context.Context) ([]ledger.Entry, error)

	PutQueryResult(ctx context.Context, r execution.QueryResult) error
	// ListQueryResults returns up to limit of the most recent results, oldest
	// first. A limit <= 0 returns everything.
	ListQueryResults(ctx context.Context, limit int) ([]execution.QueryResult, error)

	Close() error
}
