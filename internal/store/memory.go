package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/danmuck/expertmesh/internal/execution"
	"github.com/danmuck/expertmesh/internal/experts"
	"github.com/danmuck/expertmesh/internal/governance"
	"github.com/danmuck/expertmesh/internal/ledger"
)

// ordered is an insertion-ordered map.
type ordered[T any] struct {
	order []string
	items map[string]T
}

func newOrdered[T any]() ordered[T] {
	return ordered[T]{items: make(map[string]T)}
}

func (o *ordered[T]) put(id string, v T) {
	if _, ok := o.items[id]; !ok {
		o.order = append(o.order, id)
	}
	o.items[id] = v
}

func (o *ordered[T]) list() []T {
	out := make([]T, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.items[id])
	}
	return out
}

// Memory is a Store kept in process memory.
type Memory struct {
	mu        sync.RWMutex
	providers ordered[experts.Provider]
	proposals ordered[governance.Proposal]
	results   ordered[execution.QueryResult]
	credits   map[string]float64
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		providers: newOrdered[experts.Provider](),
		proposals: newOrdered[governance.Proposal](),
		results:   newOrdered[execution.QueryResult](),
		credits:   make(map[string]float64),
	}
}

func (m *Memory) PutProvider(ctx context.Context, p experts.Provider) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.ID == "" {
		return fmt.Errorf("provider id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers.put(p.ID, p.Clone())
	return nil
}

func (m *Memory) GetProvider(ctx context.Context, id string) (experts.Provider, error) {
	if err := ctx.Err(); err != nil {
		return experts.Provider{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers.items[id]
	if !ok {
		return experts.Provider{}, fmt.Errorf("%w: provider %s", ErrNotFound, id)
	}
	return p.Clone(), nil
}

func (m *Memory) ListProviders(ctx context.Context) ([]experts.Provider, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.providers.list()
	for i := range out {
		out[i] = out[i].Clone()
	}
	return out, nil
}

func (m *Memory) PutProposal(ctx context.Context, p governance.Proposal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.ID == "" {
		return fmt.Errorf("proposal id is required")
	}
	p.Spec.Capabilities = append([]string(nil), p.Spec.Capabilities...)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proposals.put(p.ID, p)
	return nil
}

func (m *Memory) GetProposal(ctx context.Context, id string) (governance.Proposal, error) {
	if err := ctx.Err(); err != nil {
		return governance.Proposal{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.proposals.items[id]
	if !ok {
		return governance.Proposal{}, fmt.Errorf("%w: proposal %s", ErrNotFound, id)
	}
	return p, nil
}

func (m *Memory) ListProposals(ctx context.Context) ([]governance.Proposal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.proposals.list(), nil
}

func (m *Memory) PutCredit(ctx context.Context, address string, amount float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if address == "" {
		return fmt.Errorf("address is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credits[address] = amount
	return nil
}

func (m *Memory) ListCredits(ctx context.Context) ([]ledger.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Entry, 0, len(m.credits))
	for addr, amt := range m.credits {
		out = append(out, ledger.Entry{Address: addr, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func (m *Memory) PutQueryResult(ctx context.Context, r execution.QueryResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.QueryID == "" {
		return fmt.Errorf("query id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results.put(r.QueryID, r)
	return nil
}

func (m *Memory) ListQueryResults(ctx context.Context, limit int) ([]execution.QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.results.list()
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *Memory) Close() error {
	return nil
}
