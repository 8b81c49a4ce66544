// Package stats rolls up registry, history, ledger and governance state into
// read-only snapshots.
package stats

import (
	"sort"

	"github.com/danmuck/expertmesh/internal/execution"
	"github.com/danmuck/expertmesh/internal/experts"
	"github.com/danmuck/expertmesh/internal/governance"
)

// DefaultTopProviders is the topProviders length when a caller passes n <= 0.
const DefaultTopProviders = 5

type ProviderSource interface {
	List() []experts.Provider
}

type HistorySource interface {
	List() []execution.QueryResult
}

type CreditSource interface {
	Total() float64
}

type ProposalSource interface {
	ListPending() []governance.Proposal
}

// ProviderUsage is one entry of the top providers list.
type ProviderUsage struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	TotalCalls uint64  `json:"totalCalls"`
	UserRating float64 `json:"userRating"`
}

// Snapshot is a point-in-time view of the network.
type Snapshot struct {
	TotalProviders     int             `json:"totalProviders"`
	ActiveProviders    int             `json:"activeProviders"`
	TotalQueries       int             `json:"totalQueries"`
	SuccessfulQueries  int             `json:"successfulQueries"`
	TotalCreditsIssued float64         `json:"totalCreditsIssued"`
	AverageQueryCost   float64         `json:"averageQueryCost"`
	PendingProposals   int             `json:"pendingProposals"`
	TopProviders       []ProviderUsage `json:"topProviders"`
}

// Aggregator reads its sources on every call and keeps no state.
type Aggregator struct {
	providers ProviderSource
	history   HistorySource
	credits   CreditSource
	proposals ProposalSource
}

// NewAggregator wires the sources. A nil proposals source reports zero pending.
func NewAggregator(providers ProviderSource, history HistorySource, credits CreditSource, proposals ProposalSource) *Aggregator {
	return &Aggregator{
		providers: providers,
		history:   history,
		credits:   credits,
		proposals: proposals,
	}
}

func (a *Aggregator) Snapshot(n int) Snapshot {
	providers := a.providers.List()
	results := a.history.List()

	snap := Snapshot{
		TotalProviders:     len(providers),
		TotalQueries:       len(results),
		TotalCreditsIssued: a.credits.Total(),
		TopProviders:       TopProviders(providers, n),
	}
	for _, p := range providers {
		if p.Status == experts.StatusActive {
			snap.ActiveProviders++
		}
	}

	var costSum float64
	for _, r := range results {
		costSum += r.TotalCost
		if r.Success {
			snap.SuccessfulQueries++
		}
	}
	if len(results) > 0 {
		snap.AverageQueryCost = costSum / float64(len(results))
	}
	if a.proposals != nil {
		snap.PendingProposals = len(a.proposals.ListPending())
	}
	return snap
}

// TopProviders orders providers by total calls, most used first. Ties keep
// registration order.
func TopProviders(providers []experts.Provider, n int) []ProviderUsage {
	if n <= 0 {
		n = DefaultTopProviders
	}
	ranked := make([]ProviderUsage, 0, len(providers))
	for _, p := range providers {
		ranked = append(ranked, ProviderUsage{
			ID:         p.ID,
			Name:       p.Name,
			TotalCalls: p.Performance.TotalCalls,
			UserRating: p.Performance.UserRating,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalCalls > ranked[j].TotalCalls
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
