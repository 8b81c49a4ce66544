package execution

import (
	"time"

	"github.com/danmuck/expertmesh/internal/routing"
)

// NoSuitableExperts is the error carried by a query with nothing to execute.
const NoSuitableExperts = "No suitable experts found for this query"

// QueryResult is the outcome of one executed query.
// A failed result never carries selections or cost.
type QueryResult struct {
	QueryID          string              `json:"queryId"`
	Success          bool                `json:"success"`
	CombinedResponse string              `json:"combinedResponse,omitempty"`
	Selections       []routing.Selection `json:"selections"`
	Capabilities     []string            `json:"capabilities,omitempty"`
	TotalCost        float64             `json:"totalCost"`
	ExecutionTimeMS  int64               `json:"executionTimeMs"`
	ProofDigest      string              `json:"proofDigest,omitempty"`
	Error            string              `json:"error,omitempty"`
	CompletedAt      time.Time           `json:"completedAt"`
}

// ProviderIDs returns selection ids in execution order.
func (r QueryResult) ProviderIDs() []string {
	out := make([]string, 0, len(r.Selections))
	for _, s := range r.Selections {
		out = append(out, s.ProviderID)
	}
	return out
}

func failureResult(queryID string, tags []string, reason string, started time.Time, now time.Time) QueryResult {
	return QueryResult{
		QueryID:         queryID,
		Success:         false,
		Selections:      []routing.Selection{},
		Capabilities:    tags,
		TotalCost:       0,
		ExecutionTimeMS: now.Sub(started).Milliseconds(),
		Error:           reason,
		CompletedAt:     now,
	}
}
