// Package storetest holds the behaviour every store.Store implementation must share.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/danmuck/expertmesh/internal/execution"
	"github.com/danmuck/expertmesh/internal/experts"
	"github.com/danmuck/expertmesh/internal/governance"
	"github.com/danmuck/expertmesh/internal/routing"
	"github.com/danmuck/expertmesh/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, time.March, 1, 9, 30, 0, 0, time.UTC)

func provider(id string, calls uint64) experts.Provider {
	return experts.Provider{
		ID: id,
		Spec: experts.Spec{
			Name:            "Provider " + id,
			Specialty:       "testing",
			ProviderAddress: "0x" + id,
			ModelHash:       "Qm" + id,
			Capabilities:    []string{"python", "code_generation"},
			Pricing:         experts.Pricing{CostPerCall: 0.5, Currency: experts.CurrencyUSDC},
		},
		Performance: experts.Performance{TotalCalls: calls, SuccessRate: 95, AverageLatencyMS: 800, UserRating: 4.7},
		Status:      experts.StatusActive,
		CreatedAt:   epoch,
		UpdatedAt:   epoch.Add(time.Minute),
	}
}

// Run exercises open against the shared contract. open must return an empty store.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Run("providers", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		_, err := s.GetProvider(ctx, "missing")
		require.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, s.PutProvider(ctx, provider("b", 1)))
		require.NoError(t, s.PutProvider(ctx, provider("a", 2)))
		updated := provider("b", 7)
		updated.Status = experts.StatusUnderReview
		require.NoError(t, s.PutProvider(ctx, updated))

		got, err := s.GetProvider(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, updated, got)

		list, err := s.ListProviders(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "b", list[0].ID)
		assert.Equal(t, "a", list[1].ID)
	})

	t.Run("proposals", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		p := governance.Proposal{
			ID:             "prop-1",
			Proposer:       "alice",
			Spec:           provider("x", 0).Spec,
			VotesFor:       3,
			VotesAgainst:   1,
			VotingDeadline: epoch.Add(governance.VotingPeriod),
			Status:         governance.StatusPending,
			CreatedAt:      epoch,
		}
		require.NoError(t, s.PutProposal(ctx, p))

		p.VotesFor = 7
		p.VotesAgainst = 3
		p.Status = governance.StatusApproved
		p.ResolvedAt = epoch.Add(time.Hour)
		p.ProviderID = "expert-prop-1"
		require.NoError(t, s.PutProposal(ctx, p))

		got, err := s.GetProposal(ctx, "prop-1")
		require.NoError(t, err)
		assert.Equal(t, p, got)

		_, err = s.GetProposal(ctx, "prop-2")
		require.ErrorIs(t, err, store.ErrNotFound)

		list, err := s.ListProposals(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("credits", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		require.NoError(t, s.PutCredit(ctx, "0xb", 0.5))
		require.NoError(t, s.PutCredit(ctx, "0xa", 0.3))
		require.NoError(t, s.PutCredit(ctx, "0xb", 1.3))

		entries, err := s.ListCredits(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "0xa", entries[0].Address)
		assert.InDelta(t, 0.3, entries[0].Amount, 1e-9)
		assert.Equal(t, "0xb", entries[1].Address)
		assert.InDelta(t, 1.3, entries[1].Amount, 1e-9)
	})

	t.Run("query results", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		for i := 1; i <= 4; i++ {
			r := execution.QueryResult{
				QueryID:          fmt.Sprintf("q-%d", i),
				Success:          true,
				CombinedResponse: "done",
				Selections: []routing.Selection{{
					ProviderID:    "a",
					ProviderName:  "Provider a",
					Confidence:    0.5,
					EstimatedCost: 0.5,
					Matched:       []string{"python"},
					Reasoning:     "Matched capabilities: python",
				}},
				Capabilities:    []string{"python"},
				TotalCost:       0.5,
				ExecutionTimeMS: int64(10 * i),
				ProofDigest:     "0xabc",
				CompletedAt:     epoch.Add(time.Duration(i) * time.Second),
			}
			require.NoError(t, s.PutQueryResult(ctx, r))
		}

		all, err := s.ListQueryResults(ctx, 0)
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, "q-1", all[0].QueryID)
		assert.Equal(t, []string{"a"}, all[0].ProviderIDs())

		recent, err := s.ListQueryResults(ctx, 2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, "q-3", recent[0].QueryID)
		assert.Equal(t, "q-4", recent[1].QueryID)
	})

	t.Run("canceled context", func(t *testing.T) {
		s := open(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.ErrorIs(t, s.PutProvider(ctx, provider("c", 0)), context.Canceled)
		_, err := s.ListProviders(ctx)
		require.ErrorIs(t, err, context.Canceled)
	})
}
