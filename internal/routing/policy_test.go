package routing

import (
	"math"
	"math/rand"
	"testing"

	"github.com/danmuck/expertmesh/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGreedyAcceptsWithinBudget(t *testing.T) {
	testlog.Start(t)
	ranked := []Selection{
		{ProviderID: "medical", EstimatedCost: 0.8},
		{ProviderID: "python", EstimatedCost: 0.5},
		{ProviderID: "poetry", EstimatedCost: 0.3},
	}
	got := GreedyPolicy{}.Accept(ranked, 5.0)
	assert.Equal(t, []string{"medical", "python", "poetry"}, ids(got))
	assert.InDelta(t, 1.6, TotalCost(got), 1e-9)
}

func TestGreedyTightBudgetAcceptsNothing(t *testing.T) {
	testlog.Start(t)
	ranked := []Selection{
		{ProviderID: "python", EstimatedCost: 0.5},
		{ProviderID: "poetry", EstimatedCost: 0.3},
	}
	assert.Empty(t, GreedyPolicy{}.Accept(ranked, 0.01))
}

func TestGreedySkipsWithoutBacktracking(t *testing.T) {
	testlog.Start(t)
	// {b, c} would score higher for budget 1.0; greedy keeps a, then only d still fits.
	ranked := []Selection{
		{ProviderID: "a", Confidence: 0.9, EstimatedCost: 0.7},
		{ProviderID: "b", Confidence: 0.8, EstimatedCost: 0.5},
		{ProviderID: "c", Confidence: 0.7, EstimatedCost: 0.5},
		{ProviderID: "d", Confidence: 0.1, EstimatedCost: 0.2},
	}
	got := GreedyPolicy{}.Accept(ranked, 1.0)
	assert.Equal(t, []string{"a", "d"}, ids(got))
}

func TestGreedyZeroCostAlwaysFits(t *testing.T) {
	testlog.Start(t)
	ranked := []Selection{{ProviderID: "free", EstimatedCost: 0}}
	got := GreedyPolicy{}.Accept(ranked, 0)
	assert.Equal(t, []string{"free"}, ids(got))
}

func TestGreedyBudgetInvariant(t *testing.T) {
	testlog.Start(t)
	rng := rand.New(rand.NewSource(11))
	var policy SelectionPolicy = GreedyPolicy{}
	for i := 0; i < 1000; i++ {
		ranked := make([]Selection, rng.Intn(8))
		for j := range ranked {
			ranked[j] = Selection{ProviderID: "p", EstimatedCost: rng.Float64() * 2}
		}
		budget := rng.Float64() * 4
		got := policy.Accept(ranked, budget)
		require.LessOrEqual(t, TotalCost(got), budget)
	}
}

func TestGreedyNeverAcceptsUnderNaN(t *testing.T) {
	testlog.Start(t)
	ranked := []Selection{
		{ProviderID: "python", EstimatedCost: 0.5},
		{ProviderID: "poetry", EstimatedCost: 0.3},
	}
	assert.Empty(t, GreedyPolicy{}.Accept(ranked, math.NaN()))

	ranked = append(ranked, Selection{ProviderID: "broken", EstimatedCost: math.NaN()})
	got := GreedyPolicy{}.Accept(ranked, 5.0)
	assert.Equal(t, []string{"python", "poetry"}, ids(got))
}
