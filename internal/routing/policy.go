package routing

// SelectionPolicy accepts a subset of ranked selections under a budget.
type SelectionPolicy interface {
	Accept(ranked []Selection, maxCost float64) []Selection
}

// GreedyPolicy walks the ranking once and keeps each candidate that still fits.
// A skipped candidate is never reconsidered, so the accepted set does not
// necessarily maximise total confidence for the budget.
type GreedyPolicy struct{}

func (GreedyPolicy) Accept(ranked []Selection, maxCost float64) []Selection {
	var (
		spent    float64
		accepted []Selection
	)
	for _, candidate := range ranked {
		// Written as a negated <= so a NaN cost or budget never fits.
		if !(spent+candidate.EstimatedCost <= maxCost) {
			continue
		}
		spent += candidate.EstimatedCost
		accepted = append(accepted, candidate)
	}
	return accepted
}
