package routing

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/danmuck/expertmesh/internal/experts"
)

// Router scores providers against a query's capability tags.
type Router struct{}

func NewRouter() *Router {
	return &Router{}
}

// Score ranks every active provider that shares at least one tag with the query.
// The result is sorted by confidence descending; ties keep provider order.
// With no tags nothing is scored.
func (r *Router) Score(q Query, tags []string, providers []experts.Provider) []Selection {
	if len(tags) == 0 {
		return nil
	}

	preferred := normalizeIDs(q.PreferredProviderIDs)
	out := make([]Selection, 0, len(providers))
	for _, p := range providers {
		if p.Status != experts.StatusActive {
			continue
		}
		if len(preferred) > 0 && !slices.Contains(preferred, p.ID) {
			continue
		}
		matched := intersect(tags, p.Capabilities)
		if len(matched) == 0 {
			continue
		}
		out = append(out, Selection{
			ProviderID:    p.ID,
			ProviderName:  p.Name,
			Confidence:    confidence(len(matched), len(tags), p.Performance),
			EstimatedCost: p.Pricing.CostPerCall,
			Matched:       matched,
			Reasoning:     fmt.Sprintf("Matched capabilities: %s", strings.Join(matched, ", ")),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// confidence = overlap * success * rating, each factor in [0,1].
func confidence(matched, total int, perf experts.Performance) float64 {
	overlap := float64(matched) / float64(total)
	success := clamp01(perf.SuccessRate / 100)
	rating := clamp01(perf.UserRating / 5)
	return clamp01(overlap * success * rating)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// intersect keeps tags (in tag order) that the provider advertises.
func intersect(tags, capabilities []string) []string {
	var out []string
	for _, tag := range tags {
		if slices.Contains(capabilities, tag) && !slices.Contains(out, tag) {
			out = append(out, tag)
		}
	}
	return out
}

func normalizeIDs(in []string) []string {
	var out []string
	for _, id := range in {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
