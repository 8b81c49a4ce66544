package routing

// Query is one routing request. It is immutable once submitted.
type Query struct {
	ID                   string            `json:"id"`
	Text                 string            `json:"text"`
	MaxCost              float64           `json:"maxCost"`
	PreferredProviderIDs []string          `json:"preferredProviderIds,omitempty"`
	Context              map[string]string `json:"context,omitempty"`
}

// Selection is one ranked candidate. Reasoning is for humans and never parsed.
type Selection struct {
	ProviderID    string   `json:"providerId"`
	ProviderName  string   `json:"providerName"`
	Confidence    float64  `json:"confidence"`
	EstimatedCost float64  `json:"estimatedCost"`
	Matched       []string `json:"matchedCapabilities"`
	Reasoning     string   `json:"reasoning"`
}

// TotalCost sums estimated costs in order.
func TotalCost(selections []Selection) float64 {
	total := 0.0
	for _, s := range selections {
		total += s.EstimatedCost
	}
	return total
}
