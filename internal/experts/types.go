package experts

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// Status is the provider lifecycle marker.
type Status string

const (
	StatusActive      Status = "active"
	StatusInactive    Status = "inactive"
	StatusUnderReview Status = "under_review"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusUnderReview:
		return true
	}
	return false
}

// Currency denominates provider pricing.
type Currency string

const (
	CurrencyETH     Currency = "ETH"
	CurrencyUSDC    Currency = "USDC"
	CurrencyCredits Currency = "CREDITS"
)

func (c Currency) Valid() bool {
	switch c {
	case CurrencyETH, CurrencyUSDC, CurrencyCredits:
		return true
	}
	return false
}

type Pricing struct {
	CostPerCall float64  `json:"costPerCall"`
	Currency    Currency `json:"currency"`
}

// Performance counters. SuccessRate is a percentage in [0,100], UserRating in [0,5].
type Performance struct {
	TotalCalls       uint64  `json:"totalCalls"`
	SuccessRate      float64 `json:"successRate"`
	AverageLatencyMS int64   `json:"averageLatencyMs"`
	UserRating       float64 `json:"userRating"`
}

// DefaultPerformance is assigned to providers admitted through governance.
func DefaultPerformance() Performance {
	return Performance{
		TotalCalls:       0,
		SuccessRate:      100,
		AverageLatencyMS: 500,
		UserRating:       5.0,
	}
}

// Spec is the provider-controlled part of a record: everything except identity,
// performance, status and timestamps.
type Spec struct {
	Name            string   `json:"name"`
	Specialty       string   `json:"specialty"`
	ProviderAddress string   `json:"providerAddress"`
	ModelHash       string   `json:"modelHash"`
	Capabilities    []string `json:"capabilities"`
	Pricing         Pricing  `json:"pricing"`
}

// Provider is one registered expert.
type Provider struct {
	ID string `json:"id"`
	Spec
	Performance Performance `json:"performance"`
	Status      Status      `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// DominantCapability is the first advertised capability.
func (p Provider) DominantCapability() string {
	if len(p.Capabilities) == 0 {
		return ""
	}
	return p.Capabilities[0]
}

func (p Provider) HasCapability(tag string) bool {
	return slices.Contains(p.Capabilities, tag)
}

// Clone returns a copy that shares no slices with p.
func (p Provider) Clone() Provider {
	p.Capabilities = slices.Clone(p.Capabilities)
	return p
}

// NormalizeCapabilities lowercases, trims and de-duplicates tags, keeping first-seen order.
func NormalizeCapabilities(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, raw := range in {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if tag == "" || slices.Contains(out, tag) {
			continue
		}
		out = append(out, tag)
	}
	return out
}

// Normalize trims text fields, normalizes capabilities and defaults the currency.
func (s Spec) Normalize() Spec {
	s.Name = strings.TrimSpace(s.Name)
	s.Specialty = strings.TrimSpace(s.Specialty)
	s.ProviderAddress = strings.TrimSpace(s.ProviderAddress)
	s.ModelHash = strings.TrimSpace(s.ModelHash)
	s.Capabilities = NormalizeCapabilities(s.Capabilities)
	if s.Pricing.Currency == "" {
		s.Pricing.Currency = CurrencyETH
	}
	return s
}

// ValidateSpec checks the fields every provider must carry.
func ValidateSpec(s Spec) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRecord)
	}
	if strings.TrimSpace(s.ProviderAddress) == "" {
		return fmt.Errorf("%w: provider address is required", ErrInvalidRecord)
	}
	if len(NormalizeCapabilities(s.Capabilities)) == 0 {
		return fmt.Errorf("%w: at least one capability is required", ErrInvalidRecord)
	}
	if !inRange(s.Pricing.CostPerCall, 0, math.MaxFloat64) {
		return fmt.Errorf("%w: cost per call must be a finite non-negative number", ErrInvalidRecord)
	}
	if s.Pricing.Currency != "" && !s.Pricing.Currency.Valid() {
		return fmt.Errorf("%w: unknown currency %q", ErrInvalidRecord, s.Pricing.Currency)
	}
	return nil
}

// inRange is false for NaN and for values outside [lo, hi].
func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

// Validate checks identity, spec and performance bounds.
func Validate(p Provider) error {
	if !isValidID(strings.TrimSpace(p.ID)) {
		return fmt.Errorf("%w: invalid id format %q", ErrInvalidRecord, p.ID)
	}
	if err := ValidateSpec(p.Spec); err != nil {
		return err
	}
	perf := p.Performance
	if !inRange(perf.SuccessRate, 0, 100) {
		return fmt.Errorf("%w: success rate %v out of range", ErrInvalidRecord, perf.SuccessRate)
	}
	if !inRange(perf.UserRating, 0, 5) {
		return fmt.Errorf("%w: user rating %v out of range", ErrInvalidRecord, perf.UserRating)
	}
	if perf.AverageLatencyMS < 0 {
		return fmt.Errorf("%w: negative latency", ErrInvalidRecord)
	}
	if p.Status != "" && !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidRecord, p.Status)
	}
	return nil
}

func isValidID(id string) bool {
	if id == "" {
		return false
	}
	lastSep := false
	for i := 0; i < len(id); i++ {
		c := id[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		isSep := c == '.' || c == '-' || c == '_'
		if !(isLower || isDigit || isSep) {
			return false
		}
		if (i == 0 || i == len(id)-1) && isSep {
			return false
		}
		if isSep && lastSep {
			return false
		}
		lastSep = isSep
	}
	return true
}
