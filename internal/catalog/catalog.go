// Package catalog owns the bootstrap provider set.
//
// Ownership boundary:
// - built-in default providers
// - provider catalog files (YAML or TOML)
// - seeding a registry at startup
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/expertmesh/internal/experts"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

var ErrUnsupportedFormat = errors.New("unsupported catalog format")

// Registrar is the registry surface used for seeding.
type Registrar interface {
	Register(p experts.Provider) (experts.Provider, error)
}

// Default returns the four bootstrap providers.
func Default() []experts.Provider {
	return []experts.Provider{
		{
			ID: "python-code-expert",
			Spec: experts.Spec{
				Name:            "Python Code Expert",
				Specialty:       "Python programming and code generation",
				ProviderAddress: "0x1234567890abcdef1234567890abcdef12345678",
				ModelHash:       "QmPythonExpertModelHash",
				Capabilities:    []string{"python", "code_generation", "debugging"},
				Pricing:         experts.Pricing{CostPerCall: 0.5, Currency: experts.CurrencyETH},
			},
			Performance: experts.Performance{TotalCalls: 1250, SuccessRate: 95, AverageLatencyMS: 800, UserRating: 4.7},
			Status:      experts.StatusActive,
		},
		{
			ID: "medical-terminology-expert",
			Spec: experts.Spec{
				Name:            "Medical Terminology Expert",
				Specialty:       "Medical terminology and biology",
				ProviderAddress: "0xabcdef1234567890abcdef1234567890abcdef12",
				ModelHash:       "QmMedicalExpertModelHash",
				Capabilities:    []string{"medical_terminology", "biology", "anatomy"},
				Pricing:         experts.Pricing{CostPerCall: 0.8, Currency: experts.CurrencyETH},
			},
			Performance: experts.Performance{TotalCalls: 890, SuccessRate: 98, AverageLatencyMS: 1200, UserRating: 4.9},
			Status:      experts.StatusActive,
		},
		{
			ID: "creative-writing-expert",
			Spec: experts.Spec{
				Name:            "Creative Writing Expert",
				Specialty:       "Poetry and creative writing",
				ProviderAddress: "0x9876543210fedcba9876543210fedcba98765432",
				ModelHash:       "QmPoetryExpertModelHash",
				Capabilities:    []string{"poetry", "creative_writing", "storytelling"},
				Pricing:         experts.Pricing{CostPerCall: 0.3, Currency: experts.CurrencyETH},
			},
			Performance: experts.Performance{TotalCalls: 2100, SuccessRate: 92, AverageLatencyMS: 600, UserRating: 4.6},
			Status:      experts.StatusActive,
		},
		{
			ID: "blockchain-expert",
			Spec: experts.Spec{
				Name:            "Blockchain Expert",
				Specialty:       "Blockchain and smart contracts",
				ProviderAddress: "0xfedcba0987654321fedcba0987654321fedcba09",
				ModelHash:       "QmBlockchainExpertModelHash",
				Capabilities:    []string{"blockchain", "smart_contracts", "solidity"},
				Pricing:         experts.Pricing{CostPerCall: 1.0, Currency: experts.CurrencyETH},
			},
			Performance: experts.Performance{TotalCalls: 567, SuccessRate: 94, AverageLatencyMS: 1000, UserRating: 4.8},
			Status:      experts.StatusActive,
		},
	}
}

type fileCatalog struct {
	Providers []fileProvider `yaml:"providers" toml:"providers"`
}

type fileProvider struct {
	ID               string   `yaml:"id" toml:"id"`
	Name             string   `yaml:"name" toml:"name"`
	Specialty        string   `yaml:"specialty" toml:"specialty"`
	ProviderAddress  string   `yaml:"provider_address" toml:"provider_address"`
	ModelHash        string   `yaml:"model_hash" toml:"model_hash"`
	Capabilities     []string `yaml:"capabilities" toml:"capabilities"`
	CostPerCall      float64  `yaml:"cost_per_call" toml:"cost_per_call"`
	Currency         string   `yaml:"currency" toml:"currency"`
	Status           string   `yaml:"status" toml:"status"`
	TotalCalls       uint64   `yaml:"total_calls" toml:"total_calls"`
	SuccessRate      *float64 `yaml:"success_rate" toml:"success_rate"`
	AverageLatencyMS *int64   `yaml:"average_latency_ms" toml:"average_latency_ms"`
	UserRating       *float64 `yaml:"user_rating" toml:"user_rating"`
}

// Load reads a catalog file. The format follows the extension: .yaml, .yml or .toml.
// Performance fields left out take the governance defaults.
func Load(path string) ([]experts.Provider, error) {
	var raw fileCatalog
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.DecodeFile(path, &raw); err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	out := make([]experts.Provider, 0, len(raw.Providers))
	for i, fp := range raw.Providers {
		p := fp.provider()
		if err := experts.Validate(p); err != nil {
			return nil, fmt.Errorf("catalog %s entry %d: %w", path, i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (fp fileProvider) provider() experts.Provider {
	perf := experts.DefaultPerformance()
	perf.TotalCalls = fp.TotalCalls
	if fp.SuccessRate != nil {
		perf.SuccessRate = *fp.SuccessRate
	}
	if fp.AverageLatencyMS != nil {
		perf.AverageLatencyMS = *fp.AverageLatencyMS
	}
	if fp.UserRating != nil {
		perf.UserRating = *fp.UserRating
	}
	status := experts.Status(strings.ToLower(strings.TrimSpace(fp.Status)))
	if status == "" {
		status = experts.StatusActive
	}
	return experts.Provider{
		ID: strings.TrimSpace(fp.ID),
		Spec: experts.Spec{
			Name:            fp.Name,
			Specialty:       fp.Specialty,
			ProviderAddress: fp.ProviderAddress,
			ModelHash:       fp.ModelHash,
			Capabilities:    fp.Capabilities,
			Pricing: experts.Pricing{
				CostPerCall: fp.CostPerCall,
				Currency:    experts.Currency(strings.ToUpper(strings.TrimSpace(fp.Currency))),
			},
		}.Normalize(),
		Performance: perf,
		Status:      status,
	}
}

// Resolve returns the providers from path, or Default when path is empty.
func Resolve(path string) ([]experts.Provider, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	return Load(path)
}

// Seed registers providers in order and stops at the first failure.
func Seed(reg Registrar, providers []experts.Provider) (int, error) {
	for i, p := range providers {
		if _, err := reg.Register(p); err != nil {
			return i, fmt.Errorf("seed provider %q: %w", p.ID, err)
		}
	}
	log.Info().Int("providers", len(providers)).Msg("catalog.Seed")
	return len(providers), nil
}
