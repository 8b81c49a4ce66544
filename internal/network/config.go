package network

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/expertmesh/internal/execution"
)

var ErrInvalidConfig = errors.New("network: invalid config")

// ServiceConfig configures one expertd node.
type ServiceConfig struct {
	NodeID             string
	ListenAddr         string
	CatalogPath        string
	StorePath          string
	Digest             string
	SimulationFactor   int
	HistoryLimit       int
	QueryTimeout       time.Duration
	SweepInterval      time.Duration
	RateLimitPerMinute int
	RateLimitBurst     int
	CORSOrigins        []string
	OTLPEndpoint       string
	UniqueVoters       bool

	// AdminToken guards operator endpoints on the HTTP surface. Empty disables the check.
	AdminToken string

	// TLSCertFile and TLSKeyFile switch the listener to HTTPS when both are set.
	TLSCertFile string
	TLSKeyFile  string
}

// DefaultServiceConfig is the standalone node configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		NodeID:             "expertd.local",
		ListenAddr:         "127.0.0.1:8420",
		Digest:             execution.DigestXXHash,
		SimulationFactor:   execution.DefaultSimulationFactor,
		HistoryLimit:       1000,
		QueryTimeout:       30 * time.Second,
		SweepInterval:      time.Minute,
		RateLimitPerMinute: 120,
		RateLimitBurst:     20,
		CORSOrigins:        []string{"http://localhost:3000"},
	}
}

// Validate checks the values a Service cannot run without.
func (c ServiceConfig) Validate() error {
	if strings.TrimSpace(c.NodeID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidConfig)
	}
	if _, err := execution.NewDigester(c.Digest); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.SimulationFactor <= 0 {
		return fmt.Errorf("%w: simulation_factor must be positive", ErrInvalidConfig)
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("%w: history_limit must be non-negative", ErrInvalidConfig)
	}
	if c.QueryTimeout < 0 {
		return fmt.Errorf("%w: query_timeout must be non-negative", ErrInvalidConfig)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("%w: sweep_interval must be positive", ErrInvalidConfig)
	}
	if c.RateLimitPerMinute < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("%w: rate limits must be non-negative", ErrInvalidConfig)
	}
	if (strings.TrimSpace(c.TLSCertFile) == "") != (strings.TrimSpace(c.TLSKeyFile) == "") {
		return fmt.Errorf("%w: tls_cert_file and tls_key_file must be set together", ErrInvalidConfig)
	}
	return nil
}
