// Package config loads, validates and templates expertd configuration files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/expertmesh/internal/catalog"
	"github.com/danmuck/expertmesh/internal/network"
	toml2 "github.com/pelletier/go-toml/v2"
)

// NodeFile is the on-disk expertd schema. Durations are Go duration strings.
type NodeFile struct {
	ID                 string   `toml:"id"`
	ListenAddr         string   `toml:"listen_addr"`
	CatalogPath        string   `toml:"catalog_path"`
	StorePath          string   `toml:"store_path"`
	Digest             string   `toml:"digest"`
	SimulationFactor   int      `toml:"simulation_factor"`
	HistoryLimit       int      `toml:"history_limit"`
	QueryTimeout       string   `toml:"query_timeout"`
	SweepInterval      string   `toml:"sweep_interval"`
	RateLimitPerMinute int      `toml:"rate_limit_per_minute"`
	RateLimitBurst     int      `toml:"rate_limit_burst"`
	CORSOrigins        []string `toml:"cors_origins"`
	OTLPEndpoint       string   `toml:"otlp_endpoint"`
	UniqueVoters       bool     `toml:"unique_voters"`
	AdminToken         string   `toml:"admin_token"`
	TLSCertFile        string   `toml:"tls_cert_file"`
	TLSKeyFile         string   `toml:"tls_key_file"`
}

// LoadNodeConfig overlays the keys present in path onto network.DefaultServiceConfig.
func LoadNodeConfig(path string) (network.ServiceConfig, error) {
	cfg := network.DefaultServiceConfig()

	var raw NodeFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return network.ServiceConfig{}, fmt.Errorf("load expertd config: %w", err)
	}

	if meta.IsDefined("id") {
		if id := strings.TrimSpace(raw.ID); id != "" {
			cfg.NodeID = id
		}
	}
	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("catalog_path") {
		cfg.CatalogPath = strings.TrimSpace(raw.CatalogPath)
	}
	if meta.IsDefined("store_path") {
		cfg.StorePath = strings.TrimSpace(raw.StorePath)
	}
	if meta.IsDefined("digest") {
		cfg.Digest = strings.TrimSpace(raw.Digest)
	}
	if meta.IsDefined("simulation_factor") {
		cfg.SimulationFactor = raw.SimulationFactor
	}
	if meta.IsDefined("history_limit") {
		cfg.HistoryLimit = raw.HistoryLimit
	}
	if meta.IsDefined("query_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.QueryTimeout))
		if err != nil {
			return network.ServiceConfig{}, fmt.Errorf("parse query_timeout: %w", err)
		}
		cfg.QueryTimeout = d
	}
	if meta.IsDefined("sweep_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.SweepInterval))
		if err != nil {
			return network.ServiceConfig{}, fmt.Errorf("parse sweep_interval: %w", err)
		}
		cfg.SweepInterval = d
	}
	if meta.IsDefined("rate_limit_per_minute") {
		cfg.RateLimitPerMinute = raw.RateLimitPerMinute
	}
	if meta.IsDefined("rate_limit_burst") {
		cfg.RateLimitBurst = raw.RateLimitBurst
	}
	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = normalizeList(raw.CORSOrigins)
	}
	if meta.IsDefined("otlp_endpoint") {
		cfg.OTLPEndpoint = strings.TrimSpace(raw.OTLPEndpoint)
	}
	if meta.IsDefined("unique_voters") {
		cfg.UniqueVoters = raw.UniqueVoters
	}
	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}
	if meta.IsDefined("tls_cert_file") {
		cfg.TLSCertFile = strings.TrimSpace(raw.TLSCertFile)
	}
	if meta.IsDefined("tls_key_file") {
		cfg.TLSKeyFile = strings.TrimSpace(raw.TLSKeyFile)
	}
	return cfg, nil
}

// ValidateFile checks a config of the given kind. expertd files are decoded
// strictly, so misspelled keys fail instead of silently keeping defaults.
func ValidateFile(path, kind string) error {
	switch normalizeKind(kind) {
	case KindExpertd:
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("config load failed (%s): %w", path, err)
		}
		dec := toml2.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		var raw NodeFile
		if err := dec.Decode(&raw); err != nil {
			var strict *toml2.StrictMissingError
			if errors.As(err, &strict) {
				return fmt.Errorf("config has unknown keys (%s):\n%s", path, strict.String())
			}
			return fmt.Errorf("config parse failed (%s): %w", path, err)
		}
		cfg, err := LoadNodeConfig(path)
		if err != nil {
			return err
		}
		return cfg.Validate()
	case KindCatalog:
		_, err := catalog.Load(path)
		return err
	default:
		return fmt.Errorf("unknown config kind: %s", kind)
	}
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
