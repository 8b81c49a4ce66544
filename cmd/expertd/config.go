package main

import (
	"os"
	"strings"

	"github.com/danmuck/expertmesh/internal/config"
	"github.com/danmuck/expertmesh/internal/network"
)

// EnvConfigPath names a config file when --config is not given.
const EnvConfigPath = "EXPERTMESH_CONFIG"

func resolveConfigPath(flagPath string, getenv func(string) string) string {
	if p := strings.TrimSpace(flagPath); p != "" {
		return p
	}
	return strings.TrimSpace(getenv(EnvConfigPath))
}

func loadServiceConfig(path string) (network.ServiceConfig, error) {
	path = resolveConfigPath(path, os.Getenv)
	cfg := network.DefaultServiceConfig()
	if path != "" {
		loaded, err := config.LoadNodeConfig(path)
		if err != nil {
			return network.ServiceConfig{}, err
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		return network.ServiceConfig{}, err
	}
	return cfg, nil
}
