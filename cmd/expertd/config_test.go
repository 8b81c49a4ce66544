package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/expertmesh/internal/config"
	"github.com/danmuck/expertmesh/internal/testutil/testlog"
)

func TestLoadServiceConfigExample(t *testing.T) {
	testlog.Start(t)
	cfg, err := loadServiceConfig("ex.config.toml")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.NodeID != "expertd.local" {
		t.Fatalf("unexpected id: %q", cfg.NodeID)
	}
	if cfg.HistoryLimit != 500 {
		t.Fatalf("unexpected history limit: %d", cfg.HistoryLimit)
	}
	if cfg.QueryTimeout != 15*time.Second {
		t.Fatalf("unexpected query timeout: %v", cfg.QueryTimeout)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Fatalf("unexpected sweep interval: %v", cfg.SweepInterval)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("unexpected cors origins: %+v", cfg.CORSOrigins)
	}
	if !cfg.UniqueVoters {
		t.Fatalf("expected unique voters enabled")
	}
	if err := config.ValidateFile("ex.config.toml", config.KindExpertd); err != nil {
		t.Fatalf("strict validation: %v", err)
	}
}

func TestLoadServiceConfigRejectsInvalid(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("simulation_factor = 0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadServiceConfig(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestResolveConfigPathPrefersFlag(t *testing.T) {
	testlog.Start(t)
	env := func(string) string { return "from-env.toml" }
	if got := resolveConfigPath(" flag.toml ", env); got != "flag.toml" {
		t.Fatalf("unexpected path: %q", got)
	}
	if got := resolveConfigPath("", env); got != "from-env.toml" {
		t.Fatalf("unexpected path: %q", got)
	}
}

func TestQueryCommandPrintsResult(t *testing.T) {
	testlog.Start(t)
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	body := "simulation_factor = 1000\nstore_path = \"" + filepath.ToSlash(filepath.Join(t.TempDir(), "state", "expertmesh.db")) + "\"\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfgPath, "query", "--max-cost", "1", "write", "a", "python", "script"})
	if err := root.Execute(); err != nil {
		t.Fatalf("query command: %v", err)
	}
	var result struct {
		Success bool    `json:"success"`
		Cost    float64 `json:"totalCost"`
	}
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out.String())
	}
	if !result.Success || result.Cost != 0.5 {
		t.Fatalf("unexpected result: %+v", result)
	}

	out.Reset()
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfgPath, "stats"})
	if err := root.Execute(); err != nil {
		t.Fatalf("stats command: %v", err)
	}
	var snap struct {
		TotalQueries int `json:"totalQueries"`
	}
	if err := json.Unmarshal(out.Bytes(), &snap); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if snap.TotalQueries != 1 {
		t.Fatalf("expected persisted query, got %d", snap.TotalQueries)
	}
}
