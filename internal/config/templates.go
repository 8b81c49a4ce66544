package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	KindExpertd = "expertd"
	KindCatalog = "catalog"
)

func normalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}

func Template(kind string) (string, error) {
	switch normalizeKind(kind) {
	case KindExpertd:
		return expertdTemplate, nil
	case KindCatalog:
		return catalogTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const expertdTemplate = `id = "expertd.local"
listen_addr = "127.0.0.1:8420"

# empty catalog_path seeds the built-in providers
catalog_path = ""
# empty store_path keeps state in memory only
store_path = "local/expertmesh.db"

digest = "xxhash"
simulation_factor = 10
history_limit = 1000
query_timeout = "30s"
sweep_interval = "1m"

rate_limit_per_minute = 120
rate_limit_burst = 20
cors_origins = ["http://localhost:3000"]

otlp_endpoint = ""
unique_voters = false

# bearer token for PUT /providers/:id/status; empty leaves it open
admin_token = ""

# set both to serve HTTPS
tls_cert_file = ""
tls_key_file = ""
`

const catalogTemplate = `[[providers]]
id = "python-code-expert"
name = "Python Code Expert"
specialty = "Python programming and code generation"
provider_address = "0x1234567890abcdef1234567890abcdef12345678"
model_hash = "QmPythonExpertModelHash"
capabilities = ["python", "code_generation", "debugging"]
cost_per_call = 0.5
currency = "ETH"
total_calls = 0
success_rate = 95.0
average_latency_ms = 800
user_rating = 4.7

[[providers]]
id = "creative-writing-expert"
name = "Creative Writing Expert"
specialty = "Poetry and creative writing"
provider_address = "0x9876543210fedcba9876543210fedcba98765432"
model_hash = "QmPoetryExpertModelHash"
capabilities = ["poetry", "creative_writing", "storytelling"]
cost_per_call = 0.3
currency = "ETH"
success_rate = 92.0
average_latency_ms = 600
user_rating = 4.6
`
