package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# TradeCoach Configuration
# Provider API keys are read from OPENAI_API_KEY and ANTHROPIC_API_KEY
# (environment or .env), never from this file.

[generator]
# Candidate models in order. Prefix with "openai:" or "anthropic:" to force a
# provider; otherwise claude* models use Anthropic and the rest use OpenAI.
models = ["gpt-4o-mini", "claude-3-5-haiku-latest"]
# "primary" tries only the first model, "sequential" tries each in order
strategy = "primary"
temperature = 0.3
max_tokens = 2000
# Hard limit for one generation attempt (e.g., "45s", "2m")
timeout = "45s"
# Attempts per model when the provider answers 429. 1 disables retries.
retry_attempts = 1

[generator.circuit_breaker]
# Skip a model after repeated failures until the cooldown elapses
enabled = false
failure_threshold = 5
cooldown = "30s"

[api]
addr = ":8080"
# Bearer token required by the HTTP API. Empty disables authentication.
# TRADECOACH_API_TOKEN overrides this value.
auth_token = ""
# Requests per second across all clients, 0 disables rate limiting
rate_limit = 0
rate_burst = 10

[store]
# SQLite journal of saved analyses. Defaults to analyses.db in this directory.
# path = "/path/to/analyses.db"

[logging]
# debug, info, warn, error
level = "info"
console = true
file = false
max_size = 100
max_backups = 7
max_age = 30
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
