// Package config loads proxy configuration from environment variables.
//
// Configuration is read once at process start. Feature flags (such as the
// external system prompt document) are never re-read per request; changing
// them requires a restart.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the AgentLLM proxy.
type Config struct {
	Port      int
	Version   string
	Database  DatabaseConfig
	Telemetry TelemetryConfig
	Auth      AuthConfig
	Upstream  UpstreamConfig
	Toolkits  ToolkitConfig
}

type DatabaseConfig struct {
	// Path to the SQLite credential database. Empty means the in-memory
	// credential store (credentials lost on restart).
	Path string
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

type AuthConfig struct {
	// API keys accepted on /v1/*. Empty disables auth.
	APIKeys []string
}

// UpstreamConfig points the run engine at an OpenAI-compatible endpoint.
type UpstreamConfig struct {
	URL    string
	APIKey string
	Model  string
}

// ToolkitConfig carries per-capability feature flags and settings.
type ToolkitConfig struct {
	// SystemPromptDoc is the document reference fetched into the system
	// prompt. Unset disables the prompt-extension capability entirely.
	SystemPromptDoc string

	// WebSearchEnabled gates the optional web-search capability.
	WebSearchEnabled bool

	// TrackerServerURL is the default issue tracker server suggested in
	// configuration prompts.
	TrackerServerURL string
}

// LoadDotEnv loads a .env file if present. Existing environment variables
// are never overwritten, so real env wins over file contents.
func LoadDotEnv() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:    envInt("AGENTLLM_PORT", 4000),
		Version: envStr("AGENTLLM_VERSION", "0.2.0"),
		Database: DatabaseConfig{
			Path: envStr("AGENTLLM_DB_PATH", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "agentllm-proxy"),
		},
		Auth: AuthConfig{
			APIKeys: splitList(envStr("AGENTLLM_API_KEYS", "")),
		},
		Upstream: UpstreamConfig{
			URL:    envStr("AGENTLLM_UPSTREAM_URL", "https://api.openai.com/v1"),
			APIKey: envStr("AGENTLLM_UPSTREAM_API_KEY", ""),
			Model:  envStr("AGENTLLM_UPSTREAM_MODEL", "gpt-4o-mini"),
		},
		Toolkits: ToolkitConfig{
			SystemPromptDoc:  envStr("AGENTLLM_SYSTEM_PROMPT_DOC", ""),
			WebSearchEnabled: envBool("AGENTLLM_WEB_SEARCH_ENABLED", true),
			TrackerServerURL: envStr("AGENTLLM_TRACKER_SERVER_URL", "https://issues.example.com"),
		},
	}
}

// splitList parses a comma-separated env value into trimmed entries.
func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
