// Package config loads the gateway's runtime configuration from environment
// variables, an optional .env file, and an optional MCP server-discovery
// YAML document, following the layered precedence the teacher proxy used for
// its own .env + tools_override.yaml setup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/masaic-ai/open-responses-go/internal/providerrouter"
)

// Config is the central configuration hub for the gateway process. It is
// safe for concurrent reads after LoadFromEnv returns; the mutex guards only
// the rarely-mutated MCP reload path.
//
// Configuration sources, in order of precedence:
//  1. Process environment variables (including a loaded .env file, if present)
//  2. The MCP server-discovery YAML document named by MCP_SERVER_CONFIG_FILE_PATH
//  3. Built-in defaults below
type Config struct {
	Port string

	// MaxToolCalls bounds the cumulative FunctionCall count across a
	// request's tool-call loop, per spec §4.5 invariant (MASAIC_MAX_TOOL_CALLS).
	MaxToolCalls int

	// MaxStreamingTimeout bounds total processing per request, enforced by
	// both the streaming and non-streaming orchestrators per spec §4.7/§4.8
	// (MASAIC_MAX_STREAMING_TIMEOUT, milliseconds).
	MaxStreamingTimeout time.Duration

	// ModelBaseURLOverride, when set, overrides every provider's base URL.
	// Accepts a comma-separated list of endpoints; the router rotates across
	// them and skips ones whose circuit breaker is open.
	ModelBaseURLOverride string

	// MCPServerConfigPath, when set, names a YAML document enumerating
	// MCP-proxied tools to register at startup (spec §4.4).
	MCPServerConfigPath string

	// ProviderAPIKeys holds provider-specific fallback keys
	// (OPENAI_API_KEY, ANTHROPIC_API_KEY, ...), consulted only when the
	// inbound request carries no Authorization header, per spec §6.
	ProviderAPIKeys map[string]string

	// VectorStoreBackend selects the persistence engine for the vector
	// search tool: "disk" (default, ephemeral-mode JSON snapshot) or
	// "redis" (durable mode, spec §6).
	VectorStoreBackend string
	VectorIndexPath    string
	VectorIndexKey     string

	// Embedding* configure the external embedding service the vector search
	// tool calls on every index/search (spec §4.10).
	EmbeddingBaseURL string
	EmbeddingAPIKey  string
	EmbeddingModel   string

	// FileStorageDir is where uploaded file content is written to disk
	// (internal/files).
	FileStorageDir string

	// ResponseStoreBackend selects the Response Store engine: "memory"
	// (default) or "redis".
	ResponseStoreBackend string
	RedisAddr            string

	// ConversationLoggingEnabled and ConversationMaskSensitive are read from
	// the environment, but serve never constructs an obslog.ConversationLogger,
	// so neither setting changes the gateway's behaviour.
	ConversationLoggingEnabled bool
	ConversationMaskSensitive  bool

	// OTLPEndpoint, when set, enables OTel span export via OTLP/HTTP
	// (SPEC_FULL §2). Empty means telemetry runs with a no-op tracer.
	OTLPEndpoint string

	// LogDir is where the structured JSON log file is written.
	LogDir string

	mu sync.Mutex
}

// Defaults mirror spec §6's documented defaults.
const (
	DefaultPort                = "8080"
	DefaultMaxToolCalls         = 10
	DefaultMaxStreamingTimeout = 60 * time.Second
)

// LoadFromEnv builds a Config from the process environment, first merging in
// a .env file if one exists in the working directory (ignored if absent —
// unlike the teacher, a missing .env is not fatal for this gateway since
// container deployments set env vars directly).
func LoadFromEnv() (*Config, error) {
	_ = godotenv.Load() // best-effort; real deployments set env directly

	cfg := &Config{
		Port:                       getEnvOr("PORT", DefaultPort),
		MaxToolCalls:               getEnvIntOr("MASAIC_MAX_TOOL_CALLS", DefaultMaxToolCalls),
		MaxStreamingTimeout:        time.Duration(getEnvIntOr("MASAIC_MAX_STREAMING_TIMEOUT", int(DefaultMaxStreamingTimeout/time.Millisecond))) * time.Millisecond,
		ModelBaseURLOverride:       os.Getenv("MODEL_BASE_URL"),
		MCPServerConfigPath:        os.Getenv("MCP_SERVER_CONFIG_FILE_PATH"),
		VectorStoreBackend:         getEnvOr("VECTOR_STORE_BACKEND", "disk"),
		VectorIndexPath:            getEnvOr("VECTOR_STORE_DISK_PATH", "./data/vector_index.json"),
		VectorIndexKey:             getEnvOr("VECTOR_STORE_REDIS_KEY", "vectorsearch:snapshot"),
		EmbeddingBaseURL:           os.Getenv("EMBEDDING_BASE_URL"),
		EmbeddingAPIKey:            os.Getenv("EMBEDDING_API_KEY"),
		EmbeddingModel:             getEnvOr("EMBEDDING_MODEL", "text-embedding-3-small"),
		FileStorageDir:             getEnvOr("FILE_STORAGE_DIR", "./data/files"),
		ResponseStoreBackend:       getEnvOr("RESPONSE_STORE_BACKEND", "memory"),
		RedisAddr:                  getEnvOr("REDIS_ADDR", "localhost:6379"),
		ConversationLoggingEnabled: getEnvBoolOr("CONVERSATION_LOGGING_ENABLED", false),
		ConversationMaskSensitive:  getEnvBoolOr("CONVERSATION_MASK_SENSITIVE", true),
		OTLPEndpoint:               os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		LogDir:                     getEnvOr("LOG_DIR", "./data/logs"),
		ProviderAPIKeys:            make(map[string]string),
	}

	for _, tag := range providerrouter.KnownProviderTags() {
		envVar := strings.ToUpper(tag) + "_API_KEY"
		if key := os.Getenv(envVar); key != "" {
			cfg.ProviderAPIKeys[tag] = key
		}
	}
	// The default provider (OpenAI) is also commonly set as OPENAI_API_KEY
	// regardless of provider-tag casing conventions.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.ProviderAPIKeys["openai"] = key
	}

	if cfg.MaxToolCalls <= 0 {
		return nil, fmt.Errorf("MASAIC_MAX_TOOL_CALLS must be positive, got %d", cfg.MaxToolCalls)
	}

	return cfg, nil
}

// MCPToolConfig describes one MCP-proxied tool entry in the discovery
// document named by MCPServerConfigPath.
type MCPToolConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	ServerURL   string `yaml:"server_url"`
}

// mcpDocument is the top-level shape of the YAML file at MCPServerConfigPath.
type mcpDocument struct {
	Tools []MCPToolConfig `yaml:"tools"`
}

// LoadMCPTools reads and parses the MCP server-discovery document, returning
// an empty slice (not an error) when MCPServerConfigPath is unset — MCP
// discovery is optional per spec §4.4.
func (c *Config) LoadMCPTools() ([]MCPToolConfig, error) {
	c.mu.Lock()
	path := c.MCPServerConfigPath
	c.mu.Unlock()

	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading MCP server config %q: %w", path, err)
	}

	var doc mcpDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing MCP server config %q: %w", path, err)
	}
	return doc.Tools, nil
}

func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBoolOr(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
