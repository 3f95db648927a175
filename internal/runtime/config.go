// Package runtime wires every collaborator package into one process:
// configuration, providers, the catalog, cost/history stores, the task
// executor, the scheduler, and the HTTP/WebSocket server.
package runtime

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP listener and request-handling limits.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	RateLimit int    `yaml:"rate_limit"`
}

// ProvidersConfig carries the credentials and endpoints needed to
// initialize each optional LLM provider. A provider is only constructed
// when its required field is non-empty.
type ProvidersConfig struct {
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	GeminiAPIKey    string `yaml:"gemini_api_key"`
	AWSRegion       string `yaml:"aws_region"`
	OllamaBaseURL   string `yaml:"ollama_base_url"`

	AnthropicModel string `yaml:"anthropic_model"`
	OpenAIModel    string `yaml:"openai_model"`
	GeminiModel    string `yaml:"gemini_model"`
	BedrockModel   string `yaml:"bedrock_model"`
	OllamaModel    string `yaml:"ollama_model"`
}

// PersistenceConfig selects between the in-memory and SQLite-backed
// history/cost store implementations (A8).
type PersistenceConfig struct {
	Backend    string `yaml:"backend"` // "memory" (default) or "sqlite"
	SQLitePath string `yaml:"sqlite_path"`
}

// TelemetryConfig configures logging, tracing, and the audit sink.
type TelemetryConfig struct {
	LogFormat      string  `yaml:"log_format"`
	LogLevel       string  `yaml:"log_level"`
	OTLPEndpoint   string  `yaml:"otlp_endpoint"`
	OTLPInsecure   bool    `yaml:"otlp_insecure"`
	TraceSampling  float64 `yaml:"trace_sampling"`
	AuditURL       string  `yaml:"audit_url"`
}

// AuthConfig configures dashboard JWT issuance. Username/password are read
// exclusively from the environment by authn.NewStaticCredentialsFromEnv,
// matching the runtime's no-user-database scope.
type AuthConfig struct {
	JWTSecret   string        `yaml:"jwt_secret"`
	TokenExpiry time.Duration `yaml:"token_expiry"`
}

// Config is the fully resolved process configuration: an optional YAML file
// overlaid with environment variables, which always win. CatalogHotReloadDisabled
// defaults to false (hot-reload on) so its zero value is the common case;
// set it to opt out.
type Config struct {
	CatalogPath              string            `yaml:"catalog_path"`
	CatalogHotReloadDisabled bool              `yaml:"catalog_hot_reload_disabled"`
	DefaultAgentID           string            `yaml:"default_agent_id"`
	Server                   ServerConfig      `yaml:"server"`
	Providers                ProvidersConfig   `yaml:"providers"`
	Persistence              PersistenceConfig `yaml:"persistence"`
	Telemetry                TelemetryConfig   `yaml:"telemetry"`
	Auth                     AuthConfig        `yaml:"auth"`
}

// Load resolves configuration from an optional YAML file at path (ignored
// if empty or missing) and overlays GOBLIN_*/well-known environment
// variables on top, then applies defaults. Env values always win over the
// file.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("GOBLIN_CATALOG_PATH")); v != "" {
		cfg.CatalogPath = v
	}
	if v := strings.TrimSpace(os.Getenv("GOBLIN_CATALOG_HOT_RELOAD_DISABLED")); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.CatalogHotReloadDisabled = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("GOBLIN_DEFAULT_AGENT_ID")); v != "" {
		cfg.DefaultAgentID = v
	}
	if v := strings.TrimSpace(os.Getenv("GOBLIN_ADDR")); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("API_RATE_LIMIT")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimit = parsed
		}
	}

	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		cfg.Providers.AnthropicAPIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		cfg.Providers.OpenAIAPIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); v != "" {
		cfg.Providers.GeminiAPIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("AWS_REGION")); v != "" {
		cfg.Providers.AWSRegion = v
	}
	if v := strings.TrimSpace(os.Getenv("OLLAMA_BASE_URL")); v != "" {
		cfg.Providers.OllamaBaseURL = v
	}

	if v := strings.TrimSpace(os.Getenv("GOBLIN_PERSISTENCE")); v != "" {
		cfg.Persistence.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv("GOBLIN_SQLITE_PATH")); v != "" {
		cfg.Persistence.SQLitePath = v
	}

	if v := strings.TrimSpace(os.Getenv("GOBLIN_LOG_FORMAT")); v != "" {
		cfg.Telemetry.LogFormat = v
	}
	if v := strings.TrimSpace(os.Getenv("GOBLIN_LOG_LEVEL")); v != "" {
		cfg.Telemetry.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("GOBLIN_AUDIT_URL")); v != "" {
		cfg.Telemetry.AuditURL = v
	}

	if v := strings.TrimSpace(os.Getenv("JWT_SECRET")); v != "" {
		cfg.Auth.JWTSecret = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = 100
	}
	if cfg.Persistence.Backend == "" {
		cfg.Persistence.Backend = "memory"
	}
	if cfg.Telemetry.LogFormat == "" {
		cfg.Telemetry.LogFormat = "json"
	}
	if cfg.Telemetry.LogLevel == "" {
		cfg.Telemetry.LogLevel = "info"
	}
	if cfg.Telemetry.TraceSampling == 0 {
		cfg.Telemetry.TraceSampling = 1.0
	}
	if cfg.Auth.TokenExpiry == 0 {
		cfg.Auth.TokenExpiry = 8 * time.Hour
	}
	if cfg.DefaultAgentID == "" {
		cfg.DefaultAgentID = "builder"
	}
}
