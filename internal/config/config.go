// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.docent/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Agent service: endpoint, credential, model deployment
//   - Tool server: MCP documentation-search server URL/label and allowed tools
//   - Run: poll interval and wall-clock deadline for the run-status loop
//   - Serve: CORS origins, proxy trust
//   - Otel: OTLP trace export (see otel fields below)
//
// Security: the service credential is never logged; it is masked in MarshalJSON
// and the config directory is created with 0750 permissions.
//
// Error handling uses sentinel errors checked with errors.Is(), wrapped with
// context via fmt.Errorf("%w: details", ErrXxx).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingEndpoint indicates the agent-service endpoint is not set.
	ErrMissingEndpoint = errors.New("missing agent service endpoint")

	// ErrMissingAPIKey indicates the agent-service credential is not set.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelDeployment indicates the model deployment name is invalid.
	ErrInvalidModelDeployment = errors.New("invalid model deployment")

	// ErrInvalidToolServerURL indicates the tool-server URL is invalid.
	ErrInvalidToolServerURL = errors.New("invalid tool server URL")

	// ErrInvalidToolServerLabel indicates the tool-server label is invalid.
	ErrInvalidToolServerLabel = errors.New("invalid tool server label")

	// ErrInvalidApprovalMode indicates the approval mode is not recognized.
	ErrInvalidApprovalMode = errors.New("invalid approval mode")

	// ErrInvalidPollInterval indicates the run poll interval is out of range.
	ErrInvalidPollInterval = errors.New("invalid poll interval")

	// ErrInvalidRunTimeout indicates the run timeout is out of range.
	ErrInvalidRunTimeout = errors.New("invalid run timeout")
)

// Approval modes forwarded to the agent service with each run. Any other
// value must be a raw JSON document the service understands (for example a
// per-tool breakdown); it is passed through verbatim.
const (
	ApprovalNever  = "never"
	ApprovalAlways = "always"
)

// Run-loop bounds. The poll interval matches the fixed one-second cadence the
// service documentation recommends; the timeout exists so a run that never
// leaves in_progress cannot block a caller forever.
const (
	DefaultPollInterval = time.Second
	DefaultRunTimeout   = 3 * time.Minute
	MinPollInterval     = 100 * time.Millisecond
	MaxRunTimeout       = 30 * time.Minute
)

// ToolServer identifies the MCP documentation-search server the remote agent
// calls. The label is the alias the agent uses to reference the server; the
// allowed-tool list restricts which of the server's tools the agent may invoke
// (empty list = no restriction).
type ToolServer struct {
	URL          string   `mapstructure:"url" json:"url"`
	Label        string   `mapstructure:"label" json:"label"`
	AllowedTools []string `mapstructure:"allowed_tools" json:"allowed_tools"`
}

// Run holds the polling parameters for the run-status loop.
type Run struct {
	PollInterval time.Duration `mapstructure:"poll_interval" json:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout" json:"timeout"`
}

// Otel holds trace-export settings.
type Otel struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (keys, tokens), update MarshalJSON.
type Config struct {
	// Remote agent service
	Endpoint        string `mapstructure:"endpoint" json:"endpoint"`
	APIKey          string `mapstructure:"agents_api_key" json:"agents_api_key"` // SENSITIVE: masked in MarshalJSON
	ModelDeployment string `mapstructure:"model_deployment" json:"model_deployment"`

	// Documentation tool server
	ToolServer ToolServer `mapstructure:"tool_server" json:"tool_server"`

	// Tool-approval mode forwarded to the service on every run
	ApprovalMode string `mapstructure:"approval_mode" json:"approval_mode"`

	// Run polling
	Run Run `mapstructure:"run" json:"run"`

	// Serve mode
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // set true behind a reverse proxy

	// Observability
	Otel Otel `mapstructure:"otel" json:"otel"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}

	// Fail fast: nothing downstream handles a half-formed config.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return cfg, nil
}

// LoadToolServer loads configuration for commands that only talk to the
// documentation tool server. The agent-service checks are skipped, so
// `docent tools` works before AGENTS_API_KEY is ever set.
func LoadToolServer() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}

	if err := cfg.validateToolServer(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return cfg, nil
}

// load reads defaults, file and environment into a Config without validating.
func load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".docent")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine: defaults plus env cover everything.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// Agent service defaults (endpoint and key have no default: required)
	viper.SetDefault("model_deployment", "gpt-4o")

	// Tool server defaults: the public documentation-search MCP server
	viper.SetDefault("tool_server.url", "https://learn.microsoft.com/api/mcp")
	viper.SetDefault("tool_server.label", "mslearn")
	viper.SetDefault("tool_server.allowed_tools", []string{"microsoft_docs_search"})

	// Approval defaults: the service executes tools without pausing
	viper.SetDefault("approval_mode", ApprovalNever)

	// Run loop defaults
	viper.SetDefault("run.poll_interval", DefaultPollInterval)
	viper.SetDefault("run.timeout", DefaultRunTimeout)

	// Serve defaults: same-origin UI, no proxy
	viper.SetDefault("cors_origins", []string{})
	viper.SetDefault("trust_proxy", false)

	// Otel defaults
	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.endpoint", "localhost:4318")
	viper.SetDefault("otel.service_name", "docent")
	viper.SetDefault("otel.environment", "dev")
}

// bindEnvVariables binds environment overrides explicitly.
// AGENTS_API_KEY is the only secret and deliberately has no config-file
// fallback documented; everything else uses the DOCENT_ prefix.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics it is a bug in this file, not a runtime condition.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("agents_api_key", "AGENTS_API_KEY")
	mustBind("endpoint", "DOCENT_ENDPOINT")
	mustBind("model_deployment", "DOCENT_MODEL")
	mustBind("approval_mode", "DOCENT_APPROVAL_MODE")
	mustBind("tool_server.url", "DOCENT_TOOL_SERVER_URL")
	mustBind("tool_server.label", "DOCENT_TOOL_SERVER_LABEL")
	mustBind("cors_origins", "DOCENT_CORS_ORIGINS")
	mustBind("trust_proxy", "DOCENT_TRUST_PROXY")
	mustBind("otel.enabled", "DOCENT_OTEL_ENABLED")
	mustBind("otel.endpoint", "DOCENT_OTEL_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid accidental substring matches against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 characters or fewer are fully masked; longer secrets keep the
// first and last two characters for debugging utility.
//
// This defends against accidental logging of real secrets, nothing more.
// If logs are ever compromised, rotate the credential.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	prefix := make([]byte, 2)
	suffix := make([]byte, 2)
	copy(prefix, s[:2])
	copy(suffix, s[len(s)-2:])
	return string(prefix) + "<" + maskedValue + ">" + string(suffix)
}

// MarshalJSON implements json.Marshaler with explicit sensitive-field masking.
//
// Masked fields: APIKey. When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.APIKey = maskSecret(a.APIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
