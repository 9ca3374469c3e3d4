// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.vitalog/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - Auth: JWT secret, token lifetimes, bcrypt cost
//   - AI: chat/embedder model selection, temperature, retrieval depth
//   - Storage: PostgreSQL connection (see storage.go)
//   - Server: CORS, proxy trust, per-IP rate limiting
//   - Observability: OTLP tracing (see observability.go)
//
// Security: sensitive values (passwords, secrets, API keys) are masked in
// MarshalJSON/String; the config directory uses 0750 permissions.
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

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the chat model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidRetrievalTopK indicates the retrieval depth is out of range.
	ErrInvalidRetrievalTopK = errors.New("invalid retrieval top-k")

	// ErrInvalidHistoryWindow indicates the chat history window is out of range.
	ErrInvalidHistoryWindow = errors.New("invalid history window")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrMissingJWTSecret indicates the JWT signing secret is not set.
	ErrMissingJWTSecret = errors.New("missing JWT secret")

	// ErrInvalidJWTSecret indicates the JWT signing secret is too short.
	ErrInvalidJWTSecret = errors.New("invalid JWT secret")

	// ErrInvalidTokenTTL indicates a token lifetime is out of range.
	ErrInvalidTokenTTL = errors.New("invalid token TTL")

	// ErrInvalidBcryptCost indicates the bcrypt cost is out of range.
	ErrInvalidBcryptCost = errors.New("invalid bcrypt cost")

	// ErrInvalidRateLimit indicates the per-IP rate limit is invalid.
	ErrInvalidRateLimit = errors.New("invalid rate limit")
)

const (
	// DefaultChatModel is the default Gemini chat model.
	DefaultChatModel = "gemini-2.5-flash"

	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 outputs 3072 dimensions by default, but supports
	// truncation to 768 via OutputDimensionality (Matryoshka Representation
	// Learning). Our pgvector schema uses 768 dimensions; see
	// knowledge.VectorDimension.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultAccessTokenTTL is the session timeout: how long an access token
	// stays valid before the client must refresh.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL bounds how long a login survives without use.
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour

	// MinJWTSecretLen is the minimum JWT secret length in bytes.
	// 32 bytes matches the HS256 key size recommendation.
	MinJWTSecretLen = 32

	// DefaultHistoryWindow is the number of prior messages included in a
	// chat completion prompt.
	DefaultHistoryWindow = 20

	// MaxHistoryWindow is the absolute maximum to prevent prompt blowup.
	MaxHistoryWindow = 200
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, secrets), update MarshalJSON.
type Config struct {
	// Server configuration (serve mode)
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // Trust X-Real-IP/X-Forwarded-For headers (set true behind reverse proxy)
	RateLimit   float64  `mapstructure:"rate_limit" json:"rate_limit"`   // Requests per second per client IP
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`

	// Auth configuration
	JWTSecret       string        `mapstructure:"jwt_secret" json:"jwt_secret"` // SENSITIVE: masked in MarshalJSON
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl" json:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl" json:"refresh_token_ttl"`
	BcryptCost      int           `mapstructure:"bcrypt_cost" json:"bcrypt_cost"`

	// AI assistant configuration
	GeminiAPIKey  string  `mapstructure:"gemini_api_key" json:"gemini_api_key"` // SENSITIVE: masked in MarshalJSON
	ChatModel     string  `mapstructure:"chat_model" json:"chat_model"`
	EmbedderModel string  `mapstructure:"embedder_model" json:"embedder_model"`
	Temperature   float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens" json:"max_tokens"`
	RetrievalTopK int     `mapstructure:"retrieval_top_k" json:"retrieval_top_k"` // Knowledge chunks per chat turn
	HistoryWindow int     `mapstructure:"history_window" json:"history_window"`   // Prior messages per chat turn

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`
	PoolMaxConns     int    `mapstructure:"pool_max_conns" json:"pool_max_conns"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`

	// Observability configuration (see observability.go for type definition)
	Observability ObservabilityConfig `mapstructure:"observability" json:"observability"`
}

// IsDev reports whether the deployment looks like a development setup.
// SSL-less PostgreSQL is the signal; it controls HSTS and cookie hardening.
func (c *Config) IsDev() bool {
	return c.PostgresSSLMode == "disable"
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.vitalog/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".vitalog")

	// Ensure directory exists (use 0750 permission for better security)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	// Configure Viper
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	// Set default values
	setDefaults()

	// Bind environment variables
	bindEnvVariables()

	// Read configuration file (if exists)
	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	// Use Unmarshal to automatically map to struct (type-safe)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Parse DATABASE_URL if set (highest priority for PostgreSQL config)
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// Server defaults. The default CORS origin is the Streamlit dev server.
	viper.SetDefault("cors_origins", []string{"http://localhost:8501"})
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("rate_limit", 5.0)
	viper.SetDefault("rate_burst", 10)

	// Auth defaults
	viper.SetDefault("access_token_ttl", DefaultAccessTokenTTL)
	viper.SetDefault("refresh_token_ttl", DefaultRefreshTokenTTL)
	viper.SetDefault("bcrypt_cost", 12)

	// AI defaults
	viper.SetDefault("chat_model", DefaultChatModel)
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("temperature", 0.3)
	viper.SetDefault("max_tokens", 2048)
	viper.SetDefault("retrieval_top_k", 5)
	viper.SetDefault("history_window", DefaultHistoryWindow)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "vitalog")
	viper.SetDefault("postgres_password", "vitalog_dev_password")
	viper.SetDefault("postgres_db_name", "vitalog")
	viper.SetDefault("postgres_ssl_mode", "disable")
	viper.SetDefault("pool_max_conns", 16)

	// Logging defaults
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_json", false)

	// Observability defaults (disabled until an endpoint is configured)
	viper.SetDefault("observability.otlp_endpoint", "")
	viper.SetDefault("observability.insecure", true)
	viper.SetDefault("observability.environment", "dev")
	viper.SetDefault("observability.service_name", "vitalog")
	viper.SetDefault("observability.sample_ratio", 1.0)
}

// bindEnvVariables binds environment variables explicitly.
// Secrets come only from the environment in production deployments:
//  1. JWT_SECRET - access/refresh token signing key (serve mode)
//  2. GEMINI_API_KEY - Gemini API key (chat relay)
//  3. DATABASE_URL - parsed separately in parseDatabaseURL()
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	// Secrets
	mustBind("jwt_secret", "JWT_SECRET")
	mustBind("gemini_api_key", "GEMINI_API_KEY")

	// Server overrides (comma-separated list for origins)
	mustBind("cors_origins", "VITALOG_CORS_ORIGINS")
	mustBind("trust_proxy", "VITALOG_TRUST_PROXY")
	mustBind("rate_limit", "VITALOG_RATE_LIMIT")
	mustBind("rate_burst", "VITALOG_RATE_BURST")

	// Model overrides
	mustBind("chat_model", "VITALOG_CHAT_MODEL")
	mustBind("embedder_model", "VITALOG_EMBEDDER_MODEL")

	// Logging overrides
	mustBind("log_level", "VITALOG_LOG_LEVEL")
	mustBind("log_json", "VITALOG_LOG_JSON")

	// Observability
	mustBind("observability.otlp_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data.
// Using ████████ (full-width blocks U+2588) to avoid substring matching
// Previous attempts:
// - "****" failed: passwords with "*" leaked
// - "[REDACTED]" failed: passwords with "A", "D", "E", etc. leaked
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters, masks the rest.
// SECURITY: For secrets <=8 chars, fully masks to prevent substring attacks.
// For longer secrets, shows partial chars with unique separator.
//
// THREAT MODEL: This defends against accidental logging of real secrets.
// It is NOT cryptographically secure - if logs are compromised, rotate secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	// Fully mask short secrets to prevent substring matching attacks
	// Example attack: input "00***" → output "00******" contains "00***"
	if len(s) <= 8 {
		return maskedValue
	}
	// For longer secrets, show first/last 2 chars for debug utility
	// Example: "my_long_secret_key_123" → "my<████████>23"
	prefix := make([]byte, 2)
	suffix := make([]byte, 2)
	copy(prefix, s[:2])
	copy(suffix, s[len(s)-2:])
	return string(prefix) + "<" + maskedValue + ">" + string(suffix)
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - PostgresPassword
//   - JWTSecret
//   - GeminiAPIKey
//
// When adding new sensitive fields, update this method.
// The compiler will remind you when tests fail.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.JWTSecret = maskSecret(a.JWTSecret)
	a.GeminiAPIKey = maskSecret(a.GeminiAPIKey)
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
