package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// validBaseConfig returns a Config with all required fields set.
func validBaseConfig() *Config {
	return &Config{
		CORSOrigins:      []string{"http://localhost:8501"},
		RateLimit:        5,
		RateBurst:        10,
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  720 * time.Hour,
		BcryptCost:       12,
		ChatModel:        "gemini-2.5-flash",
		EmbedderModel:    "gemini-embedding-001",
		Temperature:      0.3,
		MaxTokens:        2048,
		RetrievalTopK:    5,
		HistoryWindow:    20,
		PostgresHost:     "localhost",
		PostgresPort:     5432,
		PostgresUser:     "vitalog",
		PostgresPassword: "test_password",
		PostgresDBName:   "vitalog",
		PostgresSSLMode:  "disable",
		PoolMaxConns:     16,
	}
}

// validServeConfig returns a Config that also satisfies ValidateServe.
func validServeConfig() *Config {
	cfg := validBaseConfig()
	cfg.JWTSecret = "0123456789abcdef0123456789abcdef"
	cfg.GeminiAPIKey = "test-api-key"
	return cfg
}

func TestValidateSuccess(t *testing.T) {
	cfg := validBaseConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error with valid config: %v", err)
	}
}

func TestValidateNilConfig(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("Validate() on nil config = %v, want ErrConfigNil", err)
	}
}

// TestValidateModelName tests chat model name validation.
func TestValidateModelName(t *testing.T) {
	cfg := validBaseConfig()
	cfg.ChatModel = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for empty chat model, got nil")
	}
	if !errors.Is(err, ErrInvalidModelName) {
		t.Errorf("error should be ErrInvalidModelName, got: %v", err)
	}
}

// TestValidateTemperature tests temperature range validation.
func TestValidateTemperature(t *testing.T) {
	tests := []struct {
		name        string
		temperature float32
		wantErr     bool
	}{
		{name: "valid min", temperature: 0.0},
		{name: "valid mid", temperature: 1.0},
		{name: "valid max", temperature: 2.0},
		{name: "invalid negative", temperature: -0.1, wantErr: true},
		{name: "invalid too high", temperature: 2.1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			cfg.Temperature = tt.temperature

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("expected error for temperature %.2f, got nil", tt.temperature)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for temperature %.2f: %v", tt.temperature, err)
			}
			if tt.wantErr && err != nil && !errors.Is(err, ErrInvalidTemperature) {
				t.Errorf("error should be ErrInvalidTemperature, got: %v", err)
			}
		})
	}
}

// TestValidateMaxTokens tests max tokens range validation.
func TestValidateMaxTokens(t *testing.T) {
	tests := []struct {
		name      string
		maxTokens int
		wantErr   bool
	}{
		{name: "valid min", maxTokens: 1},
		{name: "valid mid", maxTokens: 100000},
		{name: "valid max", maxTokens: 2097152},
		{name: "invalid zero", maxTokens: 0, wantErr: true},
		{name: "invalid negative", maxTokens: -1, wantErr: true},
		{name: "invalid too high", maxTokens: 2097153, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			cfg.MaxTokens = tt.maxTokens

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("expected error for max_tokens %d, got nil", tt.maxTokens)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for max_tokens %d: %v", tt.maxTokens, err)
			}
			if tt.wantErr && err != nil && !errors.Is(err, ErrInvalidMaxTokens) {
				t.Errorf("error should be ErrInvalidMaxTokens, got: %v", err)
			}
		})
	}
}

// TestValidateEmbedderModel tests embedder model validation.
func TestValidateEmbedderModel(t *testing.T) {
	cfg := validBaseConfig()
	cfg.EmbedderModel = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for empty embedder_model, got nil")
	}
	if !errors.Is(err, ErrInvalidEmbedderModel) {
		t.Errorf("Validate() error = %v, want ErrInvalidEmbedderModel", err)
	}
}

// TestValidateRetrievalTopK tests retrieval depth validation.
func TestValidateRetrievalTopK(t *testing.T) {
	tests := []struct {
		name    string
		topK    int
		wantErr bool
	}{
		{name: "valid min", topK: 1},
		{name: "valid default", topK: 5},
		{name: "valid max", topK: 10},
		{name: "invalid zero", topK: 0, wantErr: true},
		{name: "invalid negative", topK: -1, wantErr: true},
		{name: "invalid too high", topK: 11, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			cfg.RetrievalTopK = tt.topK

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("expected error for retrieval_top_k %d, got nil", tt.topK)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for retrieval_top_k %d: %v", tt.topK, err)
			}
			if tt.wantErr && err != nil && !errors.Is(err, ErrInvalidRetrievalTopK) {
				t.Errorf("error should be ErrInvalidRetrievalTopK, got: %v", err)
			}
		})
	}
}

// TestValidateHistoryWindow tests chat history window validation.
func TestValidateHistoryWindow(t *testing.T) {
	tests := []struct {
		name    string
		window  int
		wantErr bool
	}{
		{name: "valid min", window: 1},
		{name: "valid default", window: DefaultHistoryWindow},
		{name: "valid max", window: MaxHistoryWindow},
		{name: "invalid zero", window: 0, wantErr: true},
		{name: "invalid too high", window: MaxHistoryWindow + 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			cfg.HistoryWindow = tt.window

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("expected error for history_window %d, got nil", tt.window)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for history_window %d: %v", tt.window, err)
			}
			if tt.wantErr && err != nil && !errors.Is(err, ErrInvalidHistoryWindow) {
				t.Errorf("error should be ErrInvalidHistoryWindow, got: %v", err)
			}
		})
	}
}

// TestValidatePostgresHost tests PostgreSQL host validation.
func TestValidatePostgresHost(t *testing.T) {
	cfg := validBaseConfig()
	cfg.PostgresHost = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for empty postgres_host, got nil")
	}
	if !errors.Is(err, ErrInvalidPostgresHost) {
		t.Errorf("error should be ErrInvalidPostgresHost, got: %v", err)
	}
}

// TestValidatePostgresPort tests PostgreSQL port validation.
func TestValidatePostgresPort(t *testing.T) {
	tests := []struct {
		name    string
		port    int
		wantErr bool
	}{
		{name: "valid min", port: 1},
		{name: "valid standard", port: 5432},
		{name: "valid max", port: 65535},
		{name: "invalid zero", port: 0, wantErr: true},
		{name: "invalid negative", port: -1, wantErr: true},
		{name: "invalid too high", port: 65536, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			cfg.PostgresPort = tt.port

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("expected error for port %d, got nil", tt.port)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for port %d: %v", tt.port, err)
			}
			if tt.wantErr && err != nil && !errors.Is(err, ErrInvalidPostgresPort) {
				t.Errorf("error should be ErrInvalidPostgresPort, got: %v", err)
			}
		})
	}
}

// TestValidatePostgresPassword tests PostgreSQL password validation.
func TestValidatePostgresPassword(t *testing.T) {
	tests := []struct {
		name      string
		password  string
		wantErr   bool
		errSubstr string
	}{
		{name: "valid password", password: "securepass123"},
		{name: "empty password", password: "", wantErr: true, errSubstr: "must be set"},
		{name: "too short 7 chars", password: "1234567", wantErr: true, errSubstr: "at least 8 characters"},
		{name: "exactly 8 chars", password: "12345678"},
		{name: "default dev password", password: "vitalog_dev_password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			cfg.PostgresPassword = tt.password

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("expected error for password %q, got nil", tt.password)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for password %q: %v", tt.password, err)
			}
			if tt.wantErr && err != nil {
				if !errors.Is(err, ErrInvalidPostgresPassword) {
					t.Errorf("error should be ErrInvalidPostgresPassword, got: %v", err)
				}
				if tt.errSubstr != "" && !strings.Contains(err.Error(), tt.errSubstr) {
					t.Errorf("error should contain %q, got: %v", tt.errSubstr, err)
				}
			}
		})
	}
}

// TestValidatePostgresSSLMode tests PostgreSQL SSL mode validation.
func TestValidatePostgresSSLMode(t *testing.T) {
	tests := []struct {
		name    string
		sslMode string
		wantErr bool
	}{
		{name: "valid disable", sslMode: "disable"},
		{name: "valid require", sslMode: "require"},
		{name: "valid verify-ca", sslMode: "verify-ca"},
		{name: "valid verify-full", sslMode: "verify-full"},
		{name: "invalid empty", sslMode: "", wantErr: true},
		{name: "typo disabled", sslMode: "disabled", wantErr: true},
		{name: "deprecated allow", sslMode: "allow", wantErr: true},
		{name: "deprecated prefer", sslMode: "prefer", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			cfg.PostgresSSLMode = tt.sslMode

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("expected error for SSL mode %q, got nil", tt.sslMode)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for SSL mode %q: %v", tt.sslMode, err)
			}
			if tt.wantErr && err != nil && !errors.Is(err, ErrInvalidPostgresSSLMode) {
				t.Errorf("error should be ErrInvalidPostgresSSLMode, got: %v", err)
			}
		})
	}
}

// TestValidateTokenTTL tests token lifetime validation.
func TestValidateTokenTTL(t *testing.T) {
	tests := []struct {
		name    string
		access  time.Duration
		refresh time.Duration
		wantErr bool
	}{
		{name: "valid defaults", access: DefaultAccessTokenTTL, refresh: DefaultRefreshTokenTTL},
		{name: "valid short session", access: time.Minute, refresh: time.Hour},
		{name: "zero access", access: 0, refresh: time.Hour, wantErr: true},
		{name: "negative access", access: -time.Minute, refresh: time.Hour, wantErr: true},
		{name: "refresh equals access", access: time.Hour, refresh: time.Hour, wantErr: true},
		{name: "refresh below access", access: time.Hour, refresh: time.Minute, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			cfg.AccessTokenTTL = tt.access
			cfg.RefreshTokenTTL = tt.refresh

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("expected error for access %v refresh %v, got nil", tt.access, tt.refresh)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for access %v refresh %v: %v", tt.access, tt.refresh, err)
			}
			if tt.wantErr && err != nil && !errors.Is(err, ErrInvalidTokenTTL) {
				t.Errorf("error should be ErrInvalidTokenTTL, got: %v", err)
			}
		})
	}
}

// TestValidateBcryptCost tests bcrypt cost validation.
func TestValidateBcryptCost(t *testing.T) {
	tests := []struct {
		name    string
		cost    int
		wantErr bool
	}{
		{name: "valid min", cost: 4},
		{name: "valid default", cost: 12},
		{name: "valid max", cost: 31},
		{name: "invalid zero", cost: 0, wantErr: true},
		{name: "invalid too high", cost: 32, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			cfg.BcryptCost = tt.cost

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("expected error for bcrypt cost %d, got nil", tt.cost)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for bcrypt cost %d: %v", tt.cost, err)
			}
			if tt.wantErr && err != nil && !errors.Is(err, ErrInvalidBcryptCost) {
				t.Errorf("error should be ErrInvalidBcryptCost, got: %v", err)
			}
		})
	}
}

// TestValidateRateLimit tests per-IP rate limit validation.
func TestValidateRateLimit(t *testing.T) {
	tests := []struct {
		name    string
		limit   float64
		burst   int
		wantErr bool
	}{
		{name: "valid defaults", limit: 5, burst: 10},
		{name: "valid fractional", limit: 0.5, burst: 1},
		{name: "zero limit", limit: 0, burst: 10, wantErr: true},
		{name: "negative limit", limit: -1, burst: 10, wantErr: true},
		{name: "zero burst", limit: 5, burst: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			cfg.RateLimit = tt.limit
			cfg.RateBurst = tt.burst

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("expected error for rate %v burst %d, got nil", tt.limit, tt.burst)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for rate %v burst %d: %v", tt.limit, tt.burst, err)
			}
			if tt.wantErr && err != nil && !errors.Is(err, ErrInvalidRateLimit) {
				t.Errorf("error should be ErrInvalidRateLimit, got: %v", err)
			}
		})
	}
}

// TestValidateServe tests the serve-mode requirements.
func TestValidateServe(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg := validServeConfig()
		if err := cfg.ValidateServe(); err != nil {
			t.Errorf("ValidateServe() unexpected error: %v", err)
		}
	})

	t.Run("missing jwt secret", func(t *testing.T) {
		cfg := validServeConfig()
		cfg.JWTSecret = ""
		if err := cfg.ValidateServe(); !errors.Is(err, ErrMissingJWTSecret) {
			t.Errorf("ValidateServe() error = %v, want ErrMissingJWTSecret", err)
		}
	})

	t.Run("short jwt secret", func(t *testing.T) {
		cfg := validServeConfig()
		cfg.JWTSecret = "too-short"
		if err := cfg.ValidateServe(); !errors.Is(err, ErrInvalidJWTSecret) {
			t.Errorf("ValidateServe() error = %v, want ErrInvalidJWTSecret", err)
		}
	})

	t.Run("missing api key", func(t *testing.T) {
		cfg := validServeConfig()
		cfg.GeminiAPIKey = ""
		if err := cfg.ValidateServe(); !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("ValidateServe() error = %v, want ErrMissingAPIKey", err)
		}
	})

	t.Run("base validation still applies", func(t *testing.T) {
		cfg := validServeConfig()
		cfg.PostgresHost = ""
		if err := cfg.ValidateServe(); !errors.Is(err, ErrInvalidPostgresHost) {
			t.Errorf("ValidateServe() error = %v, want ErrInvalidPostgresHost", err)
		}
	})
}

// BenchmarkValidate benchmarks configuration validation.
func BenchmarkValidate(b *testing.B) {
	cfg := validBaseConfig()

	if err := cfg.Validate(); err != nil {
		b.Fatalf("Validate() unexpected error: %v", err)
	}

	b.ResetTimer()
	for b.Loop() {
		_ = cfg.Validate()
	}
}
