package assistant

import (
	"errors"
	"testing"
)

func TestDefaultRetryConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultRetryConfig()

	if cfg.MaxRetries <= 0 {
		t.Errorf("MaxRetries should be positive, got %d", cfg.MaxRetries)
	}
	if cfg.InitialInterval <= 0 {
		t.Errorf("InitialInterval should be positive, got %v", cfg.InitialInterval)
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		t.Error("MaxInterval should be >= InitialInterval")
	}
}

func TestRetryableError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "rate limit error", err: errors.New("rate limit exceeded"), want: true},
		{name: "quota exceeded error", err: errors.New("quota exceeded for project"), want: true},
		{name: "429 status code", err: errors.New("HTTP 429: Too Many Requests"), want: true},
		{name: "500 server error", err: errors.New("HTTP 500 Internal Server Error"), want: true},
		{name: "503 unavailable", err: errors.New("503 Service Unavailable"), want: true},
		{name: "connection reset", err: errors.New("connection reset by peer"), want: true},
		{name: "timeout", err: errors.New("request timeout"), want: true},
		{name: "case insensitive match", err: errors.New("RATE LIMIT hit"), want: true},
		{name: "invalid API key", err: errors.New("invalid API key"), want: false},
		{name: "bad request", err: errors.New("400 bad request: malformed content"), want: false},
		{name: "generic error", err: errors.New("something went wrong"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryableError(tt.err); got != tt.want {
				t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestBuildContents(t *testing.T) {
	t.Parallel()

	req := Request{
		History: []Turn{
			{Role: RoleUser, Content: "hello"},
			{Role: RoleAssistant, Content: "hi, how can I help?"},
		},
		Message: "what did I just say?",
	}

	contents := buildContents(req)

	if len(contents) != 3 {
		t.Fatalf("buildContents() returned %d contents, want 3", len(contents))
	}
	if contents[0].Role != "user" {
		t.Errorf("contents[0].Role = %q, want %q", contents[0].Role, "user")
	}
	if contents[1].Role != "model" {
		t.Errorf("contents[1].Role = %q, want %q", contents[1].Role, "model")
	}
	if contents[2].Role != "user" {
		t.Errorf("contents[2].Role = %q, want %q", contents[2].Role, "user")
	}
}

func TestBuildContentsNoHistory(t *testing.T) {
	t.Parallel()

	contents := buildContents(Request{Message: "first message"})

	if len(contents) != 1 {
		t.Fatalf("buildContents() returned %d contents, want 1", len(contents))
	}
	if contents[0].Role != "user" {
		t.Errorf("contents[0].Role = %q, want %q", contents[0].Role, "user")
	}
}
