package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitalog/vitalog/internal/auth"
	"github.com/vitalog/vitalog/internal/chat"
	"github.com/vitalog/vitalog/internal/health"
	"github.com/vitalog/vitalog/internal/reports"
	"github.com/vitalog/vitalog/internal/settings"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Auth        *auth.Service     // Required
	Health      *health.Store     // Required
	Settings    *settings.Store   // Required
	Chat        *chat.Service     // Required
	ChatStore   *chat.Store       // Required
	Reports     *reports.Service  // Required
	Pool        *pgxpool.Pool     // Optional: nil degrades /ready to liveness only
	CORSOrigins []string          // Allowed origins for CORS
	IsDev       bool              // Disables HSTS (plain-HTTP development)
	TrustProxy  bool              // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateLimit   float64           // Rate limiter refill per second per IP (0 = default 5)
	RateBurst   int               // Rate limiter burst size per IP (0 = default 20)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	switch {
	case cfg.Auth == nil:
		return nil, errors.New("auth service is required")
	case cfg.Health == nil:
		return nil, errors.New("health store is required")
	case cfg.Settings == nil:
		return nil, errors.New("settings store is required")
	case cfg.Chat == nil:
		return nil, errors.New("chat service is required")
	case cfg.ChatStore == nil:
		return nil, errors.New("chat store is required")
	case cfg.Reports == nil:
		return nil, errors.New("reports service is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ah := &authHandler{service: cfg.Auth, logger: logger}
	hh := &healthHandler{store: cfg.Health, logger: logger}
	sh := &settingsHandler{store: cfg.Settings, logger: logger}
	ch := &chatHandler{service: cfg.Chat, store: cfg.ChatStore, logger: logger}
	rh := &reportsHandler{service: cfg.Reports, logger: logger}

	mux := http.NewServeMux()

	// Accounts and tokens
	mux.HandleFunc("POST /api/v1/auth/register", ah.register)
	mux.HandleFunc("POST /api/v1/auth/login", ah.login)
	mux.HandleFunc("POST /api/v1/auth/refresh", ah.refresh)
	mux.HandleFunc("POST /api/v1/auth/logout", ah.logout)
	mux.HandleFunc("GET /api/v1/auth/me", ah.me)
	mux.HandleFunc("PATCH /api/v1/auth/me", ah.updateMe)

	// Health metrics. The summary route must precede {id} in specificity;
	// ServeMux prefers the literal segment, so both can coexist.
	mux.HandleFunc("GET /api/v1/health/metrics", hh.listMetrics)
	mux.HandleFunc("POST /api/v1/health/metrics", hh.addMetric)
	mux.HandleFunc("GET /api/v1/health/metrics/summary", hh.metricSummary)
	mux.HandleFunc("GET /api/v1/health/metrics/{id}", hh.getMetric)
	mux.HandleFunc("PUT /api/v1/health/metrics/{id}", hh.updateMetric)
	mux.HandleFunc("DELETE /api/v1/health/metrics/{id}", hh.deleteMetric)

	// Medications
	mux.HandleFunc("GET /api/v1/health/medications", hh.listMedications)
	mux.HandleFunc("POST /api/v1/health/medications", hh.addMedication)
	mux.HandleFunc("GET /api/v1/health/medications/{id}", hh.getMedication)
	mux.HandleFunc("PUT /api/v1/health/medications/{id}", hh.updateMedication)
	mux.HandleFunc("DELETE /api/v1/health/medications/{id}", hh.deleteMedication)
	mux.HandleFunc("POST /api/v1/health/medications/{id}/stop", hh.stopMedication)

	// Symptoms
	mux.HandleFunc("GET /api/v1/health/symptoms", hh.listSymptoms)
	mux.HandleFunc("POST /api/v1/health/symptoms", hh.logSymptom)
	mux.HandleFunc("GET /api/v1/health/symptoms/{id}", hh.getSymptom)
	mux.HandleFunc("PUT /api/v1/health/symptoms/{id}", hh.updateSymptom)
	mux.HandleFunc("DELETE /api/v1/health/symptoms/{id}", hh.deleteSymptom)
	mux.HandleFunc("POST /api/v1/health/symptoms/{id}/resolve", hh.resolveSymptom)

	// Chat
	mux.HandleFunc("POST /api/v1/chat/message", ch.send)
	mux.HandleFunc("POST /api/v1/chat/stream", ch.stream)
	mux.HandleFunc("GET /api/v1/chat/conversations", ch.listConversations)
	mux.HandleFunc("GET /api/v1/chat/conversations/{id}", ch.getConversation)
	mux.HandleFunc("GET /api/v1/chat/conversations/{id}/messages", ch.listMessages)
	mux.HandleFunc("PATCH /api/v1/chat/conversations/{id}", ch.renameConversation)
	mux.HandleFunc("DELETE /api/v1/chat/conversations/{id}", ch.deleteConversation)

	// Reports
	mux.HandleFunc("POST /api/v1/reports/generate", rh.generate)
	mux.HandleFunc("GET /api/v1/reports", rh.list)
	mux.HandleFunc("GET /api/v1/reports/{id}", rh.get)
	mux.HandleFunc("GET /api/v1/reports/{id}/export", rh.export)
	mux.HandleFunc("DELETE /api/v1/reports/{id}", rh.remove)

	// Settings
	mux.HandleFunc("GET /api/v1/settings", sh.get)
	mux.HandleFunc("PUT /api/v1/settings", sh.update)

	// Rate limiter: per-IP token bucket.
	rlRate := cfg.RateLimit
	if rlRate <= 0 {
		rlRate = 5.0
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 20
	}
	rl := newRateLimiter(rlRate, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Auth → Routes
	var handler http.Handler = mux
	handler = authMiddleware(cfg.Auth, logger)(handler)
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Wrap with security headers
	isDev := cfg.IsDev
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, isDev)
		handler.ServeHTTP(w, r)
	})

	// Use a top-level mux to separate health probes from middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", liveness)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// liveness is the no-dependency probe for Docker/Kubernetes.
func liveness(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessTimeout bounds the /ready database ping.
const readinessTimeout = 2 * time.Second

// readiness pings the database. Without a pool it degrades to liveness.
func readiness(pool *pgxpool.Pool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pool == nil {
			WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "not configured"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		if err := pool.Ping(ctx); err != nil {
			WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "unavailable",
				"database": "unreachable",
			})
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "ok"})
	})
}
