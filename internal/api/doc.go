// Package api is the JSON/HTTP surface of Vitalog.
//
// Routes live under /api/v1 on a stdlib ServeMux with method patterns.
// Everything except registration, login and refresh requires a bearer
// access token; the authenticated user ID rides in the request context and
// every handler scopes its store calls to it.
//
// The middleware stack, outermost first:
//
//	Recovery → RequestID → Logging → CORS → RateLimit → Auth → Routes
//
// RequestID runs before Logging so request_id is available in log
// attributes. CORS runs before RateLimit so rejected preflights do not
// consume tokens. /health and /ready sit outside the stack for probes.
//
// Errors use a JSON envelope {"error": code, "message": human} with the
// status mapping centralized in errors.go: domain validation failures are
// 422, unknown or foreign-owned rows are 404, assistant upstream failures
// are 502.
//
// Chat streaming is SSE (text/event-stream) with events chunk, done and
// error; see stream in chat.go.
package api
