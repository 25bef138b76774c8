// Package api provides the JSON REST API server for Docent.
//
// # Architecture
//
// The API server uses Go 1.22+ routing with a layered middleware stack:
//
//	Recovery → RequestID → Logging → CORS → RateLimit → Routes
//
// Health probes (/health, /ready) bypass the middleware stack via a
// top-level mux, ensuring they remain fast and dependency-free.
//
// # Endpoints
//
// Health probes (no middleware):
//   - GET /health — returns {"status":"ok"}
//   - GET /ready  — returns {"status":"ready"} plus agent state
//
// Threads:
//   - POST   /api/v1/threads               — create a conversation thread
//   - GET    /api/v1/threads               — list locally known threads
//   - GET    /api/v1/threads/{id}/messages — thread transcript
//   - POST   /api/v1/threads/{id}/messages — send a message, wait for the reply
//   - DELETE /api/v1/threads/{id}          — forget a thread
//
// Tools:
//   - GET /api/v1/tools — documentation tool catalog from the MCP server
//
// Sending a message is synchronous: the handler blocks until the remote run
// finishes or the configured run timeout expires. A timeout maps to 504, a
// remote service failure to 502.
//
// # Error Handling
//
// All error responses use an envelope format:
//
//	{"error": {"code": "...", "message": "..."}}
//
// # Security
//
// The API carries no client credentials — the remote service key never
// leaves the server process and there are no cookies or sessions to steal,
// so there is no CSRF surface. The middleware stack still enforces:
//   - Per-IP rate limiting (token bucket, 60 req/min burst)
//   - CORS with explicit origin allowlist
//   - Security headers (CSP, HSTS, X-Frame-Options, etc.)
package api
