package api

import (
	"errors"
	"log/slog"
	"net/http"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger       *slog.Logger
	Orchestrator Orchestrator // Required
	Probe        ToolLister   // Optional: nil yields an empty tool catalog
	WebUI        http.Handler // Optional: nil disables the embedded chat page
	CORSOrigins  []string     // Allowed origins for CORS
	IsDev        bool         // Disables HSTS for plain-HTTP development
	TrustProxy   bool         // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateBurst    int          // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	th := &threadHandler{orc: cfg.Orchestrator, logger: logger}
	tl := &toolsHandler{probe: cfg.Probe, logger: logger}

	mux := http.NewServeMux()

	// Threads
	mux.HandleFunc("POST /api/v1/threads", th.createThread)
	mux.HandleFunc("GET /api/v1/threads", th.listThreads)
	mux.HandleFunc("GET /api/v1/threads/{id}/messages", th.getMessages)
	mux.HandleFunc("POST /api/v1/threads/{id}/messages", th.sendMessage)
	mux.HandleFunc("DELETE /api/v1/threads/{id}", th.deleteThread)

	// Tool catalog
	mux.HandleFunc("GET /api/v1/tools", tl.listTools)

	// Embedded chat page and its static assets
	if cfg.WebUI != nil {
		mux.Handle("/", cfg.WebUI)
	}

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log attributes.
	// CORS must be before RateLimit so preflight OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
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
	topMux.HandleFunc("GET /health", health(logger))
	topMux.HandleFunc("GET /ready", readiness(cfg.Orchestrator, logger))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
