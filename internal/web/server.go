// Package web serves the embedded chat page. The page is a single template
// plus static assets; all conversation state lives behind the JSON API, so
// this package never touches the orchestrator.
package web

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/docentlabs/docent/internal/web/static"
)

//go:embed index.html.tmpl
var indexTemplate string

// Server renders the chat page and serves its assets. It is mounted on the
// API mux, so requests arrive through the API middleware stack; the server
// only replaces the API's Content-Security-Policy with the page policy.
type Server struct {
	mux   *http.ServeMux
	isDev bool
}

// ServerConfig contains configuration for creating the chat page server.
type ServerConfig struct {
	Logger  *slog.Logger
	Version string // Optional: shown in the page footer
	IsDev   bool   // Optional: relaxes CSP for browser debugging tools
}

// NewServer creates the chat page server. The index template is rendered
// once here so a broken template fails startup instead of the first request.
func NewServer(cfg ServerConfig) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tmpl, err := template.New("index").Parse(indexTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing index template: %w", err)
	}

	var page bytes.Buffer
	err = tmpl.Execute(&page, struct {
		Title   string
		Version string
	}{
		Title:   "docent",
		Version: cfg.Version,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering index template: %w", err)
	}
	index := page.Bytes()

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(index)
	})

	mux.Handle("GET /static/", http.StripPrefix("/static/", static.Handler()))

	s := &Server{
		mux:   mux,
		isDev: cfg.IsDev,
	}

	logger.Debug("chat page server initialized", "page_bytes", len(index))
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.setSecurityHeaders(w)
	s.mux.ServeHTTP(w, r)
}

// setSecurityHeaders applies the page security policy. Scripts and styles are
// separate embedded files, so no unsafe-inline is needed anywhere.
func (s *Server) setSecurityHeaders(w http.ResponseWriter) {
	csp := "default-src 'self'; script-src 'self'"

	// In dev mode, allow eval for browser debugging tools.
	if s.isDev {
		csp += " 'unsafe-eval'"
	}

	csp += "; style-src 'self'; connect-src 'self'; img-src 'self' data:"
	w.Header().Set("Content-Security-Policy", csp)

	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
}

// Handler returns the server as an http.Handler for mounting.
func (s *Server) Handler() http.Handler {
	return s
}
