// Package api exposes the conversation engine over HTTP: one streaming
// agent endpoint plus health probes, behind a small middleware stack.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger     *slog.Logger
	Runner     TurnRunner      // Required
	Sessions   SessionResolver // Required
	Pool       *pgxpool.Pool   // Optional: nil disables pool stats in /ready
	IsDev      bool            // Enables HTTP cookies (no Secure flag)
	TrustProxy bool            // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst  int             // Rate limiter burst size per IP (0 = default 60)
}

// Server is the HTTP server for the conversation engine.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates the server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Runner == nil {
		return nil, errors.New("turn runner is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session resolver is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ah := &agentHandler{
		runner:   cfg.Runner,
		sessions: cfg.Sessions,
		isDev:    cfg.IsDev,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/agent", ah.handle)

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack, outermost first: Recovery -> Logging -> RateLimit.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
