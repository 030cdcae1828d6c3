// Package server exposes the dashboard's JSON API: sign-in,
// overview, session browser, analytics and refresh.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	gosync "sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/wesm/chatview/internal/auth"
	"github.com/wesm/chatview/internal/config"
	"github.com/wesm/chatview/internal/logging"
	"github.com/wesm/chatview/internal/sync"
)

// VersionInfo holds build-time version metadata.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	Backend   string `json:"backend"`
}

// Server is the HTTP API server.
type Server struct {
	mu      gosync.RWMutex
	cfg     config.Config
	engine  *sync.Engine
	auth    auth.Provider
	mux     *http.ServeMux
	httpSrv *http.Server
	version VersionInfo
	limiter *rateLimiter
	log     *log.Logger
	now     func() time.Time
	loc     *time.Location

	// handlerDelay is injected before each timeout-wrapped
	// handler, used only by tests to guarantee handlers
	// exceed a short timeout. Zero in production.
	handlerDelay time.Duration
}

// New creates a Server over engine, authenticating viewers
// with provider.
func New(
	cfg config.Config, engine *sync.Engine, provider auth.Provider,
	opts ...Option,
) *Server {
	s := &Server{
		cfg:     cfg,
		engine:  engine,
		auth:    provider,
		mux:     http.NewServeMux(),
		limiter: newRateLimiter(authRate, authBurst),
		log:     logging.New("http"),
		now:     time.Now,
		loc:     engine.Location(),
	}
	s.version.Backend = cfg.Backend
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the build-time version metadata.
func WithVersion(v VersionInfo) Option {
	return func(s *Server) {
		backend := s.version.Backend
		s.version = v
		if s.version.Backend == "" {
			s.version.Backend = backend
		}
	}
}

// WithClock overrides the clock used for "today" and relative
// times.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAuthRateLimit overrides the per-client limit on the
// sign-in and sign-up endpoints.
func WithAuthRateLimit(r rate.Limit, burst int) Option {
	return func(s *Server) { s.limiter = newRateLimiter(r, burst) }
}

func (s *Server) routes() {
	// Auth endpoints are reachable without a token.
	s.mux.Handle("POST /api/v1/auth/signin",
		s.rateLimited(s.withTimeout(s.handleSignIn)))
	s.mux.Handle("POST /api/v1/auth/signup",
		s.rateLimited(s.withTimeout(s.handleSignUp)))
	s.mux.Handle("POST /api/v1/auth/signout", s.withTimeout(s.handleSignOut))
	s.mux.Handle("GET /api/v1/auth/user", s.withTimeout(s.requireAuth(s.handleGetUser)))
	s.mux.Handle("GET /api/v1/version", s.withTimeout(s.handleGetVersion))

	s.mux.Handle("GET /api/v1/overview", s.withTimeout(s.requireAuth(s.handleOverview)))
	s.mux.Handle("GET /api/v1/sessions", s.withTimeout(s.requireAuth(s.handleListSessions)))
	s.mux.Handle("GET /api/v1/sessions/{id}", s.withTimeout(s.requireAuth(s.handleGetSession)))
	// Export: no timeout handler so large downloads are not buffered.
	s.mux.Handle("GET /api/v1/sessions/{id}/export", s.requireAuth(s.handleExportSession))
	s.mux.Handle("GET /api/v1/analytics", s.withTimeout(s.requireAuth(s.handleAnalytics)))
	s.mux.Handle("POST /api/v1/refresh", s.withTimeout(s.requireAuth(s.handleRefresh)))
	s.mux.Handle("GET /api/v1/refresh/status", s.withTimeout(s.requireAuth(s.handleRefreshStatus)))
	// SSE: long-lived, so no timeout.
	s.mux.Handle("GET /api/v1/events", s.requireAuth(s.handleEvents))

	s.mux.HandleFunc("/api/", func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

func (s *Server) handleGetVersion(
	w http.ResponseWriter, _ *http.Request,
) {
	writeJSON(w, http.StatusOK, s.version)
}

// SetPort updates the listen port.
func (s *Server) SetPort(port int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Port = port
}

// Handler returns the http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.logMiddleware(s.mux))
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.mu.RLock()
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	s.mu.RUnlock()
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()
	s.log.Info("listening", "url", fmt.Sprintf("http://%s", addr))
	return srv.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.httpSrv
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// FindAvailablePort finds an available port starting from the
// given port, binding to the specified host.
func FindAvailablePort(host string, start int) int {
	for port := start; port < start+100; port++ {
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			ln.Close()
			return port
		}
	}
	return start
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set(
				"Access-Control-Allow-Methods", "GET, POST, OPTIONS",
			)
			w.Header().Set(
				"Access-Control-Allow-Headers",
				"Content-Type, Authorization",
			)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
