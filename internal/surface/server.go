// -----------------------------------------------------------------------
// Last Modified: Tuesday, 13th October 2026 3:20:11 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

// Package surface serves a multi-factor login page: login form, a code page opened in a new
// tab, masked password entry and a welcome message. Every stage is verified server-side.
package surface

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/ternarybob/arbor"
)

//go:embed pages/*.html
var pagesFS embed.FS

const sessionTTL = 10 * time.Minute

// Option customises a Server
type Option func(*Server)

// WithRenderDelay postpones every client-side reveal, modelling a slow page
func WithRenderDelay(d time.Duration) Option {
	return func(s *Server) {
		s.renderDelay = d
	}
}

// Server is the login surface fixture
type Server struct {
	account     Account
	sessions    *sessionStore
	templates   *template.Template
	renderDelay time.Duration
	logger      arbor.ILogger

	router   *mux.Router
	server   *http.Server
	listener net.Listener
}

// New creates the fixture for account
func New(account Account, logger arbor.ILogger, opts ...Option) *Server {
	s := &Server{
		account:     account,
		sessions:    newSessionStore(sessionTTL),
		templates:   template.Must(template.ParseFS(pagesFS, "pages/*.html")),
		renderDelay: 150 * time.Millisecond,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", s.IndexHandler).Methods("GET")
	r.HandleFunc("/code/{session}", s.CodePageHandler).Methods("GET")
	r.HandleFunc("/status", s.StatusHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/login", s.LoginHandler).Methods("POST")
	api.HandleFunc("/code", s.CodeHandler).Methods("POST")
	api.HandleFunc("/masked/{session}", s.MaskedHandler).Methods("GET")
	api.HandleFunc("/password", s.PasswordHandler).Methods("POST")

	r.Use(s.recoveryMiddleware, s.loggingMiddleware)
	return r
}

// Handler returns the routed handler, for httptest
func (s *Server) Handler() http.Handler {
	return s.router
}

// Listen binds host:port; port 0 picks a free port
func (s *Server) Listen(host string, port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, fmt.Sprintf("%d", port)))
	if err != nil {
		return fmt.Errorf("failed to listen on %s:%d: %w", host, port, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return nil
}

// URL returns the base URL of a listening server
func (s *Server) URL() string {
	if s.listener == nil {
		return ""
	}
	return "http://" + s.listener.Addr().String()
}

// Serve blocks serving requests until Shutdown
func (s *Server) Serve() error {
	if s.listener == nil {
		return fmt.Errorf("surface server is not listening")
	}

	s.logger.Info().Str("url", s.URL()).Msg("Login surface available")

	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("surface server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("surface shutdown failed: %w", err)
	}
	s.logger.Debug().Msg("Login surface stopped")
	return nil
}
