package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marcus/imtti/internal/models"
	"github.com/marcus/imtti/internal/serverdb"
	"github.com/marcus/imtti/internal/webhook"
)

// Server serves the static site and the records API.
type Server struct {
	config      Config
	http        *http.Server
	store       *serverdb.ServerDB
	rateLimiter *RateLimiter
	hooks       *webhook.Notifier
	addr        net.Addr
}

// NewServer creates a new Server with the given config and store.
func NewServer(cfg Config, store *serverdb.ServerDB) (*Server, error) {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.StaticDir == "" {
		cfg.StaticDir = "."
	}

	s := &Server{
		config:      cfg,
		store:       store,
		rateLimiter: NewRateLimiter(),
	}
	if cfg.WebhookURL != "" {
		s.hooks = webhook.NewNotifier(cfg.WebhookURL, cfg.WebhookSecret, slog.Default())
	}

	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start begins listening for HTTP requests (non-blocking).
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.addr = ln.Addr()

	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http server", "err", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address once Start has succeeded.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Stop()
	err := s.http.Shutdown(ctx)
	if s.hooks != nil {
		if herr := s.hooks.Close(ctx); herr != nil && err == nil {
			err = fmt.Errorf("webhook drain: %w", herr)
		}
	}
	return err
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// routes builds the HTTP handler with all routes and middleware.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Informational
	mux.HandleFunc("GET /api/test", s.handleTest)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Records
	for _, c := range models.AllCollections {
		mux.HandleFunc("GET /api/"+string(c), s.handleList(c))
		if c != models.CollectionAdmins {
			mux.HandleFunc("POST /api/"+string(c), s.handleCreate(c))
		}
	}

	// Auth
	mux.HandleFunc("POST /api/auth/admin", s.handleEmailLogin(models.CollectionAdmins, "admin"))
	mux.HandleFunc("POST /api/auth/center", s.handleEmailLogin(models.CollectionCenters, "center"))
	mux.HandleFunc("POST /api/auth/student", s.handleStudentLogin)

	// Unknown API paths answer in JSON rather than falling through to files.
	mux.HandleFunc("GET /api/", s.handleAPINotFound)
	mux.HandleFunc("POST /api/", s.handleAPINotFound)

	// Site
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.Handle("GET /", s.staticHandler())

	return chain(mux,
		requestContextMiddleware,
		recoveryMiddleware,
		accessMiddleware,
		corsMiddleware(s.config.CORSAllowedOrigins),
		maxBytesMiddleware(s.config.MaxBodyBytes),
		authRateLimitMiddleware(s.rateLimiter, s.config.RateLimitAuth),
	)
}

// handleTest reports that the server is running.
func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message":   "IMTTI Server is running!",
		"status":    "success",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// handleHealth returns a health check response, pinging the server DB.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		logFor(r.Context()).Error("health ping", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "unhealthy",
			"message": "database unreachable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"message": "Server is running properly",
	})
}

func (s *Server) handleAPINotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, "no such endpoint: "+r.Method+" "+r.URL.Path)
}
