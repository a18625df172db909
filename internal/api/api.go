// Package api provides the HTTP server for CopilotRelay.
//
// It exposes the inbound webhook the messaging provider calls for every WhatsApp event, a
// health endpoint, and fixed fallback responses for unknown routes and internal faults.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/CopilotRelay/internal/models"
	"github.com/gin-gonic/gin"
)

const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = ":3000"
	// DefaultWebhookPath is the route the messaging provider posts inbound events to.
	DefaultWebhookPath = "/api/inbound"
	// HealthPath reports liveness and the number of known sessions.
	HealthPath = "/health"

	shutdownTimeout = 10 * time.Second
)

// Dispatcher handles one decoded inbound event.
type Dispatcher interface {
	Handle(ctx context.Context, evt models.InboundEvent) models.Result
}

// SessionCounter reports how many sessions are known.
type SessionCounter interface {
	Len() int
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr        string
	WebhookPath string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address (e.g. ":3000").
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithWebhookPath sets the inbound webhook route.
func WithWebhookPath(path string) Option {
	return func(o *Opts) { o.WebhookPath = path }
}

// Server holds the router and the collaborators its handlers call.
type Server struct {
	router      *gin.Engine
	dispatcher  Dispatcher
	sessions    SessionCounter
	addr        string
	webhookPath string
}

// NewServer creates a Server with all routes registered.
func NewServer(dispatcher Dispatcher, sessions SessionCounter, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr, WebhookPath: DefaultWebhookPath}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{
		router:      gin.New(),
		dispatcher:  dispatcher,
		sessions:    sessions,
		addr:        cfg.Addr,
		webhookPath: cfg.WebhookPath,
	}
	s.router.RedirectTrailingSlash = false
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(gin.CustomRecovery(recoveryHandler), requestID(), accessLog())
	s.router.Any(s.webhookPath, s.inboundHandler)
	s.router.GET(HealthPath, s.healthHandler)
	s.router.NoRoute(notFoundHandler)
}

// Handler returns the server's http.Handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: listening", "addr", s.addr, "webhook_path", s.webhookPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve on %s: %w", s.addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Server.Run: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
