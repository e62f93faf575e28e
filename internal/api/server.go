// Package api serves the docqa HTTP API.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Aman-CERP/docqa/internal/auth"
	"github.com/Aman-CERP/docqa/internal/config"
	"github.com/Aman-CERP/docqa/internal/engine"
	"github.com/Aman-CERP/docqa/internal/retrieve"
	"github.com/Aman-CERP/docqa/internal/scanner"
)

// Service is the engine surface the API needs.
type Service interface {
	Rebuild(ctx context.Context, id auth.Identity) (*engine.RebuildResult, error)
	Answer(ctx context.Context, id auth.Identity, query string) (*retrieve.Answer, error)
	Sources(ctx context.Context, id auth.Identity) []scanner.FileRecord
	Status() engine.Status
}

// Server is the HTTP front end of the engine.
type Server struct {
	svc     Service
	auth    *auth.Authenticator
	limiter *RateLimiter
	cfg     config.ServerConfig
	logger  *slog.Logger
}

// NewServer creates a Server. A nil logger uses slog.Default().
func NewServer(svc Service, cfg config.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		svc:     svc,
		auth:    auth.New(cfg.AuthToken),
		limiter: NewRateLimiter(cfg.RateLimitRPM, 0),
		cfg:     cfg,
		logger:  logger,
	}
}

// Handler returns the routed handler with request-ID and logging middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /ask", s.authenticated(s.handleAsk))
	mux.HandleFunc("POST /index", s.authenticated(s.handleIndex))
	mux.HandleFunc("GET /sources", s.authenticated(s.handleSources))
	mux.HandleFunc("GET /auth", s.handleAuth)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.requestID(s.logRequests(mux))
}

// ListenAndServe serves on cfg.Addr until ctx is done, then shuts down
// within cfg.ShutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	limiterCtx, stopLimiter := context.WithCancel(ctx)
	defer stopLimiter()
	go s.limiter.CleanupLoop(limiterCtx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
