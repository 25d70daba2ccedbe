// Package server wires the HTTP stack together and owns its lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/msomdec/usergraph/internal/config"
	"github.com/msomdec/usergraph/internal/domain"
	"github.com/msomdec/usergraph/internal/graph"
	"github.com/msomdec/usergraph/internal/handler"
	"github.com/msomdec/usergraph/internal/service"
)

// Server serves the GraphQL API. The caller owns the database passed to New
// and closes it after Serve returns. Close releases everything New and Listen
// acquired and must be called even when Serve is never reached.
type Server struct {
	config     *config.Config
	logger     *slog.Logger
	limiter    *service.ClientLimiter
	httpServer *http.Server
	listener   net.Listener
	served     bool

	closeOnce sync.Once
	closeErr  error
}

// New builds the services, schema and router backed by db.
func New(cfg *config.Config, db domain.Database, logger *slog.Logger) (*Server, error) {
	registrations := service.NewRegistrationService(db.Users(), cfg.BcryptCost, logger)

	schema, err := graph.NewSchema(registrations)
	if err != nil {
		return nil, fmt.Errorf("build graphql schema: %w", err)
	}

	limiter := service.NewClientLimiter(float64(cfg.RateLimitRPS), int(cfg.RateLimitBurst))

	router := handler.NewRouter(handler.RouterConfig{
		GraphQL:             handler.NewGraphQLHandler(schema),
		Health:              handler.NewHealthHandler(db, cfg.DatabasePingTimeout),
		Limiter:             limiter,
		Logger:              logger,
		Environment:         cfg.Environment,
		PlaygroundEnabled:   cfg.PlaygroundEnabled,
		RequestTimeout:      cfg.RequestTimeout,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	return &Server{
		config:  cfg,
		logger:  logger,
		limiter: limiter,
		httpServer: &http.Server{
			Handler:           router,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			MaxHeaderBytes:    1 << 20, // 1MB
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
	}, nil
}

// Listen binds the configured address. With PORT=0 the kernel picks a free
// port, which the returned address reports.
func (s *Server) Listen() (net.Addr, error) {
	if s.listener != nil {
		return nil, errors.New("server already listening")
	}
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", s.config.Addr(), err)
	}
	s.listener = ln
	return ln.Addr(), nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx is cancelled, then shuts down
// gracefully within SERVER_SHUTDOWN_TIMEOUT. Listen must be called first.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("server is not listening")
	}
	// http.Server.Serve owns the listener from here on.
	s.served = true
	defer s.limiter.Close()

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("service listening",
			slog.String("environment", s.config.Environment),
			slog.String("address", s.listener.Addr().String()))

		if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down", slog.Int("port", s.port()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ServerShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP server shutdown error", slog.String("error", err.Error()))
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}

	s.logger.Info("HTTP server shutdown complete")
	return nil
}

// Start is Listen followed by Serve.
func (s *Server) Start(ctx context.Context) error {
	if _, err := s.Listen(); err != nil {
		s.limiter.Close()
		return err
	}
	return s.Serve(ctx)
}

// Close stops the rate limiter sweep and closes a listener that was bound
// but never served. It is safe to call more than once and after Serve.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.limiter.Close()
		if s.listener != nil && !s.served {
			s.closeErr = s.listener.Close()
		}
	})
	return s.closeErr
}

func (s *Server) port() int {
	if tcp, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return s.config.Port
}
