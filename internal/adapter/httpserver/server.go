package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/livecart/internal/adapter/metrics"
	"github.com/pscheid92/livecart/internal/domain"
	"github.com/pscheid92/livecart/internal/platform/config"
)

type sessionService interface {
	ProvisionSession(ctx context.Context, roomName, providerIngressID string) (*domain.LiveSession, error)
	GetSession(ctx context.Context, sessionID uuid.UUID) (*domain.LiveSession, error)
	ListSessions(ctx context.Context) ([]domain.LiveSession, error)
	StopSession(ctx context.Context, sessionID uuid.UUID) (bool, error)
}

// Handlers are the transports mounted next to the operator API. Nil handlers
// leave their route unregistered.
type Handlers struct {
	Webhook   http.Handler
	WebSocket http.Handler
	Metrics   http.Handler
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	sessions sessionService

	webhookHandler   http.Handler
	websocketHandler http.Handler
	metricsHandler   http.Handler
	httpMetrics      *metrics.HTTPMetrics

	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, sessions sessionService, handlers Handlers, httpMetrics *metrics.HTTPMetrics, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:             e,
		config:           cfg,
		sessions:         sessions,
		webhookHandler:   handlers.Webhook,
		websocketHandler: handlers.WebSocket,
		metricsHandler:   handlers.Metrics,
		httpMetrics:      httpMetrics,
		healthChecks:     healthChecks,
		startTime:        time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP exposes the router, mainly for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
