package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/pscheid92/livecart/internal/domain"
	"github.com/pscheid92/livecart/internal/platform/config"
)

const (
	testOperatorToken = "operator-token-0123456789"
	operatorHeader    = "Bearer " + testOperatorToken
)

// --- Mock implementations ---

type mockSessionService struct {
	provisionFn func(ctx context.Context, roomName, providerIngressID string) (*domain.LiveSession, error)
	getFn       func(ctx context.Context, sessionID uuid.UUID) (*domain.LiveSession, error)
	listFn      func(ctx context.Context) ([]domain.LiveSession, error)
	stopFn      func(ctx context.Context, sessionID uuid.UUID) (bool, error)
}

func (m *mockSessionService) ProvisionSession(ctx context.Context, roomName, providerIngressID string) (*domain.LiveSession, error) {
	if m.provisionFn != nil {
		return m.provisionFn(ctx, roomName, providerIngressID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockSessionService) GetSession(ctx context.Context, sessionID uuid.UUID) (*domain.LiveSession, error) {
	if m.getFn != nil {
		return m.getFn(ctx, sessionID)
	}
	return nil, domain.ErrSessionNotFound
}

func (m *mockSessionService) ListSessions(ctx context.Context) ([]domain.LiveSession, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockSessionService) StopSession(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	if m.stopFn != nil {
		return m.stopFn(ctx, sessionID)
	}
	return false, domain.ErrSessionNotFound
}

// --- Test helpers ---

func newTestServer(t *testing.T, sessions sessionService, opts ...func(*Handlers, *[]HealthCheck)) *Server {
	t.Helper()

	var handlers Handlers
	var checks []HealthCheck
	for _, opt := range opts {
		opt(&handlers, &checks)
	}

	cfg := &config.Config{Port: "0", OperatorAPIToken: testOperatorToken}
	return NewServer(cfg, sessions, handlers, nil, checks)
}

func withWebhookHandler(h http.Handler) func(*Handlers, *[]HealthCheck) {
	return func(hs *Handlers, _ *[]HealthCheck) {
		hs.Webhook = h
	}
}

func withWebSocketHandler(h http.Handler) func(*Handlers, *[]HealthCheck) {
	return func(hs *Handlers, _ *[]HealthCheck) {
		hs.WebSocket = h
	}
}

func withMetricsHandler(h http.Handler) func(*Handlers, *[]HealthCheck) {
	return func(hs *Handlers, _ *[]HealthCheck) {
		hs.Metrics = h
	}
}

func withHealthChecks(checks ...HealthCheck) func(*Handlers, *[]HealthCheck) {
	return func(_ *Handlers, cs *[]HealthCheck) {
		*cs = checks
	}
}

// do sends a request through the full middleware stack.
func do(srv *Server, method, target, body, authHeader string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}
