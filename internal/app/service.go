package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/pscheid92/livecart/internal/domain"
	apperrors "github.com/pscheid92/livecart/internal/platform/errors"
	"golang.org/x/sync/singleflight"
)

const maxRoomNameLength = 128

// Service is the operator-facing application layer: session provisioning,
// read access for the admin surface, and manual stop.
type Service struct {
	sessions       domain.SessionRepository
	coordinator    *Coordinator
	provisionGroup singleflight.Group
}

// NewService creates the application layer service.
func NewService(sessions domain.SessionRepository, coordinator *Coordinator) *Service {
	return &Service{
		sessions:    sessions,
		coordinator: coordinator,
	}
}

// ProvisionSession registers a room and its ingress so provider events for that
// ingress can be correlated. Concurrent requests for the same ingress collapse
// into one insert, which is detached from the cancellation of whichever caller
// started it.
func (s *Service) ProvisionSession(ctx context.Context, roomName, providerIngressID string) (*domain.LiveSession, error) {
	roomName = strings.TrimSpace(roomName)
	providerIngressID = strings.TrimSpace(providerIngressID)

	if roomName == "" {
		return nil, apperrors.ValidationError("room name is required")
	}
	if len(roomName) > maxRoomNameLength {
		return nil, apperrors.ValidationError(fmt.Sprintf("room name must be at most %d characters", maxRoomNameLength))
	}
	if providerIngressID == "" {
		return nil, apperrors.ValidationError("ingress id is required")
	}

	v, err, shared := s.provisionGroup.Do(providerIngressID, func() (any, error) {
		return s.sessions.Create(context.WithoutCancel(ctx), roomName, providerIngressID)
	})
	if err != nil {
		return nil, err
	}
	session := v.(*domain.LiveSession)
	if shared && session.RoomName != roomName {
		return nil, domain.ErrDuplicateIngress
	}

	slog.InfoContext(ctx, "Session provisioned", "session_id", session.ID.String(), "room", roomName, "ingress_id", providerIngressID)
	return session, nil
}

// GetSession returns one session by ID.
func (s *Service) GetSession(ctx context.Context, sessionID uuid.UUID) (*domain.LiveSession, error) {
	return s.sessions.GetByID(ctx, sessionID)
}

// ListSessions returns all sessions, newest first.
func (s *Service) ListSessions(ctx context.Context) ([]domain.LiveSession, error) {
	return s.sessions.List(ctx)
}

// StopSession force-ends a session. Returns false when it had already ended.
func (s *Service) StopSession(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	return s.coordinator.ForceStop(ctx, sessionID)
}
