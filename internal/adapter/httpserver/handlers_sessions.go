package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/livecart/internal/domain"
	apperrors "github.com/pscheid92/livecart/internal/platform/errors"
)

type provisionRequest struct {
	RoomName          string `json:"roomName"`
	ProviderIngressID string `json:"providerIngressId"`
}

type sessionResponse struct {
	ID                uuid.UUID  `json:"id"`
	RoomName          string     `json:"roomName"`
	ProviderIngressID string     `json:"providerIngressId"`
	ProviderEgressID  string     `json:"providerEgressId,omitempty"`
	IsActive          bool       `json:"isActive"`
	StartedAt         *time.Time `json:"startedAt,omitempty"`
	EndedAt           *time.Time `json:"endedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func toSessionResponse(s *domain.LiveSession) sessionResponse {
	return sessionResponse{
		ID:                s.ID,
		RoomName:          s.RoomName,
		ProviderIngressID: s.ProviderIngressID,
		ProviderEgressID:  s.ProviderEgressID,
		IsActive:          s.IsActive,
		StartedAt:         s.StartedAt,
		EndedAt:           s.EndedAt,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

func (s *Server) registerSessionRoutes() {
	api := s.echo.Group("/api", newRateLimiter("operator", operatorRatePerSecond, operatorBurst), s.operatorAuth())
	api.POST("/sessions", s.handleProvisionSession)
	api.GET("/sessions", s.handleListSessions)
	api.GET("/sessions/:id", s.handleGetSession)
	api.POST("/sessions/:id/stop", s.handleStopSession)
}

func (s *Server) handleProvisionSession(c echo.Context) error {
	var req provisionRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	session, err := s.sessions.ProvisionSession(c.Request().Context(), req.RoomName, req.ProviderIngressID)
	if errors.Is(err, domain.ErrDuplicateIngress) {
		return apperrors.ConflictError("ingress already provisioned").WithContext("ingress_id", req.ProviderIngressID)
	}
	if err != nil {
		return apperrors.AsStructuredError(err)
	}

	if err := c.JSON(http.StatusCreated, toSessionResponse(session)); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleListSessions(c echo.Context) error {
	sessions, err := s.sessions.ListSessions(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to list sessions", err)
	}

	out := make([]sessionResponse, 0, len(sessions))
	for i := range sessions {
		out = append(out, toSessionResponse(&sessions[i]))
	}
	if err := c.JSON(http.StatusOK, out); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetSession(c echo.Context) error {
	id, err := sessionIDParam(c)
	if err != nil {
		return err
	}

	session, err := s.sessions.GetSession(c.Request().Context(), id)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return apperrors.NotFoundError("session not found").WithContext("session_id", id.String())
	}
	if err != nil {
		return apperrors.InternalError("failed to load session", err).WithContext("session_id", id.String())
	}

	if err := c.JSON(http.StatusOK, toSessionResponse(session)); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleStopSession(c echo.Context) error {
	id, err := sessionIDParam(c)
	if err != nil {
		return err
	}

	finalized, err := s.sessions.StopSession(c.Request().Context(), id)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return apperrors.NotFoundError("session not found").WithContext("session_id", id.String())
	case errors.Is(err, domain.ErrProvider):
		return apperrors.ExternalError("failed to stop egress", err).WithContext("session_id", id.String())
	case err != nil:
		return apperrors.InternalError("failed to stop session", err).WithContext("session_id", id.String())
	}

	if err := c.JSON(http.StatusOK, map[string]bool{"finalized": finalized}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func sessionIDParam(c echo.Context) (uuid.UUID, error) {
	raw := c.Param("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("invalid session id").WithContext("session_id", raw)
	}
	return id, nil
}
