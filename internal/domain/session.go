package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LiveSession is one broadcast room. IsActive is only flipped by the lifecycle
// coordinator (start and finalize transitions).
type LiveSession struct {
	ID                uuid.UUID
	RoomName          string
	ProviderIngressID string
	ProviderEgressID  string
	IsActive          bool
	StartedAt         *time.Time
	EndedAt           *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasEgress reports whether a recording job is attached to the session.
func (s *LiveSession) HasEgress() bool {
	return s.ProviderEgressID != ""
}

type SessionRepository interface {
	Create(ctx context.Context, roomName, providerIngressID string) (*LiveSession, error)
	GetByID(ctx context.Context, sessionID uuid.UUID) (*LiveSession, error)
	GetByProviderIngressID(ctx context.Context, providerIngressID string) (*LiveSession, error)
	GetByRoomName(ctx context.Context, roomName string) (*LiveSession, error)
	List(ctx context.Context) ([]LiveSession, error)

	// MarkActive sets is_active=true. started_at only moves when the session was
	// inactive, so re-applying a start is a no-op. Reports whether it transitioned.
	MarkActive(ctx context.Context, sessionID uuid.UUID, startedAt time.Time) (bool, error)

	// FinalizeEnd is the guarded end transition: it sets is_active=false, ended_at
	// and clears the egress id only if the session is still active. Returns false
	// when another writer finalized first.
	FinalizeEnd(ctx context.Context, sessionID uuid.UUID, endedAt time.Time) (bool, error)

	SetEgress(ctx context.Context, sessionID uuid.UUID, egressID string) error
	// ClearEgress removes the egress id only while it still equals egressID.
	ClearEgress(ctx context.Context, sessionID uuid.UUID, egressID string) (bool, error)
}
