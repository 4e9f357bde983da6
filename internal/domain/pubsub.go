package domain

import (
	"context"

	"github.com/google/uuid"
)

// TopicSessionStatus carries session lifecycle notifications.
const TopicSessionStatus = "session-status"

const SessionEventEnded = "ended"

// SessionStatusEvent is the payload published on TopicSessionStatus.
type SessionStatusEvent struct {
	Event     string    `json:"event"`
	SessionID uuid.UUID `json:"sessionId"`
}

// NotificationBus is an at-most-once fan-out. A subscriber that is not connected
// at publish time misses the message; errors only describe the local hand-off.
type NotificationBus interface {
	Publish(ctx context.Context, topic string, payload any) error
}
