package domain

import "time"

// EventKind classifies an inbound provider webhook.
type EventKind int

const (
	EventOther EventKind = iota
	EventIngressStarted
	EventIngressEnded
	EventEgressStarted
	EventEgressEnded
)

func (k EventKind) String() string {
	switch k {
	case EventIngressStarted:
		return "ingress_started"
	case EventIngressEnded:
		return "ingress_ended"
	case EventEgressStarted:
		return "egress_started"
	case EventEgressEnded:
		return "egress_ended"
	default:
		return "other"
	}
}

// WebhookEvent is a verified, classified provider notification. Never persisted.
type WebhookEvent struct {
	ID                string
	Kind              EventKind
	RawType           string
	ProviderIngressID string
	ProviderEgressID  string
	RoomName          string
	OccurredAt        time.Time
}
