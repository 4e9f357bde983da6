package livekit

import (
	"fmt"
	"time"

	"github.com/livekit/protocol/livekit"
	"github.com/pscheid92/livecart/internal/domain"
	"google.golang.org/protobuf/encoding/protojson"
)

const (
	eventIngressStarted = "ingress_started"
	eventIngressEnded   = "ingress_ended"
	eventEgressStarted  = "egress_started"
	eventEgressEnded    = "egress_ended"
)

var unmarshalOptions = protojson.UnmarshalOptions{DiscardUnknown: true}

// ParseEvent decodes a webhook body. Event types the coordinator does not act on
// classify as domain.EventOther. Decoding failures and lifecycle events missing
// their identifiers wrap domain.ErrMalformedEvent.
func ParseEvent(body []byte) (domain.WebhookEvent, error) {
	var ev livekit.WebhookEvent
	if err := unmarshalOptions.Unmarshal(body, &ev); err != nil {
		return domain.WebhookEvent{}, fmt.Errorf("%w: %w", domain.ErrMalformedEvent, err)
	}
	if ev.GetEvent() == "" {
		return domain.WebhookEvent{}, fmt.Errorf("%w: missing event type", domain.ErrMalformedEvent)
	}

	out := domain.WebhookEvent{
		ID:      ev.GetId(),
		Kind:    domain.EventOther,
		RawType: ev.GetEvent(),
	}
	if ev.GetCreatedAt() > 0 {
		out.OccurredAt = time.Unix(ev.GetCreatedAt(), 0).UTC()
	}

	switch ev.GetEvent() {
	case eventIngressStarted, eventIngressEnded:
		out.Kind = domain.EventIngressStarted
		if ev.GetEvent() == eventIngressEnded {
			out.Kind = domain.EventIngressEnded
		}
		out.ProviderIngressID = ev.GetIngressInfo().GetIngressId()
		out.RoomName = ev.GetIngressInfo().GetRoomName()
		if out.ProviderIngressID == "" {
			return domain.WebhookEvent{}, fmt.Errorf("%w: %s without ingress id", domain.ErrMalformedEvent, ev.GetEvent())
		}

	case eventEgressStarted, eventEgressEnded:
		out.Kind = domain.EventEgressStarted
		if ev.GetEvent() == eventEgressEnded {
			out.Kind = domain.EventEgressEnded
		}
		out.ProviderEgressID = ev.GetEgressInfo().GetEgressId()
		out.RoomName = ev.GetEgressInfo().GetRoomName()
		if out.ProviderEgressID == "" || out.RoomName == "" {
			return domain.WebhookEvent{}, fmt.Errorf("%w: %s without egress id or room", domain.ErrMalformedEvent, ev.GetEvent())
		}
	}

	return out, nil
}
