package livekit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pscheid92/livecart/internal/adapter/metrics"
	"github.com/pscheid92/livecart/internal/domain"
)

const (
	webhookProcessingTimeout = 5 * time.Second
	maxWebhookBody           = 1 << 20
)

// EventHandler applies a verified provider event.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev domain.WebhookEvent) error
}

// Deduper suppresses provider redeliveries by event id.
type Deduper interface {
	FirstDelivery(ctx context.Context, deliveryID string) (bool, error)
	Forget(ctx context.Context, deliveryID string) error
}

type WebhookHandler struct {
	verifier *Verifier
	events   EventHandler
	dedup    Deduper
	metrics  *metrics.ProviderMetrics
}

// NewWebhookHandler creates the webhook endpoint. dedup and m may be nil.
func NewWebhookHandler(verifier *Verifier, events EventHandler, dedup Deduper, m *metrics.ProviderMetrics) *WebhookHandler {
	return &WebhookHandler{
		verifier: verifier,
		events:   events,
		dedup:    dedup,
		metrics:  m,
	}
}

// Handle authenticates, decodes and dispatches one delivery. Errors wrap
// domain.ErrAuthentication or domain.ErrMalformedEvent for rejected requests;
// any other error is an infrastructure failure worth a redelivery.
func (wh *WebhookHandler) Handle(ctx context.Context, body []byte, authHeader string) error {
	if err := wh.verifier.Verify(body, authHeader); err != nil {
		return err
	}

	ev, err := ParseEvent(body)
	if err != nil {
		return err
	}

	recorded := false
	if wh.dedup != nil && ev.ID != "" {
		first, err := wh.dedup.FirstDelivery(ctx, ev.ID)
		switch {
		case err != nil:
			slog.WarnContext(ctx, "Delivery de-duplication unavailable, processing anyway", "event_id", ev.ID, "error", err)
		case !first:
			slog.DebugContext(ctx, "Duplicate webhook delivery", "event_id", ev.ID, "event_type", ev.RawType)
			if wh.metrics != nil {
				wh.metrics.DuplicateDeliveries.Inc()
			}
			return nil
		default:
			recorded = true
		}
	}

	procCtx, cancel := context.WithTimeout(ctx, webhookProcessingTimeout)
	defer cancel()

	if err := wh.events.HandleEvent(procCtx, ev); err != nil {
		if recorded {
			if fErr := wh.dedup.Forget(ctx, ev.ID); fErr != nil {
				slog.WarnContext(ctx, "Failed to forget webhook delivery", "event_id", ev.ID, "error", fErr)
			}
		}
		return fmt.Errorf("handle %s: %w", ev.RawType, err)
	}
	return nil
}

func (wh *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		slog.WarnContext(ctx, "Failed to read webhook body", "error", err)
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	err = wh.Handle(ctx, body, r.Header.Get("Authorization"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, domain.ErrAuthentication):
		slog.WarnContext(ctx, "Rejected webhook", "reason", "authentication", "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, domain.ErrMalformedEvent):
		slog.WarnContext(ctx, "Rejected webhook", "reason", "malformed", "error", err)
		http.Error(w, "malformed event", http.StatusBadRequest)
	default:
		slog.ErrorContext(ctx, "Webhook processing failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
