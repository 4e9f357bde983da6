package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/livecart/internal/adapter/metrics"
	"github.com/pscheid92/livecart/internal/domain"
	"github.com/pscheid92/livecart/internal/platform/correlation"
)

const reconcileTimeout = 30 * time.Second

// ReconcileOutcome is the result of one delayed end reconciliation.
type ReconcileOutcome int

const (
	// ReconcileSuperseded: no pending-end marker, a start or an earlier task cleared it.
	ReconcileSuperseded ReconcileOutcome = iota
	// ReconcileTooFresh: the marker was refreshed after this task was scheduled.
	ReconcileTooFresh
	// ReconcileOrphan: the marker names an ingress with no session.
	ReconcileOrphan
	// ReconcileClaimLost: another task claimed the marker generation first.
	ReconcileClaimLost
	// ReconcileProviderFailed: stopping the egress failed, nothing was changed.
	ReconcileProviderFailed
	// ReconcileAlreadyEnded: the guarded update found the session inactive.
	ReconcileAlreadyEnded
	// ReconcileFinalized: the session was ended and subscribers notified.
	ReconcileFinalized
	// ReconcileFailed: marker store or database error.
	ReconcileFailed
)

func (o ReconcileOutcome) String() string {
	switch o {
	case ReconcileSuperseded:
		return "superseded"
	case ReconcileTooFresh:
		return "too_fresh"
	case ReconcileOrphan:
		return "orphan"
	case ReconcileClaimLost:
		return "claim_lost"
	case ReconcileProviderFailed:
		return "provider_failed"
	case ReconcileAlreadyEnded:
		return "already_ended"
	case ReconcileFinalized:
		return "finalized"
	default:
		return "failed"
	}
}

// Coordinator drives the session lifecycle from provider webhooks. Ingress start
// marks a session live; ingress end is debounced through a pending-end marker and
// a delayed reconciliation that finalizes the session once the marker is old enough.
type Coordinator struct {
	sessions  domain.SessionRepository
	markers   domain.MarkerStore
	egress    domain.EgressGateway
	bus       domain.NotificationBus
	scheduler domain.Scheduler
	clock     clockwork.Clock
	window    time.Duration
	metrics   *metrics.LifecycleMetrics
}

// NewCoordinator creates the lifecycle coordinator. window is the debounce window W.
// m may be nil.
func NewCoordinator(sessions domain.SessionRepository, markers domain.MarkerStore, egress domain.EgressGateway, bus domain.NotificationBus, scheduler domain.Scheduler, clock clockwork.Clock, window time.Duration, m *metrics.LifecycleMetrics) *Coordinator {
	return &Coordinator{
		sessions:  sessions,
		markers:   markers,
		egress:    egress,
		bus:       bus,
		scheduler: scheduler,
		clock:     clock,
		window:    window,
		metrics:   m,
	}
}

// Window returns the debounce window.
func (c *Coordinator) Window() time.Duration {
	return c.window
}

// HandleEvent applies one verified provider event. Events for unknown ingresses or
// rooms are logged and acknowledged. A returned error means infrastructure failed
// and the provider should redeliver.
func (c *Coordinator) HandleEvent(ctx context.Context, ev domain.WebhookEvent) error {
	var (
		result string
		err    error
	)

	switch ev.Kind {
	case domain.EventIngressStarted:
		result, err = c.onIngressStarted(ctx, ev)
	case domain.EventIngressEnded:
		result, err = c.onIngressEnded(ctx, ev)
	case domain.EventEgressStarted:
		result, err = c.onEgressStarted(ctx, ev)
	case domain.EventEgressEnded:
		result, err = c.onEgressEnded(ctx, ev)
	default:
		slog.DebugContext(ctx, "Ignoring provider event", "event_type", ev.RawType, "event_id", ev.ID)
		result = "ignored"
	}

	if err != nil {
		result = "error"
	}
	if c.metrics != nil {
		c.metrics.WebhookEvents.WithLabelValues(ev.Kind.String(), result).Inc()
	}
	return err
}

func (c *Coordinator) onIngressStarted(ctx context.Context, ev domain.WebhookEvent) (string, error) {
	session, err := c.sessions.GetByProviderIngressID(ctx, ev.ProviderIngressID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		slog.InfoContext(ctx, "Ingress started for unknown session", "ingress_id", ev.ProviderIngressID)
		return "orphan", nil
	}
	if err != nil {
		return "", fmt.Errorf("look up session by ingress: %w", err)
	}

	// The pending-end marker is left in place: a reconcile task that fires after
	// the start still finalizes once the marker has aged past the window.
	transitioned, err := c.sessions.MarkActive(ctx, session.ID, c.now())
	if err != nil {
		return "", fmt.Errorf("mark session active: %w", err)
	}

	slog.InfoContext(ctx, "Session live",
		"session_id", session.ID.String(),
		"ingress_id", ev.ProviderIngressID,
		"transitioned", transitioned)
	return "applied", nil
}

func (c *Coordinator) onIngressEnded(ctx context.Context, ev domain.WebhookEvent) (string, error) {
	if _, err := c.sessions.GetByProviderIngressID(ctx, ev.ProviderIngressID); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			slog.InfoContext(ctx, "Ingress ended for unknown session", "ingress_id", ev.ProviderIngressID)
			return "orphan", nil
		}
		return "", fmt.Errorf("look up session by ingress: %w", err)
	}

	createdAt := c.now()
	if err := c.markers.Write(ctx, ev.ProviderIngressID, createdAt); err != nil {
		return "", fmt.Errorf("write pending-end marker: %w", err)
	}

	ingressID := ev.ProviderIngressID
	taskCtx := correlation.Detach(ctx)
	if err := c.scheduler.After(c.window, func() { c.runReconcile(taskCtx, ingressID) }); err != nil {
		return "", fmt.Errorf("schedule end reconciliation: %w", err)
	}
	if c.metrics != nil {
		c.metrics.PendingReconciles.Inc()
	}

	slog.InfoContext(ctx, "Ingress ended, end reconciliation scheduled",
		"ingress_id", ingressID,
		"marker_created_at", createdAt,
		"window", c.window)
	return "applied", nil
}

func (c *Coordinator) onEgressStarted(ctx context.Context, ev domain.WebhookEvent) (string, error) {
	session, err := c.sessions.GetByRoomName(ctx, ev.RoomName)
	if errors.Is(err, domain.ErrSessionNotFound) {
		slog.InfoContext(ctx, "Egress started for unknown room", "room", ev.RoomName, "egress_id", ev.ProviderEgressID)
		return "orphan", nil
	}
	if err != nil {
		return "", fmt.Errorf("look up session by room: %w", err)
	}

	if err := c.sessions.SetEgress(ctx, session.ID, ev.ProviderEgressID); err != nil {
		return "", fmt.Errorf("attach egress: %w", err)
	}

	slog.InfoContext(ctx, "Egress attached", "session_id", session.ID.String(), "egress_id", ev.ProviderEgressID)
	return "applied", nil
}

func (c *Coordinator) onEgressEnded(ctx context.Context, ev domain.WebhookEvent) (string, error) {
	session, err := c.sessions.GetByRoomName(ctx, ev.RoomName)
	if errors.Is(err, domain.ErrSessionNotFound) {
		slog.InfoContext(ctx, "Egress ended for unknown room", "room", ev.RoomName, "egress_id", ev.ProviderEgressID)
		return "orphan", nil
	}
	if err != nil {
		return "", fmt.Errorf("look up session by room: %w", err)
	}

	cleared, err := c.sessions.ClearEgress(ctx, session.ID, ev.ProviderEgressID)
	if err != nil {
		return "", fmt.Errorf("detach egress: %w", err)
	}

	slog.InfoContext(ctx, "Egress ended", "session_id", session.ID.String(), "egress_id", ev.ProviderEgressID, "detached", cleared)
	return "applied", nil
}

// runReconcile is the scheduled task body. taskCtx is detached from the webhook
// request and logs the delivery's correlation id as its parent.
func (c *Coordinator) runReconcile(taskCtx context.Context, ingressID string) {
	if c.metrics != nil {
		c.metrics.PendingReconciles.Dec()
	}

	ctx, cancel := context.WithTimeout(taskCtx, reconcileTimeout)
	defer cancel()

	c.Reconcile(ctx, ingressID)
}

// Reconcile inspects the pending-end marker for ingressID and finalizes the
// session when the marker is at least one window old. Any condition that is not
// ready to finalize is a no-op; errors are logged and leave state untouched.
func (c *Coordinator) Reconcile(ctx context.Context, ingressID string) ReconcileOutcome {
	outcome := c.reconcile(ctx, ingressID)
	if c.metrics != nil {
		c.metrics.Reconciliations.WithLabelValues(outcome.String()).Inc()
	}
	return outcome
}

func (c *Coordinator) reconcile(ctx context.Context, ingressID string) ReconcileOutcome {
	createdAt, found, err := c.markers.Get(ctx, ingressID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read pending-end marker", "ingress_id", ingressID, "error", err)
		return ReconcileFailed
	}
	if !found {
		slog.DebugContext(ctx, "No pending end, reconciliation superseded", "ingress_id", ingressID)
		return ReconcileSuperseded
	}

	if age := c.clock.Since(createdAt); age < c.window {
		slog.DebugContext(ctx, "Pending end refreshed, deferring to newer task", "ingress_id", ingressID, "marker_age", age)
		return ReconcileTooFresh
	}

	session, err := c.sessions.GetByProviderIngressID(ctx, ingressID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		slog.WarnContext(ctx, "Pending end for unknown session, dropping marker", "ingress_id", ingressID)
		if _, err := c.markers.ClearIfMatch(ctx, ingressID, createdAt); err != nil {
			slog.ErrorContext(ctx, "Failed to drop orphan marker", "ingress_id", ingressID, "error", err)
		}
		return ReconcileOrphan
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load session for reconciliation", "ingress_id", ingressID, "error", err)
		return ReconcileFailed
	}

	// Claiming the exact marker generation makes this task the only finalizer.
	claimed, err := c.markers.ClearIfMatch(ctx, ingressID, createdAt)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to claim pending-end marker", "ingress_id", ingressID, "error", err)
		return ReconcileFailed
	}
	if !claimed {
		slog.DebugContext(ctx, "Pending end claimed elsewhere", "ingress_id", ingressID)
		return ReconcileClaimLost
	}

	finalized, err := c.finalize(ctx, session, "reconcile")
	switch {
	case errors.Is(err, domain.ErrProvider):
		slog.ErrorContext(ctx, "Failed to stop egress, session left live",
			"session_id", session.ID.String(),
			"egress_id", session.ProviderEgressID,
			"error", err)
		c.restoreMarker(ctx, ingressID, createdAt)
		return ReconcileProviderFailed
	case err != nil:
		slog.ErrorContext(ctx, "Failed to finalize session", "session_id", session.ID.String(), "error", err)
		c.restoreMarker(ctx, ingressID, createdAt)
		return ReconcileFailed
	case !finalized:
		slog.InfoContext(ctx, "Session already ended", "session_id", session.ID.String())
		return ReconcileAlreadyEnded
	}
	return ReconcileFinalized
}

// ForceStop ends a session on operator request through the same finalize path
// as reconciliation. Returns false when the session was already ended.
func (c *Coordinator) ForceStop(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	session, err := c.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return false, err
	}

	finalized, err := c.finalize(ctx, session, "operator")
	if err != nil {
		return false, err
	}

	// Any pending end is now moot; dropping it turns scheduled tasks into no-ops.
	if createdAt, found, err := c.markers.Get(ctx, session.ProviderIngressID); err != nil {
		slog.WarnContext(ctx, "Failed to read pending-end marker after force stop", "ingress_id", session.ProviderIngressID, "error", err)
	} else if found {
		if _, err := c.markers.ClearIfMatch(ctx, session.ProviderIngressID, createdAt); err != nil {
			slog.WarnContext(ctx, "Failed to clear pending-end marker after force stop", "ingress_id", session.ProviderIngressID, "error", err)
		}
	}

	return finalized, nil
}

// finalize stops the recording, applies the guarded end transition and, when
// this call performed the transition, publishes the ended notification.
func (c *Coordinator) finalize(ctx context.Context, session *domain.LiveSession, trigger string) (bool, error) {
	if session.HasEgress() {
		if err := c.egress.StopEgress(ctx, session.ProviderEgressID); err != nil {
			return false, fmt.Errorf("%w: %w", domain.ErrProvider, err)
		}
	}

	finalized, err := c.sessions.FinalizeEnd(ctx, session.ID, c.now())
	if err != nil {
		return false, fmt.Errorf("finalize session: %w", err)
	}
	if !finalized {
		return false, nil
	}

	slog.InfoContext(ctx, "Session ended", "session_id", session.ID.String(), "trigger", trigger)
	if c.metrics != nil {
		c.metrics.SessionsFinalized.WithLabelValues(trigger).Inc()
	}
	c.publishEnded(ctx, session.ID)
	return true, nil
}

func (c *Coordinator) publishEnded(ctx context.Context, sessionID uuid.UUID) {
	if c.bus == nil {
		return
	}
	event := domain.SessionStatusEvent{Event: domain.SessionEventEnded, SessionID: sessionID}
	if err := c.bus.Publish(ctx, domain.TopicSessionStatus, event); err != nil {
		slog.WarnContext(ctx, "Failed to publish session ended", "session_id", sessionID.String(), "error", err)
		if c.metrics != nil {
			c.metrics.NotificationsFailed.Inc()
		}
	}
}

// restoreMarker puts a claimed marker generation back after a failed finalize,
// unless a newer end event has written a fresh one meanwhile.
func (c *Coordinator) restoreMarker(ctx context.Context, ingressID string, createdAt time.Time) {
	if err := c.markers.Restore(ctx, ingressID, createdAt); err != nil {
		slog.ErrorContext(ctx, "Failed to restore pending-end marker", "ingress_id", ingressID, "error", err)
	}
}

// now is truncated to the marker store's millisecond resolution so a written
// marker compares equal to the value read back.
func (c *Coordinator) now() time.Time {
	return c.clock.Now().UTC().Truncate(time.Millisecond)
}
