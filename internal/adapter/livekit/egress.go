package livekit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pscheid92/livecart/internal/adapter/metrics"
	"github.com/sony/gobreaker"
)

// egressStopper is the subset of the LiveKit egress client the gateway uses.
type egressStopper interface {
	StopEgress(ctx context.Context, req *livekit.StopEgressRequest) (*livekit.EgressInfo, error)
}

// EgressGateway stops recording jobs. Each call is bounded by a timeout and
// guarded by a circuit breaker; an open breaker fails the call immediately.
type EgressGateway struct {
	client  egressStopper
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
	metrics *metrics.ProviderMetrics
}

// NewEgressGateway creates a gateway talking to the LiveKit server at url. m may be nil.
func NewEgressGateway(url, apiKey, apiSecret string, timeout time.Duration, m *metrics.ProviderMetrics) *EgressGateway {
	return newEgressGateway(lksdk.NewEgressClient(url, apiKey, apiSecret), timeout, m)
}

func newEgressGateway(client egressStopper, timeout time.Duration, m *metrics.ProviderMetrics) *EgressGateway {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "livekit-egress",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
		},
	})

	return &EgressGateway{
		client:  client,
		breaker: breaker,
		timeout: timeout,
		metrics: m,
	}
}

// StopEgress stops each egress in order and returns the first failure.
func (g *EgressGateway) StopEgress(ctx context.Context, egressIDs ...string) error {
	for _, id := range egressIDs {
		if err := g.stopOne(ctx, id); err != nil {
			return fmt.Errorf("stop egress %s: %w", id, err)
		}
	}
	return nil
}

func (g *EgressGateway) stopOne(ctx context.Context, egressID string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	_, err := g.breaker.Execute(func() (any, error) {
		return g.client.StopEgress(ctx, &livekit.StopEgressRequest{EgressId: egressID})
	})
	if g.metrics != nil {
		g.metrics.EgressStopDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			g.metrics.EgressStopErrors.WithLabelValues(failureReason(err)).Inc()
		}
	}
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Egress stopped", "egress_id", egressID)
	return nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "provider"
	}
}
