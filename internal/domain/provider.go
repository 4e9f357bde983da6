package domain

import "context"

// EgressGateway is the outbound control plane of the streaming provider.
// Calls are bounded by a timeout and never retried internally; any failure
// wraps ErrProvider.
type EgressGateway interface {
	StopEgress(ctx context.Context, egressIDs ...string) error
}
