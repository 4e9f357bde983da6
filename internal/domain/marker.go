package domain

import (
	"context"
	"time"
)

// MarkerStore holds pending-end markers keyed by provider ingress id. A marker's
// createdAt is its generation; writing again replaces it.
//
// All operations are atomic per key.
type MarkerStore interface {
	// Write creates or refreshes the marker.
	Write(ctx context.Context, ingressID string, createdAt time.Time) error
	Get(ctx context.Context, ingressID string) (createdAt time.Time, found bool, err error)
	// ClearIfMatch deletes the marker only if it still carries createdAt.
	// Exactly one caller per generation gets true.
	ClearIfMatch(ctx context.Context, ingressID string, createdAt time.Time) (bool, error)
	// Restore puts a claimed marker back unless a newer one was written meanwhile.
	Restore(ctx context.Context, ingressID string, createdAt time.Time) error
}
