package domain

import "errors"

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrDuplicateIngress = errors.New("ingress already provisioned")

	// ErrAuthentication means an inbound webhook failed signature verification.
	ErrAuthentication = errors.New("webhook authentication failed")
	// ErrMalformedEvent means an authenticated webhook body could not be parsed.
	ErrMalformedEvent = errors.New("malformed webhook event")
	// ErrProvider marks a recoverable failure of a call to the streaming provider,
	// timeouts included.
	ErrProvider = errors.New("provider call failed")
	// ErrSchedulerStopped means a delayed task was refused during shutdown.
	ErrSchedulerStopped = errors.New("scheduler stopped")
)
