// Package app provides the application service layer.
//
// Hosts the session lifecycle coordinator (webhook-driven start/end transitions, debounced
// end reconciliation, operator force stop), the timer scheduler backing delayed reconciliation,
// and the operator-facing session service. Depends on domain interfaces, not concrete implementations.
package app
