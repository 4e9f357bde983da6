// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (session.go, marker.go, webhook.go, etc.) hold shared types and the
// contracts the lifecycle coordinator depends on. No implementation code - just contracts.
// Keeps adapters and the application layer free of circular imports.
package domain
