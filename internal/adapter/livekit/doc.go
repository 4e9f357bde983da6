// Package livekit adapts the LiveKit media provider: it authenticates and decodes
// webhook deliveries into domain events and stops egress (recording) jobs through
// the LiveKit server API.
package livekit
