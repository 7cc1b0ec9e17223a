// Package timeouts defines shared timeout constants used across services.
// Centralizing these values prevents drift between service boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing a gRPC peer.
const GRPCDial = 2 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// WordDraw caps a single word supplier call made while activating a room.
const WordDraw = 3 * time.Second

// ReconnectGrace is how long an active room waits for a dropped player.
const ReconnectGrace = 30 * time.Second

// FinishedRetention is how long a finished room stays reachable for late
// reconnects before it is dropped.
const FinishedRetention = 10 * time.Second
