// Package server provides the agent's optional operations listener.
//
// The listener is off unless an address is configured. It serves:
//
//	GET /metrics  Prometheus metrics from the default registry
//	GET /health   liveness, always 200 while the process runs
//	GET /ready    200 once the agent has sent its initial sync, 503 before
//
// Requests pass through panic recovery, rate limiting, request ids and
// request metrics. Stdout stays reserved for the IPC channel; the listener
// logs through slog only.
package server
