// Package app wires configuration, telemetry, storage, services and the HTTP
// router into a runnable Application.
//
// Middleware order on API routes is RequestID, RealIP, Telemetry,
// StructuredLogger, Recoverer, SecurityHeaders, CORS, rate limiting, body
// limit and request timeout. The websocket endpoint only gets RequestID and
// RealIP so nothing wraps the hijacked connection. /metrics sits outside the
// API group.
package app
