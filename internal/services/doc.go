// Package services holds the application services behind the HTTP API and
// the CLI.
//
// PipelineService keeps one pipeline.Controller per session and runs every
// request through it while recording history, broadcasting the result to
// websocket clients and emitting metrics and spans. Requests on the same
// session are serialized; different sessions run concurrently.
//
// HealthService reports liveness of the service and its dependencies.
package services
