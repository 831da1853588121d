package services

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"
)

// Pinger is implemented by dependencies that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HubStatus reports the state of the websocket hub.
type HubStatus interface {
	Running() bool
	ClientCount() int
}

// SessionCounter reports the number of live sessions.
type SessionCounter interface {
	SessionCount() int
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]any           `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	dataDir   string
	history   Pinger
	hub       HubStatus
	sessions  SessionCounter
	startTime time.Time
	logger    *slog.Logger
}

// NewHealthService creates a health service. Nil dependencies are reported
// as disabled.
func NewHealthService(version, dataDir string, history Pinger, hub HubStatus, sessions SessionCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		dataDir:   dataDir,
		history:   history,
		hub:       hub,
		sessions:  sessions,
		startTime: time.Now(),
		logger:    logger.With(slog.String("service", "health")),
	}
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	rt := map[string]any{
		"uptime_seconds": time.Since(hs.startTime).Seconds(),
		"go_version":     runtime.Version(),
		"goroutines":     runtime.NumGoroutine(),
	}
	if hs.sessions != nil {
		rt["sessions"] = hs.sessions.SessionCount()
	}
	if hs.hub != nil {
		rt["websocket_clients"] = hs.hub.ClientCount()
	}
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime:   rt,
	}
}

// ReadinessCheck reports whether every dependency is usable.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services: map[string]ServiceHealth{
			"history":   hs.checkHistory(ctx),
			"websocket": hs.checkWebSocket(),
			"data":      hs.checkData(),
		},
	}

	for name, svc := range status.Services {
		if svc.Status == "error" {
			status.Status = "not_ready"
			hs.logger.WarnContext(ctx, "dependency not ready",
				slog.String("dependency", name),
				slog.String("message", svc.Message))
		}
	}
	return status
}

func (hs *HealthService) checkHistory(ctx context.Context) ServiceHealth {
	if hs.history == nil {
		return ServiceHealth{Status: "disabled"}
	}
	if err := hs.history.Ping(ctx); err != nil {
		return ServiceHealth{Status: "error", Message: err.Error()}
	}
	return ServiceHealth{Status: "ready"}
}

func (hs *HealthService) checkWebSocket() ServiceHealth {
	if hs.hub == nil {
		return ServiceHealth{Status: "disabled"}
	}
	if !hs.hub.Running() {
		return ServiceHealth{Status: "error", Message: "hub is not running"}
	}
	return ServiceHealth{Status: "ready"}
}

func (hs *HealthService) checkData() ServiceHealth {
	if hs.dataDir == "" {
		return ServiceHealth{Status: "disabled"}
	}
	info, err := os.Stat(hs.dataDir)
	if err != nil {
		return ServiceHealth{Status: "error", Message: err.Error()}
	}
	if !info.IsDir() {
		return ServiceHealth{Status: "error", Message: "data path is not a directory"}
	}
	return ServiceHealth{Status: "ready"}
}
