package http

import (
	"context"

	"sheetsplit/internal/files"
	"sheetsplit/internal/history"
	"sheetsplit/internal/pipeline"
	"sheetsplit/internal/services"
)

// PipelineServiceInterface defines the interface for the pipeline service
type PipelineServiceInterface interface {
	CreateSession(ctx context.Context) (services.SessionInfo, error)
	ListSessions(ctx context.Context) []services.SessionInfo
	GetSession(ctx context.Context, id string) (services.SessionInfo, error)
	DeleteSession(ctx context.Context, id string) error
	Load(ctx context.Context, id, path string) (pipeline.Result, error)
	Process(ctx context.Context, id string) (pipeline.Result, error)
	Save(ctx context.Context, id, path string) (pipeline.Result, error)
	SaveCounts(ctx context.Context, id, path string) (pipeline.Result, error)
	History(ctx context.Context, id string, limit int) ([]history.Entry, error)
	ListFiles(ctx context.Context) ([]files.FileInfo, error)
}

// HealthServiceInterface defines the interface for the health service
type HealthServiceInterface interface {
	LivenessCheck(ctx context.Context) services.HealthStatus
	ReadinessCheck(ctx context.Context) services.HealthStatus
}
