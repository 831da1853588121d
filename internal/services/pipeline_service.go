package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sheetsplit/internal/codec"
	"sheetsplit/internal/files"
	"sheetsplit/internal/history"
	"sheetsplit/internal/infrastructure"
	"sheetsplit/internal/pipeline"
	"sheetsplit/internal/table"
	ws "sheetsplit/internal/websocket"
)

// DefaultMaxSessions bounds the number of live sessions when no limit is set.
const DefaultMaxSessions = 100

// EventBroadcaster pushes events to connected clients.
type EventBroadcaster interface {
	Broadcast(ctx context.Context, messageType string, data any)
}

// HistoryStore records and lists pipeline requests.
type HistoryStore interface {
	Record(ctx context.Context, e history.Entry) (int64, error)
	List(ctx context.Context, limit int) ([]history.Entry, error)
	ListSession(ctx context.Context, sessionID string, limit int) ([]history.Entry, error)
}

// SessionInfo describes a session and the state of its pipeline.
type SessionInfo struct {
	ID            string         `json:"id"`
	Stage         pipeline.Stage `json:"stage"`
	RawRows       int            `json:"raw_rows"`
	ProcessedRows int            `json:"processed_rows"`
	Counts        []table.Entry  `json:"counts,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// PipelineConfig wires a PipelineService.
type PipelineConfig struct {
	Codec       codec.Codec
	Options     pipeline.Options
	Resolver    *files.Resolver // nil accepts any path
	History     HistoryStore    // optional
	Events      EventBroadcaster
	Metrics     *infrastructure.PipelineMetrics
	Tracer      trace.Tracer
	MaxSessions int
	Logger      *slog.Logger
}

type session struct {
	id        string
	createdAt time.Time

	mu         sync.Mutex
	controller *pipeline.Controller
	updatedAt  time.Time
}

// PipelineService runs pipeline requests on behalf of sessions.
type PipelineService struct {
	codec       codec.Codec
	opts        pipeline.Options
	resolver    *files.Resolver
	history     HistoryStore
	events      EventBroadcaster
	metrics     *infrastructure.PipelineMetrics
	tracer      trace.Tracer
	maxSessions int
	logger      *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewPipelineService creates a service. A nil codec uses the default registry.
func NewPipelineService(cfg PipelineConfig) *PipelineService {
	if cfg.Codec == nil {
		cfg.Codec = codec.NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(infrastructure.InstrumentationName)
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	logger := cfg.Logger.With(slog.String("service", "pipeline"))
	cfg.Options.Logger = logger

	return &PipelineService{
		codec:       cfg.Codec,
		opts:        cfg.Options,
		resolver:    cfg.Resolver,
		history:     cfg.History,
		events:      cfg.Events,
		metrics:     cfg.Metrics,
		tracer:      cfg.Tracer,
		maxSessions: cfg.MaxSessions,
		logger:      logger,
		sessions:    make(map[string]*session),
	}
}

// CreateSession starts a new idle session.
func (s *PipelineService) CreateSession(ctx context.Context) (SessionInfo, error) {
	now := time.Now().UTC()
	sess := &session{
		id:         uuid.New().String(),
		createdAt:  now,
		updatedAt:  now,
		controller: pipeline.New(s.codec, s.opts),
	}

	s.mu.Lock()
	if len(s.sessions) >= s.maxSessions {
		s.mu.Unlock()
		return SessionInfo{}, fmt.Errorf("%w: limit is %d", ErrTooManySessions, s.maxSessions)
	}
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	s.metrics.SessionOpened(ctx)
	s.logger.InfoContext(ctx, "session created", slog.String("session_id", sess.id))

	info := sess.info()
	s.broadcast(ctx, ws.TypeSessionCreated, info)
	return info, nil
}

// ListSessions returns every live session, oldest first.
func (s *PipelineService) ListSessions(ctx context.Context) []SessionInfo {
	s.mu.RLock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, sess.info())
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// GetSession returns the state of one session.
func (s *PipelineService) GetSession(ctx context.Context, id string) (SessionInfo, error) {
	sess, err := s.session(id)
	if err != nil {
		return SessionInfo{}, err
	}
	return sess.info(), nil
}

// DeleteSession drops a session and its tables.
func (s *PipelineService) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	s.metrics.SessionClosed(ctx)
	s.logger.InfoContext(ctx, "session deleted", slog.String("session_id", id))
	s.broadcast(ctx, ws.TypeSessionDeleted, map[string]string{"id": id})
	return nil
}

// Load reads path into the session's raw table.
func (s *PipelineService) Load(ctx context.Context, id, path string) (pipeline.Result, error) {
	return s.run(ctx, id, pipeline.RequestLoad, path, func(ctx context.Context, c *pipeline.Controller, full string) pipeline.Result {
		return c.Load(ctx, full)
	})
}

// Process splits the session's raw table.
func (s *PipelineService) Process(ctx context.Context, id string) (pipeline.Result, error) {
	return s.run(ctx, id, pipeline.RequestProcess, "", func(ctx context.Context, c *pipeline.Controller, _ string) pipeline.Result {
		return c.Process(ctx)
	})
}

// Save writes the processed table to path, then re-reads and counts it.
func (s *PipelineService) Save(ctx context.Context, id, path string) (pipeline.Result, error) {
	return s.run(ctx, id, pipeline.RequestSave, path, func(ctx context.Context, c *pipeline.Controller, full string) pipeline.Result {
		return c.Save(ctx, full)
	})
}

// SaveCounts writes the session's counts to path.
func (s *PipelineService) SaveCounts(ctx context.Context, id, path string) (pipeline.Result, error) {
	return s.run(ctx, id, pipeline.RequestSaveCounts, path, func(ctx context.Context, c *pipeline.Controller, full string) pipeline.Result {
		return c.SaveCounts(ctx, full)
	})
}

// History lists recorded requests, newest first. An empty id lists every
// session.
func (s *PipelineService) History(ctx context.Context, id string, limit int) ([]history.Entry, error) {
	if s.history == nil {
		return []history.Entry{}, nil
	}
	if id == "" {
		return s.history.List(ctx, limit)
	}
	return s.history.ListSession(ctx, id, limit)
}

// ListFiles lists spreadsheets directly under the data directory.
func (s *PipelineService) ListFiles(ctx context.Context) ([]files.FileInfo, error) {
	if s.resolver == nil {
		return nil, fmt.Errorf("%w: no data directory configured", ErrInvalidPath)
	}
	return files.FindSpreadsheets(s.resolver.Base())
}

// SessionCount returns the number of live sessions.
func (s *PipelineService) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

type operation func(ctx context.Context, c *pipeline.Controller, fullPath string) pipeline.Result

// run executes op under the session lock and reports its outcome. The
// returned error covers only an unknown session or a rejected path; pipeline
// warnings and failures are carried in the Result.
func (s *PipelineService) run(ctx context.Context, id string, req pipeline.Request, path string, op operation) (pipeline.Result, error) {
	sess, err := s.session(id)
	if err != nil {
		return pipeline.Result{}, err
	}

	full := ""
	if req != pipeline.RequestProcess {
		full, err = s.resolve(path)
		if err != nil {
			return pipeline.Result{}, err
		}
	}

	ctx, span := s.tracer.Start(ctx, "pipeline."+string(req),
		trace.WithAttributes(
			attribute.String("session.id", id),
			attribute.String("pipeline.request", string(req)),
		))
	defer span.End()

	logger := s.logger.With(slog.String("session_id", id), slog.String("request", string(req)))

	sess.mu.Lock()
	start := time.Now()
	result := op(ctx, sess.controller, full)
	duration := time.Since(start)
	sess.updatedAt = time.Now().UTC()
	sess.mu.Unlock()

	if path != "" {
		result.Path = path
	}

	span.SetAttributes(
		attribute.String("pipeline.status", string(result.Status)),
		attribute.String("pipeline.stage", string(result.Stage)),
	)
	if result.Status == pipeline.StatusFailure {
		span.SetStatus(codes.Error, result.Message)
		if result.Err != nil {
			span.RecordError(result.Err)
		}
	}

	s.metrics.RecordRequest(ctx, string(req), string(result.Status), duration)
	if req == pipeline.RequestSave && result.OK() {
		s.metrics.RecordCellsCounted(ctx, countedCells(result.Counts))
	}

	level := slog.LevelInfo
	switch result.Status {
	case pipeline.StatusWarning:
		level = slog.LevelWarn
	case pipeline.StatusFailure:
		level = slog.LevelError
	}
	logger.Log(ctx, level, "pipeline request completed",
		slog.String("status", string(result.Status)),
		slog.String("stage", string(result.Stage)),
		slog.Duration("duration", duration),
	)

	s.record(ctx, id, result, duration)
	s.broadcast(ctx, ws.TypePipelineResult, resultEvent{SessionID: id, Result: result})
	return result, nil
}

type resultEvent struct {
	SessionID string `json:"session_id"`
	pipeline.Result
}

func (s *PipelineService) record(ctx context.Context, id string, result pipeline.Result, duration time.Duration) {
	if s.history == nil {
		return
	}
	_, err := s.history.Record(ctx, history.Entry{
		SessionID: id,
		Request:   string(result.Request),
		Path:      result.Path,
		Status:    string(result.Status),
		Message:   result.Message,
		Stage:     string(result.Stage),
		Duration:  duration,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to record request history",
			slog.String("session_id", id),
			slog.String("error", err.Error()))
	}
}

func (s *PipelineService) broadcast(ctx context.Context, messageType string, data any) {
	if s.events == nil {
		return
	}
	s.events.Broadcast(ctx, messageType, data)
}

func (s *PipelineService) session(id string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

func (s *PipelineService) resolve(path string) (string, error) {
	if s.resolver == nil {
		if path == "" {
			return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
		}
		return path, nil
	}
	full, err := s.resolver.Resolve(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}
	return full, nil
}

func (sess *session) info() SessionInfo {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	info := SessionInfo{
		ID:            sess.id,
		Stage:         sess.controller.Stage(),
		RawRows:       len(sess.controller.Raw()),
		ProcessedRows: len(sess.controller.Processed()),
		CreatedAt:     sess.createdAt,
		UpdatedAt:     sess.updatedAt,
	}
	if counts := sess.controller.Counts(); counts != nil {
		info.Counts = counts.Entries()
	}
	return info
}

func countedCells(entries []table.Entry) int {
	n := 0
	for _, e := range entries {
		n += e.Count
	}
	return n
}
