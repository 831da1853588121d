package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "sheetsplit/internal/errors"
	"sheetsplit/internal/middleware"
	"sheetsplit/internal/pipeline"
	"sheetsplit/internal/services"
)

const maxHistoryLimit = 1000

// PathRequest is the body of load, save and save-counts.
type PathRequest struct {
	Path string `json:"path" validate:"required,max=1024,datapath"`
}

// PipelineHandler handles session and pipeline requests
type PipelineHandler struct {
	service      PipelineServiceInterface
	validator    *middleware.Validator
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewPipelineHandler creates a new pipeline handler
func NewPipelineHandler(service PipelineServiceInterface, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *PipelineHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}
	return &PipelineHandler{
		service:      service,
		validator:    middleware.NewValidator(logger),
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "pipeline")),
	}
}

// Routes returns a chi router for the /api/v1 endpoints
func (h *PipelineHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Get("/", h.ListSessions)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DeleteSession)
			r.Post("/load", h.Load)
			r.Post("/process", h.Process)
			r.Post("/save", h.Save)
			r.Post("/save-counts", h.SaveCounts)
			r.Get("/history", h.SessionHistory)
		})
	})

	r.Get("/history", h.History)
	r.Get("/files", h.ListFiles)

	return r
}

// CreateSession handles POST /api/v1/sessions
func (h *PipelineHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.CreateSession(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, info)
}

// ListSessions handles GET /api/v1/sessions
func (h *PipelineHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.service.ListSessions(r.Context())
	render.JSON(w, r, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GetSession handles GET /api/v1/sessions/{id}
func (h *PipelineHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, info)
}

// DeleteSession handles DELETE /api/v1/sessions/{id}
func (h *PipelineHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Load handles POST /api/v1/sessions/{id}/load
func (h *PipelineHandler) Load(w http.ResponseWriter, r *http.Request) {
	h.withPath(w, r, h.service.Load)
}

// Process handles POST /api/v1/sessions/{id}/process
func (h *PipelineHandler) Process(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Process(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.renderResult(w, r, result)
}

// Save handles POST /api/v1/sessions/{id}/save
func (h *PipelineHandler) Save(w http.ResponseWriter, r *http.Request) {
	h.withPath(w, r, h.service.Save)
}

// SaveCounts handles POST /api/v1/sessions/{id}/save-counts
func (h *PipelineHandler) SaveCounts(w http.ResponseWriter, r *http.Request) {
	h.withPath(w, r, h.service.SaveCounts)
}

// History handles GET /api/v1/history
func (h *PipelineHandler) History(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, "")
}

// SessionHistory handles GET /api/v1/sessions/{id}/history
func (h *PipelineHandler) SessionHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.service.GetSession(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.history(w, r, id)
}

// ListFiles handles GET /api/v1/files
func (h *PipelineHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListFiles(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{
		"files": list,
		"count": len(list),
	})
}

type pathOperation func(ctx context.Context, id, path string) (pipeline.Result, error)

func (h *PipelineHandler) withPath(w http.ResponseWriter, r *http.Request, op pathOperation) {
	var req PathRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	result, err := op(r.Context(), chi.URLParam(r, "id"), req.Path)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.renderResult(w, r, result)
}

func (h *PipelineHandler) history(w http.ResponseWriter, r *http.Request, id string) {
	limit, err := middleware.QueryInt(r, "limit", 1, maxHistoryLimit, 50)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	entries, err := h.service.History(r.Context(), id, limit)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// renderResult writes the Result with the status code of its outcome.
func (h *PipelineHandler) renderResult(w http.ResponseWriter, r *http.Request, result pipeline.Result) {
	render.Status(r, StatusCode(result.Status))
	render.JSON(w, r, result)
}

// StatusCode maps a result status to its HTTP status code.
func StatusCode(status pipeline.Status) int {
	switch status {
	case pipeline.StatusSuccess:
		return http.StatusOK
	case pipeline.StatusWarning:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func (h *PipelineHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		h.errorHandler.HandleError(w, r, apierrors.ErrSessionNotFound)
	case errors.Is(err, services.ErrInvalidPath):
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("path", err.Error()))
	case errors.Is(err, services.ErrTooManySessions):
		h.errorHandler.HandleError(w, r, apierrors.New(http.StatusConflict, "CONFLICT", err.Error()))
	default:
		h.errorHandler.HandleError(w, r, apierrors.NewStorageError("request failed", err))
	}
}
