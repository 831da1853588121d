package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"sheetsplit/internal/codec"
	"sheetsplit/internal/config"
	apierrors "sheetsplit/internal/errors"
	"sheetsplit/internal/files"
	"sheetsplit/internal/history"
	"sheetsplit/internal/infrastructure"
	customMiddleware "sheetsplit/internal/middleware"
	"sheetsplit/internal/pipeline"
	"sheetsplit/internal/services"
	handlers "sheetsplit/internal/transport/http"
	ws "sheetsplit/internal/websocket"
)

const AppName = "sheetsplit"

// Version is set at build time with -ldflags "-X sheetsplit/internal/app.Version=...".
var Version = "dev"

// Application represents the main application container
type Application struct {
	Config          *config.Config
	Router          *chi.Mux
	Server          *http.Server
	Logger          *slog.Logger
	OTelProviders   *infrastructure.OTelProviders
	Metrics         *infrastructure.PipelineMetrics
	History         *history.Store
	WebSocketHub    *ws.Hub
	PipelineService *services.PipelineService
	HealthService   *services.HealthService
	ErrorHandler    *apierrors.ErrorHandler
}

// NewApplication builds every dependency from cfg. Nothing listens until Run
// or Serve is called.
func NewApplication(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.NewPipelineMetrics(providers.Meter)
	if err != nil {
		_ = providers.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: providers,
		Metrics:       metrics,
		ErrorHandler:  apierrors.NewErrorHandler(logger, cfg.Logging.Level == "debug"),
	}

	if err := app.initializeServices(); err != nil {
		_ = app.close(context.Background())
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	logger.Info("Application initialized",
		slog.String("name", AppName),
		slog.String("version", Version),
		slog.String("data_dir", cfg.Paths.DataDir),
		slog.String("history_db", cfg.Paths.HistoryDB))

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	var historyStore services.HistoryStore
	var historyPinger services.Pinger
	if a.Config.Paths.HistoryDB != "" {
		store, err := history.Open(a.Config.Paths.HistoryDB)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		a.History = store
		historyStore, historyPinger = store, store
	}

	resolver, err := files.NewResolver(a.Config.Paths.DataDir)
	if err != nil {
		return err
	}

	a.WebSocketHub = ws.NewHub(a.Logger)

	a.PipelineService = services.NewPipelineService(services.PipelineConfig{
		Codec:       codec.NewRegistry(),
		Options:     PipelineOptions(a.Config.Pipeline),
		Resolver:    resolver,
		History:     historyStore,
		Events:      a.WebSocketHub,
		Metrics:     a.Metrics,
		Tracer:      a.OTelProviders.Tracer,
		MaxSessions: a.Config.Pipeline.MaxSessions,
		Logger:      a.Logger,
	})

	a.HealthService = services.NewHealthService(Version, resolver.Base(), historyPinger,
		a.WebSocketHub, a.PipelineService, a.Logger)
	return nil
}

// PipelineOptions maps the pipeline configuration onto controller options.
func PipelineOptions(cfg config.PipelineConfig) pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.Delimiter = cfg.Delimiter
	opts.CountFrom = cfg.CountFrom
	if cfg.ProcessedSheet != "" {
		opts.ProcessedSheet = cfg.ProcessedSheet
	}
	if cfg.CountsSheet != "" {
		opts.CountsSheet = cfg.CountsSheet
	}
	return opts
}

// setupRouter configures the HTTP router
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(chimw.RealIP)

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	r.Get("/ws", ws.Handler(a.WebSocketHub, a.Config.Security.AllowedOrigins, a.Logger))

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.NewTelemetry(a.OTelProviders.Tracer, a.Metrics).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.ErrorHandler))
		r.Use(customMiddleware.SecurityHeaders)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
				AllowedOrigins: a.Config.Security.AllowedOrigins,
			}))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
				a.ErrorHandler,
			).Handler)
		}

		r.Use(customMiddleware.MaxBodySize(a.Config.Security.MaxBodyBytes))
		if a.Config.Server.RequestTimeout > 0 {
			r.Use(chimw.Timeout(a.Config.Server.RequestTimeout))
		}

		r.Mount("/api/health", handlers.NewHealthHandler(a.HealthService, a.Logger).Routes())
		r.Mount("/api/v1", handlers.NewPipelineHandler(a.PipelineService, a.ErrorHandler, a.Logger).Routes())
	})

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Run listens on the configured port and serves until ctx is cancelled or
// the process receives SIGINT or SIGTERM.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		_ = a.close(context.Background())
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts everything down.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	a.WebSocketHub.Start()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfoContext(gctx, "Server listening", slog.String("address", ln.Addr().String()))
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.Stop(context.WithoutCancel(gctx))
	})

	return g.Wait()
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}
	if err := a.close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	a.Logger.InfoContext(ctx, "Application stopped")
	return errors.Join(errs...)
}

// close releases everything but the HTTP server.
func (a *Application) close(ctx context.Context) error {
	var errs []error

	if a.WebSocketHub != nil {
		a.WebSocketHub.Stop()
	}
	if err := a.History.Close(); err != nil {
		errs = append(errs, fmt.Errorf("history close error: %w", err))
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown error: %w", err))
		}
	}
	return errors.Join(errs...)
}
