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
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"custos/internal/config"
	"custos/internal/dataprocessing"
	apierrors "custos/internal/errors"
	"custos/internal/infrastructure"
	customMiddleware "custos/internal/middleware"
	"custos/internal/services"
	"custos/internal/storage"
	handlers "custos/internal/transport/http"
	ws "custos/internal/websocket"
	"custos/pkg/contracts"
)

// AppName is reported in startup logs
const AppName = "custos"

// Application represents the main application container
type Application struct {
	Config          *config.Config
	Logger          *slog.Logger
	OTelProviders   *infrastructure.OTelProviders
	Metrics         *infrastructure.BusinessMetrics
	Store           storage.AnalysisStore
	WebSocketHub    *ws.Hub
	AnalysisService *services.AnalysisService
	HealthService   *services.HealthService
	ErrorHandler    *apierrors.ErrorHandler
	Router          *chi.Mux
	Server          *http.Server
}

// NewApplication loads configuration from the environment and builds the application
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(ctx, cfg, logger)
}

// New builds the application from an explicit configuration
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}

	logger.InfoContext(ctx, "Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.String("storage_driver", cfg.Storage.Driver))

	otelProviders, err := infrastructure.InitializeOTel(otelConfig(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	store, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		Store:         store,
		ErrorHandler:  apierrors.NewErrorHandler(logger, false),
	}

	a.initializeServices()
	a.setupRouter()
	a.createServer()
	return a, nil
}

func otelConfig(cfg config.TelemetryConfig) *infrastructure.OTelConfig {
	oc := infrastructure.DefaultOTelConfig()
	if cfg.ServiceName != "" {
		oc.ServiceName = cfg.ServiceName
	}
	if cfg.Environment != "" {
		oc.Environment = cfg.Environment
	}
	oc.TraceExporter = cfg.TraceExporter
	oc.EnableTracing = cfg.EnableTracing
	oc.EnableMetrics = cfg.EnableMetrics
	oc.SampleRatio = cfg.SampleRatio
	return oc
}

// openStore returns the AnalysisStore selected by cfg.Driver
func openStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (storage.AnalysisStore, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		logger.InfoContext(ctx, "Using in-memory analysis store")
		return storage.NewMemoryStore(), nil
	case config.DriverPostgres:
		store, err := storage.NewPostgresStore(ctx, storage.PostgresConfig{
			DSN:             cfg.DSN,
			MaxConns:        cfg.MaxConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		logger.InfoContext(ctx, "Using PostgreSQL analysis store")
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// initializeServices creates the hub and the services on top of the store
func (a *Application) initializeServices() {
	a.WebSocketHub = ws.NewHub(a.Logger, a.OTelProviders.Meter)

	a.AnalysisService = services.NewAnalysisService(a.Store, a.Logger,
		services.WithNotifier(a.WebSocketHub),
		services.WithMetrics(a.Metrics),
		services.WithTracer(a.OTelProviders.Tracer),
		services.WithIngestOptions(dataprocessing.IngestOptions{RequireRowID: a.Config.Analysis.RequireRowID}),
		services.WithRecentLimit(a.Config.Analysis.RecentLimit),
	)
	a.HealthService = services.NewHealthService(a.Store, a.WebSocketHub, a.Logger)
}

// setupRouter configures middleware and routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// The websocket upgrade needs the raw ResponseWriter, so /ws only gets
	// middleware that does not wrap it.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	r.Handle("/ws", ws.Handler(a.WebSocketHub, a.Config.WebSocket, a.Config.Security.AllowedOrigins, a.Logger))

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics)
		if err != nil {
			a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
		}

		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(apierrors.RecoveryMiddleware(a.ErrorHandler))
		r.Use(customMiddleware.SecurityHeaders)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
				AllowedOrigins: a.Config.Security.AllowedOrigins,
				Logger:         a.Logger,
			}))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r)
	})

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))
		r.Use(customMiddleware.MaxBodySize(a.Config.Server.MaxUploadBytes))

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)

		analysisHandler := handlers.NewAnalysisHandler(a.AnalysisService, a.Logger, a.ErrorHandler)
		r.Mount("/analyses", analysisHandler.Routes())
	})
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Address(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Run serves on the configured address until ctx is cancelled or SIGINT or
// SIGTERM arrives, then shuts down gracefully
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the hub and the HTTP server on ln until ctx is done. The first
// failure cancels the rest.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.WebSocketHub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		a.Logger.InfoContext(gctx, "Server listening",
			slog.String("address", ln.Addr().String()),
			slog.String("version", contracts.Version))
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.Logger.InfoContext(gctx, "Shutdown requested")
		return a.Stop(context.WithoutCancel(gctx))
	})

	return g.Wait()
}

// Stop drains the server and releases the store and telemetry
func (a *Application) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	a.Store.Close()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete",
		slog.Duration("shutdown_timeout", a.Config.Server.ShutdownTimeout))
	return errors.Join(errs...)
}
