// Package server provides the HTTP server and routing for Metron.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/metron/internal/config"
	"github.com/aristath/metron/internal/database"
	"github.com/aristath/metron/internal/di"
	correlationhandlers "github.com/aristath/metron/internal/modules/correlation/handlers"
	metricshandlers "github.com/aristath/metron/internal/modules/metrics/handlers"
	panelhandlers "github.com/aristath/metron/internal/modules/panel/handlers"
	pipelinehandlers "github.com/aristath/metron/internal/modules/pipeline/handlers"
	reliabilityhandlers "github.com/aristath/metron/internal/reliability/handlers"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	PanelDB   *database.DB
	MetricsDB *database.DB
	CacheDB   *database.DB
	Config    *config.Config
	Port      int
	DevMode   bool
	Container *di.Container // DI container with all services
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	databases      map[string]*database.DB
	cfg            *config.Config
	container      *di.Container
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	databases := map[string]*database.DB{
		"panel":   cfg.PanelDB,
		"metrics": cfg.MetricsDB,
		"cache":   cfg.CacheDB,
	}

	systemHandlers := NewSystemHandlers(
		cfg.Log,
		cfg.Config.DataDir,
		databases,
		cfg.Container.PanelRepo,
		cfg.Container.PipelineRunner,
		cfg.Container.PipelineRepo,
	)

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		databases:      databases,
		cfg:            cfg.Config,
		container:      cfg.Container,
		systemHandlers: systemHandlers,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.handleHealth)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		// Event stream (websocket) - registered before the module routes
		eventsWS := NewEventsWSHandler(s.container.EventBus, s.log)
		r.Get("/events/ws", eventsWS.ServeHTTP)

		// System monitoring
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
			r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
		})

		// Panel module (price ingest and raw rows)
		panelHandler := panelhandlers.NewHandler(s.container.PanelService, s.log)
		panelHandler.RegisterRoutes(r)

		// Metrics module (derived series, bars, rolling stats, summaries)
		metricsHandler := metricshandlers.NewHandler(s.container.MetricsService, s.log)
		metricsHandler.RegisterRoutes(r)

		// Correlation module (feature and symbol matrices)
		correlationHandler := correlationhandlers.NewHandler(s.container.CorrelationService, s.log)
		correlationHandler.RegisterRoutes(r)

		// Pipeline module (run trigger and run history)
		pipelineHandler := pipelinehandlers.NewHandler(s.container.PipelineRunner, s.container.PipelineRepo, s.log)
		pipelineHandler.RegisterRoutes(r)

		// Backup operations. The S3 service is nil when no bucket is
		// configured; the handler degrades to local snapshots then.
		backupHandler := reliabilityhandlers.NewHandler(s.container.BackupService, s.container.S3BackupService, s.log)
		backupHandler.RegisterRoutes(r)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
