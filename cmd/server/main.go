package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/tonewood/internal/api"
	"github.com/RMahshie/tonewood/internal/api/handlers"
	"github.com/RMahshie/tonewood/internal/config"
	"github.com/RMahshie/tonewood/internal/fitter"
	"github.com/RMahshie/tonewood/internal/metrics"
	"github.com/RMahshie/tonewood/internal/processing"
	"github.com/RMahshie/tonewood/internal/repository/postgres"
	"github.com/RMahshie/tonewood/internal/solver"
	"github.com/RMahshie/tonewood/internal/storage"
	"github.com/RMahshie/tonewood/pkg/models"
)

const version = "1.0.0"

func main() {
	// Configure zerolog for structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.Server.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	repo := postgres.NewPostgresRunRepository(db)

	// Exports are optional; the API still serves responses and fits without a store
	store, err := storage.New(storage.Config{
		Backend:   cfg.Storage.Backend,
		Bucket:    cfg.Storage.Bucket,
		Endpoint:  cfg.Storage.Endpoint,
		Region:    cfg.Storage.Region,
		AccessKey: cfg.Storage.AccessKeyID,
		SecretKey: cfg.Storage.SecretAccessKey,
		UseSSL:    cfg.Storage.UseSSL,
		URLExpiry: cfg.Storage.URLExpiry,
	})
	if err != nil {
		log.Warn().Err(err).Str("backend", cfg.Storage.Backend).Msg("Curve storage unavailable, exports disabled")
		store = nil
	}

	axis, err := solver.FrequencyAxis(cfg.Solver.SweepStart, cfg.Solver.SweepEnd, cfg.Solver.SweepStep)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid default sweep")
	}

	pm := metrics.NewPrometheusMetrics()
	processingSvc := processing.NewProcessingService(store, repo, processing.Options{
		Axis: axis,
		Fit: fitter.Options{
			MaxIter:  cfg.Fitter.MaxIter,
			TweakIDs: cfg.Fitter.TweakIDs,
		},
		Metrics: pm,
	})

	// Create Chi router
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(zerologLogger())
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	router.Handle("/metrics", pm.Handler())

	// Create Huma API
	humaConfig := huma.DefaultConfig("Tonewood API", version)
	humaConfig.DocsPath = "/api/docs"
	humaAPI := humachi.New(router, humaConfig)

	// Register health endpoint
	huma.Register(humaAPI, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the service",
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		resp := &models.HealthResponse{}
		resp.Body.Status = "healthy"
		if err := db.PingContext(ctx); err != nil {
			resp.Body.Status = "degraded"
		}
		resp.Body.Version = version
		resp.Body.Time = time.Now()
		return resp, nil
	})

	api.RegisterRoutes(humaAPI, repo, store, processingSvc, handlers.ResponseOptions{
		MaxPoints: cfg.Solver.MaxPoints,
		URLExpiry: cfg.Storage.URLExpiry,
	})

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Server.Env).Msg("Starting Tonewood API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// zerologLogger returns a Chi middleware that logs HTTP requests using zerolog
func zerologLogger() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				log.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("request_id", middleware.GetReqID(r.Context())).
					Int("status", ww.Status()).
					Dur("latency", time.Since(start)).
					Msg("HTTP request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
