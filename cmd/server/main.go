package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/otcheredev/dicomweb-bridge/internal/adapters"
	"github.com/otcheredev/dicomweb-bridge/internal/config"
	"github.com/otcheredev/dicomweb-bridge/internal/database"
	"github.com/otcheredev/dicomweb-bridge/internal/handlers"
	"github.com/otcheredev/dicomweb-bridge/internal/metrics"
	"github.com/otcheredev/dicomweb-bridge/internal/middleware"
	"github.com/otcheredev/dicomweb-bridge/internal/models"
	"github.com/otcheredev/dicomweb-bridge/internal/repository"
	"github.com/otcheredev/dicomweb-bridge/pkg/logger"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize logger
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("store", string(cfg.Store.Type)).Msg("Starting DICOMweb bridge")

	health := handlers.NewHealthHandler()

	// Connect to database
	if cfg.Store.Type == models.StoreTypeDatabase || cfg.Audit.Enabled {
		dbConfig := database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
			LogLevel: cfg.Database.LogLevel,
		}

		if err := database.Connect(dbConfig); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer database.Close()
		health.AddCheck("database", database.Ping)
	}

	m := metrics.New()

	// Initialize data store
	store, err := adapters.NewDataStore(context.Background(), cfg, m)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize data store")
	}
	defer store.Close()
	if p, ok := store.(adapters.Pinger); ok && cfg.Cache.Enabled && cfg.Cache.Type == "redis" {
		health.AddCheck("redis", p.Ping)
	}

	opts := []handlers.Option{
		handlers.WithMetrics(m),
		handlers.WithMaxUploadBytes(cfg.Store.MaxUploadBytes),
	}
	if cfg.Audit.Enabled {
		opts = append(opts, handlers.WithAudit(repository.NewAuditRepository()))
	}
	dicomwebHandler := handlers.NewDICOMWebHandler(store, opts...)

	r := newRouter(cfg, m, health, dicomwebHandler)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func newRouter(cfg *config.Config, m *metrics.Metrics, health *handlers.HealthHandler, dicomweb *handlers.DICOMWebHandler) chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics(m))
	}
	r.Use(chimiddleware.Compress(5, "application/json", "application/dicom+json"))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints
	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, m.Handler())
	}

	// QIDO-RS, WADO-RS and STOW-RS
	dicomweb.Routes(r, handlers.Prefixes{
		QIDO: cfg.DICOMWeb.QIDOPrefix,
		WADO: cfg.DICOMWeb.WADOPrefix,
		STOW: cfg.DICOMWeb.STOWPrefix,
	})

	return r
}
