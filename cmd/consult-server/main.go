package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/DeepChandMishra/Skincare/internal/config"
	"github.com/DeepChandMishra/Skincare/internal/domain/availability"
	"github.com/DeepChandMishra/Skincare/internal/domain/consultation"
	"github.com/DeepChandMishra/Skincare/internal/domain/directory"
	"github.com/DeepChandMishra/Skincare/internal/platform/attachments"
	"github.com/DeepChandMishra/Skincare/internal/platform/auth"
	"github.com/DeepChandMishra/Skincare/internal/platform/db"
	"github.com/DeepChandMishra/Skincare/internal/platform/events"
	"github.com/DeepChandMishra/Skincare/internal/platform/middleware"
	"github.com/DeepChandMishra/Skincare/internal/platform/telemetry"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "consult-server",
		Short: "Consultation booking API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the consultation API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

func poolConfig(cfg *config.Config) db.PoolConfig {
	return db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		Schema:   cfg.DBSchema,
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, poolConfig(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Str("schema", cfg.DBSchema).Msg("connected to database")

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.RedisURL != "" {
		client, err := events.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer client.Close()
		publisher = events.NewRedisPublisher(client, logger)
		logger.Info().Msg("publishing consultation events to redis")
	} else {
		logger.Warn().Msg("REDIS_URL not set; consultation events are dropped")
	}

	var store attachments.Store
	if cfg.AttachmentDir != "" {
		disk, err := attachments.NewDiskStore(cfg.AttachmentDir)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open attachment store")
		}
		store = disk
	} else {
		if cfg.IsProduction() {
			logger.Warn().Msg("ATTACHMENT_DIR not set; uploads are kept in memory and lost on restart")
		}
		store = attachments.NewMemoryStore()
	}

	e := newServer(cfg, logger, pool, publisher, store)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer wires every route. The pool may be nil in tests that never reach
// the database.
func newServer(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, publisher events.Publisher, store attachments.Store) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))

	metrics := telemetry.New()
	e.Use(metrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost},
		AllowHeaders:  []string{"Authorization", "Content-Type", "If-Match", middleware.RequestIDHeader, auth.ActorIDHeader, auth.ActorRoleHeader},
		ExposeHeaders: []string{"ETag", middleware.RequestIDHeader},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/metrics", metrics.Handler())
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool, pool))
		metrics.GaugeFunc("db_pool_acquired_connections", "Connections currently checked out of the pool.",
			func() float64 { return float64(pool.Stat().AcquiredConns()) })
		metrics.GaugeFunc("db_pool_idle_connections", "Idle connections in the pool.",
			func() float64 { return float64(pool.Stat().IdleConns()) })
	}

	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: []byte(cfg.AuthSigningKey),
	}

	apiV1 := e.Group("/api/v1")
	apiV1.Use(echomw.BodyLimit(fmt.Sprintf("%dM", attachments.MaxFilesPerUpload*attachments.MaxFileSize/(1024*1024)+1)))
	apiV1.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		apiV1.Use(auth.JWTMiddleware(jwtCfg))
	}

	// Directory
	dirSvc := directory.NewService(directory.NewRepoPG(pool))
	directory.NewHandler(dirSvc).RegisterRoutes(apiV1)

	// Availability
	availSvc := availability.NewService(availability.NewRepoPG(pool))
	availability.NewHandler(availSvc).RegisterRoutes(apiV1)

	// Consultations
	consultSvc := consultation.NewService(consultation.NewRepoPG(pool), availSvc, dirSvc, publisher, logger)
	consultSvc.SetMetrics(metrics)
	consultSvc.SetAttachments(store)
	consultation.NewHandler(consultSvc, logger).RegisterRoutes(apiV1)

	// Attachments
	attHandler := attachments.NewHandler(store, logger)
	attHandler.SetReadGrant(consultSvc)
	attHandler.RegisterRoutes(apiV1)

	return e
}
