package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/glowforum/imagepipeline/internal/config"
	httpHandler "github.com/glowforum/imagepipeline/internal/handler/http"
	"github.com/glowforum/imagepipeline/internal/handler/middleware"
	"github.com/glowforum/imagepipeline/internal/helpers"
	infradatabase "github.com/glowforum/imagepipeline/internal/infrastructure/database"
	"github.com/glowforum/imagepipeline/internal/infrastructure/kafka"
	"github.com/glowforum/imagepipeline/internal/infrastructure/processor"
	"github.com/glowforum/imagepipeline/internal/infrastructure/publisher"
	"github.com/glowforum/imagepipeline/internal/infrastructure/storage"
	"github.com/glowforum/imagepipeline/internal/repository/postgres"
	"github.com/glowforum/imagepipeline/internal/retry"
	"github.com/glowforum/imagepipeline/internal/usecase"
)

func main() {
	zlog.Init()
	zlog.Logger.Info().Msg("Starting Image Pipeline Admin API")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load("")
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to load config")
	}

	connectRetries := cfg.Database.ConnectRetries
	connectDelay := cfg.Database.ConnectRetryDelaySec
	if connectRetries == 0 {
		connectRetries = 15
	}
	if connectDelay == 0 {
		connectDelay = 3
	}

	slaves := []string{}
	if strings.TrimSpace(cfg.Database.Slaves) != "" {
		slaves = helpers.SplitAndTrim(cfg.Database.Slaves, ",")
	}
	dbOpts := &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetimeSec) * time.Second,
	}

	database, err := infradatabase.ConnectWithRetries(cfg.Database.DSN, slaves, dbOpts, connectRetries, connectDelay)
	if err != nil || database == nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database after all retries")
	}

	zlog.Logger.Info().Msg("Running database migrations...")
	if err := infradatabase.RunMigrations(database, cfg.Migrations.Path); err != nil {
		zlog.Logger.Warn().Err(err).Msg("Migrations warning (might be already applied)")
	}

	store, err := storage.NewS3Store(&cfg.Storage)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to initialize object store")
	}

	transcoder := processor.NewTranscoder(&cfg.Processing)
	pub := publisher.New(store, &cfg.Storage)

	failedRepo := postgres.NewFailedImageRepository(database, retry.DefaultStrategy)
	metricsRepo := postgres.NewTmpMetricsRepository(database, retry.DefaultStrategy)
	profileRepo := postgres.NewProfileRepository(database, retry.DefaultStrategy)
	migrationRepo := postgres.NewProfileMigrationRepository(database, retry.DefaultStrategy)

	migrationUsecase := usecase.NewMigrationUsecase(profileRepo, migrationRepo, store, transcoder, pub)

	producer := kafka.NewProducer(&cfg.Kafka)
	defer producer.Close()

	engine := ginext.New("admin")
	engine.Use(
		middleware.ErrorHandlerMiddleware(),
		middleware.LoggerMiddleware(),
		middleware.CORSMiddleware(),
	)

	engine.GET("/health", func(c *ginext.Context) {
		c.JSON(http.StatusOK, ginext.H{"status": "ok"})
	})

	adminHandler := httpHandler.NewAdminHandler(
		migrationUsecase,
		failedRepo,
		metricsRepo,
		producer,
		cfg.Storage.S3Bucket,
	)
	adminHandler.RegisterRoutes(engine)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}

	go func() {
		zlog.Logger.Info().Str("addr", cfg.Server.Addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Logger.Fatal().Err(err).Msg("Failed to start admin server")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	} else {
		zlog.Logger.Info().Msg("HTTP server stopped gracefully")
	}

	if database.Master != nil {
		if err := database.Master.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("closing db master failed")
		}
		for i, s := range database.Slaves {
			if s == nil {
				continue
			}
			if err := s.Close(); err != nil {
				zlog.Logger.Error().Err(err).Int("slave_index", i).Msg("closing db slave failed")
			}
		}
	}

	zlog.Logger.Info().Msg("Admin API shutdown complete")
}
