package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"

	"github.com/glowforum/imagepipeline/internal/config"
	"github.com/glowforum/imagepipeline/internal/helpers"
	infradatabase "github.com/glowforum/imagepipeline/internal/infrastructure/database"
	"github.com/glowforum/imagepipeline/internal/infrastructure/kafka"
	"github.com/glowforum/imagepipeline/internal/infrastructure/processor"
	"github.com/glowforum/imagepipeline/internal/infrastructure/publisher"
	"github.com/glowforum/imagepipeline/internal/infrastructure/storage"
	"github.com/glowforum/imagepipeline/internal/repository/postgres"
	"github.com/glowforum/imagepipeline/internal/retry"
	"github.com/glowforum/imagepipeline/internal/usecase"
	"github.com/glowforum/imagepipeline/internal/worker"
)

func main() {
	zlog.Init()
	zlog.Logger.Info().Msg("Starting Image Pipeline Worker")

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

	processedRepo := postgres.NewProcessedImageRepository(database, retry.DefaultStrategy)
	failedRepo := postgres.NewFailedImageRepository(database, retry.DefaultStrategy)
	scheduleRepo := postgres.NewCleanupScheduleRepository(database, retry.DefaultStrategy)
	metricsRepo := postgres.NewTmpMetricsRepository(database, retry.DefaultStrategy)

	cleanupUsecase := usecase.NewCleanupUsecase(store, scheduleRepo, metricsRepo, cfg.Storage.TmpPrefix, &cfg.Cleanup)
	pipelineUsecase := usecase.NewPipelineUsecase(
		store, processedRepo, failedRepo, cleanupUsecase, transcoder, pub, cfg.Storage.TmpPrefix,
	)
	eventWorker := worker.NewEventWorker(pipelineUsecase)

	consumer, err := kafka.NewConsumer(&cfg.Kafka, eventWorker.HandleUploadEvent)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to initialize Kafka consumer")
	}
	defer consumer.Close()

	go func() {
		if err := consumer.Start(ctx); err != nil {
			zlog.Logger.Error().Err(err).Msg("Kafka consumer error")
		}
	}()

	sweeper := worker.NewSweeper(cleanupUsecase, time.Duration(cfg.Cleanup.SweepIntervalMin)*time.Minute)
	go sweeper.Start(ctx)

	<-ctx.Done()
	zlog.Logger.Info().Msg("Shutdown signal received")

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

	zlog.Logger.Info().Msg("Worker shutdown complete")
}
