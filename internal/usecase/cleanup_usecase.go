package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/glowforum/imagepipeline/internal/config"
	"github.com/glowforum/imagepipeline/internal/domain"
	"github.com/glowforum/imagepipeline/internal/retry"
)

const sweepBatchSize = 100

// tmp namespace age buckets for the metrics sample
const (
	recentAge = 6 * time.Hour
)

// CleanupUsecase owns the lifecycle of original uploads after a terminal
// pipeline outcome. On success the original is deleted immediately with
// bounded backoff; on failure it is preserved behind a schedule entry so an
// operator can inspect it before it is purged.
type CleanupUsecase struct {
	store    domain.ObjectStore
	schedule domain.CleanupScheduleRepository
	metrics  domain.TmpMetricsRepository

	tmpPrefix  string
	retention  time.Duration
	retryDelay time.Duration
	backoff    retry.Backoff

	alertVeryOld int
	alertTotal   int

	now func() time.Time
}

func NewCleanupUsecase(
	store domain.ObjectStore,
	schedule domain.CleanupScheduleRepository,
	metrics domain.TmpMetricsRepository,
	tmpPrefix string,
	cfg *config.CleanupConfig,
) *CleanupUsecase {
	return &CleanupUsecase{
		store:      store,
		schedule:   schedule,
		metrics:    metrics,
		tmpPrefix:  tmpPrefix,
		retention:  time.Duration(cfg.RetentionHours) * time.Hour,
		retryDelay: time.Duration(cfg.RetryDelayHours) * time.Hour,
		backoff: retry.Backoff{
			Attempts: cfg.RetryAttempts,
			Base:     2 * time.Second,
			Factor:   2.0,
		},
		alertVeryOld: cfg.AlertVeryOldCount,
		alertTotal:   cfg.AlertTotalCount,
		now:          time.Now,
	}
}

// HandleSuccess deletes the original upload, retrying transient failures
// with exponential backoff. Exhausted retries are logged and the object is
// abandoned in place; it does not re-enter the pipeline.
func (u *CleanupUsecase) HandleSuccess(ctx context.Context, path string) {
	err := u.backoff.Do(ctx, func() error {
		return u.store.Delete(ctx, path)
	})
	if err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("path", path).
			Int("attempts", u.backoff.Attempts).
			Msg("original upload could not be deleted, abandoning in place")
		return
	}
	zlog.Logger.Info().Str("path", path).Msg("original upload deleted")
}

// HandleFailure schedules deferred deletion so the failed upload stays
// available for inspection. If scheduling itself fails, it falls back to an
// immediate best-effort delete so the object is not stranded indefinitely.
// Returns whether a schedule entry was created.
func (u *CleanupUsecase) HandleFailure(ctx context.Context, path string) bool {
	now := u.now()
	entry := &domain.CleanupScheduleEntry{
		ID:          uuid.New().String(),
		FilePath:    path,
		ScheduledAt: now,
		CleanupAt:   now.Add(u.retention),
		Status:      domain.CleanupScheduled,
	}

	if err := u.schedule.Create(ctx, entry); err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("path", path).
			Msg("could not schedule deferred cleanup, falling back to immediate delete")
		if delErr := u.store.Delete(ctx, path); delErr != nil {
			zlog.Logger.Error().Err(delErr).Str("path", path).Msg("fallback delete failed")
		}
		return false
	}
	return true
}

// Sweep reconciles the temporary namespace: processes due schedule entries,
// hard-deletes orphans older than the retention window, and records an
// aggregate metrics sample.
func (u *CleanupUsecase) Sweep(ctx context.Context) error {
	now := u.now()

	entries, err := u.schedule.Due(ctx, now, sweepBatchSize)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := u.store.Delete(ctx, entry.FilePath); err != nil {
			zlog.Logger.Error().Err(err).Str("path", entry.FilePath).Msg("scheduled cleanup deletion failed")
			if mErr := u.schedule.MarkFailed(ctx, entry.ID, err.Error(), now.Add(u.retryDelay)); mErr != nil {
				zlog.Logger.Error().Err(mErr).Str("id", entry.ID).Msg("could not mark cleanup entry failed")
			}
			continue
		}
		if err := u.schedule.MarkCompleted(ctx, entry.ID); err != nil {
			zlog.Logger.Error().Err(err).Str("id", entry.ID).Msg("could not mark cleanup entry completed")
		}
	}

	objects, err := u.store.List(ctx, u.tmpPrefix, 0)
	if err != nil {
		return err
	}

	var sample domain.TmpMetricsSample
	sample.Timestamp = now
	var totalBytes int64

	for _, obj := range objects {
		age := now.Sub(obj.LastModified)
		sample.TmpFileCount++
		totalBytes += obj.Size
		switch {
		case age < recentAge:
			sample.RecentFiles++
		case age < u.retention:
			sample.OldFiles++
		default:
			sample.VeryOldFiles++
			u.sweepOrphan(ctx, obj.Path, now)
		}
	}
	sample.TotalSizeMB = float64(totalBytes) / (1024 * 1024)

	if err := u.metrics.Record(ctx, &sample); err != nil {
		zlog.Logger.Error().Err(err).Msg("could not record tmp metrics sample")
	}

	if sample.VeryOldFiles > u.alertVeryOld {
		zlog.Logger.Error().
			Int("very_old_files", sample.VeryOldFiles).
			Int("threshold", u.alertVeryOld).
			Msg("ALERT: temporary uploads exceeding retention window")
	}
	if sample.TmpFileCount > u.alertTotal {
		zlog.Logger.Error().
			Int("tmp_file_count", sample.TmpFileCount).
			Int("threshold", u.alertTotal).
			Msg("ALERT: temporary upload count over budget")
	}

	zlog.Logger.Info().
		Int("due_entries", len(entries)).
		Int("tmp_files", sample.TmpFileCount).
		Int("very_old", sample.VeryOldFiles).
		Msg("cleanup sweep finished")

	return nil
}

// sweepOrphan hard-deletes an over-age temporary object unless an active
// schedule entry still owns it with a future deadline. Objects whose entry
// was never created (an earlier datastore failure) get deleted here.
func (u *CleanupUsecase) sweepOrphan(ctx context.Context, path string, now time.Time) {
	entry, err := u.schedule.FindByPath(ctx, path)
	if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
		zlog.Logger.Error().Err(err).Str("path", path).Msg("orphan check failed, skipping")
		return
	}
	if entry != nil && entry.Status == domain.CleanupScheduled && entry.CleanupAt.After(now) {
		return
	}

	if err := u.store.Delete(ctx, path); err != nil {
		zlog.Logger.Error().Err(err).Str("path", path).Msg("orphan deletion failed")
		return
	}
	if entry != nil && entry.Status != domain.CleanupCompleted {
		if err := u.schedule.MarkCompleted(ctx, entry.ID); err != nil {
			zlog.Logger.Error().Err(err).Str("id", entry.ID).Msg("could not mark orphan entry completed")
		}
	}
	zlog.Logger.Info().Str("path", path).Msg("orphaned temporary upload deleted")
}
