package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/glowforum/imagepipeline/internal/domain"
)

type cleanupScheduleRepository struct {
	db       *dbpg.DB
	strategy retry.Strategy
}

func NewCleanupScheduleRepository(db *dbpg.DB, strategy retry.Strategy) domain.CleanupScheduleRepository {
	return &cleanupScheduleRepository{db: db, strategy: strategy}
}

func (r *cleanupScheduleRepository) Create(ctx context.Context, entry *domain.CleanupScheduleEntry) error {
	query := `
		INSERT INTO tmp_cleanup_schedule (
			id, file_path, scheduled_at, cleanup_at, status, error, retry_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecWithRetry(ctx, r.strategy, query,
		entry.ID,
		entry.FilePath,
		entry.ScheduledAt,
		entry.CleanupAt,
		entry.Status,
		nullString(entry.Error),
		entry.RetryAt,
	)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("file_path", entry.FilePath).Msg("failed to create cleanup schedule entry")
		return fmt.Errorf("create cleanup entry: %w", err)
	}

	zlog.Logger.Info().
		Str("file_path", entry.FilePath).
		Time("cleanup_at", entry.CleanupAt).
		Msg("deferred cleanup scheduled")
	return nil
}

// Due returns scheduled entries whose cleanup or retry time has passed.
func (r *cleanupScheduleRepository) Due(ctx context.Context, now time.Time, limit int) ([]*domain.CleanupScheduleEntry, error) {
	query := `
		SELECT id, file_path, scheduled_at, cleanup_at, status, error, retry_at
		FROM tmp_cleanup_schedule
		WHERE (status = 'scheduled' AND cleanup_at <= $1)
		   OR (status = 'failed' AND retry_at IS NOT NULL AND retry_at <= $1)
		ORDER BY cleanup_at ASC
		LIMIT $2
	`

	rows, err := r.db.QueryWithRetry(ctx, r.strategy, query, now, limit)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to query due cleanup entries")
		return nil, fmt.Errorf("due cleanup entries: %w", err)
	}
	defer rows.Close()

	return scanCleanupEntries(rows)
}

func (r *cleanupScheduleRepository) MarkCompleted(ctx context.Context, id string) error {
	query := `
		UPDATE tmp_cleanup_schedule
		SET status = 'completed', error = NULL, retry_at = NULL
		WHERE id = $1
	`

	if _, err := r.db.ExecWithRetry(ctx, r.strategy, query, id); err != nil {
		zlog.Logger.Error().Err(err).Str("id", id).Msg("failed to mark cleanup entry completed")
		return fmt.Errorf("mark cleanup completed: %w", err)
	}
	return nil
}

func (r *cleanupScheduleRepository) MarkFailed(ctx context.Context, id string, reason string, retryAt time.Time) error {
	query := `
		UPDATE tmp_cleanup_schedule
		SET status = 'failed', error = $2, retry_at = $3
		WHERE id = $1
	`

	if _, err := r.db.ExecWithRetry(ctx, r.strategy, query, id, reason, retryAt); err != nil {
		zlog.Logger.Error().Err(err).Str("id", id).Msg("failed to mark cleanup entry failed")
		return fmt.Errorf("mark cleanup failed: %w", err)
	}
	return nil
}

func (r *cleanupScheduleRepository) FindByPath(ctx context.Context, filePath string) (*domain.CleanupScheduleEntry, error) {
	query := `
		SELECT id, file_path, scheduled_at, cleanup_at, status, error, retry_at
		FROM tmp_cleanup_schedule
		WHERE file_path = $1
		ORDER BY scheduled_at DESC
		LIMIT 1
	`

	rows, err := r.db.QueryWithRetry(ctx, r.strategy, query, filePath)
	if err != nil {
		return nil, fmt.Errorf("find cleanup entry: %w", err)
	}
	defer rows.Close()

	entries, err := scanCleanupEntries(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, domain.ErrRecordNotFound
	}
	return entries[0], nil
}

func scanCleanupEntries(rows *sql.Rows) ([]*domain.CleanupScheduleEntry, error) {
	var entries []*domain.CleanupScheduleEntry

	for rows.Next() {
		var entry domain.CleanupScheduleEntry
		var errMsg sql.NullString
		var retryAt sql.NullTime

		if err := rows.Scan(
			&entry.ID,
			&entry.FilePath,
			&entry.ScheduledAt,
			&entry.CleanupAt,
			&entry.Status,
			&errMsg,
			&retryAt,
		); err != nil {
			return nil, fmt.Errorf("scan cleanup entry: %w", err)
		}

		if errMsg.Valid {
			entry.Error = errMsg.String
		}
		if retryAt.Valid {
			entry.RetryAt = &retryAt.Time
		}

		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return entries, nil
}

type tmpMetricsRepository struct {
	db       *dbpg.DB
	strategy retry.Strategy
}

func NewTmpMetricsRepository(db *dbpg.DB, strategy retry.Strategy) domain.TmpMetricsRepository {
	return &tmpMetricsRepository{db: db, strategy: strategy}
}

func (r *tmpMetricsRepository) Record(ctx context.Context, sample *domain.TmpMetricsSample) error {
	query := `
		INSERT INTO tmp_metrics (
			tmp_file_count, recent_files, old_files, very_old_files,
			total_size_mb, sampled_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecWithRetry(ctx, r.strategy, query,
		sample.TmpFileCount,
		sample.RecentFiles,
		sample.OldFiles,
		sample.VeryOldFiles,
		sample.TotalSizeMB,
		sample.Timestamp,
	)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to record tmp metrics sample")
		return fmt.Errorf("record tmp metrics: %w", err)
	}
	return nil
}

func (r *tmpMetricsRepository) Latest(ctx context.Context, limit int) ([]*domain.TmpMetricsSample, error) {
	query := `
		SELECT tmp_file_count, recent_files, old_files, very_old_files,
		       total_size_mb, sampled_at
		FROM tmp_metrics
		ORDER BY sampled_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryWithRetry(ctx, r.strategy, query, limit)
	if err != nil {
		return nil, fmt.Errorf("latest tmp metrics: %w", err)
	}
	defer rows.Close()

	var samples []*domain.TmpMetricsSample
	for rows.Next() {
		var s domain.TmpMetricsSample
		if err := rows.Scan(
			&s.TmpFileCount,
			&s.RecentFiles,
			&s.OldFiles,
			&s.VeryOldFiles,
			&s.TotalSizeMB,
			&s.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan tmp metrics: %w", err)
		}
		samples = append(samples, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return samples, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
