package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/glowforum/imagepipeline/internal/domain"
)

type processedImageRepository struct {
	db       *dbpg.DB
	strategy retry.Strategy
}

func NewProcessedImageRepository(db *dbpg.DB, strategy retry.Strategy) domain.ProcessedImageRepository {
	return &processedImageRepository{db: db, strategy: strategy}
}

// Upsert overwrites on conflict. Safe because every field is recomputed
// identically from the same input bytes.
func (r *processedImageRepository) Upsert(ctx context.Context, rec *domain.ProcessedImageRecord) error {
	urls, err := json.Marshal(rec.URLs)
	if err != nil {
		return fmt.Errorf("marshal urls: %w", err)
	}

	query := `
		INSERT INTO processed_images (
			content_hash, original_path, mode, width, height, byte_size,
			format, urls, processed_at, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (content_hash) DO UPDATE SET
			original_path = EXCLUDED.original_path,
			mode = EXCLUDED.mode,
			width = EXCLUDED.width,
			height = EXCLUDED.height,
			byte_size = EXCLUDED.byte_size,
			format = EXCLUDED.format,
			urls = EXCLUDED.urls,
			processed_at = EXCLUDED.processed_at,
			status = EXCLUDED.status
	`

	_, err = r.db.ExecWithRetry(ctx, r.strategy, query,
		rec.ContentHash,
		rec.OriginalPath,
		rec.Mode,
		rec.Metadata.Width,
		rec.Metadata.Height,
		rec.Metadata.ByteSize,
		rec.Metadata.Format,
		urls,
		rec.ProcessedAt,
		rec.Status,
	)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("content_hash", rec.ContentHash).Msg("failed to upsert processed image")
		return fmt.Errorf("upsert processed image: %w", err)
	}

	zlog.Logger.Info().Str("content_hash", rec.ContentHash).Msg("processed image recorded")
	return nil
}

func (r *processedImageRepository) FindByHash(ctx context.Context, contentHash string) (*domain.ProcessedImageRecord, error) {
	query := `
		SELECT content_hash, original_path, mode, width, height, byte_size,
		       format, urls, processed_at, status
		FROM processed_images
		WHERE content_hash = $1
	`

	var rec domain.ProcessedImageRecord
	var urls []byte

	row := r.db.Master.QueryRowContext(ctx, query, contentHash)
	err := row.Scan(
		&rec.ContentHash,
		&rec.OriginalPath,
		&rec.Mode,
		&rec.Metadata.Width,
		&rec.Metadata.Height,
		&rec.Metadata.ByteSize,
		&rec.Metadata.Format,
		&urls,
		&rec.ProcessedAt,
		&rec.Status,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		zlog.Logger.Error().Err(err).Str("content_hash", contentHash).Msg("failed to find processed image")
		return nil, fmt.Errorf("find processed image: %w", err)
	}

	if err := json.Unmarshal(urls, &rec.URLs); err != nil {
		return nil, fmt.Errorf("unmarshal urls: %w", err)
	}

	return &rec, nil
}

type failedImageRepository struct {
	db       *dbpg.DB
	strategy retry.Strategy
}

func NewFailedImageRepository(db *dbpg.DB, strategy retry.Strategy) domain.FailedImageRepository {
	return &failedImageRepository{db: db, strategy: strategy}
}

func (r *failedImageRepository) Create(ctx context.Context, rec *domain.FailedImageRecord) error {
	query := `
		INSERT INTO failed_images (
			id, original_path, error, failed_at, status, cleanup_scheduled
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecWithRetry(ctx, r.strategy, query,
		rec.ID,
		rec.OriginalPath,
		rec.Error,
		rec.FailedAt,
		rec.Status,
		rec.CleanupScheduled,
	)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("id", rec.ID).Msg("failed to create failure record")
		return fmt.Errorf("create failed image: %w", err)
	}

	zlog.Logger.Info().Str("id", rec.ID).Str("original_path", rec.OriginalPath).Msg("failure recorded")
	return nil
}

func (r *failedImageRepository) FindByID(ctx context.Context, id string) (*domain.FailedImageRecord, error) {
	query := `
		SELECT id, original_path, error, failed_at, status, cleanup_scheduled
		FROM failed_images
		WHERE id = $1
	`

	var rec domain.FailedImageRecord
	row := r.db.Master.QueryRowContext(ctx, query, id)
	err := row.Scan(
		&rec.ID,
		&rec.OriginalPath,
		&rec.Error,
		&rec.FailedAt,
		&rec.Status,
		&rec.CleanupScheduled,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find failed image: %w", err)
	}

	return &rec, nil
}

func (r *failedImageRepository) List(ctx context.Context, limit, offset int) ([]*domain.FailedImageRecord, error) {
	query := `
		SELECT id, original_path, error, failed_at, status, cleanup_scheduled
		FROM failed_images
		ORDER BY failed_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryWithRetry(ctx, r.strategy, query, limit, offset)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to list failure records")
		return nil, fmt.Errorf("list failed images: %w", err)
	}
	defer rows.Close()

	var records []*domain.FailedImageRecord
	for rows.Next() {
		var rec domain.FailedImageRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.OriginalPath,
			&rec.Error,
			&rec.FailedAt,
			&rec.Status,
			&rec.CleanupScheduled,
		); err != nil {
			return nil, fmt.Errorf("scan failed image: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return records, nil
}
