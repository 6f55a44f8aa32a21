package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/glowforum/imagepipeline/internal/domain"
)

type profileRepository struct {
	db       *dbpg.DB
	strategy retry.Strategy
}

func NewProfileRepository(db *dbpg.DB, strategy retry.Strategy) domain.ProfileRepository {
	return &profileRepository{db: db, strategy: strategy}
}

// ListWithLegacyAvatar pages profiles that still carry a legacy avatar
// object and have not been migrated.
func (r *profileRepository) ListWithLegacyAvatar(ctx context.Context, limit, offset int) ([]*domain.Profile, error) {
	query := `
		SELECT id, legacy_avatar_path, avatar_urls, migrated_at
		FROM profiles
		WHERE legacy_avatar_path IS NOT NULL
		  AND legacy_avatar_path <> ''
		  AND migrated_at IS NULL
		ORDER BY id
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryWithRetry(ctx, r.strategy, query, limit, offset)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to list profiles with legacy avatars")
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*domain.Profile
	for rows.Next() {
		var p domain.Profile
		var legacyPath sql.NullString
		var urls []byte
		var migratedAt sql.NullTime

		if err := rows.Scan(&p.ID, &legacyPath, &urls, &migratedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		if legacyPath.Valid {
			p.LegacyAvatarPath = legacyPath.String
		}
		if len(urls) > 0 {
			if err := json.Unmarshal(urls, &p.AvatarURLs); err != nil {
				return nil, fmt.Errorf("unmarshal avatar urls: %w", err)
			}
		}
		if migratedAt.Valid {
			p.MigratedAt = &migratedAt.Time
		}
		profiles = append(profiles, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return profiles, nil
}

func (r *profileRepository) UpdateAvatar(ctx context.Context, profileID string, urls map[int]string, migratedAt time.Time) error {
	encoded, err := json.Marshal(urls)
	if err != nil {
		return fmt.Errorf("marshal avatar urls: %w", err)
	}

	query := `
		UPDATE profiles
		SET avatar_urls = $2, migrated_at = $3
		WHERE id = $1
	`

	result, err := r.db.ExecWithRetry(ctx, r.strategy, query, profileID, encoded, migratedAt)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("profile_id", profileID).Msg("failed to update profile avatar")
		return fmt.Errorf("update profile avatar: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrRecordNotFound
	}

	return nil
}

type profileMigrationRepository struct {
	db       *dbpg.DB
	strategy retry.Strategy
}

func NewProfileMigrationRepository(db *dbpg.DB, strategy retry.Strategy) domain.ProfileMigrationRepository {
	return &profileMigrationRepository{db: db, strategy: strategy}
}

func (r *profileMigrationRepository) Create(ctx context.Context, rec *domain.ProfileMigrationRecord) error {
	query := `
		INSERT INTO profile_migrations (id, profile_id, outcome, error, migrated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecWithRetry(ctx, r.strategy, query,
		rec.ID,
		rec.ProfileID,
		rec.Outcome,
		nullString(rec.Error),
		rec.MigratedAt,
	)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("profile_id", rec.ProfileID).Msg("failed to record profile migration")
		return fmt.Errorf("create profile migration: %w", err)
	}

	return nil
}
