package domain

import (
	"context"
	"time"
)

type ProcessedImageRepository interface {
	Upsert(ctx context.Context, rec *ProcessedImageRecord) error
	FindByHash(ctx context.Context, contentHash string) (*ProcessedImageRecord, error)
}

type FailedImageRepository interface {
	Create(ctx context.Context, rec *FailedImageRecord) error
	FindByID(ctx context.Context, id string) (*FailedImageRecord, error)
	List(ctx context.Context, limit, offset int) ([]*FailedImageRecord, error)
}

type CleanupScheduleRepository interface {
	Create(ctx context.Context, entry *CleanupScheduleEntry) error
	Due(ctx context.Context, now time.Time, limit int) ([]*CleanupScheduleEntry, error)
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason string, retryAt time.Time) error
	FindByPath(ctx context.Context, filePath string) (*CleanupScheduleEntry, error)
}

type TmpMetricsRepository interface {
	Record(ctx context.Context, sample *TmpMetricsSample) error
	Latest(ctx context.Context, limit int) ([]*TmpMetricsSample, error)
}

type ProfileRepository interface {
	ListWithLegacyAvatar(ctx context.Context, limit, offset int) ([]*Profile, error)
	UpdateAvatar(ctx context.Context, profileID string, urls map[int]string, migratedAt time.Time) error
}

type ProfileMigrationRepository interface {
	Create(ctx context.Context, rec *ProfileMigrationRecord) error
}
