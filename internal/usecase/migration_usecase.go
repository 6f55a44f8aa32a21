package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/glowforum/imagepipeline/internal/domain"
	"github.com/glowforum/imagepipeline/internal/infrastructure/processor"
	"github.com/glowforum/imagepipeline/internal/infrastructure/publisher"
)

// MigrationItemResult is the per-profile outcome of a migration batch.
type MigrationItemResult struct {
	ProfileID string                  `json:"profile_id"`
	Outcome   domain.MigrationOutcome `json:"outcome"`
	Error     string                  `json:"error,omitempty"`
	URLs      map[int]string          `json:"urls,omitempty"`
}

// MigrationSummary is the structured result of one administrative batch
// call; individual failures never fail the whole batch.
type MigrationSummary struct {
	Total     int                   `json:"total"`
	Succeeded int                   `json:"succeeded"`
	Skipped   int                   `json:"skipped"`
	Failed    int                   `json:"failed"`
	Items     []MigrationItemResult `json:"items"`
}

// MigrationUsecase re-encodes legacy profile avatars through the same crop
// planner and transcoder the live pipeline uses. Profiles are processed
// sequentially; the derived sizes of a single avatar upload concurrently.
type MigrationUsecase struct {
	profiles   domain.ProfileRepository
	migrations domain.ProfileMigrationRepository
	store      domain.ObjectStore
	transcoder *processor.Transcoder
	publisher  *publisher.Publisher
	now        func() time.Time
}

func NewMigrationUsecase(
	profiles domain.ProfileRepository,
	migrations domain.ProfileMigrationRepository,
	store domain.ObjectStore,
	transcoder *processor.Transcoder,
	pub *publisher.Publisher,
) *MigrationUsecase {
	return &MigrationUsecase{
		profiles:   profiles,
		migrations: migrations,
		store:      store,
		transcoder: transcoder,
		publisher:  pub,
		now:        time.Now,
	}
}

// MigrateAvatars processes one page of profiles. Only the page query can
// fail the call; everything else lands in the per-item results.
func (u *MigrationUsecase) MigrateAvatars(ctx context.Context, limit, offset int) (*MigrationSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	page, err := u.profiles.ListWithLegacyAvatar(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	summary := &MigrationSummary{Total: len(page)}
	for _, profile := range page {
		item := u.migrateOne(ctx, profile)
		summary.Items = append(summary.Items, item)
		switch item.Outcome {
		case domain.MigrationSuccess:
			summary.Succeeded++
		case domain.MigrationSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}

	zlog.Logger.Info().
		Int("total", summary.Total).
		Int("succeeded", summary.Succeeded).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("avatar migration batch finished")

	return summary, nil
}

func (u *MigrationUsecase) migrateOne(ctx context.Context, profile *domain.Profile) MigrationItemResult {
	item := MigrationItemResult{ProfileID: profile.ID}

	if profile.LegacyAvatarPath == "" || profile.MigratedAt != nil {
		item.Outcome = domain.MigrationSkipped
		u.record(ctx, profile.ID, domain.MigrationSkipped, "")
		return item
	}

	data, err := u.store.Download(ctx, profile.LegacyAvatarPath)
	if err != nil {
		if errors.Is(err, domain.ErrObjectNotFound) {
			item.Outcome = domain.MigrationSkipped
			item.Error = "legacy avatar object missing"
			u.record(ctx, profile.ID, domain.MigrationSkipped, item.Error)
			return item
		}
		return u.fail(ctx, item, err)
	}

	if err := processor.ValidateBytes(data); err != nil {
		return u.fail(ctx, item, err)
	}
	width, height, frames, err := processor.DecodeBounds(data)
	if err != nil {
		return u.fail(ctx, item, err)
	}
	if err := processor.ValidateBounds(width, height, frames); err != nil {
		return u.fail(ctx, item, err)
	}

	contentHash := processor.ContentHash(data)
	src, err := u.transcoder.Decode(data)
	if err != nil {
		return u.fail(ctx, item, err)
	}

	plans := processor.PlanCrops(domain.ModeAvatar, src.Bounds().Dx(), src.Bounds().Dy(), nil)

	// bounded fan-out: exactly one goroutine per configured size
	urls := make([]string, len(plans))
	errs := make([]error, len(plans))
	var wg sync.WaitGroup
	for i, plan := range plans {
		wg.Add(1)
		go func(i int, plan processor.CropPlan) {
			defer wg.Done()
			encoded, err := u.transcoder.Transcode(src, plan)
			if err != nil {
				errs[i] = err
				return
			}
			urls[i], errs[i] = u.publisher.Publish(ctx, encoded, contentHash, domain.ModeAvatar, plan.Size)
		}(i, plan)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return u.fail(ctx, item, err)
		}
	}

	sizeToURL := make(map[int]string, len(plans))
	for i, plan := range plans {
		sizeToURL[plan.Size] = urls[i]
	}

	migratedAt := u.now()
	if err := u.profiles.UpdateAvatar(ctx, profile.ID, sizeToURL, migratedAt); err != nil {
		return u.fail(ctx, item, err)
	}

	item.Outcome = domain.MigrationSuccess
	item.URLs = sizeToURL
	u.record(ctx, profile.ID, domain.MigrationSuccess, "")

	zlog.Logger.Info().
		Str("profile_id", profile.ID).
		Str("content_hash", contentHash).
		Msg("profile avatar migrated")

	return item
}

func (u *MigrationUsecase) fail(ctx context.Context, item MigrationItemResult, cause error) MigrationItemResult {
	zlog.Logger.Error().Err(cause).Str("profile_id", item.ProfileID).Msg("avatar migration failed")
	item.Outcome = domain.MigrationError
	item.Error = cause.Error()
	u.record(ctx, item.ProfileID, domain.MigrationError, item.Error)
	return item
}

func (u *MigrationUsecase) record(ctx context.Context, profileID string, outcome domain.MigrationOutcome, reason string) {
	rec := &domain.ProfileMigrationRecord{
		ID:         uuid.New().String(),
		ProfileID:  profileID,
		Outcome:    outcome,
		Error:      reason,
		MigratedAt: u.now(),
	}
	if err := u.migrations.Create(ctx, rec); err != nil {
		zlog.Logger.Error().Err(err).Str("profile_id", profileID).Msg("could not persist migration record")
	}
}
