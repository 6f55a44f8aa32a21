package usecase

import (
	"context"
	"image"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/glowforum/imagepipeline/internal/domain"
	"github.com/glowforum/imagepipeline/internal/infrastructure/processor"
	"github.com/glowforum/imagepipeline/internal/infrastructure/publisher"
)

// PipelineUsecase runs one upload through the full ingestion pipeline:
// validate, hash, plan crops, transcode, publish, record, clean up. Every
// invocation is stateless and independent; concurrent uploads share nothing.
type PipelineUsecase struct {
	store      domain.ObjectStore
	processed  domain.ProcessedImageRepository
	failed     domain.FailedImageRepository
	cleanup    domain.CleanupService
	transcoder *processor.Transcoder
	publisher  *publisher.Publisher
	tmpPrefix  string
	now        func() time.Time
}

func NewPipelineUsecase(
	store domain.ObjectStore,
	processed domain.ProcessedImageRepository,
	failed domain.FailedImageRepository,
	cleanup domain.CleanupService,
	transcoder *processor.Transcoder,
	pub *publisher.Publisher,
	tmpPrefix string,
) *PipelineUsecase {
	return &PipelineUsecase{
		store:      store,
		processed:  processed,
		failed:     failed,
		cleanup:    cleanup,
		transcoder: transcoder,
		publisher:  pub,
		tmpPrefix:  tmpPrefix,
		now:        time.Now,
	}
}

// Process always returns a terminal result; it never propagates an error,
// since the upload trigger has no caller to retry the delivery.
func (u *PipelineUsecase) Process(ctx context.Context, event domain.UploadEvent) domain.ProcessingResult {
	if !strings.HasPrefix(event.Path, u.tmpPrefix) {
		zlog.Logger.Debug().Str("path", event.Path).Msg("event outside temporary upload prefix, ignoring")
		return domain.ProcessingResult{Success: true}
	}

	filename := path.Base(event.Path)
	mode := domain.ModeFromFilename(filename)

	var hint *domain.CropHint
	meta, err := u.store.GetMetadata(ctx, event.Path)
	if err != nil {
		return u.fail(ctx, event.Path, mode, err)
	}
	if explicit := metaValue(meta.CustomMetadata, "mode"); explicit != "" {
		mode = domain.ParseMode(explicit)
	}
	hint = domain.ParseCropHint(metaValue(meta.CustomMetadata, "cropMeta"))

	zlog.Logger.Info().
		Str("path", event.Path).
		Str("mode", string(mode)).
		Bool("has_crop_hint", hint != nil).
		Msg("processing upload")

	data, err := u.store.Download(ctx, event.Path)
	if err != nil {
		return u.fail(ctx, event.Path, mode, err)
	}

	if err := processor.ValidateBytes(data); err != nil {
		return u.fail(ctx, event.Path, mode, err)
	}

	width, height, frames, err := processor.DecodeBounds(data)
	if err != nil {
		return u.fail(ctx, event.Path, mode, err)
	}
	if err := processor.ValidateBounds(width, height, frames); err != nil {
		return u.fail(ctx, event.Path, mode, err)
	}

	contentHash := processor.ContentHash(data)

	src, err := u.transcoder.Decode(data)
	if err != nil {
		return u.fail(ctx, event.Path, mode, err)
	}

	// plan against the oriented image, not the raw config dimensions
	plans := processor.PlanCrops(mode, src.Bounds().Dx(), src.Bounds().Dy(), hint)

	outputs, err := u.produce(ctx, src, plans, contentHash, mode)
	if err != nil {
		return u.fail(ctx, event.Path, mode, err)
	}

	urls := make(map[int]string, len(outputs))
	publicURLs := make([]string, 0, len(outputs))
	primary := outputs[0]
	for _, out := range outputs {
		sizeKey := out.plan.Size
		if sizeKey == 0 {
			sizeKey = out.meta.Width
		}
		urls[sizeKey] = out.url
		publicURLs = append(publicURLs, out.url)
		if out.meta.Width > primary.meta.Width {
			primary = out
		}
	}

	record := &domain.ProcessedImageRecord{
		ContentHash:  contentHash,
		OriginalPath: event.Path,
		Mode:         mode,
		Metadata:     primary.meta,
		URLs:         urls,
		ProcessedAt:  u.now(),
		Status:       "processed",
	}
	if err := u.processed.Upsert(ctx, record); err != nil {
		return u.fail(ctx, event.Path, mode, err)
	}

	u.cleanup.HandleSuccess(ctx, event.Path)

	result := domain.ProcessingResult{
		Success:     true,
		ContentHash: contentHash,
		Mode:        mode,
		PublicURL:   primary.url,
		PublicURLs:  publicURLs,
		SizeToURL:   urls,
		OutputMeta:  &primary.meta,
	}

	zlog.Logger.Info().
		Str("path", event.Path).
		Str("content_hash", contentHash).
		Str("mode", string(mode)).
		Int("outputs", len(outputs)).
		Msg("upload processed successfully")

	return result
}

type pipelineOutput struct {
	plan processor.CropPlan
	url  string
	meta domain.OutputMeta
}

// produce transcodes and publishes every planned output. Multi-size modes
// fan out one goroutine per size; each size is a pure function of the same
// decoded source.
func (u *PipelineUsecase) produce(ctx context.Context, src image.Image, plans []processor.CropPlan, contentHash string, mode domain.Mode) ([]pipelineOutput, error) {
	if len(plans) == 1 {
		out, err := u.produceOne(ctx, src, plans[0], contentHash, mode)
		if err != nil {
			return nil, err
		}
		return []pipelineOutput{out}, nil
	}

	outputs := make([]pipelineOutput, len(plans))
	errs := make([]error, len(plans))

	var wg sync.WaitGroup
	for i, plan := range plans {
		wg.Add(1)
		go func(i int, plan processor.CropPlan) {
			defer wg.Done()
			outputs[i], errs[i] = u.produceOne(ctx, src, plan, contentHash, mode)
		}(i, plan)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return outputs, nil
}

func (u *PipelineUsecase) produceOne(ctx context.Context, src image.Image, plan processor.CropPlan, contentHash string, mode domain.Mode) (pipelineOutput, error) {
	encoded, err := u.transcoder.Transcode(src, plan)
	if err != nil {
		return pipelineOutput{}, err
	}

	url, err := u.publisher.Publish(ctx, encoded, contentHash, mode, plan.Size)
	if err != nil {
		return pipelineOutput{}, err
	}

	return pipelineOutput{
		plan: plan,
		url:  url,
		meta: domain.OutputMeta{
			Width:    plan.OutWidth,
			Height:   plan.OutHeight,
			ByteSize: len(encoded),
			Format:   processor.OutputFormat,
		},
	}, nil
}

func metaValue(meta map[string]string, key string) string {
	if v, ok := meta[key]; ok {
		return v
	}
	for k, v := range meta {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func (u *PipelineUsecase) fail(ctx context.Context, originalPath string, mode domain.Mode, cause error) domain.ProcessingResult {
	zlog.Logger.Error().
		Err(cause).
		Str("path", originalPath).
		Str("mode", string(mode)).
		Msg("pipeline failed")

	scheduled := u.cleanup.HandleFailure(ctx, originalPath)

	record := &domain.FailedImageRecord{
		ID:               uuid.New().String(),
		OriginalPath:     originalPath,
		Error:            cause.Error(),
		FailedAt:         u.now(),
		Status:           "failed",
		CleanupScheduled: scheduled,
	}
	if err := u.failed.Create(ctx, record); err != nil {
		zlog.Logger.Error().Err(err).Str("path", originalPath).Msg("failed to persist failure record")
	}

	return domain.ProcessingResult{
		Success: false,
		Mode:    mode,
		Error:   cause.Error(),
	}
}
