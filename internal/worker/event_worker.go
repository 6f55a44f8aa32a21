package worker

import (
	"context"
	"fmt"

	"github.com/wb-go/wbf/zlog"

	"github.com/glowforum/imagepipeline/internal/domain"
	"github.com/glowforum/imagepipeline/internal/dto"
)

// EventWorker bridges the upload-events topic to the pipeline.
type EventWorker struct {
	pipeline domain.PipelineService
}

func NewEventWorker(pipeline domain.PipelineService) *EventWorker {
	return &EventWorker{pipeline: pipeline}
}

// HandleUploadEvent runs the pipeline for one event. The pipeline converts
// every stage failure into a recorded terminal outcome, so the event is
// committed either way; returning an error here would only redeliver an
// upload that already has a failure record.
func (w *EventWorker) HandleUploadEvent(ctx context.Context, event *dto.UploadEventMessage) error {
	if event.Name == "" || event.Bucket == "" {
		return fmt.Errorf("invalid upload event: empty name or bucket")
	}

	result := w.pipeline.Process(ctx, event.ToDomain())

	if result.Success {
		zlog.Logger.Info().
			Str("path", event.Name).
			Str("content_hash", result.ContentHash).
			Str("mode", string(result.Mode)).
			Msg("upload event processed")
	} else {
		zlog.Logger.Warn().
			Str("path", event.Name).
			Str("error", result.Error).
			Msg("upload event ended in recorded failure")
	}

	return nil
}
