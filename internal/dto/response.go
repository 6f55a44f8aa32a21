package dto

import (
	"time"

	"github.com/glowforum/imagepipeline/internal/domain"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

type FailedImageResponse struct {
	ID               string    `json:"id"`
	OriginalPath     string    `json:"original_path"`
	Error            string    `json:"error"`
	FailedAt         time.Time `json:"failed_at"`
	CleanupScheduled bool      `json:"cleanup_scheduled"`
}

type FailedImageListResponse struct {
	Failures []*FailedImageResponse `json:"failures"`
	Total    int                    `json:"total"`
	Limit    int                    `json:"limit"`
	Offset   int                    `json:"offset"`
}

func MapFailedToResponse(rec *domain.FailedImageRecord) *FailedImageResponse {
	if rec == nil {
		return nil
	}
	return &FailedImageResponse{
		ID:               rec.ID,
		OriginalPath:     rec.OriginalPath,
		Error:            rec.Error,
		FailedAt:         rec.FailedAt,
		CleanupScheduled: rec.CleanupScheduled,
	}
}

func MapFailedListToResponse(records []*domain.FailedImageRecord, limit, offset int) *FailedImageListResponse {
	responses := make([]*FailedImageResponse, 0, len(records))
	for _, rec := range records {
		responses = append(responses, MapFailedToResponse(rec))
	}
	return &FailedImageListResponse{
		Failures: responses,
		Total:    len(responses),
		Limit:    limit,
		Offset:   offset,
	}
}

type TmpMetricsResponse struct {
	Samples []*domain.TmpMetricsSample `json:"samples"`
}
