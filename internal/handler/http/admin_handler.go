package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/glowforum/imagepipeline/internal/domain"
	"github.com/glowforum/imagepipeline/internal/dto"
	"github.com/glowforum/imagepipeline/internal/usecase"
)

// AdminHandler exposes the operator surface: the legacy avatar migration,
// failure inspection, reprocessing and tmp-namespace metrics.
type AdminHandler struct {
	migration *usecase.MigrationUsecase
	failed    domain.FailedImageRepository
	metrics   domain.TmpMetricsRepository
	events    domain.EventPublisher
	bucket    string
}

func NewAdminHandler(
	migration *usecase.MigrationUsecase,
	failed domain.FailedImageRepository,
	metrics domain.TmpMetricsRepository,
	events domain.EventPublisher,
	bucket string,
) *AdminHandler {
	return &AdminHandler{
		migration: migration,
		failed:    failed,
		metrics:   metrics,
		events:    events,
		bucket:    bucket,
	}
}

func (h *AdminHandler) RegisterRoutes(engine *ginext.Engine) {
	engine.POST("/admin/migrations/avatars", h.MigrateAvatars)
	engine.GET("/admin/failed", h.ListFailed)
	engine.POST("/admin/failed/:id/reprocess", h.ReprocessFailed)
	engine.GET("/admin/tmp-metrics", h.TmpMetrics)
}

// MigrateAvatars POST /admin/migrations/avatars
func (h *AdminHandler) MigrateAvatars(c *ginext.Context) {
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	summary, err := h.migration.MigrateAvatars(c.Request.Context(), limit, offset)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("avatar migration batch failed")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "migration_failed",
			Message: "Could not load the profile page to migrate",
		})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// ListFailed GET /admin/failed
func (h *AdminHandler) ListFailed(c *ginext.Context) {
	limit := queryInt(c, "limit", 20)
	if limit > 100 {
		limit = 100
	}
	offset := queryInt(c, "offset", 0)

	records, err := h.failed.List(c.Request.Context(), limit, offset)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to list failure records")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "list_failed",
			Message: "Could not list failure records",
		})
		return
	}

	c.JSON(http.StatusOK, dto.MapFailedListToResponse(records, limit, offset))
}

// ReprocessFailed POST /admin/failed/:id/reprocess
func (h *AdminHandler) ReprocessFailed(c *ginext.Context) {
	id := c.Param("id")

	record, err := h.failed.FindByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{
				Error:   "not_found",
				Message: "No failure record with that id",
			})
			return
		}
		zlog.Logger.Error().Err(err).Str("id", id).Msg("failed to load failure record")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "lookup_failed",
			Message: "Could not load failure record",
		})
		return
	}

	event := domain.UploadEvent{Path: record.OriginalPath, Bucket: h.bucket}
	if err := h.events.PublishUploadEvent(c.Request.Context(), event); err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "publish_failed",
			Message: "Could not re-enqueue the upload event",
		})
		return
	}

	c.JSON(http.StatusAccepted, ginext.H{
		"status": "requeued",
		"path":   record.OriginalPath,
	})
}

// TmpMetrics GET /admin/tmp-metrics
func (h *AdminHandler) TmpMetrics(c *ginext.Context) {
	limit := queryInt(c, "limit", 24)

	samples, err := h.metrics.Latest(c.Request.Context(), limit)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to load tmp metrics")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "metrics_failed",
			Message: "Could not load tmp metrics",
		})
		return
	}

	c.JSON(http.StatusOK, dto.TmpMetricsResponse{Samples: samples})
}

func queryInt(c *ginext.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
