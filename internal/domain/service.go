package domain

import (
	"context"
	"time"
)

// ObjectMetadata is what the pipeline needs from a stat call on the original
// upload: its size and the uploader-supplied custom metadata.
type ObjectMetadata struct {
	Size           int64
	LastModified   time.Time
	ContentType    string
	CustomMetadata map[string]string
}

// ObjectInfo is one entry of a namespace listing.
type ObjectInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// SaveOptions carries the headers set on a published object.
type SaveOptions struct {
	ContentType    string
	CacheControl   string
	CustomMetadata map[string]string
}

// ObjectStore is the object-storage collaborator.
type ObjectStore interface {
	Download(ctx context.Context, path string) ([]byte, error)
	GetMetadata(ctx context.Context, path string) (*ObjectMetadata, error)
	Save(ctx context.Context, path string, data []byte, opts SaveOptions) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, prefix string, maxResults int) ([]ObjectInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// PipelineService runs one upload through validate, crop, transcode,
// publish, record and cleanup. It always returns a result, never an error.
type PipelineService interface {
	Process(ctx context.Context, event UploadEvent) ProcessingResult
}

// CleanupService owns the lifecycle of original uploads after a terminal
// pipeline outcome, plus the periodic reconciliation sweep.
type CleanupService interface {
	HandleSuccess(ctx context.Context, path string)
	HandleFailure(ctx context.Context, path string) bool
	Sweep(ctx context.Context) error
}

// EventPublisher re-enqueues an upload event, used by the admin surface to
// reprocess a failed upload.
type EventPublisher interface {
	PublishUploadEvent(ctx context.Context, event UploadEvent) error
	Close() error
}
