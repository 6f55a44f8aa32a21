package dto

import "github.com/glowforum/imagepipeline/internal/domain"

// UploadEventMessage is the bucket-notification payload consumed from the
// upload-events topic.
type UploadEventMessage struct {
	Name   string `json:"name"`
	Bucket string `json:"bucket"`
}

func (m *UploadEventMessage) ToDomain() domain.UploadEvent {
	return domain.UploadEvent{
		Path:   m.Name,
		Bucket: m.Bucket,
	}
}

func FromDomain(event domain.UploadEvent) UploadEventMessage {
	return UploadEventMessage{
		Name:   event.Path,
		Bucket: event.Bucket,
	}
}
