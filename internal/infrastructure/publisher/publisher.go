package publisher

import (
	"context"
	"fmt"
	"strings"

	"github.com/wb-go/wbf/zlog"

	"github.com/glowforum/imagepipeline/internal/config"
	"github.com/glowforum/imagepipeline/internal/domain"
	"github.com/glowforum/imagepipeline/internal/infrastructure/processor"
)

// cacheControl is safe to pin hard: paths are content-addressed, so the
// bytes at a given path never change.
const cacheControl = "public, max-age=31536000, immutable"

// Publisher writes transcoded artifacts to the public content-addressed
// namespace and hands back stable retrieval URLs.
type Publisher struct {
	store         domain.ObjectStore
	publicPrefix  string
	publicBaseURL string
	bucket        string
}

func New(store domain.ObjectStore, cfg *config.StorageConfig) *Publisher {
	return &Publisher{
		store:         store,
		publicPrefix:  strings.TrimSuffix(cfg.PublicPrefix, "/"),
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		bucket:        cfg.S3Bucket,
	}
}

// ObjectPath builds the bit-exact output path:
// public/<namespace>/<contentHash>[_<size>].webp. Size 0 means a
// single-size mode with no size suffix.
func (p *Publisher) ObjectPath(mode domain.Mode, contentHash string, size int) string {
	name := contentHash
	if size > 0 {
		name = fmt.Sprintf("%s_%d", contentHash, size)
	}
	return fmt.Sprintf("%s/%s/%s.%s", p.publicPrefix, mode.Config().Namespace, name, processor.OutputFormat)
}

// URL resolves an object path through the storage provider's public media
// endpoint.
func (p *Publisher) URL(objectPath string) string {
	return fmt.Sprintf("%s/%s/%s", p.publicBaseURL, p.bucket, objectPath)
}

// Publish writes the artifact and returns its retrieval URL. The path is a
// pure function of (mode, hash, size), so republishing byte-identical
// content just overwrites identical bytes.
func (p *Publisher) Publish(ctx context.Context, data []byte, contentHash string, mode domain.Mode, size int) (string, error) {
	objectPath := p.ObjectPath(mode, contentHash, size)

	err := p.store.Save(ctx, objectPath, data, domain.SaveOptions{
		ContentType:  "image/webp",
		CacheControl: cacheControl,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrPublishFailed, err)
	}

	url := p.URL(objectPath)
	zlog.Logger.Info().
		Str("path", objectPath).
		Str("mode", string(mode)).
		Int("bytes", len(data)).
		Msg("artifact published")

	return url, nil
}
