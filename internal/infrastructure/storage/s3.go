package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/zlog"

	"github.com/glowforum/imagepipeline/internal/config"
	"github.com/glowforum/imagepipeline/internal/domain"
)

type s3Store struct {
	client *minio.Client
	bucket string
}

// NewS3Store connects to the object-storage collaborator holding both the
// temporary upload namespace and the public content-addressed namespace.
func NewS3Store(cfg *config.StorageConfig) (domain.ObjectStore, error) {
	if cfg.S3Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}

	creds := credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, "")
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize s3 client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.S3Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check s3 bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.S3Bucket, minio.MakeBucketOptions{Region: cfg.S3Region}); err != nil {
			zlog.Logger.Warn().Err(err).Str("bucket", cfg.S3Bucket).Msg("unable to create bucket, ensure it exists and credentials are correct")
		} else {
			zlog.Logger.Info().Str("bucket", cfg.S3Bucket).Msg("created s3 bucket")
		}
	}

	return &s3Store{
		client: client,
		bucket: cfg.S3Bucket,
	}, nil
}

func (s *s3Store) Download(ctx context.Context, path string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		zlog.Logger.Error().Err(err).Str("object", path).Msg("failed to get object")
		return nil, fmt.Errorf("get object %s: %w", path, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", domain.ErrObjectNotFound, path)
		}
		zlog.Logger.Error().Err(err).Str("object", path).Msg("failed to read object")
		return nil, fmt.Errorf("read object %s: %w", path, err)
	}

	zlog.Logger.Info().Str("path", path).Int("bytes", len(data)).Msg("object downloaded from s3")
	return data, nil
}

func (s *s3Store) GetMetadata(ctx context.Context, path string) (*domain.ObjectMetadata, error) {
	stat, err := s.client.StatObject(ctx, s.bucket, path, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", domain.ErrObjectNotFound, path)
		}
		zlog.Logger.Error().Err(err).Str("object", path).Msg("failed to stat object")
		return nil, fmt.Errorf("stat object %s: %w", path, err)
	}

	custom := make(map[string]string, len(stat.UserMetadata))
	for k, v := range stat.UserMetadata {
		custom[k] = v
	}

	return &domain.ObjectMetadata{
		Size:           stat.Size,
		LastModified:   stat.LastModified,
		ContentType:    stat.ContentType,
		CustomMetadata: custom,
	}, nil
}

func (s *s3Store) Save(ctx context.Context, path string, data []byte, opts domain.SaveOptions) error {
	putOpts := minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
		UserMetadata: opts.CustomMetadata,
	}

	_, err := s.client.PutObject(ctx, s.bucket, path, bytes.NewReader(data), int64(len(data)), putOpts)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("object", path).Msg("failed to put object to s3")
		return fmt.Errorf("put object %s: %w", path, err)
	}

	zlog.Logger.Info().Str("path", path).Int("bytes", len(data)).Msg("object saved to s3")
	return nil
}

func (s *s3Store) Delete(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		zlog.Logger.Error().Err(err).Str("path", path).Msg("failed to delete object from s3")
		return fmt.Errorf("remove object %s: %w", path, err)
	}
	zlog.Logger.Info().Str("path", path).Msg("object deleted from s3")
	return nil
}

func (s *s3Store) List(ctx context.Context, prefix string, maxResults int) ([]domain.ObjectInfo, error) {
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var infos []domain.ObjectInfo
	for obj := range s.client.ListObjects(listCtx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			zlog.Logger.Error().Err(obj.Err).Str("prefix", prefix).Msg("failed to list objects")
			return nil, fmt.Errorf("list objects %s: %w", prefix, obj.Err)
		}
		infos = append(infos, domain.ObjectInfo{
			Path:         obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
		if maxResults > 0 && len(infos) >= maxResults {
			break
		}
	}
	return infos, nil
}

func (s *s3Store) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, path, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("stat object %s: %w", path, err)
	}
	return true, nil
}
