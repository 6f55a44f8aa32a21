package publisher

import (
	"context"
	"errors"
	"testing"

	"github.com/glowforum/imagepipeline/internal/config"
	"github.com/glowforum/imagepipeline/internal/domain"
)

type fakeStore struct {
	saved   map[string][]byte
	options map[string]domain.SaveOptions
	saveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		saved:   make(map[string][]byte),
		options: make(map[string]domain.SaveOptions),
	}
}

func (f *fakeStore) Download(ctx context.Context, path string) ([]byte, error) {
	data, ok := f.saved[path]
	if !ok {
		return nil, domain.ErrObjectNotFound
	}
	return data, nil
}

func (f *fakeStore) GetMetadata(ctx context.Context, path string) (*domain.ObjectMetadata, error) {
	return &domain.ObjectMetadata{}, nil
}

func (f *fakeStore) Save(ctx context.Context, path string, data []byte, opts domain.SaveOptions) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved[path] = data
	f.options[path] = opts
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, path string) error {
	delete(f.saved, path)
	return nil
}

func (f *fakeStore) List(ctx context.Context, prefix string, maxResults int) ([]domain.ObjectInfo, error) {
	return nil, nil
}

func (f *fakeStore) Exists(ctx context.Context, path string) (bool, error) {
	_, ok := f.saved[path]
	return ok, nil
}

func testConfig() *config.StorageConfig {
	return &config.StorageConfig{
		S3Bucket:      "forum-media",
		PublicPrefix:  "public",
		PublicBaseURL: "https://media.glowforum.example",
	}
}

func TestObjectPathScheme(t *testing.T) {
	p := New(newFakeStore(), testConfig())

	tests := []struct {
		mode domain.Mode
		hash string
		size int
		want string
	}{
		{domain.ModePost, "a1b2c3d4e5f60718", 0, "public/posts/a1b2c3d4e5f60718.webp"},
		{domain.ModeAvatar, "a1b2c3d4e5f60718", 256, "public/avatars/a1b2c3d4e5f60718_256.webp"},
		{domain.ModeAvatar, "a1b2c3d4e5f60718", 512, "public/avatars/a1b2c3d4e5f60718_512.webp"},
		{domain.ModeThumbnail, "ffff000011112222", 0, "public/thumbnails/ffff000011112222.webp"},
		{domain.ModePR, "ffff000011112222", 0, "public/pr-images/ffff000011112222.webp"},
	}

	for _, tt := range tests {
		if got := p.ObjectPath(tt.mode, tt.hash, tt.size); got != tt.want {
			t.Errorf("ObjectPath(%s, %s, %d) = %s, want %s", tt.mode, tt.hash, tt.size, got, tt.want)
		}
	}
}

func TestURLResolution(t *testing.T) {
	p := New(newFakeStore(), testConfig())
	got := p.URL("public/posts/a1b2c3d4e5f60718.webp")
	want := "https://media.glowforum.example/forum-media/public/posts/a1b2c3d4e5f60718.webp"
	if got != want {
		t.Fatalf("URL = %s, want %s", got, want)
	}
}

func TestNewTrimsTrailingSlashes(t *testing.T) {
	cfg := testConfig()
	cfg.PublicPrefix = "public/"
	cfg.PublicBaseURL = "https://media.glowforum.example/"
	p := New(newFakeStore(), cfg)

	if got := p.ObjectPath(domain.ModePost, "aa", 0); got != "public/posts/aa.webp" {
		t.Fatalf("ObjectPath = %s", got)
	}
	if got := p.URL("x"); got != "https://media.glowforum.example/forum-media/x" {
		t.Fatalf("URL = %s", got)
	}
}

func TestPublishSetsImmutableCaching(t *testing.T) {
	store := newFakeStore()
	p := New(store, testConfig())

	url, err := p.Publish(context.Background(), []byte("webp bytes"), "a1b2c3d4e5f60718", domain.ModeAvatar, 256)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if url != "https://media.glowforum.example/forum-media/public/avatars/a1b2c3d4e5f60718_256.webp" {
		t.Fatalf("url = %s", url)
	}

	opts, ok := store.options["public/avatars/a1b2c3d4e5f60718_256.webp"]
	if !ok {
		t.Fatal("artifact was not saved at the expected path")
	}
	if opts.ContentType != "image/webp" {
		t.Fatalf("content type = %s, want image/webp", opts.ContentType)
	}
	if opts.CacheControl != "public, max-age=31536000, immutable" {
		t.Fatalf("cache control = %s", opts.CacheControl)
	}
}

func TestPublishWrapsStoreError(t *testing.T) {
	store := newFakeStore()
	store.saveErr = errors.New("connection reset")
	p := New(store, testConfig())

	_, err := p.Publish(context.Background(), []byte("x"), "aa", domain.ModePost, 0)
	if !errors.Is(err, domain.ErrPublishFailed) {
		t.Fatalf("error = %v, want ErrPublishFailed", err)
	}
}
