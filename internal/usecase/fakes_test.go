package usecase

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glowforum/imagepipeline/internal/domain"
)

// fakeObjectStore is an in-memory domain.ObjectStore with injectable
// failures and call counters.
type fakeObjectStore struct {
	mu sync.Mutex

	data     map[string][]byte
	meta     map[string]map[string]string
	modTimes map[string]time.Time

	saveErrPrefix   string // Save calls under this prefix fail
	deleteFailures  map[string]int
	failAllDeletes  bool
	listErr         error
	metaErr         error

	saveCalls   []string
	deleteCalls []string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{
		data:           make(map[string][]byte),
		meta:           make(map[string]map[string]string),
		modTimes:       make(map[string]time.Time),
		deleteFailures: make(map[string]int),
	}
}

func (f *fakeObjectStore) put(path string, data []byte, meta map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[path] = data
	if meta != nil {
		f.meta[path] = meta
	}
}

func (f *fakeObjectStore) Download(ctx context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.data[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrObjectNotFound, path)
	}
	return data, nil
}

func (f *fakeObjectStore) GetMetadata(ctx context.Context, path string) (*domain.ObjectMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.metaErr != nil {
		return nil, f.metaErr
	}
	data, ok := f.data[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrObjectNotFound, path)
	}
	custom := make(map[string]string, len(f.meta[path]))
	for k, v := range f.meta[path] {
		custom[k] = v
	}
	return &domain.ObjectMetadata{
		Size:           int64(len(data)),
		LastModified:   f.modTimes[path],
		CustomMetadata: custom,
	}, nil
}

func (f *fakeObjectStore) Save(ctx context.Context, path string, data []byte, opts domain.SaveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls = append(f.saveCalls, path)
	if f.saveErrPrefix != "" && strings.HasPrefix(path, f.saveErrPrefix) {
		return fmt.Errorf("save %s: backend unavailable", path)
	}
	f.data[path] = data
	return nil
}

func (f *fakeObjectStore) Delete(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, path)
	if f.failAllDeletes {
		return fmt.Errorf("delete %s: backend unavailable", path)
	}
	if n := f.deleteFailures[path]; n > 0 {
		f.deleteFailures[path] = n - 1
		return fmt.Errorf("delete %s: transient", path)
	}
	delete(f.data, path)
	return nil
}

func (f *fakeObjectStore) List(ctx context.Context, prefix string, maxResults int) ([]domain.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.ObjectInfo
	for path, data := range f.data {
		if strings.HasPrefix(path, prefix) {
			out = append(out, domain.ObjectInfo{Path: path, Size: int64(len(data)), LastModified: f.modTimes[path]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (f *fakeObjectStore) Exists(ctx context.Context, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[path]
	return ok, nil
}

func (f *fakeObjectStore) deleteCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.deleteCalls {
		if p == path {
			n++
		}
	}
	return n
}

func (f *fakeObjectStore) savesUnder(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.saveCalls {
		if strings.HasPrefix(p, prefix) {
			n++
		}
	}
	return n
}

type fakeProcessedRepo struct {
	mu      sync.Mutex
	records map[string]*domain.ProcessedImageRecord
	upserts int
}

func newFakeProcessedRepo() *fakeProcessedRepo {
	return &fakeProcessedRepo{records: make(map[string]*domain.ProcessedImageRecord)}
}

func (f *fakeProcessedRepo) Upsert(ctx context.Context, rec *domain.ProcessedImageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	f.records[rec.ContentHash] = rec
	return nil
}

func (f *fakeProcessedRepo) FindByHash(ctx context.Context, hash string) (*domain.ProcessedImageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[hash]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return rec, nil
}

type fakeFailedRepo struct {
	mu      sync.Mutex
	records []*domain.FailedImageRecord
}

func (f *fakeFailedRepo) Create(ctx context.Context, rec *domain.FailedImageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeFailedRepo) FindByID(ctx context.Context, id string) (*domain.FailedImageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

func (f *fakeFailedRepo) List(ctx context.Context, limit, offset int) ([]*domain.FailedImageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.FailedImageRecord(nil), f.records...), nil
}

// fakeCleanupService records the terminal-outcome notifications the pipeline
// sends, without any storage side effects.
type fakeCleanupService struct {
	mu            sync.Mutex
	successes     []string
	failures      []string
	scheduleReply bool
}

func (f *fakeCleanupService) HandleSuccess(ctx context.Context, path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.successes = append(f.successes, path)
}

func (f *fakeCleanupService) HandleFailure(ctx context.Context, path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, path)
	return f.scheduleReply
}

func (f *fakeCleanupService) Sweep(ctx context.Context) error { return nil }

type fakeScheduleRepo struct {
	mu        sync.Mutex
	entries   []*domain.CleanupScheduleEntry
	createErr error
	due       []*domain.CleanupScheduleEntry

	completed []string
	failed    map[string]time.Time
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{failed: make(map[string]time.Time)}
}

func (f *fakeScheduleRepo) Create(ctx context.Context, entry *domain.CleanupScheduleEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeScheduleRepo) Due(ctx context.Context, now time.Time, limit int) ([]*domain.CleanupScheduleEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.CleanupScheduleEntry(nil), f.due...), nil
}

func (f *fakeScheduleRepo) MarkCompleted(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, id)
	return nil
}

func (f *fakeScheduleRepo) MarkFailed(ctx context.Context, id, errMsg string, retryAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = retryAt
	return nil
}

func (f *fakeScheduleRepo) FindByPath(ctx context.Context, path string) (*domain.CleanupScheduleEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].FilePath == path {
			return f.entries[i], nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

type fakeMetricsRepo struct {
	mu      sync.Mutex
	samples []*domain.TmpMetricsSample
}

func (f *fakeMetricsRepo) Record(ctx context.Context, sample *domain.TmpMetricsSample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, sample)
	return nil
}

func (f *fakeMetricsRepo) Latest(ctx context.Context, limit int) ([]*domain.TmpMetricsSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]*domain.TmpMetricsSample(nil), f.samples...)
	if limit > 0 && limit < len(out) {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type fakeProfileRepo struct {
	mu       sync.Mutex
	profiles []*domain.Profile
	updated  map[string]map[int]string
}

func newFakeProfileRepo(profiles ...*domain.Profile) *fakeProfileRepo {
	return &fakeProfileRepo{profiles: profiles, updated: make(map[string]map[int]string)}
}

func (f *fakeProfileRepo) ListWithLegacyAvatar(ctx context.Context, limit, offset int) ([]*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Profile
	for _, p := range f.profiles {
		if p.LegacyAvatarPath != "" && p.MigratedAt == nil {
			out = append(out, p)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeProfileRepo) UpdateAvatar(ctx context.Context, profileID string, urls map[int]string, migratedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if p.ID == profileID {
			p.AvatarURLs = urls
			p.MigratedAt = &migratedAt
			f.updated[profileID] = urls
			return nil
		}
	}
	return domain.ErrRecordNotFound
}

type fakeMigrationRepo struct {
	mu      sync.Mutex
	records []*domain.ProfileMigrationRecord
}

func (f *fakeMigrationRepo) Create(ctx context.Context, rec *domain.ProfileMigrationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func encodeTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 7 {
		for y := 0; y < h; y += 5 {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func encodeTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// splitPNG renders the left half black and the right half white.
func splitPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			c := color.RGBA{A: 255}
			if x >= w/2 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// headerOnlyPNG fabricates a PNG signature plus a CRC-valid IHDR declaring
// the given dimensions, so oversized bounds can be tested without the pixels.
func headerOnlyPNG(w, h int) []byte {
	var out bytes.Buffer
	out.Write([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A})

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], uint32(w))
	binary.BigEndian.PutUint32(ihdr[4:8], uint32(h))
	ihdr[8] = 8
	ihdr[9] = 2
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], 13)
	out.Write(length[:])
	out.WriteString("IHDR")
	out.Write(ihdr)

	crc := crc32.NewIEEE()
	crc.Write([]byte("IHDR"))
	crc.Write(ihdr)
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())
	out.Write(sum[:])

	return out.Bytes()
}
