package domain

import "time"

// UploadEvent is the upload-completion notification the pipeline runs on.
// Ephemeral; custom metadata is fetched from the object store, not carried
// in the event itself.
type UploadEvent struct {
	Path   string `json:"name"`
	Bucket string `json:"bucket"`
}

// OutputMeta describes one published artifact.
type OutputMeta struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	ByteSize int    `json:"byte_size"`
	Format   string `json:"format"`
}

// ProcessingResult is the terminal outcome of one pipeline invocation. It is
// always returned to the trigger, never thrown.
type ProcessingResult struct {
	Success     bool           `json:"success"`
	ContentHash string         `json:"content_hash,omitempty"`
	Mode        Mode           `json:"mode,omitempty"`
	PublicURL   string         `json:"public_url,omitempty"`
	PublicURLs  []string       `json:"public_urls,omitempty"`
	SizeToURL   map[int]string `json:"size_to_url,omitempty"`
	OutputMeta  *OutputMeta    `json:"output_meta,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// ProcessedImageRecord is keyed by content hash. Reprocessing the same bytes
// overwrites it with identical values, so upsert semantics are safe.
type ProcessedImageRecord struct {
	ContentHash  string         `json:"content_hash"`
	OriginalPath string         `json:"original_path"`
	Mode         Mode           `json:"mode"`
	Metadata     OutputMeta     `json:"metadata"`
	URLs         map[int]string `json:"urls"`
	ProcessedAt  time.Time      `json:"processed_at"`
	Status       string         `json:"status"`
}

// FailedImageRecord is keyed by a fresh opaque id. Repeated failures of the
// same upload each produce a distinct audit row.
type FailedImageRecord struct {
	ID               string    `json:"id"`
	OriginalPath     string    `json:"original_path"`
	Error            string    `json:"error"`
	FailedAt         time.Time `json:"failed_at"`
	Status           string    `json:"status"`
	CleanupScheduled bool      `json:"cleanup_scheduled"`
}

type CleanupStatus string

const (
	CleanupScheduled CleanupStatus = "scheduled"
	CleanupCompleted CleanupStatus = "completed"
	CleanupFailed    CleanupStatus = "failed"
)

// CleanupScheduleEntry tracks a temporary upload that must be deleted later.
type CleanupScheduleEntry struct {
	ID          string        `json:"id"`
	FilePath    string        `json:"file_path"`
	ScheduledAt time.Time     `json:"scheduled_at"`
	CleanupAt   time.Time     `json:"cleanup_at"`
	Status      CleanupStatus `json:"status"`
	Error       string        `json:"error,omitempty"`
	RetryAt     *time.Time    `json:"retry_at,omitempty"`
}

// TmpMetricsSample is a periodic snapshot of the temporary-upload namespace.
// Observability only.
type TmpMetricsSample struct {
	TmpFileCount int       `json:"tmp_file_count"`
	RecentFiles  int       `json:"recent_files"`
	OldFiles     int       `json:"old_files"`
	VeryOldFiles int       `json:"very_old_files"`
	TotalSizeMB  float64   `json:"total_size_mb"`
	Timestamp    time.Time `json:"timestamp"`
}

// Profile is the slice of a forum profile the avatar migration job works on.
type Profile struct {
	ID               string         `json:"id"`
	LegacyAvatarPath string         `json:"legacy_avatar_path"`
	AvatarURLs       map[int]string `json:"avatar_urls"`
	MigratedAt       *time.Time     `json:"migrated_at,omitempty"`
}

type MigrationOutcome string

const (
	MigrationSuccess MigrationOutcome = "success"
	MigrationSkipped MigrationOutcome = "skipped"
	MigrationError   MigrationOutcome = "error"
)

// ProfileMigrationRecord is the audit row for one migrated profile.
type ProfileMigrationRecord struct {
	ID         string           `json:"id"`
	ProfileID  string           `json:"profile_id"`
	Outcome    MigrationOutcome `json:"outcome"`
	Error      string           `json:"error,omitempty"`
	MigratedAt time.Time        `json:"migrated_at"`
}
