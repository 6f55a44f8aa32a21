package domain

import "strings"

// Mode is the presentation context an upload is processed for. Each mode
// carries its own crop and size policy; it is resolved once at the start of
// the pipeline and threaded as a value from there on.
type Mode string

const (
	ModePost      Mode = "post"
	ModeAvatar    Mode = "avatar"
	ModeThumbnail Mode = "thumbnail"
	ModePR        Mode = "pr"
)

// ModeConfig is the fixed policy attached to a Mode. A zero AspectRatio
// means "no crop, preserve the source ratio".
type ModeConfig struct {
	AspectRatio  float64
	MaxDimension int
	OutputSizes  []int
	Namespace    string
}

var modeConfigs = map[Mode]ModeConfig{
	ModePost: {
		AspectRatio:  5.0 / 3.0,
		MaxDimension: 1200,
		OutputSizes:  []int{1200},
		Namespace:    "posts",
	},
	ModeAvatar: {
		AspectRatio:  1.0,
		MaxDimension: 512,
		OutputSizes:  []int{256, 512},
		Namespace:    "avatars",
	},
	ModeThumbnail: {
		AspectRatio:  1.0,
		MaxDimension: 400,
		OutputSizes:  []int{400},
		Namespace:    "thumbnails",
	},
	ModePR: {
		AspectRatio:  0,
		MaxDimension: 1600,
		OutputSizes:  []int{1600},
		Namespace:    "pr-images",
	},
}

func (m Mode) Config() ModeConfig {
	if cfg, ok := modeConfigs[m]; ok {
		return cfg
	}
	return modeConfigs[ModePost]
}

// MultiSize reports whether the mode produces more than one output artifact.
func (m Mode) MultiSize() bool {
	return len(m.Config().OutputSizes) > 1
}

func (m Mode) Valid() bool {
	_, ok := modeConfigs[m]
	return ok
}

// ParseMode maps an explicit mode string to a Mode, falling back to
// ModePost for anything unknown.
func ParseMode(s string) Mode {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if m.Valid() {
		return m
	}
	return ModePost
}

// ModeFromFilename derives the mode from the upload's filename prefix
// (avatar_, thumbnail_, pr_, post_). Unprefixed files are posts.
func ModeFromFilename(filename string) Mode {
	switch {
	case strings.HasPrefix(filename, "avatar_"):
		return ModeAvatar
	case strings.HasPrefix(filename, "thumbnail_"):
		return ModeThumbnail
	case strings.HasPrefix(filename, "pr_"):
		return ModePR
	default:
		return ModePost
	}
}
