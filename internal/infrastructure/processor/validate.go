package processor

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/wb-go/wbf/zlog"

	"github.com/glowforum/imagepipeline/internal/domain"
)

// Resource bounds checked before any expensive decode work. The input is
// untrusted; the size and signature checks run on raw bytes only.
const (
	MaxFileBytes = 30 << 20
	MaxPixels    = 25_000_000
	MaxFrames    = 300
)

var magicSignatures = [][]byte{
	{0xFF, 0xD8, 0xFF},       // JPEG
	{0x89, 0x50, 0x4E, 0x47}, // PNG
	{0x52, 0x49, 0x46, 0x46}, // RIFF (WebP)
}

// ValidateBytes runs the pre-decode checks: size bound, then magic-byte
// signature. It never touches a decoder.
func ValidateBytes(data []byte) error {
	if int64(len(data)) > MaxFileBytes {
		zlog.Logger.Warn().
			Int("size", len(data)).
			Int64("max", MaxFileBytes).
			Msg("upload rejected: too large")
		return fmt.Errorf("%w: %d bytes", domain.ErrFileTooLarge, len(data))
	}
	for _, sig := range magicSignatures {
		if len(data) >= len(sig) && bytes.Equal(data[:len(sig)], sig) {
			return nil
		}
	}
	return domain.ErrValidationFailed
}

// DecodeBounds reads image dimensions and frame count without decoding
// pixel data. Call only after ValidateBytes passed.
func DecodeBounds(data []byte) (width, height, frames int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %v", domain.ErrDimensionUnknown, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, 0, domain.ErrDimensionUnknown
	}
	return cfg.Width, cfg.Height, CountFrames(data), nil
}

// ValidateBounds enforces the post-decode pixel and frame budgets, guarding
// against decompression-bomb style inputs.
func ValidateBounds(width, height, frames int) error {
	if int64(width)*int64(height) > MaxPixels {
		zlog.Logger.Warn().
			Int("width", width).
			Int("height", height).
			Msg("upload rejected: pixel count over budget")
		return fmt.Errorf("%w: %dx%d", domain.ErrTooManyPixels, width, height)
	}
	if frames > MaxFrames {
		zlog.Logger.Warn().
			Int("frames", frames).
			Msg("upload rejected: frame count over budget")
		return fmt.Errorf("%w: %d frames", domain.ErrTooManyFrames, frames)
	}
	return nil
}

// CountFrames returns the animation frame count. Only WebP in the accepted
// signature set can be animated; ANMF chunks in the RIFF container are
// counted and everything else is a single frame.
func CountFrames(data []byte) int {
	if len(data) < 12 || !bytes.Equal(data[:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WEBP")) {
		return 1
	}
	frames := 0
	offset := 12
	for offset+8 <= len(data) {
		fourcc := data[offset : offset+4]
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		if bytes.Equal(fourcc, []byte("ANMF")) {
			frames++
		}
		// chunks are padded to even length
		offset += 8 + size + (size & 1)
	}
	if frames == 0 {
		return 1
	}
	return frames
}
