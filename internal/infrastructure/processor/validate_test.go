package processor

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/glowforum/imagepipeline/internal/domain"
)

func TestValidateBytesAcceptsKnownSignatures(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"jpeg", encodeJPEG(t, 10, 10)},
		{"png", encodePNG(t, 10, 10)},
		{"riff", []byte("RIFFxxxxWEBP")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateBytes(tt.data); err != nil {
				t.Fatalf("ValidateBytes(%s) = %v, want nil", tt.name, err)
			}
		})
	}
}

func TestValidateBytesRejectsUnknownSignature(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"text", []byte("hello world, definitely not an image")},
		{"gif", []byte("GIF89a...")},
		{"empty", nil},
		{"short", []byte{0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBytes(tt.data)
			if !errors.Is(err, domain.ErrValidationFailed) {
				t.Fatalf("ValidateBytes(%s) = %v, want ErrValidationFailed", tt.name, err)
			}
		})
	}
}

func TestValidateBytesRejectsOversized(t *testing.T) {
	data := make([]byte, MaxFileBytes+1)
	copy(data, []byte{0xFF, 0xD8, 0xFF})

	err := ValidateBytes(data)
	if !errors.Is(err, domain.ErrFileTooLarge) {
		t.Fatalf("ValidateBytes(oversized) = %v, want ErrFileTooLarge", err)
	}
}

func TestDecodeBoundsReadsDimensions(t *testing.T) {
	data := encodePNG(t, 64, 48)

	w, h, frames, err := DecodeBounds(data)
	if err != nil {
		t.Fatalf("DecodeBounds returned error: %v", err)
	}
	if w != 64 || h != 48 {
		t.Fatalf("DecodeBounds = %dx%d, want 64x48", w, h)
	}
	if frames != 1 {
		t.Fatalf("DecodeBounds frames = %d, want 1", frames)
	}
}

func TestDecodeBoundsRejectsGarbage(t *testing.T) {
	// valid signature but nothing decodable behind it
	_, _, _, err := DecodeBounds([]byte{0xFF, 0xD8, 0xFF, 0x00, 0x01})
	if !errors.Is(err, domain.ErrDimensionUnknown) {
		t.Fatalf("DecodeBounds(garbage) = %v, want ErrDimensionUnknown", err)
	}
}

func TestValidateBoundsPixelBudget(t *testing.T) {
	if err := ValidateBounds(5000, 5000, 1); err != nil {
		t.Fatalf("25MP exactly should pass, got %v", err)
	}
	err := ValidateBounds(6000, 5000, 1)
	if !errors.Is(err, domain.ErrTooManyPixels) {
		t.Fatalf("ValidateBounds(6000x5000) = %v, want ErrTooManyPixels", err)
	}
}

func TestValidateBoundsFrameBudget(t *testing.T) {
	if err := ValidateBounds(100, 100, MaxFrames); err != nil {
		t.Fatalf("frame count at budget should pass, got %v", err)
	}
	err := ValidateBounds(100, 100, MaxFrames+1)
	if !errors.Is(err, domain.ErrTooManyFrames) {
		t.Fatalf("ValidateBounds(301 frames) = %v, want ErrTooManyFrames", err)
	}
}

func TestCountFramesStaticFormats(t *testing.T) {
	if got := CountFrames(encodePNG(t, 8, 8)); got != 1 {
		t.Fatalf("CountFrames(png) = %d, want 1", got)
	}
	if got := CountFrames(encodeJPEG(t, 8, 8)); got != 1 {
		t.Fatalf("CountFrames(jpeg) = %d, want 1", got)
	}
}

func TestCountFramesAnimatedWebP(t *testing.T) {
	if got := CountFrames(animatedWebP(3)); got != 3 {
		t.Fatalf("CountFrames(3 frames) = %d, want 3", got)
	}
	if got := CountFrames(animatedWebP(MaxFrames + 1)); got != MaxFrames+1 {
		t.Fatalf("CountFrames(%d frames) = %d", MaxFrames+1, got)
	}
	// non-animated container
	if got := CountFrames([]byte("RIFF\x00\x00\x00\x00WEBP")); got != 1 {
		t.Fatalf("CountFrames(still webp) = %d, want 1", got)
	}
}

// animatedWebP builds a RIFF/WEBP container holding n empty ANMF chunks.
// Enough structure for the frame counter; not a decodable image.
func animatedWebP(n int) []byte {
	var body bytes.Buffer
	body.WriteString("WEBP")
	for i := 0; i < n; i++ {
		body.WriteString("ANMF")
		var size [4]byte
		binary.LittleEndian.PutUint32(size[:], 0)
		body.Write(size[:])
	}

	var out bytes.Buffer
	out.WriteString("RIFF")
	var riffSize [4]byte
	binary.LittleEndian.PutUint32(riffSize[:], uint32(body.Len()))
	out.Write(riffSize[:])
	out.Write(body.Bytes())
	return out.Bytes()
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// pngHeader fabricates a PNG signature plus IHDR declaring the given
// dimensions, with a valid chunk CRC. DecodeConfig reads only this far, so
// huge declared dimensions can be tested without allocating the pixels.
func pngHeader(w, h int) []byte {
	var out bytes.Buffer
	out.Write([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A})

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], uint32(w))
	binary.BigEndian.PutUint32(ihdr[4:8], uint32(h))
	ihdr[8] = 8 // bit depth
	ihdr[9] = 2 // truecolor
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

func TestDecodeBoundsHonorsDeclaredDimensions(t *testing.T) {
	w, h, _, err := DecodeBounds(pngHeader(6000, 5000))
	if err != nil {
		t.Fatalf("DecodeBounds(header-only png) returned error: %v", err)
	}
	if err := ValidateBounds(w, h, 1); !errors.Is(err, domain.ErrTooManyPixels) {
		t.Fatalf("declared 6000x5000 should fail the pixel budget, got %v", err)
	}
}
