package processor

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"github.com/wb-go/wbf/zlog"

	"github.com/glowforum/imagepipeline/internal/config"
	"github.com/glowforum/imagepipeline/internal/domain"
)

// OutputFormat is the normalized encoding every artifact is published in.
const OutputFormat = "webp"

// Transcoder extracts a planned crop, resamples it with Lanczos and encodes
// it as lossy WebP. The resize is exact-fill; the crop step already
// established the right aspect ratio.
type Transcoder struct {
	quality float32
}

func NewTranscoder(cfg *config.ProcessingConfig) *Transcoder {
	quality := cfg.OutputQuality
	if quality <= 0 || quality > 100 {
		zlog.Logger.Warn().
			Int("output_quality", quality).
			Msg("invalid output quality, using default")
		quality = 80
	}
	return &Transcoder{quality: float32(quality)}
}

// Decode reads the full image, honoring EXIF orientation.
func (t *Transcoder) Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrTranscodeFailed, err)
	}
	if img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		return nil, fmt.Errorf("%w: decoded image is empty", domain.ErrTranscodeFailed)
	}
	return img, nil
}

// Transcode applies one CropPlan to a decoded source and returns the encoded
// WebP bytes.
func (t *Transcoder) Transcode(src image.Image, plan CropPlan) ([]byte, error) {
	rect := image.Rect(plan.X, plan.Y, plan.X+plan.Width, plan.Y+plan.Height)
	cropped := imaging.Crop(src, rect)
	if cropped.Bounds().Dx() == 0 || cropped.Bounds().Dy() == 0 {
		return nil, fmt.Errorf("%w: crop produced empty image", domain.ErrTranscodeFailed)
	}

	resized := imaging.Resize(cropped, plan.OutWidth, plan.OutHeight, imaging.Lanczos)

	opts, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, t.quality)
	if err != nil {
		return nil, fmt.Errorf("%w: encoder options: %v", domain.ErrTranscodeFailed, err)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, resized, opts); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", domain.ErrTranscodeFailed, err)
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("%w: empty buffer after encoding", domain.ErrTranscodeFailed)
	}

	zlog.Logger.Debug().
		Int("out_width", plan.OutWidth).
		Int("out_height", plan.OutHeight).
		Int("bytes", buf.Len()).
		Msg("crop transcoded")

	return buf.Bytes(), nil
}
