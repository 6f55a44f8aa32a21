package processor

import (
	"math"

	"github.com/glowforum/imagepipeline/internal/domain"
)

// CropPlan is one planned output: the source rectangle to extract and the
// dimensions to resample it to. Size carries the configured output size the
// plan was computed for (0 for single-size modes).
type CropPlan struct {
	X, Y          int
	Width, Height int
	OutWidth      int
	OutHeight     int
	Size          int
}

// PlanCrops computes the crop rectangle and the resize target for every
// output size of the mode. Pure and deterministic; no I/O.
//
// Rectangle decision order: PR keeps the full source, then a usable client
// hint wins (clamped to stay inside the source), then the mode's fixed
// aspect ratio center-crops, otherwise the full source is kept.
func PlanCrops(mode domain.Mode, width, height int, hint *domain.CropHint) []CropPlan {
	cfg := mode.Config()
	x, y, cropW, cropH := cropRect(mode, cfg, width, height, hint)

	plans := make([]CropPlan, 0, len(cfg.OutputSizes))
	for _, size := range cfg.OutputSizes {
		outW, outH := resizeTarget(mode, cfg, cropW, cropH, size)
		plan := CropPlan{
			X: x, Y: y,
			Width: cropW, Height: cropH,
			OutWidth:  clampMin(outW, 1),
			OutHeight: clampMin(outH, 1),
		}
		if mode.MultiSize() {
			plan.Size = size
		}
		plans = append(plans, plan)
	}
	return plans
}

func cropRect(mode domain.Mode, cfg domain.ModeConfig, width, height int, hint *domain.CropHint) (x, y, w, h int) {
	if mode == domain.ModePR {
		return 0, 0, width, height
	}

	if hint.Usable() {
		w = minInt(roundHalf(hint.W), width)
		h = minInt(roundHalf(hint.H), height)
		w = clampMin(w, 1)
		h = clampMin(h, 1)
		x = clampInt(roundHalf(hint.X), 0, width-w)
		y = clampInt(roundHalf(hint.Y), 0, height-h)
		return x, y, w, h
	}

	if cfg.AspectRatio > 0 {
		return centerCrop(width, height, cfg.AspectRatio)
	}

	return 0, 0, width, height
}

// centerCrop shrinks one axis so the rectangle matches the target ratio and
// centers it on that axis.
func centerCrop(width, height int, targetRatio float64) (x, y, w, h int) {
	sourceRatio := float64(width) / float64(height)
	switch {
	case sourceRatio > targetRatio:
		// too wide
		w = clampMin(roundHalf(float64(height)*targetRatio), 1)
		h = height
		x = (width - w) / 2
	case sourceRatio < targetRatio:
		// too tall
		w = width
		h = clampMin(roundHalf(float64(width)/targetRatio), 1)
		y = (height - h) / 2
	default:
		w = width
		h = height
	}
	return x, y, w, h
}

// resizeTarget resolves the output dimensions for one configured size. The
// encoder downsamples only: every target dimension is capped by the crop,
// never upscaled past source resolution.
func resizeTarget(mode domain.Mode, cfg domain.ModeConfig, cropW, cropH, size int) (outW, outH int) {
	switch {
	case mode == domain.ModeAvatar:
		// forced square per configured size
		side := minInt(size, minInt(cropW, cropH))
		return side, side
	case cfg.AspectRatio <= 0:
		// preserve the crop's own ratio, cap the larger dimension
		if cropW >= cropH {
			outW = minInt(cfg.MaxDimension, cropW)
			outH = roundHalf(float64(outW) * float64(cropH) / float64(cropW))
		} else {
			outH = minInt(cfg.MaxDimension, cropH)
			outW = roundHalf(float64(outH) * float64(cropW) / float64(cropH))
		}
		return outW, outH
	default:
		// fixed-ratio single-size modes
		outW = minInt(cfg.MaxDimension, cropW)
		outH = roundHalf(float64(outW) / cfg.AspectRatio)
		return outW, outH
	}
}

// roundHalf rounds half away from zero.
func roundHalf(v float64) int {
	return int(math.Round(v))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func clampMin(v, lo int) int {
	if v < lo {
		return lo
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
