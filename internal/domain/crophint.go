package domain

import "encoding/json"

// CropHint is an uploader-supplied crop rectangle, delivered as JSON in the
// object's custom metadata. The server clamps it; it never trusts
// out-of-range offsets.
type CropHint struct {
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	W             float64 `json:"w"`
	H             float64 `json:"h"`
	Angle         float64 `json:"angle"`
	Scale         float64 `json:"scale"`
	NaturalWidth  float64 `json:"naturalWidth"`
	NaturalHeight float64 `json:"naturalHeight"`
	Ratio         float64 `json:"ratio"`
}

// Usable reports whether the hint describes a real rectangle.
func (h *CropHint) Usable() bool {
	return h != nil && h.W > 0 && h.H > 0
}

// ParseCropHint decodes the cropMeta custom-metadata value. A malformed or
// empty value means "no hint", never an error.
func ParseCropHint(raw string) *CropHint {
	if raw == "" {
		return nil
	}
	var hint CropHint
	if err := json.Unmarshal([]byte(raw), &hint); err != nil {
		return nil
	}
	if !hint.Usable() {
		return nil
	}
	return &hint
}
