package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// OptimizationStep tags a transformation applied to a photo before upload.
type OptimizationStep string

const (
	StepRotate         OptimizationStep = "rotate"
	StepCropToContent  OptimizationStep = "crop_to_content"
	StepResize         OptimizationStep = "resize"
	StepContrast       OptimizationStep = "contrast"
	StepSharpen        OptimizationStep = "sharpen"
	StepDenoise        OptimizationStep = "denoise"
	StepColorNormalize OptimizationStep = "color_normalize"
)

// OptimizedImage is the compact, analysis-ready form of a raw photo. It is
// created once per analysis and discarded after the request is sent.
type OptimizedImage struct {
	Data           []byte
	ContentHash    string // hash of the ORIGINAL bytes, not the optimized ones
	OriginalWidth  int
	OriginalHeight int
	Width          int
	Height         int
	AppliedSteps   []OptimizationStep
	Duration       time.Duration
}

// ContentHash computes the deterministic digest of the original image bytes
// used as the cache key. Same bytes always produce the same hash.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
