package optimizer

import (
	"bytes"
	"context"
	"image"
	"time"

	"github.com/disintegration/imaging"

	apperrors "go-menu-analyzer/internal/errors"
	"go-menu-analyzer/internal/logger"
	"go-menu-analyzer/pkg/models"
)

// ImageOptimizer normalizes a raw menu photo into a compact, analysis-ready
// image and can independently assess photo quality.
type ImageOptimizer interface {
	Optimize(ctx context.Context, raw []byte, cfg OptimizationConfig) (*models.OptimizedImage, error)
	AssessQuality(raw []byte) (models.QualityAssessment, error)
}

// menuImageOptimizer implements ImageOptimizer with a bounded result cache.
type menuImageOptimizer struct {
	cache *imageCache
}

// NewImageOptimizer creates a new image optimizer.
func NewImageOptimizer() ImageOptimizer {
	return &menuImageOptimizer{
		cache: newImageCache(defaultImageCacheEntries, defaultImageCacheBytes),
	}
}

// Optimize applies the optimization pipeline in fixed order: auto-rotate,
// content crop, resize, text enhancement, color normalization, then JPEG
// re-encode at the configured quality. Optional enhancement steps fail soft;
// only an undecodable source or encoder failure abort the pipeline.
func (o *menuImageOptimizer) Optimize(ctx context.Context, raw []byte, cfg OptimizationConfig) (*models.OptimizedImage, error) {
	start := time.Now()

	hash := models.ContentHash(raw)
	if cached, ok := o.cache.get(hash, cfg); ok {
		logger.ForComponent("optimizer").WithField("hash", hash[:12]).Debug("Optimized image served from cache")
		return cached, nil
	}

	var steps []models.OptimizationStep

	// Auto-rotate: EXIF orientation is corrected during decode.
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(cfg.AutoRotate))
	if err != nil {
		return nil, apperrors.NewValidationError("invalid image data", err)
	}
	if cfg.AutoRotate {
		steps = append(steps, models.StepRotate)
	}

	originalBounds := img.Bounds()

	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewCancelledError("optimization cancelled", err)
	}

	if cfg.CropToContent {
		if cropped, ok := cropToContent(img); ok {
			img = cropped
			steps = append(steps, models.StepCropToContent)
		}
	}

	if cfg.Resize {
		bounds := img.Bounds()
		if bounds.Dx() > cfg.TargetWidth || bounds.Dy() > cfg.TargetHeight {
			img = imaging.Fit(img, cfg.TargetWidth, cfg.TargetHeight, imaging.Lanczos)
			steps = append(steps, models.StepResize)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewCancelledError("optimization cancelled", err)
	}

	if cfg.EnhanceText {
		if enhanced, ok := applySoft(func() image.Image {
			out := imaging.AdjustContrast(img, 12)
			out = imaging.Sharpen(out, 0.6)
			return imaging.Blur(out, 0.3) // light blur to suppress sensor noise
		}); ok {
			img = enhanced
			steps = append(steps, models.StepContrast, models.StepSharpen, models.StepDenoise)
		}
	}

	if cfg.ColorNormalize {
		if normalized, ok := applySoft(func() image.Image {
			return normalizeColor(img)
		}); ok {
			img = normalized
			steps = append(steps, models.StepColorNormalize)
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(cfg.CompressionQuality)); err != nil {
		return nil, apperrors.NewInternalError("image encoding failed", err)
	}

	finalBounds := img.Bounds()
	optimized := &models.OptimizedImage{
		Data:           buf.Bytes(),
		ContentHash:    hash,
		OriginalWidth:  originalBounds.Dx(),
		OriginalHeight: originalBounds.Dy(),
		Width:          finalBounds.Dx(),
		Height:         finalBounds.Dy(),
		AppliedSteps:   steps,
		Duration:       time.Since(start),
	}

	o.cache.put(hash, cfg, optimized)

	logger.ForComponent("optimizer").WithField("hash", hash[:12]).
		WithField("steps", len(steps)).
		WithField("bytes", len(optimized.Data)).
		Debug("Image optimized")

	return optimized, nil
}

// applySoft runs an optional enhancement step, falling back to the
// unmodified intermediate image if the step panics.
func applySoft(step func() image.Image) (result image.Image, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.ForComponent("optimizer").WithField("panic", r).Warn("Enhancement step failed, using unmodified image")
			result = nil
			ok = false
		}
	}()
	return step(), true
}

// cropToContent locates the text-dense region of the photo and crops to it
// with a padding margin. Returns ok=false when no region stands out, leaving
// the image untouched.
func cropToContent(img image.Image) (image.Image, bool) {
	gray := imaging.Grayscale(img)
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 64 || height < 64 {
		return nil, false
	}

	// Split into a 16x16 grid and measure horizontal gradient density per
	// cell. Text regions have dense gradients; background does not.
	const grid = 16
	cellW, cellH := width/grid, height/grid
	if cellW == 0 || cellH == 0 {
		return nil, false
	}

	var densities [grid][grid]float64
	var total float64
	for gy := 0; gy < grid; gy++ {
		for gx := 0; gx < grid; gx++ {
			var edges float64
			// Sample every 4th pixel, enough to rank cells against each other.
			for y := gy * cellH; y < (gy+1)*cellH-1; y += 4 {
				for x := gx * cellW; x < (gx+1)*cellW-1; x += 4 {
					a := gray.NRGBAAt(x, y).R
					b := gray.NRGBAAt(x+1, y).R
					if diff(a, b) > 24 {
						edges++
					}
				}
			}
			densities[gy][gx] = edges
			total += edges
		}
	}

	if total == 0 {
		return nil, false
	}
	threshold := total / (grid * grid) * 0.5

	minX, minY, maxX, maxY := grid, grid, -1, -1
	for gy := 0; gy < grid; gy++ {
		for gx := 0; gx < grid; gx++ {
			if densities[gy][gx] > threshold {
				if gx < minX {
					minX = gx
				}
				if gy < minY {
					minY = gy
				}
				if gx > maxX {
					maxX = gx
				}
				if gy > maxY {
					maxY = gy
				}
			}
		}
	}

	if maxX < 0 || maxY < 0 {
		return nil, false
	}

	// Padding margin of one grid cell on each side.
	cropX0 := clamp((minX-1)*cellW, 0, width)
	cropY0 := clamp((minY-1)*cellH, 0, height)
	cropX1 := clamp((maxX+2)*cellW, 0, width)
	cropY1 := clamp((maxY+2)*cellH, 0, height)

	// A crop that barely shrinks the image is not worth the recompression.
	cropArea := (cropX1 - cropX0) * (cropY1 - cropY0)
	if cropArea <= 0 || float64(cropArea) > 0.9*float64(width*height) {
		return nil, false
	}

	rect := image.Rect(bounds.Min.X+cropX0, bounds.Min.Y+cropY0, bounds.Min.X+cropX1, bounds.Min.Y+cropY1)
	return imaging.Crop(img, rect), true
}

// normalizeColor applies gamma correction toward mid-brightness and a
// gray-world white balance.
func normalizeColor(img image.Image) image.Image {
	nrgba := imaging.Clone(img)
	bounds := nrgba.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return img
	}

	var sumR, sumG, sumB, count float64
	for y := 0; y < height; y += 2 {
		for x := 0; x < width; x += 2 {
			c := nrgba.NRGBAAt(x, y)
			sumR += float64(c.R)
			sumG += float64(c.G)
			sumB += float64(c.B)
			count++
		}
	}
	avgR, avgG, avgB := sumR/count, sumG/count, sumB/count
	avgGray := (avgR + avgG + avgB) / 3

	// Gray-world assumption: scale each channel toward the common mean.
	scaleR := scaleFactor(avgGray, avgR)
	scaleG := scaleFactor(avgGray, avgG)
	scaleB := scaleFactor(avgGray, avgB)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := nrgba.NRGBAAt(x, y)
			c.R = scaleChannel(c.R, scaleR)
			c.G = scaleChannel(c.G, scaleG)
			c.B = scaleChannel(c.B, scaleB)
			nrgba.SetNRGBA(x, y, c)
		}
	}

	// Nudge overall brightness toward the middle of the range.
	luminance := (avgR*0.299 + avgG*0.587 + avgB*0.114) / 255
	switch {
	case luminance < 0.35:
		return imaging.AdjustGamma(nrgba, 1.2)
	case luminance > 0.75:
		return imaging.AdjustGamma(nrgba, 0.85)
	default:
		return nrgba
	}
}

func scaleFactor(target, actual float64) float64 {
	if actual < 1 {
		return 1
	}
	factor := target / actual
	// Cap the correction so a genuinely colorful menu is not washed out.
	return clampFloat(factor, 0.8, 1.25)
}

func scaleChannel(v uint8, factor float64) uint8 {
	scaled := float64(v) * factor
	if scaled > 255 {
		return 255
	}
	return uint8(scaled)
}

func diff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
