package optimizer

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "go-menu-analyzer/internal/errors"
	"go-menu-analyzer/pkg/models"
)

// checkerboardJPEG encodes a high-contrast test image, close in texture to a
// printed menu: mid luminance, strong local gradients.
func checkerboardJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.NRGBA{R: 245, G: 245, B: 240, A: 255}
			if (x/8+y/8)%2 == 0 {
				c = color.NRGBA{R: 20, G: 20, B: 25, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)))
	return buf.Bytes()
}

// flatJPEG encodes a uniform image at the given gray level.
func flatJPEG(t *testing.T, width, height int, level uint8) []byte {
	t.Helper()
	img := imaging.New(width, height, color.NRGBA{R: level, G: level, B: level, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)))
	return buf.Bytes()
}

func TestOptimizeResizesWithinBounds(t *testing.T) {
	opt := NewImageOptimizer()
	raw := checkerboardJPEG(t, 2048, 1536)

	result, err := opt.Optimize(context.Background(), raw, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 2048, result.OriginalWidth)
	assert.Equal(t, 1536, result.OriginalHeight)
	assert.LessOrEqual(t, result.Width, 1024)
	assert.LessOrEqual(t, result.Height, 1024)
	assert.Contains(t, result.AppliedSteps, models.StepResize)
	assert.Equal(t, models.ContentHash(raw), result.ContentHash)
	assert.NotEmpty(t, result.Data)
}

func TestOptimizeSkipsResizeForSmallImages(t *testing.T) {
	opt := NewImageOptimizer()
	raw := checkerboardJPEG(t, 400, 300)

	result, err := opt.Optimize(context.Background(), raw, DefaultConfig())
	require.NoError(t, err)

	assert.NotContains(t, result.AppliedSteps, models.StepResize)
	assert.Equal(t, 400, result.Width)
	assert.Equal(t, 300, result.Height)
}

func TestOptimizeInvalidData(t *testing.T) {
	opt := NewImageOptimizer()

	_, err := opt.Optimize(context.Background(), []byte("definitely not an image"), DefaultConfig())
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation), "got %v", err)
}

func TestOptimizeCancelled(t *testing.T) {
	opt := NewImageOptimizer()
	raw := checkerboardJPEG(t, 1024, 768)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := opt.Optimize(ctx, raw, DefaultConfig())
	assert.True(t, apperrors.IsKind(err, apperrors.KindCancelled), "got %v", err)
}

func TestOptimizeServesCachedResult(t *testing.T) {
	opt := NewImageOptimizer()
	raw := checkerboardJPEG(t, 1024, 768)
	cfg := DefaultConfig()

	first, err := opt.Optimize(context.Background(), raw, cfg)
	require.NoError(t, err)
	second, err := opt.Optimize(context.Background(), raw, cfg)
	require.NoError(t, err)

	// Same pointer: the second call came from the cache.
	assert.Same(t, first, second)

	// A different configuration is a different cache entry.
	third, err := opt.Optimize(context.Background(), raw, FastConfig())
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestAssessQualityGoodPhoto(t *testing.T) {
	opt := NewImageOptimizer()

	assessment, err := opt.AssessQuality(checkerboardJPEG(t, 1024, 768))
	require.NoError(t, err)

	assert.Empty(t, assessment.Issues)
	assert.Equal(t, 1.0, assessment.Score)
	assert.True(t, assessment.IsAcceptable())
}

func TestAssessQualityFlagsProblems(t *testing.T) {
	opt := NewImageOptimizer()

	tests := []struct {
		name string
		raw  []byte
		want models.QualityIssue
	}{
		{"low resolution", checkerboardJPEG(t, 320, 240), models.IssueLowResolution},
		{"too dark", flatJPEG(t, 1024, 768, 15), models.IssueTooDark},
		{"too bright", flatJPEG(t, 1024, 768, 250), models.IssueTooBright},
		{"low contrast", flatJPEG(t, 1024, 768, 128), models.IssueLowContrast},
		{"extreme aspect ratio", checkerboardJPEG(t, 2400, 700), models.IssueExtremeAspectRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assessment, err := opt.AssessQuality(tt.raw)
			require.NoError(t, err)
			assert.Contains(t, assessment.Issues, tt.want)
			assert.Less(t, assessment.Score, 1.0)
			assert.NotEmpty(t, assessment.Recommendations)
		})
	}
}

func TestAssessQualityScoreFormula(t *testing.T) {
	opt := NewImageOptimizer()

	// Flat dark low-res image: low_resolution + too_dark + low_contrast.
	assessment, err := opt.AssessQuality(flatJPEG(t, 320, 240, 15))
	require.NoError(t, err)

	assert.Len(t, assessment.Issues, 3)
	assert.InDelta(t, 0.55, assessment.Score, 1e-9)
}

func TestAssessQualityInvalidData(t *testing.T) {
	opt := NewImageOptimizer()
	_, err := opt.AssessQuality([]byte{0x00})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation), "got %v", err)
}

func TestWorkerPoolAssessBatch(t *testing.T) {
	opt := NewImageOptimizer()
	pool := NewWorkerPool(2)
	defer pool.Close()

	photos := [][]byte{
		checkerboardJPEG(t, 1024, 768),
		[]byte("broken"),
		flatJPEG(t, 320, 240, 15),
	}

	results := pool.AssessBatch(context.Background(), opt, photos)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, 1.0, results[0].Assessment.Score)

	assert.Error(t, results[1].Err)

	assert.NoError(t, results[2].Err)
	assert.NotEmpty(t, results[2].Assessment.Issues)

	for i, r := range results {
		assert.Equal(t, i, r.Index)
	}
}

func TestWorkerPoolAssessBatchCancelled(t *testing.T) {
	opt := NewImageOptimizer()
	pool := NewWorkerPool(2)
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := pool.AssessBatch(ctx, opt, [][]byte{checkerboardJPEG(t, 640, 480)})
	require.Len(t, results, 1)
	assert.True(t, apperrors.IsKind(results[0].Err, apperrors.KindCancelled), "got %v", results[0].Err)
}
