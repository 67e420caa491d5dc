package optimizer

import (
	"bytes"
	"image"
	"math"

	"github.com/disintegration/imaging"

	apperrors "go-menu-analyzer/internal/errors"
	"go-menu-analyzer/pkg/models"
)

const (
	minAcceptableWidth  = 640
	minAcceptableHeight = 480
	maxAcceptablePixels = 24_000_000 // ~24MP, anything bigger just burns upload time
	maxAspectRatio      = 3.0
	minMeanLuminance    = 60.0
	maxMeanLuminance    = 220.0
	minContrastStdDev   = 28.0
)

// AssessQuality grades a raw photo without running the full optimization
// pipeline. Score = max(0, 1 - 0.15 * issue count).
func (o *menuImageOptimizer) AssessQuality(raw []byte) (models.QualityAssessment, error) {
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return models.QualityAssessment{}, apperrors.NewValidationError("invalid image data", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	var issues []models.QualityIssue
	var recommendations []string

	if width < minAcceptableWidth || height < minAcceptableHeight {
		issues = append(issues, models.IssueLowResolution)
		recommendations = append(recommendations, "Move closer to the menu or use a higher camera resolution.")
	}
	if width*height > maxAcceptablePixels {
		issues = append(issues, models.IssueTooLarge)
		recommendations = append(recommendations, "Use a lower camera resolution; extra pixels slow down the analysis.")
	}

	aspect := float64(width) / float64(height)
	if aspect > maxAspectRatio || aspect < 1/maxAspectRatio {
		issues = append(issues, models.IssueExtremeAspectRatio)
		recommendations = append(recommendations, "Frame the whole menu instead of a narrow strip.")
	}

	mean, stddev := luminanceStats(img)
	if mean < minMeanLuminance {
		issues = append(issues, models.IssueTooDark)
		recommendations = append(recommendations, "Take the photo in more light.")
	} else if mean > maxMeanLuminance {
		issues = append(issues, models.IssueTooBright)
		recommendations = append(recommendations, "Avoid direct flash or strong sunlight on the menu.")
	}
	if stddev < minContrastStdDev {
		issues = append(issues, models.IssueLowContrast)
		recommendations = append(recommendations, "Hold the camera steady and make sure the text is in focus.")
	}

	score := math.Max(0, 1-0.15*float64(len(issues)))

	return models.QualityAssessment{
		Score:           score,
		Issues:          issues,
		Recommendations: recommendations,
	}, nil
}

// luminanceStats samples the image and returns the mean and standard
// deviation of pixel luminance on the 0-255 scale.
func luminanceStats(img image.Image) (mean, stddev float64) {
	gray := imaging.Grayscale(img)
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return 0, 0
	}

	step := 1
	if width*height > 1_000_000 {
		step = 4 // sampling is plenty for a global statistic
	}

	var sum, count float64
	for y := 0; y < height; y += step {
		for x := 0; x < width; x += step {
			sum += float64(gray.NRGBAAt(x, y).R)
			count++
		}
	}
	mean = sum / count

	var variance float64
	for y := 0; y < height; y += step {
		for x := 0; x < width; x += step {
			d := float64(gray.NRGBAAt(x, y).R) - mean
			variance += d * d
		}
	}
	stddev = math.Sqrt(variance / count)
	return mean, stddev
}
