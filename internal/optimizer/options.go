package optimizer

import "go-menu-analyzer/pkg/models"

// OptimizationConfig provides flexible configuration for image optimization.
// Every step is independently toggleable; the application order is fixed.
type OptimizationConfig struct {
	// Target bounding box for the resize step
	TargetWidth  int
	TargetHeight int

	// JPEG re-encode quality (1-100)
	CompressionQuality int

	// Step toggles
	AutoRotate     bool
	CropToContent  bool
	Resize         bool
	EnhanceText    bool // contrast + sharpen + denoise, tuned for legibility
	ColorNormalize bool
}

// DefaultConfig returns the default optimization configuration.
func DefaultConfig() OptimizationConfig {
	return OptimizationConfig{
		TargetWidth:        1024,
		TargetHeight:       1024,
		CompressionQuality: 75,
		AutoRotate:         true,
		CropToContent:      true,
		Resize:             true,
		EnhanceText:        true,
		ColorNormalize:     true,
	}
}

// FastConfig skips the expensive enhancement steps.
func FastConfig() OptimizationConfig {
	cfg := DefaultConfig()
	cfg.TargetWidth = 512
	cfg.TargetHeight = 512
	cfg.CompressionQuality = 60
	cfg.CropToContent = false
	cfg.EnhanceText = false
	cfg.ColorNormalize = false
	return cfg
}

// ConfigFor derives the optimization configuration from an analysis
// configuration preset.
func ConfigFor(ac models.AnalysisConfiguration) OptimizationConfig {
	cfg := DefaultConfig()
	cfg.TargetWidth = ac.TargetWidth
	cfg.TargetHeight = ac.TargetHeight
	cfg.CompressionQuality = ac.CompressionQuality
	if ac.TargetWidth <= 512 {
		// Fast preset: enhancement cost outweighs the gain at this resolution.
		cfg.CropToContent = false
		cfg.EnhanceText = false
		cfg.ColorNormalize = false
	}
	return cfg
}

// WithoutEnhancement disables the text enhancement steps.
func (cfg OptimizationConfig) WithoutEnhancement() OptimizationConfig {
	cfg.EnhanceText = false
	cfg.ColorNormalize = false
	return cfg
}

// WithTargetSize sets the resize bounding box.
func (cfg OptimizationConfig) WithTargetSize(width, height int) OptimizationConfig {
	cfg.TargetWidth = width
	cfg.TargetHeight = height
	return cfg
}

// WithQuality sets the JPEG re-encode quality.
func (cfg OptimizationConfig) WithQuality(quality int) OptimizationConfig {
	cfg.CompressionQuality = quality
	return cfg
}
