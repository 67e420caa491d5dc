package models

import "time"

// ProcessingStage is the orchestrator's state. Stages advance strictly
// forward within one analysis; the only backward transition is to StageIdle
// on cancellation or error.
type ProcessingStage int

const (
	StageIdle ProcessingStage = iota
	StagePreparing
	StageAnalyzing
	StageExtracting
	StageStructuring
	StageValidating
	StageCompleted
)

// String returns the stage name used in events and logs.
func (s ProcessingStage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StagePreparing:
		return "preparing"
	case StageAnalyzing:
		return "analyzing"
	case StageExtracting:
		return "extracting"
	case StageStructuring:
		return "structuring"
	case StageValidating:
		return "validating"
	case StageCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Progress returns the progress fraction reported when the stage is entered.
func (s ProcessingStage) Progress() float64 {
	switch s {
	case StagePreparing:
		return 0.2
	case StageAnalyzing:
		return 0.4
	case StageExtracting:
		return 0.6
	case StageStructuring:
		return 0.8
	case StageValidating:
		return 0.9
	case StageCompleted:
		return 1.0
	default:
		return 0.0
	}
}

// AnalysisConfiguration controls one analysis run.
type AnalysisConfiguration struct {
	TargetWidth        int
	TargetHeight       int
	CompressionQuality int
	MinimumConfidence  float64
	MaxRetries         int
	Timeout            time.Duration
	DetailedPrompt     bool
}

// FastConfiguration trades accuracy for latency.
func FastConfiguration() AnalysisConfiguration {
	return AnalysisConfiguration{
		TargetWidth:        512,
		TargetHeight:       512,
		CompressionQuality: 60,
		MinimumConfidence:  0.5,
		MaxRetries:         1,
		Timeout:            10 * time.Second,
		DetailedPrompt:     false,
	}
}

// BalancedConfiguration is the default preset.
func BalancedConfiguration() AnalysisConfiguration {
	return AnalysisConfiguration{
		TargetWidth:        1024,
		TargetHeight:       1024,
		CompressionQuality: 75,
		MinimumConfidence:  0.6,
		MaxRetries:         2,
		Timeout:            30 * time.Second,
		DetailedPrompt:     false,
	}
}

// HighQualityConfiguration maximizes extraction quality.
func HighQualityConfiguration() AnalysisConfiguration {
	return AnalysisConfiguration{
		TargetWidth:        2048,
		TargetHeight:       2048,
		CompressionQuality: 85,
		MinimumConfidence:  0.7,
		MaxRetries:         3,
		Timeout:            60 * time.Second,
		DetailedPrompt:     true,
	}
}

// ConfigurationForPreset resolves a preset name, defaulting to balanced.
func ConfigurationForPreset(preset string) AnalysisConfiguration {
	switch preset {
	case "fast":
		return FastConfiguration()
	case "high", "high-quality":
		return HighQualityConfiguration()
	default:
		return BalancedConfiguration()
	}
}

// QualityIssue tags a specific problem found during quality assessment.
type QualityIssue string

const (
	IssueLowResolution      QualityIssue = "low_resolution"
	IssueTooLarge           QualityIssue = "too_large"
	IssueExtremeAspectRatio QualityIssue = "extreme_aspect_ratio"
	IssueTooDark            QualityIssue = "too_dark"
	IssueTooBright          QualityIssue = "too_bright"
	IssueLowContrast        QualityIssue = "low_contrast"
)

// QualityAssessment is the optimizer's standalone verdict on a photo.
// Score = max(0, 1 - 0.15 * issue count).
type QualityAssessment struct {
	Score           float64        `json:"score"`
	Issues          []QualityIssue `json:"issues,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
}

// IsAcceptable reports whether the photo is worth submitting at all.
func (qa QualityAssessment) IsAcceptable() bool {
	return qa.Score >= 0.4
}
