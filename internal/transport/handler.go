package transport

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"go-menu-analyzer/internal/config"
	apperrors "go-menu-analyzer/internal/errors"
	"go-menu-analyzer/internal/logger"
	"go-menu-analyzer/internal/observer"
	"go-menu-analyzer/internal/optimizer"
	"go-menu-analyzer/internal/orchestrator"
	"go-menu-analyzer/internal/storage"
	"go-menu-analyzer/pkg/models"
	"go-menu-analyzer/pkg/validation"
)

// AnalyzeRequest is the inbound API request. Exactly one of URL and
// ImageData must be set; RecognizedText feeds the rule-based fallback when
// the AI path is down.
type AnalyzeRequest struct {
	URL            string   `json:"url,omitempty"`
	ImageData      string   `json:"image_data,omitempty"`
	Preset         string   `json:"preset,omitempty"`
	RecognizedText []string `json:"recognized_text,omitempty"`
}

// QualityRequest carries a photo for standalone quality assessment.
type QualityRequest struct {
	URL       string `json:"url,omitempty"`
	ImageData string `json:"image_data,omitempty"`
}

// BatchQualityRequest carries several candidate photos of one menu; the
// response ranks them so the caller can pick the best before analyzing.
type BatchQualityRequest struct {
	Images []string `json:"images" binding:"required"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

// Handler bundles the pipeline dependencies behind the HTTP surface.
type Handler struct {
	orchestrator *orchestrator.Orchestrator
	optimizer    optimizer.ImageOptimizer
	fetcher      storage.PhotoFetcher
	metrics      *observer.MetricsObserver
	registry     *prometheus.Registry
	urlValidator *validation.PhotoURLValidator
	pool         *optimizer.WorkerPool
	cfg          *config.Config
}

// NewHandler builds the gin router for the analysis API.
func NewHandler(
	orch *orchestrator.Orchestrator,
	opt optimizer.ImageOptimizer,
	fetcher storage.PhotoFetcher,
	metrics *observer.MetricsObserver,
	registry *prometheus.Registry,
	cfg *config.Config,
) http.Handler {
	h := &Handler{
		orchestrator: orch,
		optimizer:    opt,
		fetcher:      fetcher,
		metrics:      metrics,
		registry:     registry,
		urlValidator: validation.NewPhotoURLValidator(),
		pool:         optimizer.NewWorkerPool(0),
		cfg:          cfg,
	}

	gin.SetMode(resolveGinMode(cfg.Server.Mode))
	r := gin.Default()
	r.Use(requestSizeLimiter(cfg.Server.MaxRequestBodySize))

	r.GET("/health", h.healthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1/menu")
	v1.POST("/analyze", h.analyzeMenu)
	v1.DELETE("/analyze", h.cancelAnalysis)
	v1.GET("/status", h.analysisStatus)
	v1.POST("/quality", h.assessQuality)
	v1.POST("/quality/batch", h.assessQualityBatch)

	return r
}

func resolveGinMode(mode string) string {
	if mode == "debug" {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}

func (h *Handler) analyzeMenu(c *gin.Context) {
	startTime := time.Now()
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.Server.RequestTimeout)
	defer cancel()

	logger.WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
		"ip":     c.ClientIP(),
	}).Info("Processing menu analysis request")

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidationError("invalid request format", err))
		return
	}

	// Query parameter takes precedence over the JSON body.
	if preset := c.Query("preset"); preset != "" {
		req.Preset = preset
	}
	if req.Preset == "" {
		req.Preset = h.cfg.Inference.DefaultPreset
	}
	analysisCfg := models.ConfigurationForPreset(req.Preset)

	image, err := h.loadImage(ctx, req.URL, req.ImageData)
	if err != nil {
		respondError(c, err)
		return
	}

	menu, err := h.orchestrator.Analyze(ctx, orchestrator.AnalysisInput{
		Image:          image,
		RecognizedText: req.RecognizedText,
	}, analysisCfg)
	if err != nil {
		respondError(c, err)
		return
	}

	logger.WithFields(logrus.Fields{
		"preset":             req.Preset,
		"dishes":             len(menu.Dishes),
		"confidence":         menu.Confidence,
		"processing_time_ms": time.Since(startTime).Milliseconds(),
	}).Info("Menu analysis completed successfully")

	c.JSON(http.StatusOK, menu)
}

func (h *Handler) cancelAnalysis(c *gin.Context) {
	h.orchestrator.Cancel()
	c.JSON(http.StatusAccepted, gin.H{"status": "cancellation requested"})
}

func (h *Handler) analysisStatus(c *gin.Context) {
	stage := h.orchestrator.Stage()
	c.JSON(http.StatusOK, gin.H{
		"stage":    stage.String(),
		"progress": stage.Progress(),
		"metrics":  h.metrics.GetMetrics(),
	})
}

func (h *Handler) assessQuality(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.Server.RequestTimeout)
	defer cancel()

	var req QualityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidationError("invalid request format", err))
		return
	}

	image, err := h.loadImage(ctx, req.URL, req.ImageData)
	if err != nil {
		respondError(c, err)
		return
	}

	assessment, err := h.optimizer.AssessQuality(image)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"assessment": assessment,
		"acceptable": assessment.IsAcceptable(),
	})
}

func (h *Handler) assessQualityBatch(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.Server.RequestTimeout)
	defer cancel()

	var req BatchQualityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidationError("invalid request format", err))
		return
	}
	if len(req.Images) == 0 {
		respondError(c, apperrors.NewValidationError("images must not be empty", nil))
		return
	}

	photos := make([][]byte, len(req.Images))
	for i, encoded := range req.Images {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			respondError(c, apperrors.NewValidationError("images must be base64 encoded", err))
			return
		}
		photos[i] = raw
	}

	verdicts := h.pool.AssessBatch(ctx, h.optimizer, photos)

	type batchResult struct {
		Index      int                       `json:"index"`
		Assessment *models.QualityAssessment `json:"assessment,omitempty"`
		Acceptable bool                      `json:"acceptable"`
		Error      string                    `json:"error,omitempty"`
	}

	results := make([]batchResult, len(verdicts))
	best := -1
	for i, v := range verdicts {
		if v.Err != nil {
			results[i] = batchResult{Index: v.Index, Error: userMessage(v.Err)}
			continue
		}
		assessment := v.Assessment
		results[i] = batchResult{
			Index:      v.Index,
			Assessment: &assessment,
			Acceptable: assessment.IsAcceptable(),
		}
		if best < 0 || assessment.Score > verdicts[best].Assessment.Score {
			best = i
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"results":    results,
		"best_index": best,
	})
}

// loadImage resolves the photo bytes from either an inline base64 payload
// or a fetchable URL. Exactly one source must be given.
func (h *Handler) loadImage(ctx context.Context, photoURL, imageData string) ([]byte, error) {
	switch {
	case photoURL != "" && imageData != "":
		return nil, apperrors.NewValidationError("provide either url or image_data, not both", nil)
	case imageData != "":
		raw, err := base64.StdEncoding.DecodeString(imageData)
		if err != nil {
			return nil, apperrors.NewValidationError("image_data is not valid base64", err)
		}
		if len(raw) == 0 {
			return nil, apperrors.NewValidationError("image_data is empty", nil)
		}
		return raw, nil
	case photoURL != "":
		if err := h.urlValidator.Validate(photoURL); err != nil {
			return nil, err
		}
		return h.fetcher.FetchPhoto(ctx, photoURL)
	default:
		return nil, apperrors.NewValidationError("either url or image_data is required", nil)
	}
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// respondError maps a pipeline error to its HTTP status. The body carries
// the presentation-safe message; diagnostic detail stays in the logs.
func respondError(c *gin.Context, err error) {
	code := apperrors.GetStatusCode(err)
	message := userMessage(err)
	kind := ""

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		kind = string(appErr.Kind)
	}

	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Kind:    kind,
	})
}

func userMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.UserMessage()
	}
	return "Something went wrong during the analysis."
}
