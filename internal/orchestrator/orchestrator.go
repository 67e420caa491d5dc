package orchestrator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"go-menu-analyzer/internal/cache"
	apperrors "go-menu-analyzer/internal/errors"
	"go-menu-analyzer/internal/legacy"
	"go-menu-analyzer/internal/logger"
	"go-menu-analyzer/internal/observer"
	"go-menu-analyzer/internal/optimizer"
	"go-menu-analyzer/internal/parser"
	"go-menu-analyzer/internal/privacy"
	"go-menu-analyzer/internal/security"
	"go-menu-analyzer/pkg/models"
)

// completedGracePeriod is how long the orchestrator stays in the completed
// stage before auto-resetting to idle.
const completedGracePeriod = time.Second

// analyzePath is appended to the trusted endpoint for analysis calls.
const analyzePath = "/v1/menu/analyze"

// AnalysisInput carries one analysis request. RecognizedText, when present,
// holds externally recognized text blocks used only by the legacy fallback
// extractor when the AI path is unavailable.
type AnalysisInput struct {
	Image          []byte
	RecognizedText []string
}

// Orchestrator is the pipeline state machine. It sequences optimization,
// cache lookup, request construction, the timeout-bounded inference call,
// response parsing and validation, and owns cancellation and progress
// reporting. At most one analysis may be in flight per instance.
type Orchestrator struct {
	optimizer optimizer.ImageOptimizer
	builder   *security.RequestBuilder
	sender    security.Sender
	results   *cache.ResultCache
	sanitizer *privacy.Sanitizer
	publisher observer.Subject
	endpoint  string
	model     string
	log       *logrus.Entry

	mu         sync.Mutex
	inFlight   bool
	stage      models.ProcessingStage
	cancelRun  context.CancelFunc
	generation uint64
}

// New creates an orchestrator with explicit dependencies; there are no
// global instances.
func New(
	opt optimizer.ImageOptimizer,
	builder *security.RequestBuilder,
	sender security.Sender,
	results *cache.ResultCache,
	sanitizer *privacy.Sanitizer,
	publisher observer.Subject,
	endpoint string,
	model string,
) *Orchestrator {
	return &Orchestrator{
		optimizer: opt,
		builder:   builder,
		sender:    sender,
		results:   results,
		sanitizer: sanitizer,
		publisher: publisher,
		endpoint:  endpoint,
		model:     model,
		log:       logger.ForComponent("orchestrator"),
	}
}

// Stage returns the current processing stage.
func (o *Orchestrator) Stage() models.ProcessingStage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stage
}

// Cancel aborts the in-flight analysis, if any. The pending network call is
// actually cancelled, not abandoned.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	cancel := o.cancelRun
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Analyze runs one full analysis. A second call while one is in flight
// fails immediately with a busy error and does not disturb the first.
func (o *Orchestrator) Analyze(ctx context.Context, input AnalysisInput, cfg models.AnalysisConfiguration) (*models.Menu, error) {
	runCtx, generation, err := o.acquire(ctx)
	if err != nil {
		return nil, err
	}

	analysisID := uuid.NewString()
	start := time.Now()

	menu, err := o.run(runCtx, analysisID, input, cfg, start)
	if err != nil {
		o.failAndRelease(generation, analysisID, err)
		return nil, err
	}

	o.completeAndRelease(generation, analysisID, time.Since(start))
	return menu, nil
}

// acquire claims the single in-flight slot and installs the cancellation
// handle.
func (o *Orchestrator) acquire(ctx context.Context) (context.Context, uint64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.inFlight {
		return nil, 0, apperrors.NewBusyError("an analysis is already in progress", nil)
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.inFlight = true
	o.cancelRun = cancel
	o.generation++
	return runCtx, o.generation, nil
}

func (o *Orchestrator) run(ctx context.Context, analysisID string, input AnalysisInput, cfg models.AnalysisConfiguration, start time.Time) (*models.Menu, error) {
	hash := models.ContentHash(input.Image)

	// Cache hit short-circuits straight to completion. Stage events still
	// fire, compressed to near-instant, so observers see the full sequence.
	if cached, ok := o.results.Get(hash); ok {
		for _, stage := range []models.ProcessingStage{
			models.StagePreparing, models.StageAnalyzing, models.StageExtracting,
			models.StageStructuring, models.StageValidating,
		} {
			o.enterStage(analysisID, stage)
		}
		o.publish(observer.AnalysisEvent{
			EventType:  observer.CacheHit,
			Timestamp:  time.Now(),
			AnalysisID: analysisID,
			Stage:      models.StageValidating,
			Progress:   models.StageValidating.Progress(),
		})
		menu := cached.Menu
		return &menu, nil
	}

	o.enterStage(analysisID, models.StagePreparing)

	imageData, mimeType := o.prepareImage(ctx, input.Image, cfg)
	if err := cancelled(ctx); err != nil {
		return nil, err
	}

	o.enterStage(analysisID, models.StageAnalyzing)

	signed, err := o.buildAnalysisRequest(imageData, mimeType, cfg)
	if err != nil {
		return nil, err
	}

	o.enterStage(analysisID, models.StageExtracting)

	// Race the call against the configured timeout; the deadline aborts
	// the in-flight request rather than abandoning it.
	callCtx, cancelCall := context.WithTimeout(ctx, cfg.Timeout)
	defer cancelCall()

	body, _, err := o.sender.Send(callCtx, signed, cfg.MaxRetries)
	if err != nil {
		if cancelErr := cancelled(ctx); cancelErr != nil {
			return nil, cancelErr
		}
		if menu, ok := o.tryFallback(analysisID, input, err, start); ok {
			o.results.Put(hash, *menu)
			return menu, nil
		}
		return nil, err
	}

	o.enterStage(analysisID, models.StageStructuring)

	menu, err := parser.ParseMenu(body, time.Since(start))
	if err != nil {
		return nil, err
	}
	if err := cancelled(ctx); err != nil {
		return nil, err
	}

	o.enterStage(analysisID, models.StageValidating)

	// The confidence floor is a hard requirement, not advisory.
	if menu.Confidence < cfg.MinimumConfidence {
		return nil, apperrors.NewConfidenceError("extraction confidence below configured minimum", nil)
	}

	o.sanitizeIncoming(&menu)

	o.results.Put(hash, menu)
	return &menu, nil
}

// prepareImage optimizes the photo; optimization failure degrades to the
// unoptimized image instead of aborting the analysis.
func (o *Orchestrator) prepareImage(ctx context.Context, raw []byte, cfg models.AnalysisConfiguration) ([]byte, string) {
	optimized, err := o.optimizer.Optimize(ctx, raw, optimizer.ConfigFor(cfg))
	if err != nil {
		o.log.WithError(err).Warn("Image optimization failed, submitting unoptimized image")
		return raw, http.DetectContentType(raw)
	}
	return optimized.Data, "image/jpeg"
}

func (o *Orchestrator) buildAnalysisRequest(imageData []byte, mimeType string, cfg models.AnalysisConfiguration) (*security.SignedRequest, error) {
	detail := "low"
	if cfg.DetailedPrompt {
		detail = "high"
	}
	payload := models.AnalysisRequest{
		Model:     o.model,
		Prompt:    parser.PromptFor(cfg.DetailedPrompt),
		ImageData: base64.StdEncoding.EncodeToString(imageData),
		MimeType:  mimeType,
		Detail:    detail,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode request payload", err)
	}

	requestURL, err := url.JoinPath(o.endpoint, analyzePath)
	if err != nil {
		return nil, apperrors.NewConfigurationError("invalid endpoint configuration", err)
	}
	return o.builder.BuildRequest(requestURL, http.MethodPost, body)
}

// tryFallback runs the legacy rule-based extractor when the AI path is
// unavailable and recognized text blocks were supplied. Fallback results
// bypass the confidence floor: the floor governs service-reported
// confidence, and the fallback is explicitly best-effort.
func (o *Orchestrator) tryFallback(analysisID string, input AnalysisInput, cause error, start time.Time) (*models.Menu, bool) {
	if len(input.RecognizedText) == 0 {
		return nil, false
	}
	if !apperrors.IsKind(cause, apperrors.KindNetwork) &&
		!apperrors.IsKind(cause, apperrors.KindConfiguration) &&
		!apperrors.IsKind(cause, apperrors.KindTimeout) {
		return nil, false
	}

	dishes := legacy.ExtractDishes(input.RecognizedText)
	if len(dishes) == 0 {
		return nil, false
	}

	o.log.WithField("analysis_id", analysisID).WithError(cause).
		Warn("AI path unavailable, falling back to rule-based extraction")

	o.enterStage(analysisID, models.StageStructuring)
	o.enterStage(analysisID, models.StageValidating)

	menu := models.Menu{
		Dishes:         dishes,
		Confidence:     dishes[0].Confidence,
		ProcessingTime: time.Since(start),
	}
	o.sanitizeIncoming(&menu)
	return &menu, true
}

// sanitizeIncoming strips sensitive or unsafe substrings from the decoded
// reply before it reaches the caller.
func (o *Orchestrator) sanitizeIncoming(menu *models.Menu) {
	menu.RestaurantName = o.sanitizer.Sanitize(menu.RestaurantName)
	for i := range menu.Dishes {
		menu.Dishes[i].Name = o.sanitizer.Sanitize(menu.Dishes[i].Name)
		if menu.Dishes[i].Description != "" {
			menu.Dishes[i].Description = o.sanitizer.Sanitize(menu.Dishes[i].Description)
		}
	}
}

// EnrichmentPayload produces the privacy-minimal representation of a dish
// for the optional visualization enrichment call.
func (o *Orchestrator) EnrichmentPayload(dish models.Dish) models.OutgoingDishPayload {
	return o.sanitizer.SanitizePayload(dish)
}

// enterStage advances the state machine and publishes the stage and
// progress events in order.
func (o *Orchestrator) enterStage(analysisID string, stage models.ProcessingStage) {
	o.mu.Lock()
	o.stage = stage
	o.mu.Unlock()

	now := time.Now()
	o.publish(observer.AnalysisEvent{
		EventType:  observer.StageChanged,
		Timestamp:  now,
		AnalysisID: analysisID,
		Stage:      stage,
		Progress:   stage.Progress(),
	})
	o.publish(observer.AnalysisEvent{
		EventType:  observer.ProgressUpdated,
		Timestamp:  now,
		AnalysisID: analysisID,
		Stage:      stage,
		Progress:   stage.Progress(),
	})
}

// completeAndRelease transitions to completed, then auto-resets to idle
// after the grace period so callers never have to reset explicitly.
func (o *Orchestrator) completeAndRelease(generation uint64, analysisID string, elapsed time.Duration) {
	o.enterStage(analysisID, models.StageCompleted)
	o.publish(observer.AnalysisEvent{
		EventType:      observer.AnalysisCompleted,
		Timestamp:      time.Now(),
		AnalysisID:     analysisID,
		Stage:          models.StageCompleted,
		Progress:       1.0,
		ProcessingTime: elapsed,
	})

	o.mu.Lock()
	o.inFlight = false
	o.cancelRun = nil
	o.mu.Unlock()

	time.AfterFunc(completedGracePeriod, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		// A newer analysis may have started during the grace period.
		if o.generation == generation && !o.inFlight {
			o.stage = models.StageIdle
		}
	})
}

// failAndRelease surfaces the failure and resets straight to idle; no error
// leaves the state machine stuck mid-pipeline.
func (o *Orchestrator) failAndRelease(generation uint64, analysisID string, cause error) {
	kind := string(apperrors.KindInternal)
	var appErr *apperrors.AppError
	if errors.As(cause, &appErr) {
		kind = string(appErr.Kind)
	}

	o.mu.Lock()
	o.stage = models.StageIdle
	o.inFlight = false
	o.cancelRun = nil
	o.mu.Unlock()

	o.publish(observer.AnalysisEvent{
		EventType:  observer.AnalysisFailed,
		Timestamp:  time.Now(),
		AnalysisID: analysisID,
		Stage:      models.StageIdle,
		Progress:   0,
		ErrorKind:  kind,
	})
}

func (o *Orchestrator) publish(event observer.AnalysisEvent) {
	if o.publisher != nil {
		o.publisher.NotifyObservers(event)
	}
}

// cancelled converts a done context into the matching typed error.
func cancelled(ctx context.Context) error {
	switch ctx.Err() {
	case nil:
		return nil
	case context.DeadlineExceeded:
		return apperrors.NewTimeoutError("analysis timed out", ctx.Err())
	default:
		return apperrors.NewCancelledError("analysis cancelled", ctx.Err())
	}
}
