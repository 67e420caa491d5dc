package observer

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"go-menu-analyzer/pkg/models"
)

// EventType represents the type of analysis event.
type EventType string

const (
	// StageChanged when the orchestrator enters a new stage
	StageChanged EventType = "stage_changed"
	// ProgressUpdated when the progress fraction advances
	ProgressUpdated EventType = "progress_updated"
	// AnalysisCompleted when an analysis finishes successfully
	AnalysisCompleted EventType = "analysis_completed"
	// AnalysisFailed when an analysis fails
	AnalysisFailed EventType = "analysis_failed"
	// CacheHit when a result is served from the result cache
	CacheHit EventType = "cache_hit"
)

// AnalysisEvent represents one pipeline event.
type AnalysisEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	AnalysisID     string                 `json:"analysis_id"`
	Stage          models.ProcessingStage `json:"stage"`
	Progress       float64                `json:"progress"`
	ProcessingTime time.Duration          `json:"processing_time"`
	ErrorKind      string                 `json:"error_kind,omitempty"`
}

// Observer receives analysis events.
type Observer interface {
	OnEvent(event AnalysisEvent)
	GetObserverName() string
}

// Subject publishes analysis events.
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(event AnalysisEvent)
}

// EventPublisher implements Subject. Delivery is synchronous in
// subscription order: observers are guaranteed to see events in the order
// they were published, with stages never reordered or skipped. A panicking
// observer is isolated and does not stop delivery to the others.
type EventPublisher struct {
	mu        sync.Mutex
	observers []Observer
	logger    *logrus.Logger
}

// NewEventPublisher creates a new event publisher.
func NewEventPublisher(logger *logrus.Logger) *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
		logger:    logger,
	}
}

// Subscribe adds an observer.
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer.
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers the event to every observer. The lock is held
// for the whole fan-out so concurrent publishes cannot interleave events.
func (p *EventPublisher) NotifyObservers(event AnalysisEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, observer := range p.observers {
		p.deliver(observer, event)
	}
}

func (p *EventPublisher) deliver(observer Observer, event AnalysisEvent) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithField("observer", observer.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	observer.OnEvent(event)
}

// LoggingObserver logs analysis events.
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer.
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{logger: logger}
}

// OnEvent handles analysis events by logging them.
func (o *LoggingObserver) OnEvent(event AnalysisEvent) {
	fields := logrus.Fields{
		"event_type":  event.EventType,
		"analysis_id": event.AnalysisID,
		"stage":       event.Stage.String(),
		"progress":    event.Progress,
	}
	if event.ErrorKind != "" {
		fields["error_kind"] = event.ErrorKind
	}

	switch event.EventType {
	case AnalysisCompleted:
		fields["processing_time"] = event.ProcessingTime
		o.logger.WithFields(fields).Info("Menu analysis completed")
	case AnalysisFailed:
		o.logger.WithFields(fields).Error("Menu analysis failed")
	case CacheHit:
		o.logger.WithFields(fields).Info("Menu analysis served from cache")
	default:
		o.logger.WithFields(fields).Debug("Analysis event")
	}
}

// GetObserverName returns the observer name.
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver collects in-memory counters from analysis events.
type MetricsObserver struct {
	mu                  sync.RWMutex
	totalAnalyses       int64
	successfulAnalyses  int64
	failedAnalyses      int64
	cacheHits           int64
	totalProcessingTime time.Duration
}

// NewMetricsObserver creates a new metrics observer.
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles analysis events by collecting metrics.
func (o *MetricsObserver) OnEvent(event AnalysisEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case StageChanged:
		if event.Stage == models.StagePreparing {
			o.totalAnalyses++
		}
	case AnalysisCompleted:
		o.successfulAnalyses++
		o.totalProcessingTime += event.ProcessingTime
	case AnalysisFailed:
		o.failedAnalyses++
	case CacheHit:
		o.cacheHits++
	}
}

// GetObserverName returns the observer name.
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics.
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgProcessingTime := time.Duration(0)
	if o.successfulAnalyses > 0 {
		avgProcessingTime = o.totalProcessingTime / time.Duration(o.successfulAnalyses)
	}

	return map[string]interface{}{
		"total_analyses":      o.totalAnalyses,
		"successful_analyses": o.successfulAnalyses,
		"failed_analyses":     o.failedAnalyses,
		"cache_hits":          o.cacheHits,
		"avg_processing_time": avgProcessingTime,
	}
}
