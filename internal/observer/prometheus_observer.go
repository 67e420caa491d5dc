package observer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusObserver exports analysis events as Prometheus metrics.
type PrometheusObserver struct {
	analysesTotal   *prometheus.CounterVec
	cacheHitsTotal  prometheus.Counter
	analysisSeconds prometheus.Histogram
}

// NewPrometheusObserver registers the pipeline metrics on the given
// registerer and returns the observer.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	factory := promauto.With(reg)
	return &PrometheusObserver{
		analysesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "menu_analyses_total",
			Help: "Number of menu analyses by outcome.",
		}, []string{"outcome"}),
		cacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "menu_analysis_cache_hits_total",
			Help: "Number of analyses served from the result cache.",
		}),
		analysisSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "menu_analysis_duration_seconds",
			Help:    "Wall time of successful menu analyses.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
	}
}

// OnEvent records the event in the exported metrics.
func (o *PrometheusObserver) OnEvent(event AnalysisEvent) {
	switch event.EventType {
	case AnalysisCompleted:
		o.analysesTotal.WithLabelValues("success").Inc()
		o.analysisSeconds.Observe(event.ProcessingTime.Seconds())
	case AnalysisFailed:
		o.analysesTotal.WithLabelValues("failure").Inc()
	case CacheHit:
		o.cacheHitsTotal.Inc()
	}
}

// GetObserverName returns the observer name.
func (o *PrometheusObserver) GetObserverName() string {
	return "prometheus_observer"
}
