package container

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"go-menu-analyzer/internal/cache"
	"go-menu-analyzer/internal/config"
	"go-menu-analyzer/internal/logger"
	"go-menu-analyzer/internal/observer"
	"go-menu-analyzer/internal/optimizer"
	"go-menu-analyzer/internal/orchestrator"
	"go-menu-analyzer/internal/privacy"
	"go-menu-analyzer/internal/security"
	"go-menu-analyzer/internal/storage"
	"go-menu-analyzer/internal/transport"
)

// Container holds the wired application dependency graph.
type Container struct {
	config       *config.Config
	fetcher      storage.PhotoFetcher
	orchestrator *orchestrator.Orchestrator
	metrics      *observer.MetricsObserver
	registry     *prometheus.Registry
	handler      http.Handler
}

// NewContainer builds the full dependency graph from the configuration.
func NewContainer(cfg *config.Config) (*Container, error) {
	fetcher, err := newPhotoFetcher(cfg)
	if err != nil {
		return nil, err
	}

	builder, err := security.NewRequestBuilder(
		cfg.Inference.Endpoint,
		cfg.Inference.AllowedPathPrefix,
		cfg.Inference.APIKey,
		cfg.Inference.SigningKey,
		cfg.Inference.ProtocolVersion,
	)
	if err != nil {
		return nil, err
	}

	limiter := security.NewRateLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
	sender := security.NewClient(cfg.Inference.PinnedCertHashes, limiter)

	results := cache.NewResultCache(cfg.Cache.TTL, cfg.Cache.MaxEntries, cfg.Cache.MaxCostSize)
	sanitizer := privacy.NewSanitizer()
	imageOptimizer := optimizer.NewImageOptimizer()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	metrics := observer.NewMetricsObserver()
	publisher := observer.NewEventPublisher(logger.Logger)
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(metrics)
	publisher.Subscribe(observer.NewPrometheusObserver(registry))

	orch := orchestrator.New(
		imageOptimizer,
		builder,
		sender,
		results,
		sanitizer,
		publisher,
		cfg.Inference.Endpoint,
		cfg.Inference.Model,
	)

	handler := transport.NewHandler(orch, imageOptimizer, fetcher, metrics, registry, cfg)

	return &Container{
		config:       cfg,
		fetcher:      fetcher,
		orchestrator: orch,
		metrics:      metrics,
		registry:     registry,
		handler:      handler,
	}, nil
}

func newPhotoFetcher(cfg *config.Config) (storage.PhotoFetcher, error) {
	switch cfg.Storage.Backend {
	case "azure":
		return storage.NewAzurePhotoFetcher(cfg.Storage.AzureAccountName, cfg.Storage.AzureAccountKey)
	case "http", "":
		return storage.NewHTTPPhotoFetcher(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// Handler returns the HTTP handler.
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Orchestrator returns the pipeline orchestrator.
func (c *Container) Orchestrator() *orchestrator.Orchestrator {
	return c.orchestrator
}
