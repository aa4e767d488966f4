package container

import (
	"fmt"
	"net/http"

	"go-ocr-service/internal/config"
	"go-ocr-service/internal/engine"
	"go-ocr-service/internal/factory"
	"go-ocr-service/internal/logger"
	"go-ocr-service/internal/observer"
	"go-ocr-service/internal/service"
	"go-ocr-service/internal/transport"
)

// Container holds all application dependencies
type Container struct {
	config     *config.Config
	engine     engine.Engine
	ocrService service.OCRService
	metrics    *observer.MetricsObserver
	handler    http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer() (*Container, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewContainerWithConfig(cfg)
}

// NewContainerWithConfig builds the dependency graph from an already
// loaded configuration.
func NewContainerWithConfig(cfg *config.Config) (*Container, error) {
	components := factory.NewComponentFactory(cfg)

	eng, err := components.EngineFactory.CreateEngine(cfg.Engine)
	if err != nil {
		return nil, err
	}

	fetcher := components.StorageFactory.CreateFetcher()
	blobs, err := components.StorageFactory.CreateBlobStorage()
	if err != nil {
		return nil, fmt.Errorf("failed to init blob storage: %w", err)
	}

	metrics := observer.NewMetricsObserver().(*observer.MetricsObserver)
	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	ocrService := service.NewOCRService(eng, fetcher, blobs, events, cfg.InferenceTimeout)
	handler := transport.NewHandler(ocrService, cfg)

	return &Container{
		config:     cfg,
		engine:     eng,
		ocrService: ocrService,
		metrics:    metrics,
		handler:    handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the OCR orchestrator
func (c *Container) Service() service.OCRService {
	return c.ocrService
}

// Metrics returns the request metrics collector
func (c *Container) Metrics() *observer.MetricsObserver {
	return c.metrics
}

// Close releases engine resources
func (c *Container) Close() error {
	return c.ocrService.Close()
}
