package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go-ocr-service/internal/engine"
	apperrors "go-ocr-service/internal/errors"
	"go-ocr-service/internal/normalize"
	"go-ocr-service/internal/observer"
	"go-ocr-service/internal/raster"
	"go-ocr-service/internal/storage"
	"go-ocr-service/pkg/models"
	"go-ocr-service/pkg/validation"
)

const serviceVersion = "1.0.0"

// RequestOptions carries per-request parameters for a recognition call.
type RequestOptions struct {
	// Languages are caller-supplied recognition hints. Empty means the
	// engine's configured defaults.
	Languages []string

	// ExpectedText, when non-empty, triggers accuracy scoring of the
	// recognized text.
	ExpectedText string

	// Source labels where the image came from, for event metadata
	// ("upload", "url", "blob").
	Source string
}

// OCRService defines the orchestration surface between transport and
// engine layers.
type OCRService interface {
	RecognizeBytes(ctx context.Context, data []byte, opts RequestOptions) (*models.NormalizedResponse, error)
	RecognizeURL(ctx context.Context, imageURL string, opts RequestOptions) (*models.NormalizedResponse, error)
	Initialize(ctx context.Context) error
	Health() models.HealthStatus
	Info() models.ServiceInfo
	Close() error
}

type ocrService struct {
	engine           engine.Engine
	fetcher          storage.ImageFetcher
	blobs            storage.BlobStorage
	events           observer.Subject
	inferenceTimeout time.Duration
}

// NewOCRService creates the orchestrator. blobs may be nil when Azure
// credentials are not configured; events may be nil to disable
// notifications.
func NewOCRService(
	eng engine.Engine,
	fetcher storage.ImageFetcher,
	blobs storage.BlobStorage,
	events observer.Subject,
	inferenceTimeout time.Duration,
) OCRService {
	return &ocrService{
		engine:           eng,
		fetcher:          fetcher,
		blobs:            blobs,
		events:           events,
		inferenceTimeout: inferenceTimeout,
	}
}

// RecognizeBytes decodes the payload, runs inference and normalizes the
// result. Processing time covers decode plus inference, not transport.
func (s *ocrService) RecognizeBytes(ctx context.Context, data []byte, opts RequestOptions) (*models.NormalizedResponse, error) {
	s.notify(ctx, observer.RequestEvent{
		EventType: observer.RequestStarted,
		Timestamp: time.Now(),
		Engine:    s.engine.Name(),
		Source:    opts.Source,
	})

	start := time.Now()

	img, err := raster.Decode(data)
	if err != nil {
		decodeErr := apperrors.NewDecodeError("failed to decode image", err)
		s.notifyFailure(ctx, opts, time.Since(start), decodeErr)
		return nil, decodeErr
	}

	inferCtx := ctx
	if s.inferenceTimeout > 0 {
		var cancel context.CancelFunc
		inferCtx, cancel = context.WithTimeout(ctx, s.inferenceTimeout)
		defer cancel()
	}

	raw, err := s.engine.Infer(inferCtx, img, opts.Languages)
	if err != nil {
		if inferCtx.Err() == context.DeadlineExceeded {
			err = apperrors.NewTimeoutError("inference timed out", err)
		}
		s.notifyFailure(ctx, opts, time.Since(start), err)
		return nil, err
	}

	// Processing time covers decode, inference and normalization, so the
	// clock is read only after the response is assembled.
	response := normalize.Normalize(s.engine.Name(), raw, 0)
	response.ProcessingTime = float64(time.Since(start)) / float64(time.Millisecond)

	if strings.TrimSpace(opts.ExpectedText) != "" {
		response.Accuracy = validation.Score(opts.ExpectedText, response.Text)
	}

	s.notify(ctx, observer.RequestEvent{
		EventType:      observer.RequestCompleted,
		Timestamp:      time.Now(),
		Engine:         s.engine.Name(),
		Source:         opts.Source,
		ProcessingTime: time.Since(start),
		Success:        true,
		Metadata: map[string]interface{}{
			"lines":      len(response.Lines),
			"confidence": response.Confidence,
		},
	})

	return response, nil
}

// RecognizeURL fetches the image over HTTP or Azure Blob Storage and
// recognizes it. Blob-hosted images are detected by host suffix.
func (s *ocrService) RecognizeURL(ctx context.Context, imageURL string, opts RequestOptions) (*models.NormalizedResponse, error) {
	if strings.TrimSpace(imageURL) == "" {
		return nil, apperrors.NewValidationError("image URL is required", nil)
	}

	var (
		data []byte
		err  error
	)
	if s.blobs != nil && strings.Contains(imageURL, ".blob.core.windows.net") {
		opts.Source = "blob"
		data, err = s.blobs.GetImage(ctx, imageURL)
	} else {
		opts.Source = "url"
		data, err = s.fetcher.FetchImage(ctx, imageURL)
	}
	if err != nil {
		netErr := apperrors.NewNetworkError(fmt.Sprintf("failed to fetch image from %s", imageURL), err)
		s.notifyFailure(ctx, opts, 0, netErr)
		return nil, netErr
	}

	return s.RecognizeBytes(ctx, data, opts)
}

// Initialize eagerly loads the engine's models. Without it the first
// recognition call triggers the load.
func (s *ocrService) Initialize(ctx context.Context) error {
	err := s.engine.Initialize(ctx)
	event := observer.RequestEvent{
		EventType: observer.ModelsLoaded,
		Timestamp: time.Now(),
		Engine:    s.engine.Name(),
		Success:   err == nil,
	}
	if err != nil {
		event.EventType = observer.ModelLoadFailed
		event.ErrorMessage = err.Error()
	}
	s.notify(ctx, event)
	return err
}

// Health reports readiness from adapter state without touching models.
func (s *ocrService) Health() models.HealthStatus {
	return engine.ReportReadiness(s.engine.State())
}

// Info returns static service metadata for the root endpoint.
func (s *ocrService) Info() models.ServiceInfo {
	return models.ServiceInfo{
		Service:     "ocr-service",
		Version:     serviceVersion,
		Engine:      s.engine.Name(),
		Description: fmt.Sprintf("OCR service backed by the %s engine", s.engine.Name()),
		Endpoints: map[string]string{
			"ocr":    "POST /ocr",
			"health": "GET /health",
			"info":   "GET /",
		},
	}
}

// Close releases engine handles.
func (s *ocrService) Close() error {
	return s.engine.Close()
}

func (s *ocrService) notify(ctx context.Context, event observer.RequestEvent) {
	if s.events != nil {
		s.events.NotifyObservers(ctx, event)
	}
}

func (s *ocrService) notifyFailure(ctx context.Context, opts RequestOptions, elapsed time.Duration, err error) {
	s.notify(ctx, observer.RequestEvent{
		EventType:      observer.RequestFailed,
		Timestamp:      time.Now(),
		Engine:         s.engine.Name(),
		Source:         opts.Source,
		ProcessingTime: elapsed,
		ErrorMessage:   err.Error(),
	})
}
