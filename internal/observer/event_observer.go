package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RequestEvent represents a single OCR request lifecycle event
type RequestEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	Engine         string                 `json:"engine"`
	Source         string                 `json:"source"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of OCR request event
type EventType string

const (
	// RequestStarted when request processing begins
	RequestStarted EventType = "request_started"
	// RequestCompleted when recognition finishes successfully
	RequestCompleted EventType = "request_completed"
	// RequestFailed when recognition fails
	RequestFailed EventType = "request_failed"
	// ModelsLoaded when the engine's model load succeeds
	ModelsLoaded EventType = "models_loaded"
	// ModelLoadFailed when the engine's model load fails
	ModelLoadFailed EventType = "model_load_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event RequestEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event RequestEvent)
}

// LoggingObserver logs request events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles request events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event RequestEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"engine":          event.Engine,
		"source":          event.Source,
		"processing_time": event.ProcessingTime,
		"success":         event.Success,
	}

	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}

	if event.Metadata != nil {
		for k, v := range event.Metadata {
			fields[k] = v
		}
	}

	switch event.EventType {
	case RequestStarted:
		o.logger.WithFields(fields).Debug("OCR request started")
	case RequestCompleted:
		o.logger.WithFields(fields).Info("OCR request completed")
	case RequestFailed:
		o.logger.WithFields(fields).Error("OCR request failed")
	case ModelsLoaded:
		o.logger.WithFields(fields).Info("Engine models loaded")
	case ModelLoadFailed:
		o.logger.WithFields(fields).Error("Engine model load failed")
	default:
		o.logger.WithFields(fields).Info("Request event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver collects counters from request events
type MetricsObserver struct {
	mu                  sync.RWMutex
	totalRequests       int64
	successfulRequests  int64
	failedRequests      int64
	totalProcessingTime time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() Observer {
	return &MetricsObserver{}
}

// OnEvent handles request events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event RequestEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case RequestStarted:
		o.totalRequests++
	case RequestCompleted:
		o.successfulRequests++
		o.totalProcessingTime += event.ProcessingTime
	case RequestFailed:
		o.failedRequests++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgProcessingTime := time.Duration(0)
	if o.successfulRequests > 0 {
		avgProcessingTime = o.totalProcessingTime / time.Duration(o.successfulRequests)
	}

	return map[string]interface{}{
		"total_requests":        o.totalRequests,
		"successful_requests":   o.successfulRequests,
		"failed_requests":       o.failedRequests,
		"total_processing_time": o.totalProcessingTime,
		"avg_processing_time":   avgProcessingTime,
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() Subject {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
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

// NotifyObservers notifies all observers of an event
func (p *EventPublisher) NotifyObservers(ctx context.Context, event RequestEvent) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	// Notify observers concurrently
	for _, observer := range observers {
		go func(obs Observer) {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}
