package engine

import (
	"context"
	"fmt"
	"sync"

	apperrors "go-ocr-service/internal/errors"
	"go-ocr-service/internal/logger"
	"go-ocr-service/internal/raster"

	"github.com/sirupsen/logrus"
)

// Handles is the opaque per-variant bundle of loaded model state.
type Handles interface {
	// Complete reports whether every handle the variant requires is present.
	Complete() bool
	Close() error
}

// LoadFunc constructs the model handle bundle for a family and reports
// which variant it built. Called at most once per process unless the
// adapter is explicitly reinitialized.
type LoadFunc func(ctx context.Context) (Handles, Variant, error)

// InferFunc runs one inference against a ready handle bundle.
type InferFunc func(ctx context.Context, h Handles, img *raster.Image, languages []string) (RawResult, error)

// Adapter implements the lazy load protocol shared by every backend
// family: Unloaded -> Loading -> {Ready | Failed}. The load transition is
// single-flight; concurrent Infer calls arriving during Loading wait for
// the in-flight load instead of constructing duplicate handles. Failed is
// sticky: subsequent calls fail fast until an explicit Reinitialize.
type Adapter struct {
	name      string
	load      LoadFunc
	infer     InferFunc
	serialize bool

	mu      sync.Mutex
	state   LoadState
	variant Variant
	handles Handles
	lastErr error
	loading chan struct{}

	// callMu serializes inference for backends whose native primitive is
	// not reentrant (adapters opt in via WithSerializedInference).
	callMu sync.Mutex
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithSerializedInference makes Infer hold a call-scoped lock around the
// backend invocation. Use for backends that forbid concurrent calls; this
// is the safe default when reentrancy is unknown.
func WithSerializedInference() AdapterOption {
	return func(a *Adapter) { a.serialize = true }
}

// NewAdapter builds an adapter in the Unloaded state. No model state is
// touched until Initialize or the first Infer call.
func NewAdapter(name string, load LoadFunc, infer InferFunc, opts ...AdapterOption) *Adapter {
	a := &Adapter{name: name, load: load, infer: infer, state: StateUnloaded}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() string { return a.name }

// Initialize runs the load protocol if it has not run yet. Idempotent:
// calling it on a Ready adapter performs no additional construction.
func (a *Adapter) Initialize(ctx context.Context) error {
	return a.ensureReady(ctx)
}

// Infer runs one inference, loading models first if needed. Backend errors
// propagate as inference failures, distinct from load failures, and never
// corrupt adapter state.
func (a *Adapter) Infer(ctx context.Context, img *raster.Image, languages []string) (RawResult, error) {
	if err := a.ensureReady(ctx); err != nil {
		return RawResult{}, err
	}

	a.mu.Lock()
	handles := a.handles
	a.mu.Unlock()

	if a.serialize {
		a.callMu.Lock()
		defer a.callMu.Unlock()
	}

	result, err := a.infer(ctx, handles, img, languages)
	if err != nil {
		return RawResult{}, apperrors.NewInferenceError(
			fmt.Sprintf("%s inference failed", a.name), err)
	}
	return result, nil
}

func (a *Adapter) ensureReady(ctx context.Context) error {
	for {
		a.mu.Lock()
		switch a.state {
		case StateReady:
			a.mu.Unlock()
			return nil

		case StateFailed:
			err := a.lastErr
			a.mu.Unlock()
			return apperrors.NewLoadError(
				fmt.Sprintf("%s models unavailable", a.name), err)

		case StateLoading:
			done := a.loading
			a.mu.Unlock()
			select {
			case <-done:
				// Re-check the outcome.
			case <-ctx.Done():
				return apperrors.NewTimeoutError(
					fmt.Sprintf("waiting for %s model load", a.name), ctx.Err())
			}

		case StateUnloaded:
			done := make(chan struct{})
			a.loading = done
			a.state = StateLoading
			a.mu.Unlock()
			a.runLoad(ctx, done)
		}
	}
}

func (a *Adapter) runLoad(ctx context.Context, done chan struct{}) {
	logger.WithEngine(a.name).Info("Loading models")
	handles, variant, err := a.load(ctx)
	if err == nil && (handles == nil || !handles.Complete()) {
		err = fmt.Errorf("model load returned an incomplete handle bundle")
		if handles != nil {
			_ = handles.Close()
		}
		handles = nil
	}

	a.mu.Lock()
	if err != nil {
		a.state = StateFailed
		a.lastErr = err
	} else {
		a.state = StateReady
		a.variant = variant
		a.handles = handles
		a.lastErr = nil
	}
	state, v := a.state, a.variant
	close(done)
	a.mu.Unlock()

	if err != nil {
		logger.WithEngine(a.name).WithError(err).Error("Model load failed")
		return
	}
	logger.WithEngine(a.name).WithFields(logrus.Fields{
		"variant": v.String(),
		"state":   state.String(),
	}).Info("Models loaded")
}

// Reinitialize tears down the current handles and reruns the load
// protocol. This is the only path out of Failed; it is never implicit.
func (a *Adapter) Reinitialize(ctx context.Context) error {
	a.mu.Lock()
	if a.state == StateLoading {
		a.mu.Unlock()
		return apperrors.NewLoadError(
			fmt.Sprintf("%s load already in progress", a.name), nil)
	}
	if a.handles != nil {
		_ = a.handles.Close()
	}
	a.state = StateUnloaded
	a.variant = VariantNone
	a.handles = nil
	a.lastErr = nil
	a.loading = nil
	a.mu.Unlock()

	return a.ensureReady(ctx)
}

// State returns a point-in-time snapshot without blocking on or
// triggering a load.
func (a *Adapter) State() StateSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snapshot := StateSnapshot{
		Engine:         a.name,
		LoadState:      a.state,
		Variant:        a.variant,
		HandlesPresent: a.handles != nil && a.handles.Complete(),
	}
	if a.lastErr != nil {
		snapshot.LastError = a.lastErr.Error()
	}
	return snapshot
}

// Close releases model handles. The adapter returns to Unloaded.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var err error
	if a.handles != nil {
		err = a.handles.Close()
	}
	a.state = StateUnloaded
	a.variant = VariantNone
	a.handles = nil
	a.lastErr = nil
	a.loading = nil
	return err
}
