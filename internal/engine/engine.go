// Package engine defines the backend-independent OCR engine contract: the
// capability probe, the lazy load state machine shared by every adapter,
// and the raw result shapes the normalizer consumes.
package engine

import (
	"context"

	"go-ocr-service/internal/raster"
)

// Variant identifies which native API shape of a backend family is in use.
type Variant int

const (
	VariantNone Variant = iota
	VariantModern
	VariantLegacy
)

func (v Variant) String() string {
	switch v {
	case VariantModern:
		return "modern"
	case VariantLegacy:
		return "legacy"
	default:
		return "none"
	}
}

// LoadState tracks the adapter's model lifecycle.
type LoadState int

const (
	StateUnloaded LoadState = iota
	StateLoading
	StateReady
	StateFailed
)

func (s LoadState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unloaded"
	}
}

// CapabilityDescriptor is the immutable outcome of probing a backend
// family's installed surface. Computed at most once per process lifetime
// unless the adapter is explicitly reinitialized.
type CapabilityDescriptor struct {
	Variant    Variant
	ProbeError string
}

// RawLine is one line-level record extracted from a backend-native result.
// HasConfidence distinguishes a real 0.0 confidence from an absent one, so
// the normalizer can apply its documented fallback uniformly.
type RawLine struct {
	Text          string
	Confidence    float64
	HasConfidence bool

	// Box holds corner points ([[x,y], ...]); FlatBox holds coordinates a
	// backend already flattened. At most one of the two is set.
	Box     [][]float64
	FlatBox []float64
}

// RawResult is the closed union of backend-native result shapes: a
// sequence of line records, or a bare string (formula backends). The
// normalizer is total over this union.
type RawResult struct {
	Lines []RawLine

	Plain   string
	IsPlain bool
}

// PlainResult wraps a bare-string backend output.
func PlainResult(s string) RawResult {
	return RawResult{Plain: s, IsPlain: true}
}

// StateSnapshot is a point-in-time, side-effect-free view of an adapter's
// internal state, read by the readiness reporter.
type StateSnapshot struct {
	Engine         string
	LoadState      LoadState
	Variant        Variant
	HandlesPresent bool
	LastError      string
}

// Engine is the single operation every backend family exposes once its
// variant differences are hidden behind an adapter.
type Engine interface {
	Name() string
	Infer(ctx context.Context, img *raster.Image, languages []string) (RawResult, error)
	Initialize(ctx context.Context) error
	State() StateSnapshot
	Close() error
}
