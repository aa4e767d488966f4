// Package normalize collapses backend-native result shapes into the one
// canonical response schema callers consume without knowing which engine
// answered.
package normalize

import (
	"strings"

	"go-ocr-service/internal/engine"
	"go-ocr-service/pkg/models"
)

// FallbackConfidence is applied to any line record whose backend did not
// supply a native confidence, and to bare-string formula results. The
// value is a documented constant, not derived: it carries over from the
// services this one replaces and means no more than "a plausible default".
const FallbackConfidence = 0.85

// Normalize maps a RawResult into the canonical response. It is total over
// the result union: every variant, including the bare-string case and the
// zero-line case, has a defined mapping.
func Normalize(engineName string, raw engine.RawResult, elapsedMs float64) *models.NormalizedResponse {
	if raw.IsPlain {
		return normalizePlain(engineName, raw.Plain, elapsedMs)
	}

	lines := make([]models.Line, 0, len(raw.Lines))
	texts := make([]string, 0, len(raw.Lines))
	var confidenceSum float64

	for _, line := range raw.Lines {
		confidence := FallbackConfidence
		if line.HasConfidence {
			confidence = line.Confidence
		}

		lines = append(lines, models.Line{
			Text:       line.Text,
			Confidence: confidence,
			BBox:       flattenBox(line),
		})
		texts = append(texts, line.Text)
		confidenceSum += confidence
	}

	// Zero detections is a defined outcome, not an error: empty text and
	// confidence 0.0 rather than NaN.
	confidence := 0.0
	if len(lines) > 0 {
		confidence = confidenceSum / float64(len(lines))
	}

	return &models.NormalizedResponse{
		Engine:         engineName,
		Text:           strings.Join(texts, " "),
		Confidence:     confidence,
		ProcessingTime: elapsedMs,
		Lines:          lines,
	}
}

// normalizePlain handles formula backends that return a bare string: both
// text and latex carry the string, and confidence falls back, since such
// backends expose no native confidence at all.
func normalizePlain(engineName string, text string, elapsedMs float64) *models.NormalizedResponse {
	return &models.NormalizedResponse{
		Engine:         engineName,
		Text:           text,
		LaTeX:          text,
		Confidence:     FallbackConfidence,
		ProcessingTime: elapsedMs,
		Lines:          []models.Line{},
	}
}

// flattenBox turns whatever coordinate representation the backend used
// into a single flat ordered sequence, or an empty sequence when absent.
func flattenBox(line engine.RawLine) []float64 {
	if len(line.FlatBox) > 0 {
		out := make([]float64, len(line.FlatBox))
		copy(out, line.FlatBox)
		return out
	}
	out := make([]float64, 0, len(line.Box)*2)
	for _, point := range line.Box {
		out = append(out, point...)
	}
	return out
}
