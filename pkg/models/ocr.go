package models

// Line is a single recognized text line in the canonical response schema.
type Line struct {
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox"`
}

// NormalizedResponse is the canonical OCR result returned to callers
// regardless of which backend family produced it. It is rebuilt fresh for
// every request and never cached.
type NormalizedResponse struct {
	Engine         string  `json:"engine"`
	Text           string  `json:"text"`
	Confidence     float64 `json:"confidence"`
	ProcessingTime float64 `json:"processingTime"` // milliseconds
	Lines          []Line  `json:"lines"`

	// LaTeX is populated by formula/math backends only.
	LaTeX string `json:"latex,omitempty"`

	// Accuracy is populated when the caller supplied an expected text.
	Accuracy *AccuracyReport `json:"accuracy,omitempty"`
}

// AccuracyReport compares recognized text against a caller-supplied
// reference transcript.
type AccuracyReport struct {
	ExpectedText string  `json:"expected_text"`
	WER          float64 `json:"word_error_rate"`
	CER          float64 `json:"character_error_rate"`
	MatchScore   float64 `json:"match_score"`
}

// HealthStatus is the readiness payload served on /health. It is derived
// purely from adapter load state and never reflects a live inference.
type HealthStatus struct {
	Status       string `json:"status"` // "healthy" or "degraded"
	Engine       string `json:"engine"`
	ModelsLoaded bool   `json:"models_loaded"`
	Variant      string `json:"variant,omitempty"`
	LoadState    string `json:"load_state,omitempty"`
	LastError    string `json:"last_error,omitempty"`
}

// ServiceInfo is the static metadata served on the root endpoint.
type ServiceInfo struct {
	Service     string            `json:"service"`
	Version     string            `json:"version"`
	Engine      string            `json:"engine"`
	Description string            `json:"description,omitempty"`
	Endpoints   map[string]string `json:"endpoints"`
}

// ErrorResponse is the failure payload for every request-scoped error.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
