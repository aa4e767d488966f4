package engine

import "go-ocr-service/pkg/models"

// ReportReadiness derives the tri-state health signal from an adapter
// snapshot. It is O(1) and side-effect-free by construction: it only reads
// the snapshot, so monitoring traffic can never trigger or race a model
// load. healthy requires Ready with a complete handle bundle; anything
// else is degraded.
func ReportReadiness(s StateSnapshot) models.HealthStatus {
	status := "degraded"
	if s.LoadState == StateReady && s.HandlesPresent {
		status = "healthy"
	}

	return models.HealthStatus{
		Status:       status,
		Engine:       s.Engine,
		ModelsLoaded: s.LoadState == StateReady && s.HandlesPresent,
		Variant:      s.Variant.String(),
		LoadState:    s.LoadState.String(),
		LastError:    s.LastError,
	}
}
