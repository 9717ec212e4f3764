package http

import "github.com/fyrsmithlabs/pdfchat/internal/telemetry"

// Status values reported by /health and /api/v1/status.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusStarting = "starting"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	Status    string                  `json:"status"`
	Version   string                  `json:"version,omitempty"`
	Uptime    string                  `json:"uptime"`
	Sessions  int64                   `json:"sessions"`
	Index     *IndexStatus            `json:"index,omitempty"`
	Telemetry *telemetry.HealthStatus `json:"telemetry,omitempty"`
}

// IndexStatus describes the loaded vector index.
type IndexStatus struct {
	Backend   string `json:"backend"`
	Chunks    int    `json:"chunks"`
	Dimension int    `json:"dimension"`
}
