// Package health exposes calendar sync health and the HTTP call-site endpoints.
package health

import "github.com/vietddude/calsync/internal/core/domain"

// SystemStatus represents the overall health state of calendar synchronization.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// Report is the body of the health endpoint.
type Report struct {
	Status      SystemStatus `json:"status"`
	State       string       `json:"state"`
	QueueSize   int          `json:"queue_size"`
	TotalErrors int          `json:"total_errors"`
}

// Evaluate derives the health of a sync status snapshot.
func Evaluate(st domain.SyncStatus) Report {
	status := StatusHealthy
	switch {
	case st.State == "failed":
		status = StatusCritical
	case !st.IsConnected, st.QueueSize > 0:
		status = StatusDegraded
	}
	return Report{
		Status:      status,
		State:       st.State,
		QueueSize:   st.QueueSize,
		TotalErrors: st.TotalErrors,
	}
}
