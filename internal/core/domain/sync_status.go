package domain

import "time"

// SyncStatus is a point-in-time view of calendar synchronization health.
type SyncStatus struct {
	IsConnected       bool              `json:"is_connected"`
	State             string            `json:"state"`
	CalendarID        string            `json:"calendar_id"`
	LastSync          time.Time         `json:"last_sync"`
	TotalErrors       int               `json:"total_errors"`
	ErrorsByOperation map[Operation]int `json:"errors_by_operation"`
	RecentErrors      []OperationError  `json:"recent_errors"`
	QueueSize         int               `json:"queue_size"`
}
