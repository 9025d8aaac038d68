// Package store persists one snapshot row per machine per logging run.
package store

import (
	"context"
	"errors"
	"time"
)

// DefaultHistoryLimit matches the number of rows the history view shows
const DefaultHistoryLimit = 200

var ErrClosed = errors.New("store is closed")

// MetricLog is one persisted snapshot of one machine
type MetricLog struct {
	ID           int64     `json:"id" yaml:"id"`
	RunID        string    `json:"run_id" yaml:"run_id"`
	MachineName  string    `json:"machine_name" yaml:"machine_name"`
	Timestamp    time.Time `json:"timestamp" yaml:"timestamp"`
	CPUUsage     float64   `json:"cpu_usage" yaml:"cpu_usage"`
	MemoryUsage  float64   `json:"memory_usage" yaml:"memory_usage"`
	DiskUsage    float64   `json:"disk_usage" yaml:"disk_usage"`
	NetworkUsage float64   `json:"network_usage" yaml:"network_usage"`
}

// Store is safe for concurrent use
type Store interface {
	// SaveBatch persists all logs or none of them
	SaveBatch(ctx context.Context, logs []MetricLog) error
	// Recent returns at most limit of the newest logs, oldest first
	Recent(ctx context.Context, limit int) ([]MetricLog, error)
	Close() error
}

// GroupByMachine keeps the input order inside every group
func GroupByMachine(logs []MetricLog) map[string][]MetricLog {
	out := make(map[string][]MetricLog)
	for _, l := range logs {
		out[l.MachineName] = append(out[l.MachineName], l)
	}
	return out
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}
