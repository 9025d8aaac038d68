package fleettop

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jondoveston/fleettop/internal/logger"
	"github.com/jondoveston/fleettop/internal/store"
)

// LogWriter is the persistence side of a snapshot run
type LogWriter interface {
	SaveBatch(ctx context.Context, logs []store.MetricLog) error
}

// Recorder performs one snapshot logging run: poll every machine once in
// scalar mode and persist a row per successful machine
type Recorder struct {
	poller Poller
	writer LogWriter
	window Window
	log    *slog.Logger
	newID  func() string
}

type RecorderOption func(*Recorder)

func WithRecorderWindow(w Window) RecorderOption {
	return func(r *Recorder) {
		r.window = w
	}
}

func WithRecorderLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.log = l
		}
	}
}

func NewRecorder(p Poller, w LogWriter, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		poller: p,
		writer: w,
		window: SnapshotWindow,
		log:    logger.Default(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunSummary describes what a snapshot run persisted and skipped
type RunSummary struct {
	RunID  string            `json:"run_id" yaml:"run_id"`
	At     time.Time         `json:"timestamp" yaml:"timestamp"`
	Logged []store.MetricLog `json:"logged" yaml:"logged"`
	Failed map[string]string `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// Record polls the endpoints and saves every successful machine stamped
// with at (in UTC). Failed machines are logged and skipped. Only a
// persistence failure is returned as an error.
func (r *Recorder) Record(ctx context.Context, endpoints []Endpoint, at time.Time) (RunSummary, error) {
	summary := RunSummary{
		RunID:  r.newID(),
		At:     at.UTC(),
		Failed: make(map[string]string),
	}

	results := r.poller.Poll(ctx, endpoints, r.window)

	logs := make([]store.MetricLog, 0, len(endpoints))
	for _, ep := range endpoints {
		res, ok := results[ep.Name]
		if !ok {
			res = Failed(ep.Name, fmt.Errorf("no result returned"))
		}
		if !res.OK() {
			r.log.Warn("failed to log snapshot", "machine", ep.Name, "error", res.Err)
			summary.Failed[ep.Name] = res.ErrorMessage()
			continue
		}

		sc, err := res.Metrics.Scalars()
		if err != nil {
			r.log.Warn("failed to log snapshot", "machine", ep.Name, "error", err)
			summary.Failed[ep.Name] = err.Error()
			continue
		}

		logs = append(logs, store.MetricLog{
			RunID:        summary.RunID,
			MachineName:  ep.Name,
			Timestamp:    summary.At,
			CPUUsage:     sc.CPU,
			MemoryUsage:  sc.Memory,
			DiskUsage:    sc.Disk,
			NetworkUsage: sc.Network,
		})
	}

	if len(logs) > 0 {
		if err := r.writer.SaveBatch(ctx, logs); err != nil {
			return summary, fmt.Errorf("save snapshot run %s: %w", summary.RunID, err)
		}
	}
	for _, l := range logs {
		r.log.Info("logged snapshot", "machine", l.MachineName, "timestamp", l.Timestamp, "run_id", l.RunID)
	}
	summary.Logged = logs
	return summary, nil
}
