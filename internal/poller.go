package fleettop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jondoveston/fleettop/internal/logger"
)

// Endpoint is a named netdata agent
type Endpoint struct {
	Name    string `json:"name" yaml:"name"`
	BaseURL string `json:"url" yaml:"url"`
}

// Poller polls a set of endpoints with one window
type Poller interface {
	Poll(ctx context.Context, endpoints []Endpoint, window Window) map[string]MachineResult
}

// FleetPoller is the recovery boundary of a poll: whatever happens while
// aggregating one machine ends up as that machine's failure record.
type FleetPoller struct {
	aggregator Aggregator
	workers    int
	metrics    *PollMetrics
	log        *slog.Logger
}

type PollerOption func(*FleetPoller)

// WithWorkers bounds how many machines are polled at once
func WithWorkers(n int) PollerOption {
	return func(p *FleetPoller) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithPollMetrics(m *PollMetrics) PollerOption {
	return func(p *FleetPoller) {
		p.metrics = m
	}
}

func WithLogger(l *slog.Logger) PollerOption {
	return func(p *FleetPoller) {
		if l != nil {
			p.log = l
		}
	}
}

func NewFleetPoller(a Aggregator, opts ...PollerOption) *FleetPoller {
	p := &FleetPoller{
		aggregator: a,
		workers:    DefaultWorkers,
		log:        logger.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll attempts every endpoint and blocks until each one has a result.
// Endpoint names are the keys of the returned map and must be unique.
func (p *FleetPoller) Poll(ctx context.Context, endpoints []Endpoint, window Window) map[string]MachineResult {
	results := make([]MachineResult, len(endpoints))

	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := min(p.workers, len(endpoints))
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = p.pollMachine(ctx, endpoints[i], window)
			}
		}()
	}
	for i := range endpoints {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	out := make(map[string]MachineResult, len(endpoints))
	for _, r := range results {
		out[r.Machine] = r
	}
	return out
}

func (p *FleetPoller) pollMachine(ctx context.Context, ep Endpoint, window Window) (res MachineResult) {
	defer func() {
		if r := recover(); r != nil {
			res = Failed(ep.Name, fmt.Errorf("panic while aggregating: %v", r))
		}
		p.metrics.observeMachine(ep.Name, res.Err)
		if res.Err != nil {
			p.log.Warn("machine poll failed",
				"machine", ep.Name,
				"url", ep.BaseURL,
				"kind", res.ErrorKind(),
				"error", res.Err)
		}
	}()

	m, err := p.aggregator.Aggregate(ctx, ep.BaseURL, window)
	if err != nil {
		return Failed(ep.Name, err)
	}
	p.log.Debug("machine polled", "machine", ep.Name)
	return Succeeded(ep.Name, m)
}
