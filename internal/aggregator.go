package fleettop

import (
	"context"
	"fmt"
	"sync"
)

// Aggregator builds the full record for one machine
type Aggregator interface {
	Aggregate(ctx context.Context, baseURL string, window Window) (MachineMetrics, error)
}

// MetricAggregator fetches the four tracked charts of a machine. It never
// returns a partially filled record: one failed chart fails the machine.
type MetricAggregator struct {
	fetcher Fetcher
}

func NewMetricAggregator(f Fetcher) *MetricAggregator {
	return &MetricAggregator{fetcher: f}
}

// Aggregate runs the chart fetches concurrently and waits for all of them.
// When several fail, the error of the first metric in table order wins.
func (a *MetricAggregator) Aggregate(ctx context.Context, baseURL string, window Window) (MachineMetrics, error) {
	charts := TrackedCharts()
	readings := make([]Reading, len(charts))
	errs := make([]error, len(charts))

	var wg sync.WaitGroup
	wg.Add(len(charts))
	for i, tc := range charts {
		i, tc := i, tc
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("panic fetching %s: %v", tc.Query.ChartID, r)
				}
			}()
			readings[i], errs[i] = a.fetcher.Fetch(ctx, baseURL, tc.Query, window)
		}()
	}
	wg.Wait()

	var m MachineMetrics
	for i, tc := range charts {
		if errs[i] != nil {
			return MachineMetrics{}, &MetricError{Metric: tc.Metric, Err: errs[i]}
		}
		if readings[i] == nil {
			return MachineMetrics{}, &MetricError{Metric: tc.Metric, Err: fmt.Errorf("no reading returned for %s", tc.Query.ChartID)}
		}
		m.set(tc.Metric, readings[i])
	}
	return m, nil
}
