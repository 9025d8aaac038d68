package fleettop

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FleetCollector is a prometheus.Collector that polls the fleet in
// snapshot mode on every scrape. Nothing is cached between scrapes.
type FleetCollector struct {
	poller    Poller
	endpoints []Endpoint
	window    Window
	timeout   time.Duration

	up      *prometheus.Desc
	metrics map[Metric]*prometheus.Desc
}

// NewFleetCollector builds a collector; timeout bounds one whole scrape
func NewFleetCollector(p Poller, endpoints []Endpoint, timeout time.Duration) *FleetCollector {
	machine := []string{"machine"}
	return &FleetCollector{
		poller:    p,
		endpoints: endpoints,
		window:    SnapshotWindow,
		timeout:   timeout,
		up: prometheus.NewDesc(namespace+"_machine_up",
			"1 if every chart of the machine could be fetched.", machine, nil),
		metrics: map[Metric]*prometheus.Desc{
			MetricCPU: prometheus.NewDesc(namespace+"_machine_cpu_user",
				"system.cpu user dimension, averaged over the snapshot window.", machine, nil),
			MetricMemory: prometheus.NewDesc(namespace+"_machine_memory_used",
				"system.ram used dimension, averaged over the snapshot window.", machine, nil),
			MetricDisk: prometheus.NewDesc(namespace+"_machine_disk_used",
				"disk_space./ used dimension, averaged over the snapshot window.", machine, nil),
			MetricNetwork: prometheus.NewDesc(namespace+"_machine_network_received",
				"system.net received dimension, averaged over the snapshot window.", machine, nil),
		},
	}
}

func (c *FleetCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.up
	for _, d := range c.metrics {
		ch <- d
	}
}

func (c *FleetCollector) Collect(ch chan<- prometheus.Metric) {
	ctx := context.Background()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	results := c.poller.Poll(ctx, c.endpoints, c.window)
	for _, ep := range c.endpoints {
		res, ok := results[ep.Name]
		up := 0.0
		var sc Scalars
		if ok && res.OK() {
			var err error
			if sc, err = res.Metrics.Scalars(); err == nil {
				up = 1
			}
		}
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, up, ep.Name)
		if up == 0 {
			continue
		}
		values := map[Metric]float64{
			MetricCPU:     sc.CPU,
			MetricMemory:  sc.Memory,
			MetricDisk:    sc.Disk,
			MetricNetwork: sc.Network,
		}
		for metric, desc := range c.metrics {
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, values[metric], ep.Name)
		}
	}
}
