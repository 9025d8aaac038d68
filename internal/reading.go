package fleettop

import (
	"fmt"
)

// Reading is either a TimeSeries or a Sample
type Reading interface {
	reading()
}

// TimeSeries holds parallel timestamp/value columns in provider row order
type TimeSeries struct {
	Timestamps []float64 `json:"timestamps" yaml:"timestamps"`
	Values     []float64 `json:"values" yaml:"values"`
}

func (TimeSeries) reading() {}

// Len returns the number of points in the series
func (s TimeSeries) Len() int {
	return len(s.Values)
}

// Last returns the value of the final row, if any
func (s TimeSeries) Last() (float64, bool) {
	if len(s.Values) == 0 {
		return 0, false
	}
	return s.Values[len(s.Values)-1], true
}

// Sample is the value drawn from the most recent row only
type Sample struct {
	Value float64 `json:"value" yaml:"value"`
}

func (Sample) reading() {}

// MachineMetrics is the record assembled for one machine by one poll
type MachineMetrics struct {
	CPU     Reading `json:"cpu" yaml:"cpu"`
	Memory  Reading `json:"memory" yaml:"memory"`
	Disk    Reading `json:"disk" yaml:"disk"`
	Network Reading `json:"network" yaml:"network"`
}

// Get returns the reading for a metric
func (m MachineMetrics) Get(metric Metric) Reading {
	switch metric {
	case MetricCPU:
		return m.CPU
	case MetricMemory:
		return m.Memory
	case MetricDisk:
		return m.Disk
	case MetricNetwork:
		return m.Network
	}
	return nil
}

func (m *MachineMetrics) set(metric Metric, r Reading) {
	switch metric {
	case MetricCPU:
		m.CPU = r
	case MetricMemory:
		m.Memory = r
	case MetricDisk:
		m.Disk = r
	case MetricNetwork:
		m.Network = r
	}
}

// Scalars is the flat single-value view of a machine record
type Scalars struct {
	CPU     float64 `json:"cpu_usage" yaml:"cpu_usage"`
	Memory  float64 `json:"memory_usage" yaml:"memory_usage"`
	Disk    float64 `json:"disk_usage" yaml:"disk_usage"`
	Network float64 `json:"network_usage" yaml:"network_usage"`
}

// Scalars flattens the record. Samples are used as is, series contribute
// their last value.
func (m MachineMetrics) Scalars() (Scalars, error) {
	var out Scalars
	targets := map[Metric]*float64{
		MetricCPU:     &out.CPU,
		MetricMemory:  &out.Memory,
		MetricDisk:    &out.Disk,
		MetricNetwork: &out.Network,
	}
	for _, metric := range Metrics() {
		v, err := scalarOf(m.Get(metric))
		if err != nil {
			return Scalars{}, fmt.Errorf("%s: %w", metric, err)
		}
		*targets[metric] = v
	}
	return out, nil
}

func scalarOf(r Reading) (float64, error) {
	switch r := r.(type) {
	case Sample:
		return r.Value, nil
	case TimeSeries:
		v, ok := r.Last()
		if !ok {
			return 0, fmt.Errorf("empty series")
		}
		return v, nil
	case nil:
		return 0, fmt.Errorf("missing reading")
	default:
		return 0, fmt.Errorf("unsupported reading %T", r)
	}
}
