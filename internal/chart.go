package fleettop

// Metric names one of the four tracked host resources
type Metric string

const (
	MetricCPU     Metric = "cpu"
	MetricMemory  Metric = "memory"
	MetricDisk    Metric = "disk"
	MetricNetwork Metric = "network"
)

// ChartQuery identifies a netdata chart and the labelled column that holds
// the value of interest
type ChartQuery struct {
	ChartID    string `json:"chart" yaml:"chart"`
	ValueLabel string `json:"label" yaml:"label"`
}

// TrackedChart binds a metric to the chart it is read from
type TrackedChart struct {
	Metric Metric
	Query  ChartQuery
}

// every machine is queried with the same table, in this order
var trackedCharts = [...]TrackedChart{
	{Metric: MetricCPU, Query: ChartQuery{ChartID: "system.cpu", ValueLabel: "user"}},
	{Metric: MetricMemory, Query: ChartQuery{ChartID: "system.ram", ValueLabel: "used"}},
	{Metric: MetricDisk, Query: ChartQuery{ChartID: "disk_space./", ValueLabel: "used"}},
	{Metric: MetricNetwork, Query: ChartQuery{ChartID: "system.net", ValueLabel: "received"}},
}

// TrackedCharts returns the fixed chart table in aggregation order
func TrackedCharts() []TrackedChart {
	out := make([]TrackedChart, len(trackedCharts))
	copy(out, trackedCharts[:])
	return out
}

// Metrics returns the tracked metric names in aggregation order
func Metrics() []Metric {
	out := make([]Metric, 0, len(trackedCharts))
	for _, tc := range trackedCharts {
		out = append(out, tc.Metric)
	}
	return out
}

// Window holds the time range and aggregation parameters of a query.
// A window with more than one point is a series query, a window with
// exactly one point is a scalar (snapshot) query.
type Window struct {
	After  int    `json:"after" yaml:"after"`
	Points int    `json:"points" yaml:"points"`
	Group  string `json:"group" yaml:"group"`
}

// Scalar reports whether the window asks for a single most recent value
func (w Window) Scalar() bool {
	return w.Points <= 1
}

func (w Window) group() string {
	if w.Group == "" {
		return DefaultGroup
	}
	return w.Group
}
