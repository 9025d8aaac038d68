package fleettop

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/plain")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(resp.Body)
	require.NoError(t, err)
	return families
}

// gaugeByMachine indexes the gauge values of a family by machine label
func gaugeByMachine(mf *dto.MetricFamily) map[string]float64 {
	out := make(map[string]float64)
	if mf == nil {
		return out
	}
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "machine" {
				out[lp.GetValue()] = m.GetGauge().GetValue()
			}
		}
	}
	return out
}

func TestFleetCollector(t *testing.T) {
	var (
		mu          sync.Mutex
		gotWindow   Window
		hadDeadline bool
	)
	p := pollerFunc(func(ctx context.Context, _ []Endpoint, w Window) map[string]MachineResult {
		mu.Lock()
		defer mu.Unlock()
		gotWindow = w
		_, hadDeadline = ctx.Deadline()
		return map[string]MachineResult{
			"local": Succeeded("local", MachineMetrics{
				CPU:     Sample{Value: 5},
				Memory:  Sample{Value: 2048},
				Disk:    Sample{Value: 40},
				Network: Sample{Value: 12.5},
			}),
			"node1": Failed("node1", errors.New("refused")),
		}
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(NewFleetCollector(p, []Endpoint{
		{Name: "local", BaseURL: "http://local:19999"},
		{Name: "node1", BaseURL: "http://node1:19999"},
	}, time.Second))

	families := scrape(t, reg)
	mu.Lock()
	assert.Equal(t, SnapshotWindow, gotWindow)
	assert.True(t, hadDeadline)
	mu.Unlock()

	up := families["fleettop_machine_up"]
	require.NotNil(t, up)
	assert.Equal(t, dto.MetricType_GAUGE, up.GetType())
	assert.Equal(t, map[string]float64{"local": 1, "node1": 0}, gaugeByMachine(up))

	assert.Equal(t, map[string]float64{"local": 5}, gaugeByMachine(families["fleettop_machine_cpu_user"]))
	assert.Equal(t, map[string]float64{"local": 2048}, gaugeByMachine(families["fleettop_machine_memory_used"]))
	assert.Equal(t, map[string]float64{"local": 40}, gaugeByMachine(families["fleettop_machine_disk_used"]))
	assert.Equal(t, map[string]float64{"local": 12.5}, gaugeByMachine(families["fleettop_machine_network_received"]))
}

func TestFleetCollector_PollsOnEveryScrape(t *testing.T) {
	var polls atomic.Int32
	p := pollerFunc(func(context.Context, []Endpoint, Window) map[string]MachineResult {
		n := polls.Add(1)
		return map[string]MachineResult{"local": Succeeded("local", sampleMetrics(float64(n)))}
	})
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewFleetCollector(p, []Endpoint{{Name: "local", BaseURL: "http://local:19999"}}, 0))

	scrape(t, reg)
	families := scrape(t, reg)
	assert.Equal(t, int32(2), polls.Load())
	assert.Equal(t, map[string]float64{"local": 2}, gaugeByMachine(families["fleettop_machine_cpu_user"]))
}

func TestPollMetrics_NilSafe(t *testing.T) {
	var m *PollMetrics
	assert.NotPanics(t, func() {
		m.observeFetch("system.cpu", nil, time.Millisecond)
		m.observeMachine("local", errors.New("x"))
	})
}

func TestPollMetrics_Registered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPollMetrics(reg)
	m.observeFetch("system.cpu", &FetchError{Kind: KindDecode}, time.Millisecond)
	m.observeFetch("system.cpu", errors.New("other"), time.Millisecond)
	m.observeMachine("local", nil)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "fleettop_chart_fetches_total")
	assert.Contains(t, names, "fleettop_chart_fetch_duration_seconds")
	assert.Contains(t, names, "fleettop_machine_polls_total")
	assert.NotContains(t, names, "fleettop_machine_poll_failures_total", "no failure observed yet")

	assert.Equal(t, "decode", resultLabel(&MetricError{Metric: MetricCPU, Err: &FetchError{Kind: KindDecode}}))
	assert.Equal(t, "error", resultLabel(errors.New("other")))
	assert.Equal(t, "ok", resultLabel(nil))
}
