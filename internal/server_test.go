package fleettop

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jondoveston/fleettop/internal/store"
)

type historyFunc func(ctx context.Context, limit int) ([]store.MetricLog, error)

func (f historyFunc) Recent(ctx context.Context, limit int) ([]store.MetricLog, error) {
	return f(ctx, limit)
}

func testFleet(t *testing.T) *Fleet {
	t.Helper()
	f, err := NewFleet([]Endpoint{
		{Name: "local", BaseURL: "http://192.155.91.125:19999"},
		{Name: "node1", BaseURL: "http://66.175.212.234:19999"},
	})
	require.NoError(t, err)
	return f
}

// echoPoller answers every machine with a sample of the window's point count,
// node1 always fails
func echoPoller() Poller {
	return pollerFunc(func(_ context.Context, eps []Endpoint, w Window) map[string]MachineResult {
		out := make(map[string]MachineResult, len(eps))
		for _, ep := range eps {
			if ep.Name == "node1" {
				out[ep.Name] = Failed(ep.Name, &MetricError{Metric: MetricCPU, Err: &FetchError{Kind: KindHTTPStatus, Chart: "system.cpu", StatusCode: 500}})
				continue
			}
			out[ep.Name] = Succeeded(ep.Name, sampleMetrics(float64(w.Points)))
		}
		return out
	})
}

func serve(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	s := NewServer(ServerConfig{Fleet: testFleet(t), Poller: echoPoller()})
	rec := serve(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_Machines(t *testing.T) {
	s := NewServer(ServerConfig{Fleet: testFleet(t), Poller: echoPoller()})
	rec := serve(t, s, "/api/machines")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"name": "local", "url": "http://192.155.91.125:19999"},
		{"name": "node1", "url": "http://66.175.212.234:19999"}
	]`, rec.Body.String())
}

func TestServer_Dashboard(t *testing.T) {
	s := NewServer(ServerConfig{Fleet: testFleet(t), Poller: echoPoller()})
	rec := serve(t, s, "/api/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]any{"value": 10.0}, body["local"]["cpu"], "dashboard window has ten points")
	assert.Equal(t, "cpu: chart system.cpu: http 500", body["node1"]["error"])
}

func TestServer_Snapshot(t *testing.T) {
	s := NewServer(ServerConfig{Fleet: testFleet(t), Poller: echoPoller()})
	rec := serve(t, s, "/api/snapshot")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]any{"value": 1.0}, body["local"]["memory"])
}

func TestServer_Machine(t *testing.T) {
	s := NewServer(ServerConfig{Fleet: testFleet(t), Poller: echoPoller()})

	rec := serve(t, s, "/api/machines/local")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"network"`)

	rec = serve(t, s, "/api/machines/node9")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown machine node9")
}

func TestServer_History(t *testing.T) {
	at := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	var gotLimit int
	history := historyFunc(func(_ context.Context, limit int) ([]store.MetricLog, error) {
		gotLimit = limit
		return []store.MetricLog{
			{ID: 1, MachineName: "local", Timestamp: at, CPUUsage: 1},
			{ID: 2, MachineName: "node1", Timestamp: at, CPUUsage: 2},
			{ID: 3, MachineName: "local", Timestamp: at.Add(time.Minute), CPUUsage: 3},
		}, nil
	})
	s := NewServer(ServerConfig{Fleet: testFleet(t), Poller: echoPoller(), History: history})

	rec := serve(t, s, "/api/history")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.DefaultHistoryLimit, gotLimit)

	var body map[string][]store.MetricLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body["local"], 2)
	assert.Equal(t, 3.0, body["local"][1].CPUUsage)
	assert.Len(t, body["node1"], 1)

	rec = serve(t, s, "/api/history?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, gotLimit)

	rec = serve(t, s, "/api/history?limit=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_HistoryErrors(t *testing.T) {
	s := NewServer(ServerConfig{Fleet: testFleet(t), Poller: echoPoller()})
	rec := serve(t, s, "/api/history")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	failing := historyFunc(func(context.Context, int) ([]store.MetricLog, error) {
		return nil, errors.New("disk I/O error")
	})
	s = NewServer(ServerConfig{Fleet: testFleet(t), Poller: echoPoller(), History: failing})
	rec = serve(t, s, "/api/history")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk I/O error")
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewPollMetrics(reg)
	metrics.observeMachine("local", nil)

	s := NewServer(ServerConfig{Fleet: testFleet(t), Poller: echoPoller(), Gatherer: reg})
	rec := serve(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `fleettop_machine_polls_total{machine="local"} 1`)

	s = NewServer(ServerConfig{Fleet: testFleet(t), Poller: echoPoller()})
	rec = serve(t, s, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_StartShutdown(t *testing.T) {
	s := NewServer(ServerConfig{Fleet: testFleet(t), Poller: echoPoller()})
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start("127.0.0.1:0") }()

	require.Eventually(t, func() bool {
		return s.e.ListenerAddr() != nil
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + s.e.ListenerAddr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	err = <-errCh
	assert.True(t, err == nil || errors.Is(err, http.ErrServerClosed) || strings.Contains(err.Error(), "closed"))
}
