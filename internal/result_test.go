package fleettop

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestMachineResult_JSON(t *testing.T) {
	ok := Succeeded("local", MachineMetrics{
		CPU:     TimeSeries{Timestamps: []float64{100, 101}, Values: []float64{5, 7}},
		Memory:  Sample{Value: 2048},
		Disk:    Sample{Value: 40},
		Network: Sample{Value: 12.5},
	})
	b, err := json.Marshal(ok)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"cpu": {"timestamps": [100, 101], "values": [5, 7]},
		"memory": {"value": 2048},
		"disk": {"value": 40},
		"network": {"value": 12.5}
	}`, string(b))

	failed := Failed("node1", &MetricError{Metric: MetricMemory, Err: &FetchError{Kind: KindNoData, Chart: "system.ram"}})
	b, err = json.Marshal(failed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error": "memory: chart system.ram: response contains no rows", "kind": "no_data"}`, string(b))
}

func TestMachineResult_JSONWithoutKind(t *testing.T) {
	b, err := json.Marshal(Failed("node1", errors.New("panic while aggregating: boom")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error": "panic while aggregating: boom"}`, string(b))
}

func TestMachineResult_YAML(t *testing.T) {
	out, err := yaml.Marshal(map[string]MachineResult{
		"node1": Failed("node1", &FetchError{Kind: KindHTTPStatus, StatusCode: 502}),
	})
	require.NoError(t, err)
	assert.Contains(t, string(out), "error: http 502")
	assert.Contains(t, string(out), "kind: http_status")
}

func TestFailed_NilError(t *testing.T) {
	r := Failed("node1", nil)
	assert.False(t, r.OK())
	assert.Equal(t, "unknown error", r.ErrorMessage())
	assert.Empty(t, r.ErrorKind())
}

func TestMachineMetrics_Scalars(t *testing.T) {
	m := MachineMetrics{
		CPU:     TimeSeries{Timestamps: []float64{100, 101}, Values: []float64{5, 7}},
		Memory:  Sample{Value: 1},
		Disk:    Sample{Value: 2},
		Network: Sample{Value: 3},
	}
	sc, err := m.Scalars()
	require.NoError(t, err)
	assert.Equal(t, Scalars{CPU: 7, Memory: 1, Disk: 2, Network: 3}, sc)

	m.Disk = TimeSeries{}
	_, err = m.Scalars()
	assert.EqualError(t, err, "disk: empty series")

	m.Disk = nil
	_, err = m.Scalars()
	assert.EqualError(t, err, "disk: missing reading")
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "network", KindNetwork.String())
	assert.Equal(t, "http_status", KindHTTPStatus.String())
	assert.Equal(t, "decode", KindDecode.String())
	assert.Equal(t, "missing_label", KindMissingLabel.String())
	assert.Equal(t, "no_data", KindNoData.String())
	assert.Equal(t, "unknown", ErrorKind(0).String())
}

func TestFetchError_Message(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := error(&MetricError{Metric: MetricNetwork, Err: &FetchError{Kind: KindNetwork, Chart: "system.net", Err: cause}})

	assert.Equal(t, "network: chart system.net: network error: dial tcp: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindNetwork, kind)

	_, ok = KindOf(cause)
	assert.False(t, ok)
}
