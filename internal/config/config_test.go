package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fleettop "github.com/jondoveston/fleettop/internal"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fleettop.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Empty(t, cfg.Machines)
	assert.Equal(t, "5s", cfg.Poll.Timeout)
	assert.Equal(t, 4, cfg.Poll.Workers)
	assert.Equal(t, fleettop.DashboardWindow, cfg.Dashboard.Window())
	assert.Equal(t, fleettop.SnapshotWindow, cfg.Snapshot.Window())
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Listen)
	assert.Equal(t, 200, cfg.Server.HistoryLimit)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[[machines]]
name = "local"
url = "http://192.155.91.125:19999/"

[[machines]]
name = "node1"
url = "66.175.212.234"

[poll]
timeout = "2s"
workers = 2

[dashboard]
points = 20
`)

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	require.Len(t, cfg.Machines, 2)
	assert.Equal(t, MachineConfig{Name: "local", URL: "http://192.155.91.125:19999"}, cfg.Machines[0])
	assert.Equal(t, MachineConfig{Name: "node1", URL: "http://66.175.212.234:19999"}, cfg.Machines[1])
	assert.Equal(t, 2*time.Second, cfg.Poll.TimeoutD)
	assert.Equal(t, 2, cfg.Poll.Workers)
	assert.Equal(t, 20, cfg.Dashboard.Points)
	assert.Equal(t, -60, cfg.Dashboard.After, "unset keys keep their default")
	assert.Equal(t, 5*time.Second, cfg.Dashboard.RefreshD)
	assert.Equal(t, 1, cfg.Snapshot.Points)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
[[machines]]
name = "local"
url = "http://localhost:19999"
`)
	t.Setenv("FLEETTOP_POLL_WORKERS", "8")
	t.Setenv("FLEETTOP_LOG_LEVEL", "debug")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Poll.Workers)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MachineSpecsReplaceFile(t *testing.T) {
	path := writeConfig(t, `
[[machines]]
name = "local"
url = "http://localhost:19999"
`)
	v := viper.New()
	v.Set("machine", []string{"a=10.0.0.1", "b=https://b.example.com"})

	cfg, err := Load(v, path)
	require.NoError(t, err)
	assert.Equal(t, []MachineConfig{
		{Name: "a", URL: "http://10.0.0.1:19999"},
		{Name: "b", URL: "https://b.example.com"},
	}, cfg.Machines)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorContains(t, err, "read config")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "no machines",
			content: `[poll]` + "\n" + `workers = 2`,
			wantErr: "no machines configured",
		},
		{
			name: "duplicate names",
			content: `
[[machines]]
name = "local"
url = "http://a:19999"
[[machines]]
name = "local"
url = "http://b:19999"
`,
			wantErr: `duplicate name "local"`,
		},
		{
			name: "bad url",
			content: `
[[machines]]
name = "local"
url = "ftp://a"
`,
			wantErr: "scheme must be http or https",
		},
		{
			name: "dashboard needs a series",
			content: `
[[machines]]
name = "local"
url = "http://a:19999"
[dashboard]
points = 1
`,
			wantErr: "dashboard.points must be at least 2",
		},
		{
			name: "snapshot needs a single point",
			content: `
[[machines]]
name = "local"
url = "http://a:19999"
[snapshot]
points = 10
`,
			wantErr: "snapshot.points must be 1",
		},
		{
			name: "zero workers",
			content: `
[[machines]]
name = "local"
url = "http://a:19999"
[poll]
workers = 0
`,
			wantErr: "poll.workers must be at least 1",
		},
		{
			name: "unparsable timeout",
			content: `
[[machines]]
name = "local"
url = "http://a:19999"
[poll]
timeout = "soon"
`,
			wantErr: "parse poll.timeout",
		},
		{
			name: "negative timeout",
			content: `
[[machines]]
name = "local"
url = "http://a:19999"
[poll]
timeout = "-1s"
`,
			wantErr: "poll.timeout must be positive",
		},
		{
			name: "log format",
			content: `
[[machines]]
name = "local"
url = "http://a:19999"
[log]
format = "xml"
`,
			wantErr: "invalid log format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(viper.New(), writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseMachineSpec(t *testing.T) {
	m, err := ParseMachineSpec(" node1 = http://66.175.212.234:19999 ")
	require.NoError(t, err)
	assert.Equal(t, MachineConfig{Name: "node1", URL: "http://66.175.212.234:19999"}, m)

	for _, bad := range []string{"node1", "=http://x", "node1=", ""} {
		_, err := ParseMachineSpec(bad)
		assert.Error(t, err, bad)
	}
}

func TestWriteTOML_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTOML(&buf, Example()))
	assert.Contains(t, buf.String(), "[[machines]]")
	assert.NotContains(t, buf.String(), "TimeoutD")

	path := writeConfig(t, buf.String())
	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Len(t, cfg.Machines, 4)
	assert.Equal(t, "node3", cfg.Machines[3].Name)
}

func TestWriteFile_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "fleettop.toml")
	require.NoError(t, WriteFile(path, Example(), false))
	assert.Error(t, WriteFile(path, Example(), false))
	assert.NoError(t, WriteFile(path, Example(), true))
}

func TestConfig_Fleet(t *testing.T) {
	cfg, err := Load(viper.New(), writeConfig(t, `
[[machines]]
name = "local"
url = "http://192.155.91.125:19999"
[[machines]]
name = "node1"
url = "http://66.175.212.234:19999"
`))
	require.NoError(t, err)

	fleet, err := cfg.Fleet()
	require.NoError(t, err)
	assert.Equal(t, []string{"local", "node1"}, fleet.Names())
	ep, ok := fleet.Lookup("node1")
	require.True(t, ok)
	assert.Equal(t, "http://66.175.212.234:19999", ep.BaseURL)
}
