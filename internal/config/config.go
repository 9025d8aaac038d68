package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	fleettop "github.com/jondoveston/fleettop/internal"
	"github.com/jondoveston/fleettop/internal/logger"
)

const (
	EnvPrefix = "fleettop"
	FileName  = "fleettop"
	FileType  = "toml"
)

type Config struct {
	Machines  []MachineConfig `mapstructure:"machines" toml:"machines"`
	Poll      PollConfig      `mapstructure:"poll" toml:"poll"`
	Dashboard DashboardConfig `mapstructure:"dashboard" toml:"dashboard"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot" toml:"snapshot"`
	Store     StoreConfig     `mapstructure:"store" toml:"store"`
	Server    ServerConfig    `mapstructure:"server" toml:"server"`
	Log       LogConfig       `mapstructure:"log" toml:"log"`
}

type MachineConfig struct {
	Name string `mapstructure:"name" toml:"name"`
	URL  string `mapstructure:"url" toml:"url"`
}

type PollConfig struct {
	Timeout  string        `mapstructure:"timeout" toml:"timeout"`
	Workers  int           `mapstructure:"workers" toml:"workers"`
	TimeoutD time.Duration `mapstructure:"-" toml:"-"`
}

type DashboardConfig struct {
	After    int           `mapstructure:"after" toml:"after"`
	Points   int           `mapstructure:"points" toml:"points"`
	Group    string        `mapstructure:"group" toml:"group"`
	Refresh  string        `mapstructure:"refresh" toml:"refresh"`
	RefreshD time.Duration `mapstructure:"-" toml:"-"`
}

func (c DashboardConfig) Window() fleettop.Window {
	return fleettop.Window{After: c.After, Points: c.Points, Group: c.Group}
}

type SnapshotConfig struct {
	After  int    `mapstructure:"after" toml:"after"`
	Points int    `mapstructure:"points" toml:"points"`
	Group  string `mapstructure:"group" toml:"group"`
}

func (c SnapshotConfig) Window() fleettop.Window {
	return fleettop.Window{After: c.After, Points: c.Points, Group: c.Group}
}

type StoreConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

type ServerConfig struct {
	Listen       string `mapstructure:"listen" toml:"listen"`
	HistoryLimit int    `mapstructure:"history_limit" toml:"history_limit"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" toml:"level"`
	Format string `mapstructure:"format" toml:"format"`
}

// Default has every setting except the machine list
func Default() *Config {
	return &Config{
		Poll: PollConfig{
			Timeout: fleettop.DefaultRequestTimeout.String(),
			Workers: fleettop.DefaultWorkers,
		},
		Dashboard: DashboardConfig{
			After:   fleettop.DashboardWindow.After,
			Points:  fleettop.DashboardWindow.Points,
			Group:   fleettop.DashboardWindow.Group,
			Refresh: fleettop.DefaultRefreshInterval.String(),
		},
		Snapshot: SnapshotConfig{
			After:  fleettop.SnapshotWindow.After,
			Points: fleettop.SnapshotWindow.Points,
			Group:  fleettop.SnapshotWindow.Group,
		},
		Store: StoreConfig{
			Path: "fleettop.db",
		},
		Server: ServerConfig{
			Listen:       "127.0.0.1:8080",
			HistoryLimit: 200,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Example is the default config plus a sample fleet, written by `config init`
func Example() *Config {
	cfg := Default()
	cfg.Machines = []MachineConfig{
		{Name: "local", URL: "http://192.155.91.125:19999"},
		{Name: "node1", URL: "http://66.175.212.234:19999"},
		{Name: "node2", URL: "http://97.107.138.34:19999"},
		{Name: "node3", URL: "http://97.107.128.46:19999"},
	}
	return cfg
}

// SetDefaults registers every key of Default with v so that environment
// variables are picked up for keys missing from the config file
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("poll.timeout", d.Poll.Timeout)
	v.SetDefault("poll.workers", d.Poll.Workers)
	v.SetDefault("dashboard.after", d.Dashboard.After)
	v.SetDefault("dashboard.points", d.Dashboard.Points)
	v.SetDefault("dashboard.group", d.Dashboard.Group)
	v.SetDefault("dashboard.refresh", d.Dashboard.Refresh)
	v.SetDefault("snapshot.after", d.Snapshot.After)
	v.SetDefault("snapshot.points", d.Snapshot.Points)
	v.SetDefault("snapshot.group", d.Snapshot.Group)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.history_limit", d.Server.HistoryLimit)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads path (or searches the default locations when path is empty),
// applies FLEETTOP_* environment variables and any flags already bound to v,
// then validates the result.
//
// Machines given as "name=url" specs under the "machine" key replace the
// machines of the config file.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType(FileType)
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "fleettop"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if specs := v.GetStringSlice("machine"); len(specs) > 0 {
		machines := make([]MachineConfig, 0, len(specs))
		for _, spec := range specs {
			m, err := ParseMachineSpec(spec)
			if err != nil {
				return nil, err
			}
			machines = append(machines, m)
		}
		cfg.Machines = machines
	}

	if err := cfg.postProcess(); err != nil {
		return nil, fmt.Errorf("post process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// ParseMachineSpec parses the "name=url" form used by --machine
func ParseMachineSpec(spec string) (MachineConfig, error) {
	name, rawURL, ok := strings.Cut(spec, "=")
	name, rawURL = strings.TrimSpace(name), strings.TrimSpace(rawURL)
	if !ok || name == "" || rawURL == "" {
		return MachineConfig{}, fmt.Errorf("invalid machine %q: want name=url", spec)
	}
	return MachineConfig{Name: name, URL: rawURL}, nil
}

func (c *Config) postProcess() error {
	var err error

	if c.Poll.TimeoutD, err = time.ParseDuration(c.Poll.Timeout); err != nil {
		return fmt.Errorf("parse poll.timeout: %w", err)
	}

	if c.Dashboard.RefreshD, err = time.ParseDuration(c.Dashboard.Refresh); err != nil {
		return fmt.Errorf("parse dashboard.refresh: %w", err)
	}

	for i := range c.Machines {
		c.Machines[i].Name = strings.TrimSpace(c.Machines[i].Name)
		if c.Machines[i].URL, err = fleettop.NormalizeBaseURL(c.Machines[i].URL); err != nil {
			return fmt.Errorf("machines[%d] %q: %w", i, c.Machines[i].Name, err)
		}
	}

	return nil
}

func (c *Config) Validate() error {
	if len(c.Machines) == 0 {
		return fmt.Errorf("no machines configured")
	}

	seen := make(map[string]bool, len(c.Machines))
	for i, m := range c.Machines {
		if m.Name == "" {
			return fmt.Errorf("machines[%d]: name is required", i)
		}
		if seen[m.Name] {
			return fmt.Errorf("machines[%d]: duplicate name %q", i, m.Name)
		}
		seen[m.Name] = true
	}

	if c.Poll.Workers < 1 {
		return fmt.Errorf("poll.workers must be at least 1, got %d", c.Poll.Workers)
	}
	if c.Poll.TimeoutD <= 0 {
		return fmt.Errorf("poll.timeout must be positive, got %s", c.Poll.Timeout)
	}

	if c.Dashboard.Points < 2 {
		return fmt.Errorf("dashboard.points must be at least 2, got %d", c.Dashboard.Points)
	}
	if c.Dashboard.RefreshD <= 0 {
		return fmt.Errorf("dashboard.refresh must be positive, got %s", c.Dashboard.Refresh)
	}
	if c.Snapshot.Points != 1 {
		return fmt.Errorf("snapshot.points must be 1, got %d", c.Snapshot.Points)
	}

	if c.Server.HistoryLimit < 1 {
		return fmt.Errorf("server.history_limit must be at least 1, got %d", c.Server.HistoryLimit)
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Log.Level)
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Log.Format)] {
		return fmt.Errorf("invalid log format: %s (valid: json, text)", c.Log.Format)
	}

	return nil
}

// Fleet builds the machine registry from the configured machines
func (c *Config) Fleet() (*fleettop.Fleet, error) {
	endpoints := make([]fleettop.Endpoint, 0, len(c.Machines))
	for _, m := range c.Machines {
		endpoints = append(endpoints, fleettop.Endpoint{Name: m.Name, BaseURL: m.URL})
	}
	return fleettop.NewFleet(endpoints)
}

func (c *Config) Logger() logger.Config {
	return logger.Config{Level: c.Log.Level, Format: c.Log.Format}
}

// WriteTOML encodes cfg in the config file format
func WriteTOML(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("encode TOML: %w", err)
	}
	return nil
}

// WriteFile writes cfg to path, refusing to replace an existing file
// unless force is set
func WriteFile(path string, cfg *Config, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if err := WriteTOML(f, cfg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
