// Package config loads the run configuration of a load test.
//
// A configuration file is YAML (or JSON by extension). Missing values are
// filled by ApplyDefaults, and flags or LOADREPORT_* environment variables
// are overlaid through ApplyOverrides.
package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultName       = "ESMOS Load Test"
	DefaultHost       = "https://esmk.johnnyknl.com"
	DefaultUsers      = 1
	DefaultDuration   = 30 * time.Second
	DefaultWaitMin    = 1 * time.Second
	DefaultWaitMax    = 3 * time.Second
	DefaultTimeout    = 30 * time.Second
	DefaultWindowSize = 50
	DefaultInterval   = 5 * time.Second
	DefaultReportDir  = "."
)

// Config is the complete run configuration.
type Config struct {
	Name      string       `json:"name,omitempty" yaml:"name,omitempty"`
	Host      string       `json:"host,omitempty" yaml:"host,omitempty"`
	Users     int          `json:"users,omitempty" yaml:"users,omitempty"`
	SpawnRate float64      `json:"spawnRate,omitempty" yaml:"spawnRate,omitempty"`
	Duration  Duration     `json:"duration,omitempty" yaml:"duration,omitempty"`
	WaitTime  WaitTime     `json:"waitTime,omitempty" yaml:"waitTime,omitempty"`
	Timeout   Duration     `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Window    WindowConfig `json:"window,omitempty" yaml:"window,omitempty"`
	Live      LiveConfig   `json:"live,omitempty" yaml:"live,omitempty"`
	Report    ReportConfig `json:"report,omitempty" yaml:"report,omitempty"`
	Tasks     []TaskConfig `json:"tasks,omitempty" yaml:"tasks,omitempty"`
}

// WaitTime bounds the think time of a user after each task.
type WaitTime struct {
	Min Duration `json:"min,omitempty" yaml:"min,omitempty"`
	Max Duration `json:"max,omitempty" yaml:"max,omitempty"`
}

// WindowConfig configures the live latency window.
type WindowConfig struct {
	// Size is the number of recent samples averaged by the status line
	Size int `json:"size,omitempty" yaml:"size,omitempty"`
}

// LiveConfig configures the status line.
type LiveConfig struct {
	Interval Duration `json:"interval,omitempty" yaml:"interval,omitempty"`
	NoColor  bool     `json:"noColor,omitempty" yaml:"noColor,omitempty"`
}

// ReportConfig configures the end-of-run artifacts.
type ReportConfig struct {
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// TaskConfig is one weighted endpoint.
type TaskConfig struct {
	Name   string `json:"name" yaml:"name"`
	Path   string `json:"path" yaml:"path"`
	Weight int    `json:"weight" yaml:"weight"`
}

// DefaultTasks returns the task set used when a configuration names none.
func DefaultTasks() []TaskConfig {
	return []TaskConfig{
		{Name: "shop", Path: "/shop", Weight: 4},
		{Name: "home", Path: "/", Weight: 2},
		{Name: "services", Path: "/services", Weight: 1},
		{Name: "contact", Path: "/contact-us", Weight: 1},
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// LoadConfig loads a configuration from a file.
//
// The file format is determined by extension:
//   - .yaml, .yml -> YAML
//   - .json -> JSON
func LoadConfig(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data, path)
}

// ParseConfig parses configuration data. The format is chosen from the
// extension of path and defaults to YAML.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config (unknown format %s): %w", ext, err)
		}
	}

	return &cfg, nil
}

// ApplyDefaults fills every unset value.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Users == 0 {
		c.Users = DefaultUsers
	}
	if c.Duration == 0 {
		c.Duration = Duration(DefaultDuration)
	}
	if c.WaitTime.Min == 0 && c.WaitTime.Max == 0 {
		c.WaitTime.Min = Duration(DefaultWaitMin)
		c.WaitTime.Max = Duration(DefaultWaitMax)
	}
	if c.Timeout == 0 {
		c.Timeout = Duration(DefaultTimeout)
	}
	if c.Window.Size == 0 {
		c.Window.Size = DefaultWindowSize
	}
	if c.Live.Interval == 0 {
		c.Live.Interval = Duration(DefaultInterval)
	}
	if c.Report.Dir == "" {
		c.Report.Dir = DefaultReportDir
	}
	if len(c.Tasks) == 0 {
		c.Tasks = DefaultTasks()
	}
	for i := range c.Tasks {
		if c.Tasks[i].Name == "" {
			c.Tasks[i].Name = c.Tasks[i].Path
		}
	}
}

// Duration is a time.Duration read from strings such as "30s" or "2m".
// Bare integers are seconds.
type Duration time.Duration

// ParseDurationString parses a Go duration or an integer number of seconds.
func ParseDurationString(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	if seconds, err := strconv.Atoi(s); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = 0
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// Plain numbers are seconds
		var seconds float64
		if numErr := json.Unmarshal(b, &seconds); numErr != nil {
			return fmt.Errorf("invalid duration %s", b)
		}
		*d = Duration(seconds * float64(time.Second))
		return nil
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}

	dur, err := ParseDurationString(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(dur)
	return nil
}
