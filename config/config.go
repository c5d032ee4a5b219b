// Package config loads bridge configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/scriptbridge/action"
	"github.com/wippyai/scriptbridge/errors"
	"github.com/wippyai/scriptbridge/host"
	"github.com/wippyai/scriptbridge/slots"
)

// Environment variables that override file values.
const (
	EnvScriptDir    = "SCRIPTBRIDGE_SCRIPT_DIR"
	EnvSlotCapacity = "SCRIPTBRIDGE_SLOT_CAPACITY"
)

// Config is the bridge configuration.
type Config struct {
	ScriptDir string        `yaml:"script_dir"`
	Slots     SlotsConfig   `yaml:"slots"`
	Log       LogConfig     `yaml:"log"`
	Metrics   MetricsConfig `yaml:"metrics"`
	Sim       SimConfig     `yaml:"sim"`
}

type SlotsConfig struct {
	Capacity int `yaml:"capacity"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`

	// DiagnosticInterval limits how often a repeated dispatch failure is
	// logged.
	DiagnosticInterval time.Duration `yaml:"diagnostic_interval"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Listen    string `yaml:"listen"`
}

// SimConfig describes the simulated world the CLI runs scripts against.
type SimConfig struct {
	Entities      []EntitySpec  `yaml:"entities"`
	Quests        []QuestSpec   `yaml:"quests"`
	SavePath      string        `yaml:"save_path"`
	Region        string        `yaml:"region"`
	Frames        int           `yaml:"frames"`
	FrameInterval time.Duration `yaml:"frame_interval"`
}

// EntitySpec spawns one simulated entity and optionally attaches a script.
type EntitySpec struct {
	Kind         string            `yaml:"kind"`
	Script       string            `yaml:"script"`
	Capabilities []host.Capability `yaml:"capabilities"`
	ID           uint64            `yaml:"id"`
	ActionFrames int               `yaml:"action_frames"`
}

// QuestSpec attaches a quest script.
type QuestSpec struct {
	Script string `yaml:"script"`
	ID     uint64 `yaml:"id"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ScriptDir: "scripts",
		Slots:     SlotsConfig{Capacity: slots.DefaultCapacity},
		Log: LogConfig{
			Level:              "info",
			DiagnosticInterval: action.DefaultDiagnosticInterval,
		},
		Metrics: MetricsConfig{
			Namespace: "scriptbridge",
			Listen:    ":9090",
		},
		Sim: SimConfig{
			Frames:        600,
			FrameInterval: time.Second / 60,
		},
	}
}

// Load reads path on top of the defaults, applies environment overrides and
// validates the result. A relative script_dir is resolved against the
// directory holding the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindLoad, err, "read "+path)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if c.ScriptDir != "" && !filepath.IsAbs(c.ScriptDir) {
		c.ScriptDir = filepath.Join(filepath.Dir(path), c.ScriptDir)
	}
	if c.Sim.SavePath != "" && !filepath.IsAbs(c.Sim.SavePath) {
		c.Sim.SavePath = filepath.Join(filepath.Dir(path), c.Sim.SavePath)
	}
	if err := c.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Parse decodes YAML on top of the defaults without validating.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindLoad, err, "parse yaml")
	}
	return c, nil
}

// ApplyEnv overrides file values from the environment.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvScriptDir); ok && v != "" {
		c.ScriptDir = v
	}
	if v, ok := os.LookupEnv(EnvSlotCapacity); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Detail("%s=%q", EnvSlotCapacity, v).
				Cause(err).
				Build()
		}
		c.Slots.Capacity = n
	}
	return nil
}

// Validate rejects configurations the bridge cannot run with.
func (c *Config) Validate() error {
	if c.Slots.Capacity < 1 {
		return errors.InvalidInput(errors.PhaseConfig,
			fmt.Sprintf("slots.capacity must be at least 1, got %d", c.Slots.Capacity))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("log.level: %v", err))
	}
	if c.Log.DiagnosticInterval < 0 {
		return errors.InvalidInput(errors.PhaseConfig, "log.diagnostic_interval must not be negative")
	}
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return errors.InvalidInput(errors.PhaseConfig, "metrics.namespace is required when metrics are enabled")
	}

	known := make(map[host.Capability]bool)
	for _, cp := range host.Capabilities() {
		known[cp] = true
	}
	ids := make(map[uint64]bool)
	for _, e := range c.Sim.Entities {
		if e.ID == 0 {
			return errors.InvalidInput(errors.PhaseConfig, "sim.entities: id 0 is reserved")
		}
		if ids[e.ID] {
			return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("sim.entities: duplicate id %d", e.ID))
		}
		ids[e.ID] = true
		for _, cp := range e.Capabilities {
			if !known[cp] {
				return errors.InvalidInput(errors.PhaseConfig,
					fmt.Sprintf("sim.entities[%d]: unknown capability %q", e.ID, cp))
			}
		}
	}
	quests := make(map[uint64]bool)
	for _, q := range c.Sim.Quests {
		if q.Script == "" {
			return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("sim.quests[%d]: script is required", q.ID))
		}
		if quests[q.ID] {
			return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("sim.quests: duplicate id %d", q.ID))
		}
		quests[q.ID] = true
	}
	return nil
}

// Build creates a zap logger from the log section.
func (l LogConfig) Build() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
