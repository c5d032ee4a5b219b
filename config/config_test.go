package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wippyai/scriptbridge/errors"
	"github.com/wippyai/scriptbridge/host"
)

const sample = `
script_dir: lua
slots:
  capacity: 8
log:
  level: debug
  development: true
  diagnostic_interval: 2s
metrics:
  enabled: true
  namespace: game
  listen: 127.0.0.1:9100
sim:
  frames: 120
  frame_interval: 10ms
  region: harbor
  save_path: save.db
  entities:
    - id: 5
      kind: guard
      script: guard
      action_frames: 3
      capabilities: [movable, animator, speaker]
    - id: 6
      kind: dog
  quests:
    - id: 1
      script: intro
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.ScriptDir != "lua" || c.Slots.Capacity != 8 {
		t.Errorf("script_dir = %q capacity = %d", c.ScriptDir, c.Slots.Capacity)
	}
	if c.Log.Level != "debug" || !c.Log.Development || c.Log.DiagnosticInterval != 2*time.Second {
		t.Errorf("log = %+v", c.Log)
	}
	if !c.Metrics.Enabled || c.Metrics.Namespace != "game" || c.Metrics.Listen != "127.0.0.1:9100" {
		t.Errorf("metrics = %+v", c.Metrics)
	}
	if c.Sim.Frames != 120 || c.Sim.FrameInterval != 10*time.Millisecond || c.Sim.Region != "harbor" {
		t.Errorf("sim = %+v", c.Sim)
	}
	if len(c.Sim.Entities) != 2 || len(c.Sim.Quests) != 1 {
		t.Fatalf("entities = %d quests = %d", len(c.Sim.Entities), len(c.Sim.Quests))
	}
	guard := c.Sim.Entities[0]
	if guard.ID != 5 || guard.Kind != "guard" || guard.ActionFrames != 3 {
		t.Errorf("guard = %+v", guard)
	}
	want := []host.Capability{host.CapMove, host.CapAnimate, host.CapSpeak}
	if len(guard.Capabilities) != len(want) {
		t.Fatalf("capabilities = %v", guard.Capabilities)
	}
	for i := range want {
		if guard.Capabilities[i] != want[i] {
			t.Errorf("capability %d = %q, want %q", i, guard.Capabilities[i], want[i])
		}
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestParse_KeepsDefaults(t *testing.T) {
	c, err := Parse([]byte("script_dir: x\n"))
	if err != nil {
		t.Fatal(err)
	}
	d := Default()
	if c.Slots.Capacity != d.Slots.Capacity || c.Log.Level != d.Log.Level || c.Sim.Frames != d.Sim.Frames {
		t.Errorf("defaults lost: %+v", c)
	}
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("slots: [1, 2"))
	if !errors.IsKind(err, errors.KindLoad) {
		t.Fatalf("err = %v, want load", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero capacity", func(c *Config) { c.Slots.Capacity = 0 }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"negative interval", func(c *Config) { c.Log.DiagnosticInterval = -time.Second }},
		{"metrics without namespace", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Namespace = "" }},
		{"entity id zero", func(c *Config) { c.Sim.Entities = []EntitySpec{{ID: 0}} }},
		{"duplicate entity", func(c *Config) { c.Sim.Entities = []EntitySpec{{ID: 2}, {ID: 2}} }},
		{"unknown capability", func(c *Config) {
			c.Sim.Entities = []EntitySpec{{ID: 2, Capabilities: []host.Capability{"flying"}}}
		}},
		{"quest without script", func(c *Config) { c.Sim.Quests = []QuestSpec{{ID: 1}} }},
		{"duplicate quest", func(c *Config) { c.Sim.Quests = []QuestSpec{{ID: 1, Script: "a"}, {ID: 1, Script: "b"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			if err := c.Validate(); !errors.IsKind(err, errors.KindInvalidInput) {
				t.Fatalf("err = %v, want invalid_input", err)
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvScriptDir, "/srv/scripts")
	t.Setenv(EnvSlotCapacity, "32")

	c := Default()
	if err := c.ApplyEnv(); err != nil {
		t.Fatal(err)
	}
	if c.ScriptDir != "/srv/scripts" || c.Slots.Capacity != 32 {
		t.Errorf("script_dir = %q capacity = %d", c.ScriptDir, c.Slots.Capacity)
	}

	t.Setenv(EnvSlotCapacity, "many")
	if err := c.ApplyEnv(); !errors.IsKind(err, errors.KindInvalidInput) {
		t.Fatalf("err = %v, want invalid_input", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.ScriptDir != filepath.Join(dir, "lua") {
		t.Errorf("script_dir = %q, want resolved against %s", c.ScriptDir, dir)
	}
	if c.Sim.SavePath != filepath.Join(dir, "save.db") {
		t.Errorf("save_path = %q", c.Sim.SavePath)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); !errors.IsKind(err, errors.KindLoad) {
		t.Fatalf("missing file err = %v, want load", err)
	}

	if err := os.WriteFile(path, []byte("slots:\n  capacity: -1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.IsKind(err, errors.KindInvalidInput) {
		t.Fatalf("invalid file err = %v, want invalid_input", err)
	}
}

func TestLogConfig_Build(t *testing.T) {
	l, err := LogConfig{Level: "warn"}.Build()
	if err != nil {
		t.Fatal(err)
	}
	if l.Core().Enabled(-1) {
		t.Error("debug should be disabled at warn level")
	}
	if _, err := (LogConfig{Level: "nope"}).Build(); err == nil {
		t.Error("Build should reject an unknown level")
	}
}
