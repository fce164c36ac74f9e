package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "marionette.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Loop.Hz != 20 {
		t.Errorf("Loop.Hz = %v, want 20", cfg.Loop.Hz)
	}
	if cfg.Behavior.EnableTimeout != 10*time.Minute {
		t.Errorf("EnableTimeout = %v, want 10m", cfg.Behavior.EnableTimeout)
	}
}

// The off layer must dominate every layer that moves servos, so a tripped
// enable gate stops the figure even while the web remote is active. Only
// the indicator LED layers sit above it.
func TestDefault_OffDominatesMotion(t *testing.T) {
	cfg := Default()
	priority := make(map[string]int)
	for _, ac := range cfg.Animations {
		if ac.Priority == nil {
			t.Fatalf("animation %q has no priority", ac.Name)
		}
		priority[ac.Name] = *ac.Priority
	}

	off := priority["off"]
	for name, p := range priority {
		if name == "off" || strings.HasPrefix(name, "led_") {
			continue
		}
		if p >= off {
			t.Errorf("%s priority %d, want below off (%d)", name, p, off)
		}
	}
	if _, ok := priority["remote"]; !ok {
		t.Error("default config should declare the remote layer")
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
loop:
  hz: 50
servos:
  - name: head
    channel: 0
    min: 40
    max: 140
    speed: 90
  - name: SR
    channel: 3
    min: 150
    max: 30
    speed: 120
    inverted: true
outputs:
  - name: off
    pin: GPIO17
overlaps:
  - a: head
    b: SR
    range_a: [40, 60]
    range_b: [30, 50]
behavior:
  notice_threshold: 3
  trigger_threshold: 15
  enable_timeout: 90s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Loop.Hz != 50 {
		t.Errorf("Loop.Hz = %v, want 50", cfg.Loop.Hz)
	}
	if len(cfg.Servos) != 2 || !cfg.Servos[1].Inverted || cfg.Servos[1].Min != 150 {
		t.Errorf("servos = %+v", cfg.Servos)
	}
	if cfg.Overlaps[0].RangeB != [2]float64{30, 50} {
		t.Errorf("RangeB = %v", cfg.Overlaps[0].RangeB)
	}
	if cfg.Behavior.EnableTimeout != 90*time.Second {
		t.Errorf("EnableTimeout = %v, want 90s", cfg.Behavior.EnableTimeout)
	}
	// sections missing from the file keep their defaults
	if cfg.Web.Addr != ":5001" {
		t.Errorf("Web.Addr = %q, want default", cfg.Web.Addr)
	}
	if len(cfg.Animations) != len(Default().Animations) {
		t.Errorf("animations = %d, want defaults", len(cfg.Animations))
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "loop: [")); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvWebAddr, ":9000")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvDryRun, "true")

	cfg := Default()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatal(err)
	}
	if cfg.Web.Addr != ":9000" || cfg.LogLevel != "debug" || !cfg.Hardware.DryRun {
		t.Errorf("env not applied: %+v %q %v", cfg.Web, cfg.LogLevel, cfg.Hardware.DryRun)
	}

	t.Setenv(EnvDryRun, "maybe")
	if err := Default().ApplyEnv(); !errors.Is(err, ErrInvalid) {
		t.Errorf("got %v, want ErrInvalid", err)
	}
}

func TestPath(t *testing.T) {
	t.Setenv(EnvConfig, "")
	if got := Path(""); got != DefaultPath {
		t.Errorf("Path = %q, want %q", got, DefaultPath)
	}
	t.Setenv(EnvConfig, "/etc/marionette.yaml")
	if got := Path(""); got != "/etc/marionette.yaml" {
		t.Errorf("Path = %q, want env value", got)
	}
	if got := Path("local.yaml"); got != "local.yaml" {
		t.Errorf("Path = %q, want explicit", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"loop rate", func(c *Config) { c.Loop.Hz = 0 }, "loop.hz"},
		{"thresholds", func(c *Config) { c.Behavior.TriggerThreshold = 0.5 }, "thresholds"},
		{"servo speed", func(c *Config) {
			c.Servos = []ServoConfig{{Name: "head", Channel: 0}}
		}, "speed"},
		{"duplicate actuator", func(c *Config) {
			c.Servos = []ServoConfig{{Name: "x", Speed: 1}}
			c.Outputs = []PinConfig{{Name: "x", Pin: "GPIO4"}}
		}, "duplicate actuator"},
		{"unknown overlap servo", func(c *Config) {
			c.Overlaps = []OverlapConfig{{A: "a", B: "b"}}
		}, "unknown actuator"},
		{"animation kind", func(c *Config) {
			c.Animations = append(c.Animations, AnimationConfig{Name: "x", Kind: "sparkle"})
		}, "unknown kind"},
		{"animation path", func(c *Config) {
			c.Animations = append(c.Animations, AnimationConfig{Name: "x", Kind: KindKeyframe})
		}, "path required"},
		{"remote url", func(c *Config) { c.Sensing.Source = SourceRemote }, "remote_url"},
		{"ingest without web", func(c *Config) {
			c.Sensing.Source = SourceIngest
			c.Web.Enabled = false
		}, "web server"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("got %v, want ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
