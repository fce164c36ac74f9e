// Package config loads the marionette configuration: a YAML file, then
// environment overrides, then validation. Command-line flags are applied by
// the caller on top of the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables.
const (
	EnvConfig   = "MARIONETTE_CONFIG"
	EnvWebAddr  = "MARIONETTE_WEB_ADDR"
	EnvLogLevel = "MARIONETTE_LOG_LEVEL"
	EnvDryRun   = "MARIONETTE_DRY_RUN"
)

// DefaultPath is used when neither a flag nor EnvConfig names a file.
const DefaultPath = "config/marionette.yaml"

// Animation kinds.
const (
	KindKeyframe   = "keyframe"   // one file, loops
	KindMulti      = "multi"      // directory, played once each in turn
	KindBackground = "background" // directory, random one-shot overlays
	KindHead       = "head"       // three-keyframe file following the observer
	KindExternal   = "external"   // remote-controlled from the web API
)

// Sensing sources.
const (
	SourceCamera = "camera"
	SourceRemote = "remote"
	SourceIngest = "ingest"
	SourceNone   = "none"
)

var (
	// ErrInvalid is wrapped by every validation error.
	ErrInvalid = errors.New("config: invalid")
)

// Config is the full configuration.
type Config struct {
	LogLevel   string            `yaml:"log_level"`
	Loop       LoopConfig        `yaml:"loop"`
	Hardware   HardwareConfig    `yaml:"hardware"`
	Servos     []ServoConfig     `yaml:"servos"`
	Outputs    []PinConfig       `yaml:"outputs"`
	Inputs     []PinConfig       `yaml:"inputs"`
	Overlaps   []OverlapConfig   `yaml:"overlaps"`
	Behavior   BehaviorConfig    `yaml:"behavior"`
	Schedule   ScheduleConfig    `yaml:"schedule"`
	Animations []AnimationConfig `yaml:"animations"`
	Sensing    SensingConfig     `yaml:"sensing"`
	Web        WebConfig         `yaml:"web"`
	EventLog   EventLogConfig    `yaml:"event_log"`
}

// LoopConfig configures the control loop.
type LoopConfig struct {
	Hz float64 `yaml:"hz"`
}

// HardwareConfig selects the hardware backend.
type HardwareConfig struct {
	DryRun  bool   `yaml:"dry_run"`
	I2CBus  string `yaml:"i2c_bus"`
	I2CAddr uint16 `yaml:"i2c_addr"`
}

// ServoConfig is one PWM servo.
type ServoConfig struct {
	Name       string  `yaml:"name"`
	Channel    int     `yaml:"channel"`
	Min        float64 `yaml:"min"`
	Max        float64 `yaml:"max"`
	Speed      float64 `yaml:"speed"` // degrees per second
	Inverted   bool    `yaml:"inverted"`
	MinPulseUS float64 `yaml:"min_pulse_us"`
	MaxPulseUS float64 `yaml:"max_pulse_us"`
}

// PinConfig maps a logical name to a GPIO pin.
type PinConfig struct {
	Name string `yaml:"name"`
	Pin  string `yaml:"pin"`
}

// OverlapConfig forbids two servos from being inside their ranges at once.
type OverlapConfig struct {
	A      string     `yaml:"a"`
	B      string     `yaml:"b"`
	RangeA [2]float64 `yaml:"range_a"`
	RangeB [2]float64 `yaml:"range_b"`
}

// BehaviorConfig holds the state machine thresholds.
type BehaviorConfig struct {
	NoticeThreshold  float64       `yaml:"notice_threshold"`
	TriggerThreshold float64       `yaml:"trigger_threshold"`
	EnableTimeout    time.Duration `yaml:"enable_timeout"`
}

// ScheduleConfig locates the opening hours file.
type ScheduleConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"` // reload when the file changes
}

// AnimationConfig declares one named animation.
type AnimationConfig struct {
	Name          string   `yaml:"name"`
	Kind          string   `yaml:"kind"`
	Path          string   `yaml:"path"`
	Priority      *int     `yaml:"priority"`
	Strength      *float64 `yaml:"strength"` // initial strength, 0 when unset
	StrengthSpeed *float64 `yaml:"strength_speed"`
	ExpectedStart float64  `yaml:"expected_start"` // background only, seconds
}

// SensingConfig selects and configures the observation source.
type SensingConfig struct {
	Source     string        `yaml:"source"`
	Mirror     bool          `yaml:"mirror"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	Camera     CameraConfig  `yaml:"camera"`
	RemoteURL  string        `yaml:"remote_url"`
}

// CameraConfig configures the local camera source.
type CameraConfig struct {
	Device     int     `yaml:"device"`
	FPS        float64 `yaml:"fps"`
	Model      string  `yaml:"model"`
	Confidence float64 `yaml:"confidence"`
}

// WebConfig configures the HTTP API.
type WebConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Addr      string  `yaml:"addr"`
	StatusHz  float64 `yaml:"status_hz"`
	StaticDir string  `yaml:"static_dir"` // browser UI, not served when empty
}

// EventLogConfig locates the library start log. An empty path keeps it in memory.
type EventLogConfig struct {
	Path string `yaml:"path"`
}

// Default returns a configuration that runs without any file: no servos,
// the required animations from the animations directory, and a never
// detecting sensing source.
func Default() *Config {
	p := func(v int) *int { return &v }
	one := 1.0
	return &Config{
		LogLevel: "info",
		Loop:     LoopConfig{Hz: 20},
		Behavior: BehaviorConfig{
			NoticeThreshold:  1,
			TriggerThreshold: 12,
			EnableTimeout:    10 * time.Minute,
		},
		Schedule: ScheduleConfig{Path: "config/schedule.json", Watch: true},
		Animations: []AnimationConfig{
			{Name: "off", Kind: KindKeyframe, Path: "animations/off.json", Priority: p(20)},
			{Name: "led_red", Kind: KindKeyframe, Path: "animations/led_red.json", Priority: p(20)},
			{Name: "led_green", Kind: KindKeyframe, Path: "animations/led_green.json", Priority: p(20)},
			{Name: "led_green_blink", Kind: KindKeyframe, Path: "animations/led_green_blink.json", Priority: p(21)},
			{Name: "test", Kind: KindKeyframe, Path: "animations/test.json", Priority: p(15)},
			{Name: "head", Kind: KindHead, Path: "animations/head.json", Priority: p(6)},
			{Name: "dances", Kind: KindMulti, Path: "animations/dances", Priority: p(10)},
			{Name: "dances_closed", Kind: KindMulti, Path: "animations/dances_closed", Priority: p(10)},
			{Name: "background", Kind: KindBackground, Path: "animations/background", Priority: p(1), Strength: &one, ExpectedStart: 15},
			{Name: "remote", Kind: KindExternal, Priority: p(10)},
		},
		Sensing: SensingConfig{
			Source:     SourceNone,
			RetryDelay: 10 * time.Second,
			Camera: CameraConfig{
				FPS:        10,
				Model:      "models/face_detection_yunet.onnx",
				Confidence: 0.5,
			},
		},
		Web:      WebConfig{Enabled: true, Addr: ":5001", StatusHz: 5, StaticDir: "web"},
		EventLog: EventLogConfig{Path: "data/events.jsonl"},
	}
}

// Load reads path over the defaults and applies environment overrides.
// Lists in the file replace the default lists.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the config file to load: explicit, then EnvConfig, then DefaultPath.
func Path(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	return DefaultPath
}

// ApplyEnv applies environment overrides.
func (c *Config) ApplyEnv() error {
	if addr := os.Getenv(EnvWebAddr); addr != "" {
		c.Web.Addr = addr
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.LogLevel = level
	}
	if v := os.Getenv(EnvDryRun); v != "" {
		dry, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, EnvDryRun, v, err)
		}
		c.Hardware.DryRun = dry
	}
	return nil
}

// Validate checks the configuration for errors that would otherwise
// surface while wiring.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Loop.Hz <= 0 {
		bad("loop.hz must be positive")
	}
	if c.Behavior.NoticeThreshold < 0 || c.Behavior.TriggerThreshold < c.Behavior.NoticeThreshold {
		bad("behavior thresholds must satisfy 0 <= notice <= trigger")
	}
	if c.Behavior.EnableTimeout <= 0 {
		bad("behavior.enable_timeout must be positive")
	}

	actuators := make(map[string]bool)
	for _, s := range c.Servos {
		if s.Name == "" {
			bad("servo without name")
		}
		if actuators[s.Name] {
			bad("duplicate actuator %q", s.Name)
		}
		actuators[s.Name] = true
		if s.Speed <= 0 {
			bad("servo %q: speed must be positive", s.Name)
		}
		if s.Channel < 0 || s.Channel > 15 {
			bad("servo %q: channel %d out of range", s.Name, s.Channel)
		}
	}
	for _, o := range c.Outputs {
		if actuators[o.Name] {
			bad("duplicate actuator %q", o.Name)
		}
		actuators[o.Name] = true
		if !c.Hardware.DryRun && o.Pin == "" {
			bad("output %q: pin required", o.Name)
		}
	}
	for _, ov := range c.Overlaps {
		if !actuators[ov.A] || !actuators[ov.B] {
			bad("overlap %s/%s references an unknown actuator", ov.A, ov.B)
		}
	}

	names := make(map[string]bool)
	for _, a := range c.Animations {
		if names[a.Name] {
			bad("duplicate animation %q", a.Name)
		}
		names[a.Name] = true
		switch a.Kind {
		case KindKeyframe, KindMulti, KindBackground, KindHead:
			if a.Path == "" {
				bad("animation %q: path required", a.Name)
			}
		case KindExternal:
		default:
			bad("animation %q: unknown kind %q", a.Name, a.Kind)
		}
		if a.Strength != nil && (*a.Strength < 0 || *a.Strength > 1) {
			bad("animation %q: strength must be within [0, 1]", a.Name)
		}
	}

	switch c.Sensing.Source {
	case SourceCamera, SourceIngest, SourceNone:
	case SourceRemote:
		if c.Sensing.RemoteURL == "" {
			bad("sensing.remote_url required for the remote source")
		}
	default:
		bad("unknown sensing source %q", c.Sensing.Source)
	}
	if c.Sensing.Source == SourceIngest && !c.Web.Enabled {
		bad("the ingest source needs the web server")
	}
	if c.Web.Enabled && c.Web.StatusHz <= 0 {
		bad("web.status_hz must be positive")
	}

	return errors.Join(errs...)
}
