package marionette

import (
	"fmt"
	"math"

	"github.com/teslashibe/go-marionette/internal/config"
	"github.com/teslashibe/go-marionette/pkg/actuation"
	"github.com/teslashibe/go-marionette/pkg/animation"
	"github.com/teslashibe/go-marionette/pkg/hardware"
	"github.com/teslashibe/go-marionette/pkg/sensing"
)

// BuildController creates the servos, binary outputs and constraints.
//
// Servos start at the midpoint of their configured range and get a range
// constraint over it; binary outputs start off.
func BuildController(cfg *config.Config, opts ...actuation.Option) (*actuation.Controller, error) {
	servos := make([]*actuation.Servo, 0, len(cfg.Servos)+len(cfg.Outputs))
	byName := make(map[string]*actuation.Servo)
	var constraints []actuation.Constraint

	for _, sc := range cfg.Servos {
		s := actuation.NewServo(sc.Name, sc.Speed, (sc.Min+sc.Max)/2)
		servos = append(servos, s)
		byName[sc.Name] = s
		constraints = append(constraints,
			actuation.NewRangeConstraint(s, math.Min(sc.Min, sc.Max), math.Max(sc.Min, sc.Max)))
	}
	for _, oc := range cfg.Outputs {
		s := actuation.NewBinary(oc.Name)
		servos = append(servos, s)
		byName[oc.Name] = s
	}

	for _, ov := range cfg.Overlaps {
		a, b := byName[ov.A], byName[ov.B]
		if a == nil || b == nil {
			return nil, fmt.Errorf("%w: overlap %s/%s", actuation.ErrUnknownServo, ov.A, ov.B)
		}
		constraints = append(constraints, actuation.NewOverlapConstraint(a, b,
			actuation.Range{Min: ov.RangeA[0], Max: ov.RangeA[1]},
			actuation.Range{Min: ov.RangeB[0], Max: ov.RangeB[1]}))
	}

	return actuation.NewController(servos, constraints, opts...)
}

// BoardConfig maps the configuration onto the hardware wiring.
func BoardConfig(cfg *config.Config) hardware.BoardConfig {
	bc := hardware.BoardConfig{
		I2CBus:  cfg.Hardware.I2CBus,
		I2CAddr: cfg.Hardware.I2CAddr,
	}
	for _, s := range cfg.Servos {
		bc.Servos = append(bc.Servos, hardware.ServoChannel{
			Name:       s.Name,
			Channel:    s.Channel,
			Inverted:   s.Inverted,
			MinPulseUS: s.MinPulseUS,
			MaxPulseUS: s.MaxPulseUS,
		})
	}
	for _, o := range cfg.Outputs {
		bc.Outputs = append(bc.Outputs, hardware.PinMapping{Name: o.Name, Pin: o.Pin})
	}
	return bc
}

// InputPins maps the configured inputs onto pin mappings.
func InputPins(cfg *config.Config) []hardware.PinMapping {
	pins := make([]hardware.PinMapping, 0, len(cfg.Inputs))
	for _, in := range cfg.Inputs {
		pins = append(pins, hardware.PinMapping{Name: in.Name, Pin: in.Pin})
	}
	return pins
}

func animationOptions(ac config.AnimationConfig) []animation.Option {
	strength := 0.0
	if ac.Strength != nil {
		strength = *ac.Strength
	}
	opts := []animation.Option{animation.WithStrength(strength)}
	if ac.Priority != nil {
		opts = append(opts, animation.WithPriority(*ac.Priority))
	}
	if ac.StrengthSpeed != nil {
		opts = append(opts, animation.WithStrengthSpeed(*ac.StrengthSpeed))
	}
	return opts
}

// BuildAnimations loads every configured animation into a registry, in
// configuration order. The head animation follows pose. The external
// animation, if configured, is returned separately for the web API.
func BuildAnimations(cfg *config.Config, pose animation.PoseSource) (*animation.Registry, *animation.ExternalControlAnimation, error) {
	reg := animation.NewRegistry()
	var remote *animation.ExternalControlAnimation

	for _, ac := range cfg.Animations {
		opts := animationOptions(ac)

		var (
			a   animation.Animation
			err error
		)
		switch ac.Kind {
		case config.KindKeyframe:
			var f animation.File
			f, err = animation.ReadFile(ac.Path)
			if err == nil {
				a, err = animation.NewKeyframe(ac.Name, f, opts...)
			}
		case config.KindMulti:
			var lib []*animation.KeyframeAnimation
			lib, err = animation.LoadDir(ac.Path)
			if err == nil {
				a = animation.NewMulti(ac.Name, lib, opts...)
			}
		case config.KindBackground:
			var pool []*animation.KeyframeAnimation
			pool, err = animation.LoadDir(ac.Path)
			if err == nil {
				expected := ac.ExpectedStart
				if expected <= 0 {
					expected = animation.DefaultExpectedStart
				}
				a = animation.NewBackground(ac.Name, pool, expected, nil, opts...)
			}
		case config.KindHead:
			var f animation.File
			f, err = animation.ReadFile(ac.Path)
			if err == nil {
				a, err = animation.NewHeadFromFile(ac.Name, pose, f, opts...)
			}
		case config.KindExternal:
			if remote != nil {
				err = fmt.Errorf("%w: only one external animation", config.ErrInvalid)
				break
			}
			remote = animation.NewExternalControl(ac.Name, opts...)
			a = remote
		default:
			err = fmt.Errorf("%w: unknown kind %q", config.ErrInvalid, ac.Kind)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("animation %q: %w", ac.Name, err)
		}
		if err := reg.Register(a); err != nil {
			return nil, nil, err
		}
	}
	return reg, remote, nil
}

// BuildSource creates the configured observation source. The ingest source
// is created by the caller because the web server mounts it.
func BuildSource(cfg *config.Config, ingest *sensing.IngestSource) (sensing.Source, error) {
	switch cfg.Sensing.Source {
	case config.SourceCamera:
		cc := sensing.DefaultCameraConfig()
		cc.Device = cfg.Sensing.Camera.Device
		if cfg.Sensing.Camera.FPS > 0 {
			cc.FPS = cfg.Sensing.Camera.FPS
		}
		if cfg.Sensing.Camera.Model != "" {
			cc.Detector.ModelPath = cfg.Sensing.Camera.Model
		}
		if cfg.Sensing.Camera.Confidence > 0 {
			cc.Detector.ConfidenceThresh = cfg.Sensing.Camera.Confidence
		}
		return sensing.NewCameraSource(cc)
	case config.SourceRemote:
		return sensing.NewRemoteSource(cfg.Sensing.RemoteURL), nil
	case config.SourceIngest:
		if ingest == nil {
			return nil, fmt.Errorf("%w: ingest source without endpoint", config.ErrInvalid)
		}
		return ingest, nil
	case config.SourceNone, "":
		return sensing.NewStaticSource(sensing.Observation{}, 0), nil
	default:
		return nil, fmt.Errorf("%w: unknown sensing source %q", config.ErrInvalid, cfg.Sensing.Source)
	}
}
