// Package animation provides the motion sources that the orchestrator blends
// onto the figure's actuators.
//
// Every animation produces, per tick, a mapping from actuator name to the
// position it wants, plus a strength in [0, 1] that says how much of that
// wish should win over the layers below it. Strength never jumps: it follows
// its target at a bounded rate, the same law actuators move by.
//
// Variants:
//   - KeyframeAnimation: cyclic keyframe interpolation loaded from a file
//   - MultiKeyframeAnimation: plays a library of keyframe animations one at a time, round robin
//   - BackgroundAnimation: randomly triggers idle animations as a Poisson process
//   - HeadAnimation: follows the observer's horizontal position
//   - ExternalControlAnimation: sliders and ad-hoc playback from the web surface
package animation

import (
	"github.com/teslashibe/go-marionette/pkg/actuation"
)

// Default animation parameters.
const (
	DefaultPriority      = 5
	DefaultStrength      = 1.0
	DefaultStrengthSpeed = 1.0
)

// Animation is a motion source with an influence weight.
type Animation interface {
	// Name identifies the animation in logs and the registry.
	Name() string

	// Priority orders compositing. Higher priorities are applied later and
	// dominate lower ones.
	Priority() int

	// Strength is the current influence weight in [0, 1].
	Strength() float64

	// TargetStrength is the weight Strength is moving toward.
	TargetStrength() float64

	// AnimateStrength sets the target strength. Strength follows over time.
	AnimateStrength(target float64)

	// Tick advances the animation by dt seconds and returns the desired
	// position per actuator, before strength weighting.
	Tick(dt float64) map[string]float64
}

// Restarter is implemented by animations whose timeline can be rewound.
type Restarter interface {
	Reset()
}

// Sequence is implemented by animations that play a finite run on request.
type Sequence interface {
	Start()
	IsRunning() bool
}

// Base holds the state shared by all animations: identity, priority and
// strength smoothing. Variants embed it.
type Base struct {
	name     string
	priority int
	strength float64
	target   float64
	speed    float64
}

// Option configures a Base.
type Option func(*Base)

// WithPriority sets the compositing priority.
func WithPriority(p int) Option {
	return func(b *Base) { b.priority = p }
}

// WithStrength sets both the initial strength and its target.
func WithStrength(s float64) Option {
	return func(b *Base) {
		b.strength = clamp01(s)
		b.target = b.strength
	}
}

// WithStrengthSpeed sets how fast strength follows its target, in units per second.
func WithStrengthSpeed(speed float64) Option {
	return func(b *Base) { b.speed = speed }
}

// NewBase creates a Base with defaults applied before opts.
func NewBase(name string, opts ...Option) Base {
	b := Base{
		name:     name,
		priority: DefaultPriority,
		strength: DefaultStrength,
		target:   DefaultStrength,
		speed:    DefaultStrengthSpeed,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// Name implements Animation.
func (b *Base) Name() string { return b.name }

// Priority implements Animation.
func (b *Base) Priority() int { return b.priority }

// Strength implements Animation.
func (b *Base) Strength() float64 { return b.strength }

// TargetStrength implements Animation.
func (b *Base) TargetStrength() float64 { return b.target }

// StrengthSpeed returns the smoothing rate.
func (b *Base) StrengthSpeed() float64 { return b.speed }

// AnimateStrength implements Animation. The target is clamped to [0, 1].
func (b *Base) AnimateStrength(target float64) {
	b.target = clamp01(target)
}

// TickStrength moves strength toward its target by at most speed*dt.
func (b *Base) TickStrength(dt float64) {
	b.strength = clamp01(actuation.Approach(b.strength, b.target, b.speed*dt))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

func copyValues(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
