// Package orchestrator blends the active animations into one set of
// actuator targets per tick.
//
// Animations are layered in ascending priority. Each layer pulls the
// composite toward its own values in proportion to its strength:
//
//	c = s*v + (1-s)*c
//
// The composite for an actuator starts from the actuator's current
// position, so an animation at strength 0 leaves it where it is and an
// animation at strength 1 overrides everything below it.
package orchestrator

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/teslashibe/go-marionette/internal/log"
	"github.com/teslashibe/go-marionette/pkg/animation"
)

// Actuators is the part of the actuation controller the orchestrator drives.
type Actuators interface {
	Position(name string) (float64, bool)
	SetTarget(name string, target float64) bool
	Tick(dt float64)
}

// Stats are orchestrator diagnostics.
type Stats struct {
	Ticks          uint64 `json:"ticks"`
	Panics         uint64 `json:"panics"`
	UnknownTargets uint64 `json:"unknown_targets"`
}

// Orchestrator composites animations onto actuators. It is owned by the
// control loop and not safe for concurrent use.
type Orchestrator struct {
	actuators  Actuators
	animations []animation.Animation
	composite  map[string]float64

	logger   *slog.Logger
	throttle *log.Throttle
	stats    Stats
}

// New creates an orchestrator driving actuators.
func New(actuators Actuators) *Orchestrator {
	return &Orchestrator{
		actuators: actuators,
		composite: make(map[string]float64),
		logger:    log.Component("orchestrator"),
		throttle:  log.NewThrottle(5 * time.Second),
	}
}

// SetLogger replaces the logger.
func (o *Orchestrator) SetLogger(l *slog.Logger) {
	o.logger = l
}

// Add registers an animation. Animations with equal priority keep their
// registration order.
func (o *Orchestrator) Add(a animation.Animation) {
	o.animations = append(o.animations, a)
	sort.SliceStable(o.animations, func(i, j int) bool {
		return o.animations[i].Priority() < o.animations[j].Priority()
	})
	o.logger.Info("animation added", "animation", a.Name(), "priority", a.Priority())
}

// Remove unregisters an animation.
func (o *Orchestrator) Remove(a animation.Animation) error {
	for i, x := range o.animations {
		if x == a {
			o.animations = append(o.animations[:i], o.animations[i+1:]...)
			o.logger.Info("animation removed", "animation", a.Name())
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrNotRegistered, a.Name())
}

// Animations returns the animations in compositing order.
func (o *Orchestrator) Animations() []animation.Animation {
	out := make([]animation.Animation, len(o.animations))
	copy(out, o.animations)
	return out
}

// Stats returns the orchestrator counters.
func (o *Orchestrator) Stats() Stats {
	return o.stats
}

// Tick advances every animation by dt, writes the composite as actuator
// targets and ticks the actuators.
func (o *Orchestrator) Tick(dt float64) {
	o.stats.Ticks++
	clear(o.composite)

	for _, a := range o.animations {
		values := o.tickAnimation(a, dt)
		if len(values) == 0 {
			continue
		}
		s := a.Strength()

		for name, v := range values {
			c, seen := o.composite[name]
			if !seen {
				pos, ok := o.actuators.Position(name)
				if !ok {
					o.stats.UnknownTargets++
					if ok, suppressed := o.throttle.Allow("unknown:" + name); ok {
						o.logger.Warn("animation targets unknown actuator", "animation", a.Name(), "actuator", name, "suppressed", suppressed)
					}
					continue
				}
				c = pos
			}
			o.composite[name] = s*v + (1-s)*c
		}
	}

	for name, v := range o.composite {
		o.actuators.SetTarget(name, v)
	}
	o.actuators.Tick(dt)
}

// tickAnimation ticks a, recovering from a panic so one broken animation
// cannot stop the loop.
func (o *Orchestrator) tickAnimation(a animation.Animation, dt float64) (values map[string]float64) {
	defer func() {
		if r := recover(); r != nil {
			o.stats.Panics++
			values = nil
			if ok, suppressed := o.throttle.Allow("panic:" + a.Name()); ok {
				o.logger.Error("animation tick panicked", "animation", a.Name(), "panic", r, "suppressed", suppressed)
			}
		}
	}()
	return a.Tick(dt)
}
