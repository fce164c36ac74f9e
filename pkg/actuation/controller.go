package actuation

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-marionette/internal/log"
)

// ServoState is a read-only copy of a servo for status reporting.
type ServoState struct {
	Name     string  `json:"name"`
	Position float64 `json:"position"`
	Target   float64 `json:"target"`
	Binary   bool    `json:"binary"`
}

// Stats are controller diagnostics.
type Stats struct {
	Ticks       uint64 `json:"ticks"`
	Rollbacks   uint64 `json:"rollbacks"`
	WriteErrors uint64 `json:"write_errors"`
}

// Controller owns the servos and constraints and advances them each tick.
//
// Servos are processed in registration order. The controller is not safe for
// concurrent use; the control loop owns it and publishes snapshots.
type Controller struct {
	servos      []*Servo
	byName      map[string]*Servo
	constraints []Constraint
	sink        Sink

	logger   *slog.Logger
	throttle *log.Throttle

	stats Stats

	// scratch buffers reused across ticks
	pre, post []bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithSink sets the hardware sink written after every tick.
func WithSink(s Sink) Option {
	return func(c *Controller) { c.sink = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// NewController creates a controller. Every servo referenced by a constraint
// must be in servos.
func NewController(servos []*Servo, constraints []Constraint, opts ...Option) (*Controller, error) {
	c := &Controller{
		byName:   make(map[string]*Servo, len(servos)),
		throttle: log.NewThrottle(5 * time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.Component("actuation")
	}

	for _, s := range servos {
		if _, dup := c.byName[s.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateServo, s.Name)
		}
		if s.Speed <= 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSpeed, s.Name)
		}
		c.byName[s.Name] = s
		c.servos = append(c.servos, s)
	}

	for i, con := range constraints {
		for _, s := range con.Servos() {
			if s == nil || c.byName[s.Name] != s {
				return nil, fmt.Errorf("%w: constraint %d", ErrUnknownServo, i)
			}
		}
	}
	c.constraints = constraints
	c.pre = make([]bool, len(constraints))
	c.post = make([]bool, len(constraints))

	c.logger.Info("controller ready", "servos", len(c.servos), "constraints", len(c.constraints))
	return c, nil
}

// Servo returns the named servo or nil.
func (c *Controller) Servo(name string) *Servo {
	return c.byName[name]
}

// Position returns the current position of the named servo.
func (c *Controller) Position(name string) (float64, bool) {
	s, ok := c.byName[name]
	if !ok {
		return 0, false
	}
	return s.Position, true
}

// SetTarget sets the target of the named servo. It reports false when the
// servo does not exist.
func (c *Controller) SetTarget(name string, target float64) bool {
	s, ok := c.byName[name]
	if !ok {
		return false
	}
	s.SetTarget(target)
	return true
}

// Servos returns the servos in registration order.
func (c *Controller) Servos() []*Servo {
	return c.servos
}

// Snapshot copies the state of every servo.
func (c *Controller) Snapshot() []ServoState {
	out := make([]ServoState, len(c.servos))
	for i, s := range c.servos {
		out[i] = ServoState{Name: s.Name, Position: s.Position, Target: s.Target, Binary: s.Binary}
	}
	return out
}

// Stats returns the controller counters.
func (c *Controller) Stats() Stats {
	return c.stats
}

// Tick advances every servo by dt seconds, enforcing constraints, then
// writes all positions to the sink.
//
// A move is reverted when it turns any constraint from allowed into not
// allowed. Constraints that were already violated before the move are not
// enforced, so a servo that starts outside its envelope can still move.
func (c *Controller) Tick(dt float64) {
	c.stats.Ticks++

	for _, s := range c.servos {
		old := s.Position
		c.evaluate(s, c.pre)
		s.Tick(dt)
		c.evaluate(s, c.post)

		for i := range c.constraints {
			if c.pre[i] && !c.post[i] {
				s.Position = old
				c.stats.Rollbacks++
				c.logger.Debug("move rejected by constraint", "servo", s.Name, "constraint", i, "target", s.Target)
				break
			}
		}
	}

	c.flush()
}

func (c *Controller) evaluate(s *Servo, into []bool) {
	for i, con := range c.constraints {
		into[i] = con.Allowed(s)
	}
}

// flush writes every servo to the sink. A failed write is logged and the
// remaining servos are still written.
func (c *Controller) flush() {
	if c.sink == nil {
		return
	}
	for _, s := range c.servos {
		var err error
		if s.Binary {
			err = c.sink.WriteDigital(s.Name, s.On())
		} else {
			err = c.sink.WriteAngle(s.Name, s.Position)
		}
		if err != nil {
			c.stats.WriteErrors++
			if ok, suppressed := c.throttle.Allow(s.Name); ok {
				c.logger.Warn("actuator write failed", "servo", s.Name, "error", err, "suppressed", suppressed)
			}
		}
	}
}

// Release switches every binary output off and writes the result once.
// Call it on shutdown.
func (c *Controller) Release() {
	for _, s := range c.servos {
		if s.Binary {
			s.Target = 0
			s.Position = 0
		}
	}
	c.flush()
}
