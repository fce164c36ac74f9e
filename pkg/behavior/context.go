package behavior

import (
	"time"

	"github.com/teslashibe/go-marionette/pkg/animation"
)

// Registry names the machine looks up.
const (
	AnimOff           = "off"
	AnimLedRed        = "led_red"
	AnimLedGreen      = "led_green"
	AnimLedGreenBlink = "led_green_blink"
	AnimTest          = "test"
	AnimHead          = "head"
	AnimDances        = "dances"
	AnimDancesClosed  = "dances_closed"
	AnimCloseMouth    = "close_mouth" // optional
)

// Digital input names.
const (
	InputEnable = "enable"
	InputTest   = "test"
	InputStart  = "start"
)

// PresenceEpsilon is the presence time left after a library finishes while
// someone is still watching, so the machine returns to Observer without
// immediately triggering again.
const PresenceEpsilon = 0.01

// Default thresholds.
const (
	DefaultNoticeThreshold  = 1.0
	DefaultTriggerThreshold = 12.0
	DefaultEnableTimeout    = 10 * time.Minute
)

// Sensing exposes the accumulated observation signals.
type Sensing interface {
	// PresenceTime is how long, in seconds, someone has been continuously present.
	PresenceTime() float64

	// SetPresence overwrites the accumulated presence time.
	SetPresence(seconds float64)
}

// Inputs samples the named digital inputs.
type Inputs interface {
	Read() map[string]bool
}

// InputsFunc adapts a function to Inputs.
type InputsFunc func() map[string]bool

// Read implements Inputs.
func (f InputsFunc) Read() map[string]bool { return f() }

// Schedule decides which library plays.
type Schedule interface {
	IsOpen(t time.Time) bool
}

// Recorder receives a record for every library start.
type Recorder interface {
	Record(library string, open bool) error
}

// Thresholds configures the transitions.
type Thresholds struct {
	// Notice is the presence time after which the figure notices an observer.
	Notice float64

	// Trigger is the presence time after which a library starts.
	Trigger float64

	// EnableTimeout is how long the enable input may be held before it is
	// treated as released.
	EnableTimeout time.Duration
}

// DefaultThresholds returns the built-in thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Notice:        DefaultNoticeThreshold,
		Trigger:       DefaultTriggerThreshold,
		EnableTimeout: DefaultEnableTimeout,
	}
}

// Context is everything the machine reads and drives.
type Context struct {
	Sensing    Sensing
	Animations *animation.Registry
	Inputs     Inputs
	Thresholds Thresholds

	// Schedule is optional; without one the venue is always open.
	Schedule Schedule

	// Recorder is optional.
	Recorder Recorder

	// Now defaults to time.Now.
	Now func() time.Time
}
