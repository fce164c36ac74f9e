// Package actuation models the figure's actuators and keeps them inside
// their safety envelope.
//
// A Servo moves toward its target at a bounded rate. The Controller owns all
// servos and a set of Constraints; each tick it advances every servo and
// rolls back any individual move that turns an allowed constraint into a
// violated one.
package actuation

// BinaryThreshold is the position above which a binary output is on.
// Binary outputs share the servo angle range [0, 180], so this is its midpoint.
const BinaryThreshold = 90.0

// BinarySpeed is the rate used for binary outputs. It is high enough that a
// single tick always completes the switch.
const BinarySpeed = 10000.0

// Servo is a single actuator with bounded-rate motion.
type Servo struct {
	Name     string
	Position float64
	Target   float64
	Speed    float64 // units per second
	Binary   bool
}

// NewServo creates a servo resting at position.
func NewServo(name string, speed, position float64) *Servo {
	return &Servo{
		Name:     name,
		Position: position,
		Target:   position,
		Speed:    speed,
	}
}

// NewBinary creates a binary output that starts off.
func NewBinary(name string) *Servo {
	return &Servo{
		Name:   name,
		Speed:  BinarySpeed,
		Binary: true,
	}
}

// SetTarget sets the position the servo will move toward.
func (s *Servo) SetTarget(target float64) {
	s.Target = target
}

// On reports the thresholded state of a binary output.
func (s *Servo) On() bool {
	return s.Position > BinaryThreshold
}

// Tick advances the position toward the target by at most Speed*dt
// and returns the new position.
func (s *Servo) Tick(dt float64) float64 {
	s.Position = Approach(s.Position, s.Target, s.Speed*dt)
	return s.Position
}

// Approach moves current toward target by at most step without overshooting.
// The same law drives servo motion and animation strength smoothing.
func Approach(current, target, step float64) float64 {
	if step < 0 {
		step = 0
	}
	if current < target {
		if current+step > target {
			return target
		}
		return current + step
	}
	if current > target {
		if current-step < target {
			return target
		}
		return current - step
	}
	return current
}
