package actuation

import "fmt"

// Constraint is a safety predicate over actuator state.
// Implementations only observe servos; they never move them.
type Constraint interface {
	// Allowed reports whether the current state is acceptable from the
	// point of view of s. Constraints that do not reference s return true.
	Allowed(s *Servo) bool

	// Servos returns the servos the constraint reads.
	Servos() []*Servo
}

// Range is an inclusive [Min, Max] interval.
type Range struct {
	Min, Max float64
}

// Contains reports whether v lies inside the range.
func (r Range) Contains(v float64) bool {
	return r.Min <= v && v <= r.Max
}

// Normalize returns the range with Min <= Max.
func (r Range) Normalize() Range {
	if r.Min > r.Max {
		return Range{Min: r.Max, Max: r.Min}
	}
	return r
}

func (r Range) String() string {
	return fmt.Sprintf("[%g, %g]", r.Min, r.Max)
}

// RangeConstraint bounds one servo's position.
type RangeConstraint struct {
	Servo *Servo
	Range Range
}

// NewRangeConstraint creates a range constraint. min and max may be given
// in either order.
func NewRangeConstraint(s *Servo, min, max float64) *RangeConstraint {
	return &RangeConstraint{Servo: s, Range: Range{Min: min, Max: max}.Normalize()}
}

// Allowed implements Constraint.
func (c *RangeConstraint) Allowed(s *Servo) bool {
	if s != c.Servo {
		return true
	}
	return c.Range.Contains(c.Servo.Position)
}

// Servos implements Constraint.
func (c *RangeConstraint) Servos() []*Servo {
	return []*Servo{c.Servo}
}

// OverlapConstraint forbids A inside RangeA while B is inside RangeB.
// It models two moving parts that would collide.
type OverlapConstraint struct {
	A, B           *Servo
	RangeA, RangeB Range
}

// NewOverlapConstraint creates an overlap constraint.
func NewOverlapConstraint(a, b *Servo, rangeA, rangeB Range) *OverlapConstraint {
	return &OverlapConstraint{
		A:      a,
		B:      b,
		RangeA: rangeA.Normalize(),
		RangeB: rangeB.Normalize(),
	}
}

// Allowed implements Constraint. Both positions are read live, so when the
// controller evaluates it for the later servo in iteration order it sees the
// earlier servo's position from the same tick.
func (c *OverlapConstraint) Allowed(s *Servo) bool {
	if s != c.A && s != c.B {
		return true
	}
	return !(c.RangeA.Contains(c.A.Position) && c.RangeB.Contains(c.B.Position))
}

// Servos implements Constraint.
func (c *OverlapConstraint) Servos() []*Servo {
	return []*Servo{c.A, c.B}
}
