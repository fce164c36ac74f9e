package actuation

import "errors"

var (
	// ErrDuplicateServo is returned when two servos share a name.
	ErrDuplicateServo = errors.New("actuation: duplicate servo name")

	// ErrUnknownServo is returned when a name or constraint references a servo
	// the controller does not own.
	ErrUnknownServo = errors.New("actuation: unknown servo")

	// ErrInvalidSpeed is returned for servos with a non-positive speed.
	ErrInvalidSpeed = errors.New("actuation: speed must be positive")
)
