package hardware

import "errors"

var (
	// ErrUnknownChannel is returned when writing to a name with no mapping.
	ErrUnknownChannel = errors.New("hardware: unknown channel")

	// ErrPinNotFound is returned when a GPIO pin name does not resolve.
	ErrPinNotFound = errors.New("hardware: gpio pin not found")

	// ErrInvalidChannel is returned for PWM channels outside 0-15.
	ErrInvalidChannel = errors.New("hardware: pwm channel out of range")
)
