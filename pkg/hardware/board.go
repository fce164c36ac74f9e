// Package hardware connects the actuation layer to real pins: servos on a
// PCA9685 PWM controller, binary outputs and digital inputs on GPIO.
//
// Board implements actuation.Sink. Inputs implements behavior.Inputs.
package hardware

import (
	"fmt"
	"math"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/pca9685"
	"periph.io/x/host/v3"
)

const (
	// PWMFrequency is the servo refresh rate.
	PWMFrequency = 50 * physic.Hertz

	// Channels is the number of PCA9685 outputs.
	Channels = 16

	// MaxAngle is the full servo travel in degrees.
	MaxAngle = 180.0

	pwmResolution = 4096
	pwmPeriodUS   = 20000.0 // 1/50 Hz
)

// ServoChannel maps a servo name to a PWM channel.
type ServoChannel struct {
	Name     string
	Channel  int
	Inverted bool // mounted mirrored; written as 180 - angle

	// Pulse range in microseconds for 0 and 180 degrees. Zero values use
	// 750 and 2250.
	MinPulseUS float64
	MaxPulseUS float64
}

// PinMapping maps a logical name to a GPIO pin name such as "GPIO17".
type PinMapping struct {
	Name string
	Pin  string
}

// BoardConfig describes the wiring.
type BoardConfig struct {
	I2CBus  string // "" for the first bus
	I2CAddr uint16 // 0 for the PCA9685 default
	Servos  []ServoChannel
	Outputs []PinMapping
}

// PWM is the part of the PCA9685 driver the board uses. on and off are
// 12-bit counts within one period.
type PWM interface {
	SetPwm(channel int, on, off gpio.Duty) error
}

// Board writes servo angles and binary outputs.
type Board struct {
	pwm     PWM
	servos  map[string]ServoChannel
	outputs map[string]gpio.PinOut
	closer  func() error

	mu sync.Mutex // serializes bus access
}

// Open initializes the host drivers, the PCA9685 at 50 Hz and the output pins.
func Open(cfg BoardConfig) (*Board, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize host drivers: %w", err)
	}

	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("failed to open i2c bus %q: %w", cfg.I2CBus, err)
	}

	dev, err := newPCA9685(bus, cfg.I2CAddr)
	if err != nil {
		bus.Close()
		return nil, err
	}

	outputs := make(map[string]gpio.PinOut, len(cfg.Outputs))
	for _, m := range cfg.Outputs {
		p := gpioreg.ByName(m.Pin)
		if p == nil {
			bus.Close()
			return nil, fmt.Errorf("%w: %s (%s)", ErrPinNotFound, m.Pin, m.Name)
		}
		if err := p.Out(gpio.Low); err != nil {
			bus.Close()
			return nil, fmt.Errorf("failed to configure output %s: %w", m.Name, err)
		}
		outputs[m.Name] = p
	}

	b, err := NewBoard(dev, cfg.Servos, outputs)
	if err != nil {
		bus.Close()
		return nil, err
	}
	b.closer = bus.Close
	return b, nil
}

func newPCA9685(bus i2c.Bus, addr uint16) (*pca9685.Dev, error) {
	if addr == 0 {
		addr = pca9685.I2CAddr
	}
	dev, err := pca9685.NewI2C(bus, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to open pca9685 at 0x%02x: %w", addr, err)
	}
	if err := dev.SetPwmFreq(PWMFrequency); err != nil {
		return nil, fmt.Errorf("failed to set pwm frequency: %w", err)
	}
	return dev, nil
}

// NewBoard creates a board over an existing PWM driver and configured
// output pins.
func NewBoard(pwm PWM, servos []ServoChannel, outputs map[string]gpio.PinOut) (*Board, error) {
	b := &Board{
		pwm:     pwm,
		servos:  make(map[string]ServoChannel, len(servos)),
		outputs: outputs,
	}
	if b.outputs == nil {
		b.outputs = make(map[string]gpio.PinOut)
	}
	for _, s := range servos {
		if s.Channel < 0 || s.Channel >= Channels {
			return nil, fmt.Errorf("%w: %s on %d", ErrInvalidChannel, s.Name, s.Channel)
		}
		if s.MinPulseUS == 0 && s.MaxPulseUS == 0 {
			s.MinPulseUS, s.MaxPulseUS = 750, 2250
		}
		b.servos[s.Name] = s
	}
	return b, nil
}

// WriteAngle implements actuation.Sink. The angle is clamped to [0, 180]
// after inversion.
func (b *Board) WriteAngle(name string, angle float64) error {
	s, ok := b.servos[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, name)
	}
	if s.Inverted {
		angle = MaxAngle - angle
	}
	angle = math.Max(0, math.Min(MaxAngle, angle))

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pwm.SetPwm(s.Channel, 0, PulseCounts(angle, s.MinPulseUS, s.MaxPulseUS))
}

// WriteDigital implements actuation.Sink.
func (b *Board) WriteDigital(name string, on bool) error {
	p, ok := b.outputs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, name)
	}
	return p.Out(gpio.Level(on))
}

// Close releases the bus.
func (b *Board) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}

// PulseCounts converts an angle to the PCA9685 off count for a 50 Hz period.
func PulseCounts(angle, minUS, maxUS float64) gpio.Duty {
	us := minUS + angle/MaxAngle*(maxUS-minUS)
	return gpio.Duty(math.Round(us / pwmPeriodUS * pwmResolution))
}
