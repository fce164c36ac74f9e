package hardware

import (
	"fmt"
	"maps"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Inputs samples digital inputs. Pins are pulled down, so an open switch
// reads false.
type Inputs struct {
	pins map[string]gpio.PinIn
}

// OpenInputs resolves and configures the named input pins.
func OpenInputs(mappings []PinMapping) (*Inputs, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize host drivers: %w", err)
	}
	pins := make(map[string]gpio.PinIn, len(mappings))
	for _, m := range mappings {
		p := gpioreg.ByName(m.Pin)
		if p == nil {
			return nil, fmt.Errorf("%w: %s (%s)", ErrPinNotFound, m.Pin, m.Name)
		}
		pins[m.Name] = p
	}
	return NewInputs(pins)
}

// NewInputs configures pins as pulled-down inputs.
func NewInputs(pins map[string]gpio.PinIn) (*Inputs, error) {
	for name, p := range pins {
		if err := p.In(gpio.PullDown, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("failed to configure input %s: %w", name, err)
		}
	}
	return &Inputs{pins: pins}, nil
}

// Read returns the level of every input.
func (in *Inputs) Read() map[string]bool {
	out := make(map[string]bool, len(in.pins))
	for name, p := range in.pins {
		out[name] = bool(p.Read())
	}
	return out
}

// StaticInputs holds input values in memory. It replaces real inputs in
// dry runs and can be flipped from the web API.
type StaticInputs struct {
	mu     sync.RWMutex
	values map[string]bool
}

// NewStaticInputs creates static inputs with the given initial values.
func NewStaticInputs(values map[string]bool) *StaticInputs {
	s := &StaticInputs{values: make(map[string]bool, len(values))}
	maps.Copy(s.values, values)
	return s
}

// Set sets one input.
func (s *StaticInputs) Set(name string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = on
}

// Read returns a copy of the values.
func (s *StaticInputs) Read() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

// NopSink discards every write.
type NopSink struct{}

// WriteAngle implements actuation.Sink.
func (NopSink) WriteAngle(string, float64) error { return nil }

// WriteDigital implements actuation.Sink.
func (NopSink) WriteDigital(string, bool) error { return nil }
