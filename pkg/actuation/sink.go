package actuation

// Sink receives actuator positions once per tick.
// Continuous servos get an angle, binary outputs a level.
type Sink interface {
	WriteAngle(channel string, angle float64) error
	WriteDigital(channel string, on bool) error
}

// SinkFunc adapts a pair of functions to Sink.
type SinkFunc struct {
	Angle   func(channel string, angle float64) error
	Digital func(channel string, on bool) error
}

// WriteAngle implements Sink.
func (f SinkFunc) WriteAngle(channel string, angle float64) error {
	if f.Angle == nil {
		return nil
	}
	return f.Angle(channel, angle)
}

// WriteDigital implements Sink.
func (f SinkFunc) WriteDigital(channel string, on bool) error {
	if f.Digital == nil {
		return nil
	}
	return f.Digital(channel, on)
}
