package hardware

import (
	"sync"
	"time"
)

// Mock implements actuation.Sink for testing.
// All methods can be customized via function fields.
type Mock struct {
	// WriteAngleFunc is called when WriteAngle is invoked.
	// If nil, returns nil.
	WriteAngleFunc func(name string, angle float64) error

	// WriteDigitalFunc is called when WriteDigital is invoked.
	// If nil, returns nil.
	WriteDigitalFunc func(name string, on bool) error

	// Tracking
	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	Name   string
	Angle  float64
	On     bool
	Time   time.Time
}

// NewMock creates a mock that accepts every write.
func NewMock() *Mock {
	return &Mock{}
}

// WriteAngle calls WriteAngleFunc and records the call.
func (m *Mock) WriteAngle(name string, angle float64) error {
	m.record(MockCall{Method: "WriteAngle", Name: name, Angle: angle})
	if m.WriteAngleFunc != nil {
		return m.WriteAngleFunc(name, angle)
	}
	return nil
}

// WriteDigital calls WriteDigitalFunc and records the call.
func (m *Mock) WriteDigital(name string, on bool) error {
	m.record(MockCall{Method: "WriteDigital", Name: name, On: on})
	if m.WriteDigitalFunc != nil {
		return m.WriteDigitalFunc(name, on)
	}
	return nil
}

func (m *Mock) record(c MockCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.Time = time.Now()
	m.calls = append(m.calls, c)
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// Last returns the most recent call for name, and false if there is none.
func (m *Mock) Last(name string) (MockCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.calls) - 1; i >= 0; i-- {
		if m.calls[i].Name == name {
			return m.calls[i], true
		}
	}
	return MockCall{}, false
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
