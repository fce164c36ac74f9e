package animation

import (
	"sync"
)

// ExternalControlAnimation lets the web surface drive actuators directly,
// either through slider values or by playing an animation from the editor.
//
// It is safe for concurrent use: web handlers write while the control loop
// ticks. Writes are last-write-wins.
type ExternalControlAnimation struct {
	mu sync.RWMutex

	base    Base
	sliders map[string]float64
	script  *KeyframeAnimation
}

// NewExternalControl creates an external control animation.
func NewExternalControl(name string, opts ...Option) *ExternalControlAnimation {
	return &ExternalControlAnimation{
		base:    NewBase(name, opts...),
		sliders: make(map[string]float64),
	}
}

// Name implements Animation.
func (e *ExternalControlAnimation) Name() string { return e.base.Name() }

// Priority implements Animation.
func (e *ExternalControlAnimation) Priority() int { return e.base.Priority() }

// Strength implements Animation.
func (e *ExternalControlAnimation) Strength() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.base.Strength()
}

// TargetStrength implements Animation.
func (e *ExternalControlAnimation) TargetStrength() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.base.TargetStrength()
}

// AnimateStrength implements Animation.
func (e *ExternalControlAnimation) AnimateStrength(target float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.base.AnimateStrength(target)
}

// SetEnabled fades external control in or out.
func (e *ExternalControlAnimation) SetEnabled(enabled bool) {
	if enabled {
		e.AnimateStrength(1)
	} else {
		e.AnimateStrength(0)
	}
}

// Enabled reports whether external control is fading in or fully on.
func (e *ExternalControlAnimation) Enabled() bool {
	return e.TargetStrength() > 0
}

// SetSliders replaces the slider values.
func (e *ExternalControlAnimation) SetSliders(values map[string]float64) {
	v := copyValues(values)
	e.mu.Lock()
	e.sliders = v
	e.mu.Unlock()
}

// Sliders returns a copy of the slider values.
func (e *ExternalControlAnimation) Sliders() map[string]float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return copyValues(e.sliders)
}

// StartAnimation begins looping f, seeded at its currentFrameIndex.
func (e *ExternalControlAnimation) StartAnimation(f File) error {
	a, err := NewKeyframe(e.base.Name()+"/script", f)
	if err != nil {
		return err
	}
	a.SetTime(float64(f.Config.CurrentFrameIndex) / f.Config.FPS)

	e.mu.Lock()
	e.script = a
	e.mu.Unlock()
	return nil
}

// StopAnimation returns to slider control.
func (e *ExternalControlAnimation) StopAnimation() {
	e.mu.Lock()
	e.script = nil
	e.mu.Unlock()
}

// Playing reports whether an animation is playing.
func (e *ExternalControlAnimation) Playing() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.script != nil
}

// CurrentFrame returns the playhead of the playing animation.
func (e *ExternalControlAnimation) CurrentFrame() (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.script == nil {
		return 0, ErrNotPlaying
	}
	return e.script.CurrentFrame(), nil
}

// Tick implements Animation.
func (e *ExternalControlAnimation) Tick(dt float64) map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.base.TickStrength(dt)
	if e.script != nil {
		return e.script.Tick(dt)
	}
	return copyValues(e.sliders)
}
