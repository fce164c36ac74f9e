package animation

import (
	"log/slog"

	"github.com/teslashibe/go-marionette/internal/log"
)

// MultiKeyframeAnimation plays one member of a library per Start, advancing
// round robin through the library.
type MultiKeyframeAnimation struct {
	Base

	library []*KeyframeAnimation
	index   int
	active  *KeyframeAnimation
	running bool

	logger *slog.Logger
}

// NewMulti creates a library animation. The library order is the play order.
func NewMulti(name string, library []*KeyframeAnimation, opts ...Option) *MultiKeyframeAnimation {
	return &MultiKeyframeAnimation{
		Base:    NewBase(name, opts...),
		library: library,
		logger:  log.Component("animation").With("animation", name),
	}
}

// Start plays the member at the current index once. An empty library never runs.
func (m *MultiKeyframeAnimation) Start() {
	if len(m.library) == 0 {
		m.logger.Warn("cannot start empty library")
		return
	}
	m.active = m.library[m.index]
	m.active.PlayOnce()
	m.running = true
	m.logger.Info("library member started", "member", m.active.Name(), "index", m.index)
}

// IsRunning reports whether a member is playing.
func (m *MultiKeyframeAnimation) IsRunning() bool { return m.running }

// Index returns the index of the next member to start, or the playing one.
func (m *MultiKeyframeAnimation) Index() int { return m.index }

// Len returns the library size.
func (m *MultiKeyframeAnimation) Len() int { return len(m.library) }

// Current returns the playing member, or nil.
func (m *MultiKeyframeAnimation) Current() *KeyframeAnimation { return m.active }

// Tick implements Animation.
func (m *MultiKeyframeAnimation) Tick(dt float64) map[string]float64 {
	m.TickStrength(dt)

	if m.active == nil {
		return map[string]float64{}
	}

	out := m.active.Tick(dt)
	if m.active.Done() {
		m.logger.Debug("library member finished", "member", m.active.Name())
		m.active = nil
		m.running = false
		m.index = (m.index + 1) % len(m.library)
	}
	return out
}
