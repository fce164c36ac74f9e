// Package behavior selects what the figure does. A finite state machine
// reads presence and the digital inputs once per tick and drives animation
// strengths accordingly.
//
// States:
//
//	NoObservers    -> Observer        presence > notice threshold, or start
//	Observer       -> StartAnimation  presence > trigger threshold, or start
//	Observer       -> NoObservers     presence == 0
//	StartAnimation -> Observer        library finished, someone still present
//	StartAnimation -> NoObservers     library finished, nobody present
//	any            -> Test            test input held
//	Test           -> NoObservers     test input released
//
// Independently of the state, the enable input gates the "off" output and
// the indicator lights. Enable counts as active only while it has been held
// for less than the enable timeout; after that it stays inactive until the
// input is released and pressed again.
package behavior

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-marionette/internal/log"
	"github.com/teslashibe/go-marionette/pkg/animation"
)

// State is a behaviour state.
type State int

const (
	NoObservers State = iota
	Observer
	StartAnimation
	Test
)

func (s State) String() string {
	switch s {
	case NoObservers:
		return "no_observers"
	case Observer:
		return "observer"
	case StartAnimation:
		return "start_animation"
	case Test:
		return "test"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type restartable interface {
	animation.Animation
	animation.Restarter
}

type library interface {
	animation.Animation
	animation.Sequence
}

// Status is a read-only view of the machine.
type Status struct {
	State       State     `json:"state"`
	Since       time.Time `json:"since"`
	TimeInState float64   `json:"time_in_state"`
	Enabled     bool      `json:"enabled"`
	Library     string    `json:"library,omitempty"`
}

// Machine is the behaviour state machine. It is owned by the control loop
// and not safe for concurrent use.
type Machine struct {
	ctx Context

	state      State
	stateStart time.Time

	off, ledRed, ledGreen, ledGreenBlink animation.Animation
	head                                 animation.Animation
	test                                 restartable
	dances, dancesClosed                 library
	closeMouth                           restartable // nil when not registered
	chosen                               library

	gate enableGate

	logger *slog.Logger
}

// New validates ctx and creates a machine in NoObservers.
func New(ctx Context) (*Machine, error) {
	if ctx.Sensing == nil || ctx.Animations == nil || ctx.Inputs == nil {
		return nil, fmt.Errorf("%w: sensing, animations and inputs are required", ErrMissingContext)
	}
	if ctx.Now == nil {
		ctx.Now = time.Now
	}

	m := &Machine{
		ctx:    ctx,
		logger: log.Component("behavior"),
	}

	var err error
	lookup := func(name string) animation.Animation {
		if err != nil {
			return nil
		}
		a, ok := ctx.Animations.Get(name)
		if !ok {
			err = fmt.Errorf("%w: %q", ErrMissingAnimation, name)
		}
		return a
	}

	m.off = lookup(AnimOff)
	m.ledRed = lookup(AnimLedRed)
	m.ledGreen = lookup(AnimLedGreen)
	m.ledGreenBlink = lookup(AnimLedGreenBlink)
	m.head = lookup(AnimHead)
	test := lookup(AnimTest)
	dances := lookup(AnimDances)
	dancesClosed := lookup(AnimDancesClosed)
	if err != nil {
		return nil, err
	}

	if m.test, err = asRestartable(AnimTest, test); err != nil {
		return nil, err
	}
	if m.dances, err = asLibrary(AnimDances, dances); err != nil {
		return nil, err
	}
	if m.dancesClosed, err = asLibrary(AnimDancesClosed, dancesClosed); err != nil {
		return nil, err
	}
	if a, ok := ctx.Animations.Get(AnimCloseMouth); ok {
		if m.closeMouth, err = asRestartable(AnimCloseMouth, a); err != nil {
			return nil, err
		}
	}

	m.state = NoObservers
	m.stateStart = ctx.Now()
	return m, nil
}

func asRestartable(name string, a animation.Animation) (restartable, error) {
	r, ok := a.(restartable)
	if !ok {
		return nil, fmt.Errorf("%w: %q cannot be restarted", ErrIncompatibleAnimation, name)
	}
	return r, nil
}

func asLibrary(name string, a animation.Animation) (library, error) {
	l, ok := a.(library)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a library", ErrIncompatibleAnimation, name)
	}
	return l, nil
}

// SetLogger replaces the logger.
func (m *Machine) SetLogger(l *slog.Logger) {
	m.logger = l
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// TimeInState returns the time since the last transition.
func (m *Machine) TimeInState() time.Duration {
	return m.ctx.Now().Sub(m.stateStart)
}

// Enabled reports whether the enable gate was active at the last update.
func (m *Machine) Enabled() bool { return m.gate.active }

// Status returns a snapshot for monitoring.
func (m *Machine) Status() Status {
	st := Status{
		State:       m.state,
		Since:       m.stateStart,
		TimeInState: m.TimeInState().Seconds(),
		Enabled:     m.gate.active,
	}
	if m.state == StartAnimation && m.chosen != nil {
		st.Library = m.chosen.Name()
	}
	return st
}

func (m *Machine) transition(to State) {
	m.logger.Info("state transition", "from", m.state, "to", to, "after", m.TimeInState().Round(time.Millisecond))
	m.state = to
	m.stateStart = m.ctx.Now()
}

// Update evaluates the enable gate, test preemption and the handler for the
// current state. Exactly one state handler runs per call.
func (m *Machine) Update() {
	inputs := m.ctx.Inputs.Read()
	now := m.ctx.Now()

	if m.gate.update(inputs[InputEnable], now, m.ctx.Thresholds.EnableTimeout) {
		m.logger.Warn("enable input held too long, disabling until released", "timeout", m.ctx.Thresholds.EnableTimeout)
	}
	if m.gate.active {
		m.off.AnimateStrength(0)
		m.ledRed.AnimateStrength(0)
		m.ledGreen.AnimateStrength(1)
	} else {
		m.off.AnimateStrength(1)
		m.ledRed.AnimateStrength(1)
		m.ledGreen.AnimateStrength(0)
	}

	if inputs[InputTest] && m.state != Test {
		m.transition(Test)
		m.test.Reset()
	}

	switch m.state {
	case NoObservers:
		m.handleNoObservers(inputs)
	case Observer:
		m.handleObserver(inputs, now)
	case StartAnimation:
		m.handleStartAnimation()
	case Test:
		m.handleTest(inputs)
	default:
		panic(fmt.Sprintf("behavior: unknown state %d", int(m.state)))
	}
}

func (m *Machine) handleNoObservers(inputs map[string]bool) {
	m.head.AnimateStrength(0)
	m.dances.AnimateStrength(0)
	m.dancesClosed.AnimateStrength(0)

	if m.ctx.Sensing.PresenceTime() > m.ctx.Thresholds.Notice || inputs[InputStart] {
		m.transition(Observer)
	}
}

func (m *Machine) handleObserver(inputs map[string]bool, now time.Time) {
	m.head.AnimateStrength(1)
	m.dances.AnimateStrength(0)
	m.dancesClosed.AnimateStrength(0)
	m.test.AnimateStrength(0)

	presence := m.ctx.Sensing.PresenceTime()
	switch {
	case presence > m.ctx.Thresholds.Trigger || inputs[InputStart]:
		open := m.ctx.Schedule == nil || m.ctx.Schedule.IsOpen(now)
		m.chosen = m.dancesClosed
		if open {
			m.chosen = m.dances
		}
		m.chosen.Start()
		m.record(m.chosen.Name(), open)
		m.transition(StartAnimation)
	case presence == 0:
		m.transition(NoObservers)
	}
}

func (m *Machine) handleStartAnimation() {
	m.chosen.AnimateStrength(1)
	if m.closeMouth != nil {
		m.closeMouth.AnimateStrength(0)
	}

	if m.chosen.IsRunning() {
		return
	}

	m.restartCloseMouth()
	if m.ctx.Sensing.PresenceTime() > 0 {
		m.ctx.Sensing.SetPresence(PresenceEpsilon)
		m.transition(Observer)
	} else {
		m.transition(NoObservers)
	}
}

func (m *Machine) handleTest(inputs map[string]bool) {
	if m.closeMouth != nil {
		m.closeMouth.AnimateStrength(0)
	}
	m.test.AnimateStrength(1)
	m.ledGreenBlink.AnimateStrength(1)

	if !inputs[InputTest] {
		m.test.AnimateStrength(0)
		m.ledGreenBlink.AnimateStrength(0)
		m.restartCloseMouth()
		m.transition(NoObservers)
	}
}

func (m *Machine) restartCloseMouth() {
	if m.closeMouth == nil {
		return
	}
	m.closeMouth.Reset()
	m.closeMouth.AnimateStrength(1)
}

func (m *Machine) record(library string, open bool) {
	m.logger.Info("library started", "library", library, "open", open)
	if m.ctx.Recorder == nil {
		return
	}
	if err := m.ctx.Recorder.Record(library, open); err != nil {
		m.logger.Warn("failed to record library start", "library", library, "error", err)
	}
}

// enableGate implements the dead-man timeout on the enable input.
type enableGate struct {
	held    bool
	since   time.Time
	tripped bool
	active  bool
}

// update samples the raw input and reports whether the timeout tripped on
// this call.
func (g *enableGate) update(raw bool, now time.Time, timeout time.Duration) (tripped bool) {
	if !raw {
		g.held, g.tripped, g.active = false, false, false
		return false
	}
	if !g.held {
		g.held = true
		g.since = now
	}
	if timeout > 0 && now.Sub(g.since) >= timeout && !g.tripped {
		g.tripped = true
		tripped = true
	}
	g.active = !g.tripped
	return tripped
}
