// Package marionette wires the figure together: hardware, sensing,
// animations, the behaviour machine and the web API, driven by one control
// loop.
//
// Each loop step samples the inputs through the behaviour machine, blends
// the animations onto the actuators and publishes a status snapshot. The
// sensing tracker, the status hub, the schedule watcher and the web server
// run in their own goroutines; their only shared state with the loop is
// the remotely controlled animation, the schedule store and the published
// status copy.
package marionette

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/teslashibe/go-marionette/internal/config"
	"github.com/teslashibe/go-marionette/internal/log"
	"github.com/teslashibe/go-marionette/internal/watch"
	"github.com/teslashibe/go-marionette/pkg/actuation"
	"github.com/teslashibe/go-marionette/pkg/animation"
	"github.com/teslashibe/go-marionette/pkg/behavior"
	"github.com/teslashibe/go-marionette/pkg/eventlog"
	"github.com/teslashibe/go-marionette/pkg/hardware"
	"github.com/teslashibe/go-marionette/pkg/hub"
	"github.com/teslashibe/go-marionette/pkg/orchestrator"
	"github.com/teslashibe/go-marionette/pkg/protocol"
	"github.com/teslashibe/go-marionette/pkg/schedule"
	"github.com/teslashibe/go-marionette/pkg/sensing"
	"github.com/teslashibe/go-marionette/pkg/web"
)

// Option overrides a component, mainly for tests.
type Option func(*options)

type options struct {
	sink   actuation.Sink
	inputs behavior.Inputs
	source sensing.Source
	now    func() time.Time
}

// WithSink replaces the hardware sink.
func WithSink(s actuation.Sink) Option {
	return func(o *options) { o.sink = s }
}

// WithInputs replaces the digital inputs.
func WithInputs(in behavior.Inputs) Option {
	return func(o *options) { o.inputs = in }
}

// WithSource replaces the configured sensing source.
func WithSource(src sensing.Source) Option {
	return func(o *options) { o.source = src }
}

// WithClock sets the clock used by the behaviour machine.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// App is the running figure.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	controller   *actuation.Controller
	orchestrator *orchestrator.Orchestrator
	machine      *behavior.Machine
	tracker      *sensing.Tracker
	animations   *animation.Registry
	remote       *animation.ExternalControlAnimation
	schedule     *schedule.Store
	events       *eventlog.Store
	static       *hardware.StaticInputs // nil with real inputs
	closers      []io.Closer

	statusHub   *hub.Hub
	server      *web.Server
	loop        *Loop
	publishStep uint64
	steps       uint64

	statusMu sync.RWMutex
	status   protocol.StatusData
}

// New builds every component from cfg. Any construction error aborts.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		cfg:    cfg,
		logger: log.Component("marionette"),
	}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	if err := a.openHardware(&o); err != nil {
		return nil, err
	}

	controller, err := BuildController(cfg, actuation.WithSink(o.sink))
	if err != nil {
		return nil, err
	}
	a.controller = controller

	var ingest *sensing.IngestSource
	if cfg.Sensing.Source == config.SourceIngest && o.source == nil {
		ingest = sensing.NewIngestSource()
	}
	src := o.source
	if src == nil {
		if src, err = BuildSource(cfg, ingest); err != nil {
			return nil, err
		}
	}
	trackerOpts := []sensing.Option{sensing.WithMirror(cfg.Sensing.Mirror)}
	if cfg.Sensing.RetryDelay > 0 {
		trackerOpts = append(trackerOpts, sensing.WithRetryDelay(cfg.Sensing.RetryDelay))
	}
	a.tracker = sensing.NewTracker(src, trackerOpts...)

	a.animations, a.remote, err = BuildAnimations(cfg, a.tracker)
	if err != nil {
		return nil, err
	}

	if a.schedule, err = schedule.NewStore(cfg.Schedule.Path); err != nil {
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}
	if a.events, err = eventlog.Open(cfg.EventLog.Path); err != nil {
		return nil, err
	}

	a.machine, err = behavior.New(behavior.Context{
		Sensing:    a.tracker,
		Animations: a.animations,
		Inputs:     o.inputs,
		Thresholds: behavior.Thresholds{
			Notice:        cfg.Behavior.NoticeThreshold,
			Trigger:       cfg.Behavior.TriggerThreshold,
			EnableTimeout: cfg.Behavior.EnableTimeout,
		},
		Schedule: a.schedule,
		Recorder: a.events,
		Now:      o.now,
	})
	if err != nil {
		return nil, err
	}

	a.orchestrator = orchestrator.New(a.controller)
	for _, anim := range a.animations.All() {
		a.orchestrator.Add(anim)
	}

	a.statusHub = hub.New("status")
	a.publishStep = 1
	if cfg.Web.StatusHz > 0 {
		a.publishStep = uint64(max(1, math.Round(cfg.Loop.Hz/cfg.Web.StatusHz)))
	}
	if cfg.Web.Enabled {
		deps := web.Deps{
			Status:    a.Status,
			Events:    a.events,
			Schedule:  a.schedule,
			StatusHub: a.statusHub,
			StaticDir: cfg.Web.StaticDir,
		}
		if a.remote != nil {
			deps.Remote = a.remote
		}
		if a.static != nil {
			deps.Inputs = a.static
		}
		if ingest != nil {
			deps.Ingest = ingest.Handler()
		}
		if cam, ok := src.(web.Camera); ok {
			deps.Camera = cam
		}
		a.server = web.NewServer(cfg.Web.Addr, deps)
	}

	a.loop = NewLoop(cfg.Loop.Hz, a.Step)
	a.publish()

	ok = true
	a.logger.Info("marionette ready",
		"servos", len(a.controller.Servos()),
		"animations", a.animations.Names(),
		"sensing", cfg.Sensing.Source,
		"dry_run", cfg.Hardware.DryRun)
	return a, nil
}

// openHardware fills in the sink and inputs not supplied as options.
func (a *App) openHardware(o *options) error {
	if o.sink == nil {
		if a.cfg.Hardware.DryRun {
			o.sink = hardware.NopSink{}
		} else {
			board, err := hardware.Open(BoardConfig(a.cfg))
			if err != nil {
				return err
			}
			a.closers = append(a.closers, board)
			o.sink = board
		}
	}
	if o.inputs == nil {
		if a.cfg.Hardware.DryRun {
			initial := map[string]bool{
				behavior.InputEnable: false,
				behavior.InputTest:   false,
				behavior.InputStart:  false,
			}
			for _, in := range a.cfg.Inputs {
				initial[in.Name] = false
			}
			a.static = hardware.NewStaticInputs(initial)
			o.inputs = a.static
		} else {
			inputs, err := hardware.OpenInputs(InputPins(a.cfg))
			if err != nil {
				return err
			}
			o.inputs = inputs
		}
	}
	return nil
}

// Step runs one control cycle of dt seconds.
func (a *App) Step(dt float64) {
	a.machine.Update()
	a.orchestrator.Tick(dt)
	a.steps++
	if a.steps%a.publishStep == 0 {
		a.publish()
	}
}

// publish stores a status copy for readers and pushes it to subscribers.
func (a *App) publish() {
	st := a.buildStatus()

	a.statusMu.Lock()
	a.status = st
	a.statusMu.Unlock()

	if a.statusHub.IsRunning() && a.statusHub.ClientCount() > 0 {
		msg, err := protocol.NewStatusMessage(st)
		if err == nil {
			err = a.statusHub.Publish(msg)
		}
		if err != nil {
			a.logger.Warn("failed to publish status", "error", err)
		}
	}
}

func (a *App) buildStatus() protocol.StatusData {
	ms := a.machine.Status()
	snap := a.tracker.Snapshot()

	st := protocol.StatusData{
		State:       ms.State.String(),
		TimeInState: ms.TimeInState,
		Enabled:     ms.Enabled,
		Library:     ms.Library,
		Sensing: protocol.SensingData{
			PresenceTime: snap.PresenceTime,
			WaveTime:     snap.WaveTime,
			PoseX:        snap.PoseX,
			HasPose:      snap.HasPose,
		},
		Strengths: make(map[string]float64, a.animations.Len()),
		Ticks:     a.controller.Stats().Ticks,
	}
	for _, s := range a.controller.Snapshot() {
		st.Servos = append(st.Servos, protocol.ServoData{
			Name:     s.Name,
			Position: s.Position,
			Target:   s.Target,
			Binary:   s.Binary,
		})
	}
	for _, anim := range a.animations.All() {
		st.Strengths[anim.Name()] = anim.Strength()
	}
	return st
}

// Status returns the latest published status. Safe for concurrent use.
func (a *App) Status() protocol.StatusData {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	return a.status
}

// Machine returns the behaviour machine.
func (a *App) Machine() *behavior.Machine { return a.machine }

// Tracker returns the sensing tracker.
func (a *App) Tracker() *sensing.Tracker { return a.tracker }

// Remote returns the remotely controlled animation, or nil.
func (a *App) Remote() *animation.ExternalControlAnimation { return a.remote }

// Controller returns the actuation controller.
func (a *App) Controller() *actuation.Controller { return a.controller }

// Events returns the event log.
func (a *App) Events() *eventlog.Store { return a.events }

// Server returns the web server, or nil when disabled.
func (a *App) Server() *web.Server { return a.server }

// Run starts the workers and the control loop and blocks until ctx is done.
// On return binary outputs are released and the hardware is closed.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.tracker.Start(ctx)
	go a.statusHub.Run(ctx)

	if a.cfg.Schedule.Watch && a.cfg.Schedule.Path != "" {
		w, err := watch.New(0, a.cfg.Schedule.Path)
		if err != nil {
			a.logger.Warn("schedule hot reload disabled", "error", err)
		} else {
			go w.Run(ctx, func(string) {
				if err := a.schedule.Reload(); err != nil {
					a.logger.Warn("failed to reload schedule, keeping previous", "error", err)
					return
				}
				a.logger.Info("schedule reloaded")
			})
		}
	}

	serverErr := make(chan error, 1)
	if a.server != nil {
		go func() { serverErr <- a.server.Start() }()
	}

	loopDone := make(chan struct{})
	go func() {
		a.loop.Run(ctx)
		close(loopDone)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("web server: %w", err)
		}
		cancel()
	}
	<-loopDone

	if a.server != nil {
		if err := a.server.Shutdown(); err != nil {
			a.logger.Warn("web server shutdown", "error", err)
		}
	}
	a.tracker.Wait()
	a.controller.Release()
	a.close()

	a.logger.Info("marionette stopped", "steps", a.steps)
	return runErr
}

func (a *App) close() {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("failed to close hardware", "error", err)
	}
}
