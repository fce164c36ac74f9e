// Package sensing turns a stream of observations into the accumulated
// signals the behaviour layer reads: how long someone has been present,
// how long they have been waving, and where they stand.
//
// A Tracker pulls observations from a Source in its own goroutine and
// publishes an immutable Snapshot after each one. Readers never block the
// worker.
package sensing

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-marionette/internal/log"
)

// DefaultRetryDelay is how long the tracker waits after a source error.
const DefaultRetryDelay = 10 * time.Second

// Observation is one sensing result.
type Observation struct {
	Detected bool
	X        float64 // horizontal position in image coordinates, 0 (left) to 1 (right)
	Waving   bool
}

// Snapshot is the accumulated sensing state. It is never mutated after
// publication.
type Snapshot struct {
	PresenceTime float64   `json:"presence_time"` // seconds someone has been continuously detected
	WaveTime     float64   `json:"wave_time"`     // seconds someone has been continuously waving
	PoseX        float64   `json:"pose_x"`        // observer position, 0 to 1
	HasPose      bool      `json:"has_pose"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Source produces observations.
type Source interface {
	// Next blocks until the next observation, ctx is done, or the source fails.
	Next(ctx context.Context) (Observation, error)

	// Close releases the source.
	Close() error
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMirror flips the horizontal axis, for cameras facing the observer.
func WithMirror(mirror bool) Option {
	return func(t *Tracker) { t.mirror = mirror }
}

// WithRetryDelay sets the wait after a source error.
func WithRetryDelay(d time.Duration) Option {
	return func(t *Tracker) { t.retry = d }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// Tracker accumulates observations into snapshots.
type Tracker struct {
	source Source
	mirror bool
	retry  time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu   sync.Mutex // serializes writers
	snap atomic.Pointer[Snapshot]

	observations atomic.Uint64
	failures     atomic.Uint64

	done chan struct{}
}

// NewTracker creates a tracker reading from source.
func NewTracker(source Source, opts ...Option) *Tracker {
	t := &Tracker{
		source: source,
		retry:  DefaultRetryDelay,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = log.Component("sensing")
	}
	t.snap.Store(&Snapshot{})
	return t
}

// Snapshot returns the latest published snapshot.
func (t *Tracker) Snapshot() Snapshot {
	return *t.snap.Load()
}

// PresenceTime returns the accumulated presence time.
func (t *Tracker) PresenceTime() float64 {
	return t.snap.Load().PresenceTime
}

// WaveTime returns the accumulated waving time.
func (t *Tracker) WaveTime() float64 {
	return t.snap.Load().WaveTime
}

// Pose returns the observer position, and false when nobody is detected.
func (t *Tracker) Pose() (float64, bool) {
	s := t.snap.Load()
	return s.PoseX, s.HasPose
}

// SetPresence overwrites the accumulated presence time.
func (t *Tracker) SetPresence(seconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	next := *t.snap.Load()
	next.PresenceTime = seconds
	t.snap.Store(&next)
}

// Observations returns the number of observations processed.
func (t *Tracker) Observations() uint64 { return t.observations.Load() }

// Errors returns the number of source errors.
func (t *Tracker) Errors() uint64 { return t.failures.Load() }

// Observe folds one observation, taken dt seconds after the previous one,
// into the snapshot.
func (t *Tracker) Observe(obs Observation, dt float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.snap.Load()
	next := Snapshot{UpdatedAt: t.now()}

	if obs.Detected {
		next.PresenceTime = prev.PresenceTime + dt
		next.HasPose = true
		next.PoseX = clamp01(obs.X)
		if t.mirror {
			next.PoseX = 1 - next.PoseX
		}
		if obs.Waving {
			next.WaveTime = prev.WaveTime + dt
		}
	}

	t.snap.Store(&next)
	t.observations.Add(1)
}

// lost clears the snapshot as if nobody were detected. It is not counted
// as an observation.
func (t *Tracker) lost() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Store(&Snapshot{UpdatedAt: t.now()})
}

// Start runs the tracker in a goroutine until ctx is done. Use Wait to join it.
func (t *Tracker) Start(ctx context.Context) {
	t.done = make(chan struct{})
	go func() {
		defer close(t.done)
		t.Run(ctx)
	}()
}

// Wait blocks until a tracker started with Start has stopped.
func (t *Tracker) Wait() {
	if t.done != nil {
		<-t.done
	}
}

// Run pulls observations until ctx is done, then closes the source. A source
// error clears the snapshot and is retried after the retry delay.
func (t *Tracker) Run(ctx context.Context) {
	t.logger.Info("tracker started", "mirror", t.mirror)
	defer func() {
		if err := t.source.Close(); err != nil {
			t.logger.Warn("failed to close source", "error", err)
		}
		t.logger.Info("tracker stopped", "observations", t.observations.Load())
	}()

	last := t.now()
	for {
		obs, err := t.source.Next(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			t.failures.Add(1)
			t.lost()
			t.logger.Error("sensing source failed, retrying", "error", err, "retry", t.retry)
			select {
			case <-ctx.Done():
				return
			case <-time.After(t.retry):
			}
			last = t.now()
			continue
		}

		now := t.now()
		dt := now.Sub(last).Seconds()
		last = now
		t.Observe(obs, dt)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
