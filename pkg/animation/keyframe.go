package animation

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/teslashibe/go-marionette/internal/log"
)

// Keyframe is a timed set of actuator values.
type Keyframe struct {
	FrameIndex int
	Time       float64 // seconds, FrameIndex / fps
	Values     map[string]float64
}

// KeyframeAnimation loops over a keyframe timeline, interpolating linearly
// between neighbouring keyframes.
//
// The timeline wraps: a copy of the last keyframe is placed one loop before
// the first, and a copy of the first keyframe one loop after the last, so
// interpolation across the loop seam is continuous.
type KeyframeAnimation struct {
	Base

	fps         float64
	totalFrames int
	duration    float64
	keyframes   []Keyframe // sorted, including the two wraparound frames

	current     float64
	repetitions int
	finite      bool

	logger   *slog.Logger
	throttle *log.Throttle
}

// NewKeyframe builds a looping animation from a file. Keyframes outside
// [0, totalFrames] are dropped.
func NewKeyframe(name string, f File, opts ...Option) (*KeyframeAnimation, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	kept := make([]Keyframe, 0, len(f.Keyframes))
	for _, kf := range f.Keyframes {
		if kf.FrameIndex < 0 || kf.FrameIndex > f.Config.TotalFrames {
			continue
		}
		kept = append(kept, Keyframe{
			FrameIndex: kf.FrameIndex,
			Time:       float64(kf.FrameIndex) / f.Config.FPS,
			Values:     copyValues(kf.Values),
		})
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoKeyframes, name)
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].FrameIndex < kept[j].FrameIndex })

	first, last := kept[0], kept[len(kept)-1]
	frames := make([]Keyframe, 0, len(kept)+2)
	frames = append(frames, wrapFrame(last, -f.Config.TotalFrames, f.Config.FPS))
	frames = append(frames, kept...)
	frames = append(frames, wrapFrame(first, f.Config.TotalFrames, f.Config.FPS))

	a := &KeyframeAnimation{
		Base:        NewBase(name, opts...),
		fps:         f.Config.FPS,
		totalFrames: f.Config.TotalFrames,
		duration:    f.Duration(),
		keyframes:   frames,
		logger:      log.Component("animation").With("animation", name),
		throttle:    log.NewThrottle(5 * time.Second),
	}
	return a, nil
}

func wrapFrame(kf Keyframe, offset int, fps float64) Keyframe {
	idx := kf.FrameIndex + offset
	return Keyframe{FrameIndex: idx, Time: float64(idx) / fps, Values: kf.Values}
}

// Duration returns the loop length in seconds.
func (a *KeyframeAnimation) Duration() float64 { return a.duration }

// FPS returns the timeline frame rate.
func (a *KeyframeAnimation) FPS() float64 { return a.fps }

// TotalFrames returns the loop length in frames.
func (a *KeyframeAnimation) TotalFrames() int { return a.totalFrames }

// Keyframes returns the real keyframes, without the wraparound copies.
func (a *KeyframeAnimation) Keyframes() []Keyframe {
	return a.keyframes[1 : len(a.keyframes)-1]
}

// Reset rewinds the timeline.
func (a *KeyframeAnimation) Reset() {
	a.current = 0
}

// PlayOnce rewinds and limits playback to a single loop. Once the loop ends
// the animation fades itself out.
func (a *KeyframeAnimation) PlayOnce() {
	a.current = 0
	a.repetitions = 1
	a.finite = true
}

// Repetitions returns the remaining loops, and false when looping forever.
func (a *KeyframeAnimation) Repetitions() (int, bool) {
	return a.repetitions, a.finite
}

// Done reports whether a limited playback has used up its loops.
func (a *KeyframeAnimation) Done() bool {
	return a.finite && a.repetitions <= 0
}

// SetTime moves the playhead, wrapped into [0, Duration).
func (a *KeyframeAnimation) SetTime(t float64) {
	t = math.Mod(t, a.duration)
	if t < 0 {
		t += a.duration
	}
	a.current = t
}

// CurrentTime returns the playhead in seconds.
func (a *KeyframeAnimation) CurrentTime() float64 { return a.current }

// CurrentFrame returns the playhead in frames.
func (a *KeyframeAnimation) CurrentFrame() int {
	return int(a.current * a.fps)
}

// Tick implements Animation.
func (a *KeyframeAnimation) Tick(dt float64) map[string]float64 {
	a.TickStrength(dt)

	a.current += dt
	for a.current >= a.duration {
		a.current -= a.duration
		if a.finite {
			a.repetitions--
		}
	}
	if a.Done() {
		a.AnimateStrength(0)
	}

	return a.sample(a.current)
}

// sample interpolates the timeline at t.
func (a *KeyframeAnimation) sample(t float64) map[string]float64 {
	// first keyframe strictly after t
	next := sort.Search(len(a.keyframes), func(i int) bool { return a.keyframes[i].Time > t })
	if next == 0 || next == len(a.keyframes) {
		if ok, suppressed := a.throttle.Allow("bracket"); ok {
			a.logger.Warn("no keyframes around playhead", "time", t, "suppressed", suppressed)
		}
		return map[string]float64{}
	}

	before, after := a.keyframes[next-1], a.keyframes[next]
	frac := (t - before.Time) / (after.Time - before.Time)

	out := make(map[string]float64, len(before.Values))
	for k, v0 := range before.Values {
		if v1, ok := after.Values[k]; ok {
			out[k] = lerp(v0, v1, frac)
		}
	}
	return out
}
