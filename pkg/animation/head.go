package animation

import (
	"fmt"
	"sort"
)

// PoseSource reports the observer's normalized horizontal position, or
// false when nobody is tracked.
type PoseSource interface {
	Pose() (x float64, ok bool)
}

// PoseFunc adapts a function to PoseSource.
type PoseFunc func() (float64, bool)

// Pose implements PoseSource.
func (f PoseFunc) Pose() (float64, bool) { return f() }

// HeadAnimation turns the head toward the observer by blending between a
// left and a right reference pose. Without an observer it fades out and
// holds the last pose it produced.
type HeadAnimation struct {
	Base

	source               PoseSource
	left, neutral, right map[string]float64
	last                 map[string]float64
}

// NewHead creates a head animation from three reference poses.
func NewHead(name string, source PoseSource, left, neutral, right map[string]float64, opts ...Option) *HeadAnimation {
	return &HeadAnimation{
		Base:    NewBase(name, opts...),
		source:  source,
		left:    copyValues(left),
		neutral: copyValues(neutral),
		right:   copyValues(right),
		last:    copyValues(neutral),
	}
}

// NewHeadFromFile takes the first three keyframes of f, in frame order, as
// the left, neutral and right poses.
func NewHeadFromFile(name string, source PoseSource, f File, opts ...Option) (*HeadAnimation, error) {
	if len(f.Keyframes) < 3 {
		return nil, fmt.Errorf("%w: %s has %d keyframes, need 3", ErrInsufficientKeyframes, name, len(f.Keyframes))
	}
	kfs := make([]FileKeyframe, len(f.Keyframes))
	copy(kfs, f.Keyframes)
	sort.SliceStable(kfs, func(i, j int) bool { return kfs[i].FrameIndex < kfs[j].FrameIndex })

	return NewHead(name, source, kfs[0].Values, kfs[1].Values, kfs[2].Values, opts...), nil
}

// LastPose returns a copy of the pose produced by the latest tick.
func (h *HeadAnimation) LastPose() map[string]float64 {
	return copyValues(h.last)
}

// Tick implements Animation.
func (h *HeadAnimation) Tick(dt float64) map[string]float64 {
	h.TickStrength(dt)

	x, ok := h.source.Pose()
	if !ok {
		h.AnimateStrength(0)
		return h.last
	}

	h.AnimateStrength(1)
	pose := h.interpolate(clamp01(x))
	if len(pose) == 0 {
		pose = h.neutral
	}
	h.last = pose
	return h.last
}

func (h *HeadAnimation) interpolate(x float64) map[string]float64 {
	out := make(map[string]float64, len(h.left))
	for k, l := range h.left {
		if r, ok := h.right[k]; ok {
			out[k] = x*r + (1-x)*l
		}
	}
	return out
}
