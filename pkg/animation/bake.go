package animation

import (
	"sort"
)

// BakedFrame is the fully interpolated value set of one frame.
type BakedFrame struct {
	FrameIndex int                `json:"frameIndex"`
	Values     map[string]float64 `json:"values"`
}

// Bake expands f into one frame per index in [0, totalFrames). Frames before
// the first keyframe copy the first keyframe, frames after the last copy the
// last; there is no wraparound. Keys missing from the next keyframe are held.
func Bake(f File) ([]BakedFrame, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if len(f.Keyframes) == 0 {
		return nil, ErrNoKeyframes
	}

	kfs := make([]FileKeyframe, len(f.Keyframes))
	copy(kfs, f.Keyframes)
	sort.SliceStable(kfs, func(i, j int) bool { return kfs[i].FrameIndex < kfs[j].FrameIndex })

	out := make([]BakedFrame, f.Config.TotalFrames)
	for i := range out {
		out[i] = BakedFrame{FrameIndex: i, Values: bakeFrame(kfs, i)}
	}
	return out, nil
}

func bakeFrame(kfs []FileKeyframe, index int) map[string]float64 {
	// first keyframe at or after index
	next := sort.Search(len(kfs), func(i int) bool { return kfs[i].FrameIndex >= index })
	switch {
	case next < len(kfs) && kfs[next].FrameIndex == index:
		return copyValues(kfs[next].Values)
	case next == 0:
		return copyValues(kfs[0].Values)
	case next == len(kfs):
		return copyValues(kfs[len(kfs)-1].Values)
	}

	lower, higher := kfs[next-1], kfs[next]
	frac := float64(index-lower.FrameIndex) / float64(higher.FrameIndex-lower.FrameIndex)

	out := make(map[string]float64, len(lower.Values))
	for k, v0 := range lower.Values {
		if v1, ok := higher.Values[k]; ok {
			out[k] = lerp(v0, v1, frac)
		} else {
			out[k] = v0
		}
	}
	return out
}

// Scale multiplies the frame rate, the length and every frame index by
// factor, giving a finer timeline that plays at the same speed.
func Scale(f File, factor int) File {
	out := File{
		Config: FileConfig{
			TotalFrames:       f.Config.TotalFrames * factor,
			FPS:               f.Config.FPS * float64(factor),
			CurrentFrameIndex: f.Config.CurrentFrameIndex * factor,
		},
		Keyframes: make([]FileKeyframe, len(f.Keyframes)),
	}
	for i, kf := range f.Keyframes {
		out.Keyframes[i] = FileKeyframe{FrameIndex: kf.FrameIndex * factor, Values: copyValues(kf.Values)}
	}
	return out
}
