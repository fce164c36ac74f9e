package animation

import "errors"

var (
	// ErrInvalidConfig is returned when totalFrames or fps are not positive.
	ErrInvalidConfig = errors.New("animation: invalid config")

	// ErrNoKeyframes is returned when no keyframe lies inside [0, totalFrames].
	ErrNoKeyframes = errors.New("animation: no keyframes")

	// ErrInsufficientKeyframes is returned when a head animation has fewer
	// than three reference poses.
	ErrInsufficientKeyframes = errors.New("animation: insufficient keyframes")

	// ErrEmptyLibrary is returned when a library directory has no animation files.
	ErrEmptyLibrary = errors.New("animation: empty library")

	// ErrNotPlaying is returned when querying playback while idle.
	ErrNotPlaying = errors.New("animation: not playing")

	// ErrDuplicateName is returned when registering a name twice.
	ErrDuplicateName = errors.New("animation: duplicate name")

	// ErrNotFound is returned when a name is not registered.
	ErrNotFound = errors.New("animation: not found")
)
