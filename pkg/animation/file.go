package animation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File is the on-disk animation format, shared with the web editor.
type File struct {
	Config    FileConfig     `json:"config"`
	Keyframes []FileKeyframe `json:"keyframes"`
}

// FileConfig holds the timeline settings of a File.
type FileConfig struct {
	TotalFrames int     `json:"totalFrames"`
	FPS         float64 `json:"fps"`

	// CurrentFrameIndex seeds playback for animations started from the web editor.
	CurrentFrameIndex int `json:"currentFrameIndex,omitempty"`
}

// FileKeyframe is one keyframe as stored on disk.
type FileKeyframe struct {
	FrameIndex int                `json:"frameIndex"`
	Values     map[string]float64 `json:"values"`
}

// Duration returns the loop length in seconds.
func (f File) Duration() float64 {
	if f.Config.FPS <= 0 {
		return 0
	}
	return float64(f.Config.TotalFrames) / f.Config.FPS
}

// Channels returns the sorted set of actuator names used by any keyframe.
func (f File) Channels() []string {
	seen := make(map[string]struct{})
	for _, kf := range f.Keyframes {
		for k := range kf.Values {
			seen[k] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// Validate checks the timeline settings.
func (f File) Validate() error {
	if f.Config.TotalFrames <= 0 {
		return fmt.Errorf("%w: totalFrames must be positive, got %d", ErrInvalidConfig, f.Config.TotalFrames)
	}
	if f.Config.FPS <= 0 {
		return fmt.Errorf("%w: fps must be positive, got %g", ErrInvalidConfig, f.Config.FPS)
	}
	return nil
}

// ParseFile decodes an animation from JSON.
func ParseFile(data []byte) (File, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("failed to parse animation JSON: %w", err)
	}
	return f, nil
}

// ReadFile reads and decodes an animation file.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read animation file: %w", err)
	}
	f, err := ParseFile(data)
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// NameFromPath derives an animation name from its file name.
func NameFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// LoadKeyframe loads a looping keyframe animation from a file.
func LoadKeyframe(path string, opts ...Option) (*KeyframeAnimation, error) {
	f, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	a, err := NewKeyframe(NameFromPath(path), f, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// LoadDir loads every *.json file in dir, in sorted file name order.
func LoadDir(dir string) ([]*KeyframeAnimation, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list animation directory: %w", err)
	}

	var out []*KeyframeAnimation
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		a, err := LoadKeyframe(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyLibrary, dir)
	}
	return out, nil
}
