package sensing

import (
	"context"
	"time"
)

// StaticSource reports the same observation at a fixed interval. With the
// zero Observation it never detects anyone, which is the fallback when no
// sensor is available.
type StaticSource struct {
	obs      Observation
	interval time.Duration
}

// NewStaticSource creates a static source.
func NewStaticSource(obs Observation, interval time.Duration) *StaticSource {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &StaticSource{obs: obs, interval: interval}
}

// Next implements Source.
func (s *StaticSource) Next(ctx context.Context) (Observation, error) {
	select {
	case <-ctx.Done():
		return Observation{}, ctx.Err()
	case <-time.After(s.interval):
		return s.obs, nil
	}
}

// Close implements Source.
func (s *StaticSource) Close() error { return nil }
