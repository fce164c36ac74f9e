package log

import (
	"sync"
	"time"
)

// Throttle limits how often a keyed message is emitted.
// The control loop runs at 20Hz, so an error that repeats every tick
// would otherwise flood the log.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[string]time.Time
	counts   map[string]uint64
	now      func() time.Time
}

// NewThrottle creates a throttle that allows one message per key per interval.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{
		interval: interval,
		last:     make(map[string]time.Time),
		counts:   make(map[string]uint64),
		now:      time.Now,
	}
}

// Allow reports whether a message for key may be emitted now, and how many
// occurrences were suppressed since the last allowed one.
func (t *Throttle) Allow(key string) (bool, uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	last, seen := t.last[key]
	if seen && now.Sub(last) < t.interval {
		t.counts[key]++
		return false, 0
	}

	suppressed := t.counts[key]
	t.last[key] = now
	t.counts[key] = 0
	return true, suppressed
}
