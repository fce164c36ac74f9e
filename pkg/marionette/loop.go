package marionette

import (
	"context"
	"log/slog"
	"time"

	"github.com/teslashibe/go-marionette/internal/log"
)

// heartbeatTicks is how often the loop logs a heartbeat (5 s at 20 Hz).
const heartbeatTicks = 100

// Loop calls step at a fixed rate with the measured time since the
// previous call.
type Loop struct {
	rate   time.Duration
	step   func(dt float64)
	now    func() time.Time
	logger *slog.Logger

	ticks   uint64
	maxLate time.Duration
}

// NewLoop creates a loop running at hz.
func NewLoop(hz float64, step func(dt float64)) *Loop {
	return &Loop{
		rate:   time.Duration(float64(time.Second) / hz),
		step:   step,
		now:    time.Now,
		logger: log.Component("loop"),
	}
}

// Ticks returns the number of completed steps.
func (l *Loop) Ticks() uint64 { return l.ticks }

// Run steps until ctx is done. Cancellation is observed between steps.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.rate)
	defer ticker.Stop()

	l.logger.Info("control loop started", "rate", l.rate)
	last := l.now()
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("control loop stopped", "ticks", l.ticks)
			return
		case <-ticker.C:
			now := l.now()
			elapsed := now.Sub(last)
			last = now
			l.tick(elapsed)
		}
	}
}

// tick runs one step and tracks how far behind schedule the loop runs.
func (l *Loop) tick(elapsed time.Duration) {
	l.step(elapsed.Seconds())
	l.ticks++

	if late := elapsed - l.rate; late > l.maxLate {
		l.maxLate = late
	}
	if l.ticks%heartbeatTicks == 0 {
		l.logger.Debug("heartbeat", "ticks", l.ticks, "max_late", l.maxLate)
		l.maxLate = 0
	}
}
