package animation

import (
	"math/rand/v2"
	"time"
)

// DefaultExpectedStart is the mean time between idle animation starts, in seconds.
const DefaultExpectedStart = 15.0

// BackgroundAnimation randomly plays idle animations from a pool. Starts
// form a Poisson process: each tick an inactive member is started with
// probability dt / expectedStart. Several members may overlap; when they
// touch the same actuator the later member in pool order wins.
type BackgroundAnimation struct {
	Base

	pool          []*KeyframeAnimation
	active        []bool
	expectedStart float64
	rng           *rand.Rand
}

// NewBackground creates an idle animation over pool. A nil rng uses a
// time-seeded source.
func NewBackground(name string, pool []*KeyframeAnimation, expectedStart float64, rng *rand.Rand, opts ...Option) *BackgroundAnimation {
	if expectedStart <= 0 {
		expectedStart = DefaultExpectedStart
	}
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return &BackgroundAnimation{
		Base:          NewBase(name, opts...),
		pool:          pool,
		active:        make([]bool, len(pool)),
		expectedStart: expectedStart,
		rng:           rng,
	}
}

// ActiveCount returns the number of members currently playing.
func (b *BackgroundAnimation) ActiveCount() int {
	n := 0
	for _, on := range b.active {
		if on {
			n++
		}
	}
	return n
}

// Tick implements Animation.
func (b *BackgroundAnimation) Tick(dt float64) map[string]float64 {
	b.TickStrength(dt)

	var inactive []int
	for i, on := range b.active {
		if !on {
			inactive = append(inactive, i)
		}
	}
	if len(inactive) > 0 && b.rng.Float64() < dt/b.expectedStart {
		i := inactive[b.rng.IntN(len(inactive))]
		b.active[i] = true
		b.pool[i].PlayOnce()
	}

	out := make(map[string]float64)
	for i, a := range b.pool {
		if !b.active[i] {
			continue
		}
		for k, v := range a.Tick(dt) {
			out[k] = v
		}
		if a.Done() {
			b.active[i] = false
		}
	}
	return out
}
