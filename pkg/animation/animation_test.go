package animation

import (
	"encoding/json"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFile(total int, fps float64, frames map[int]map[string]float64) File {
	f := File{Config: FileConfig{TotalFrames: total, FPS: fps}}
	for idx, values := range frames {
		f.Keyframes = append(f.Keyframes, FileKeyframe{FrameIndex: idx, Values: values})
	}
	return f
}

func mustKeyframe(t *testing.T, f File, opts ...Option) *KeyframeAnimation {
	t.Helper()
	a, err := NewKeyframe("test", f, opts...)
	require.NoError(t, err)
	return a
}

// oneSecond is a 1s loop from a=0 at frame 0 to a=10 at frame 5.
func oneSecond(t *testing.T) *KeyframeAnimation {
	return mustKeyframe(t, testFile(10, 10, map[int]map[string]float64{
		0: {"a": 0},
		5: {"a": 10},
	}))
}

func TestBase_StrengthBoundedAndMonotonic(t *testing.T) {
	b := NewBase("b", WithStrength(0), WithStrengthSpeed(1))
	b.AnimateStrength(1)

	prev := b.Strength()
	for i := 0; i < 10; i++ {
		b.TickStrength(0.3)
		s := b.Strength()
		assert.GreaterOrEqual(t, s, prev)
		assert.LessOrEqual(t, s-prev, 0.3+1e-12)
		assert.LessOrEqual(t, s, 1.0)
		prev = s
	}
	assert.Equal(t, 1.0, b.Strength())

	b.AnimateStrength(5)
	assert.Equal(t, 1.0, b.TargetStrength(), "target is clamped")
	b.AnimateStrength(-1)
	assert.Equal(t, 0.0, b.TargetStrength())
}

func TestBase_Defaults(t *testing.T) {
	b := NewBase("b")
	assert.Equal(t, DefaultPriority, b.Priority())
	assert.Equal(t, 1.0, b.Strength())
	assert.Equal(t, DefaultStrengthSpeed, b.StrengthSpeed())
}

func TestNewKeyframe_Errors(t *testing.T) {
	_, err := NewKeyframe("x", testFile(10, 0, map[int]map[string]float64{0: {"a": 1}}))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewKeyframe("x", testFile(0, 10, map[int]map[string]float64{0: {"a": 1}}))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewKeyframe("x", testFile(10, 10, map[int]map[string]float64{-5: {"a": 1}, 20: {"a": 1}}))
	assert.ErrorIs(t, err, ErrNoKeyframes)
}

func TestKeyframe_DropsOutOfRange(t *testing.T) {
	a := mustKeyframe(t, testFile(10, 10, map[int]map[string]float64{
		-1: {"a": 1},
		3:  {"a": 2},
		10: {"a": 3},
		11: {"a": 4},
	}))

	kfs := a.Keyframes()
	require.Len(t, kfs, 2)
	assert.Equal(t, 3, kfs[0].FrameIndex)
	assert.Equal(t, 10, kfs[1].FrameIndex)
}

func TestKeyframe_Periodic(t *testing.T) {
	a := oneSecond(t)

	first := a.Tick(0.25)
	assert.InDelta(t, 5.0, first["a"], 1e-9)

	again := a.Tick(1.0)
	assert.InDelta(t, first["a"], again["a"], 1e-9, "one full loop later the output repeats")
	assert.InDelta(t, 0.25, a.CurrentTime(), 1e-9)
}

func TestKeyframe_WraparoundContinuity(t *testing.T) {
	a := mustKeyframe(t, testFile(10, 10, map[int]map[string]float64{
		2: {"a": 0},
		8: {"a": 60},
	}))

	// between frame 8 (60) and the wrapped frame 12 (0)
	assert.InDelta(t, 45.0, a.sample(0.9)["a"], 1e-9)
	// between the wrapped frame -2 (60) and frame 2 (0)
	assert.InDelta(t, 15.0, a.sample(0.1)["a"], 1e-9)

	assert.InDelta(t, a.sample(0)["a"], a.sample(0.9999)["a"], 0.1, "no jump across the loop seam")
}

func TestKeyframe_OnlySharedKeysInterpolated(t *testing.T) {
	a := mustKeyframe(t, testFile(10, 10, map[int]map[string]float64{
		0: {"a": 0, "b": 5},
		5: {"a": 10},
	}))

	out := a.Tick(0.1)
	assert.Contains(t, out, "a")
	assert.NotContains(t, out, "b")
}

func TestKeyframe_PlayOnceFadesOut(t *testing.T) {
	a := oneSecond(t)
	a.PlayOnce()

	a.Tick(0.5)
	assert.False(t, a.Done())
	assert.Equal(t, 1.0, a.TargetStrength())

	a.Tick(0.5)
	assert.True(t, a.Done())
	assert.Equal(t, 0.0, a.TargetStrength())

	a.Tick(0.5)
	assert.InDelta(t, 0.5, a.Strength(), 1e-9)
	a.Tick(0.5)
	assert.Equal(t, 0.0, a.Strength())
}

func TestKeyframe_LoopsForeverByDefault(t *testing.T) {
	a := oneSecond(t)
	for i := 0; i < 50; i++ {
		a.Tick(0.3)
	}
	_, finite := a.Repetitions()
	assert.False(t, finite)
	assert.False(t, a.Done())
	assert.Equal(t, 1.0, a.Strength())
}

func TestKeyframe_SetTimeWraps(t *testing.T) {
	a := oneSecond(t)
	a.SetTime(2.5)
	assert.InDelta(t, 0.5, a.CurrentTime(), 1e-9)
	assert.Equal(t, 5, a.CurrentFrame())

	a.SetTime(-0.25)
	assert.InDelta(t, 0.75, a.CurrentTime(), 1e-9)

	a.Reset()
	assert.Equal(t, 0.0, a.CurrentTime())
}

func TestMulti_RoundRobin(t *testing.T) {
	lib := []*KeyframeAnimation{oneSecond(t), oneSecond(t), oneSecond(t)}
	m := NewMulti("dances", lib)

	assert.Empty(t, m.Tick(0.1), "idle library contributes nothing")

	for round := 0; round < 4; round++ {
		want := round % len(lib)
		m.Start()
		require.True(t, m.IsRunning())
		assert.Same(t, lib[want], m.Current())

		assert.NotEmpty(t, m.Tick(0.5))
		m.Tick(0.5)

		assert.False(t, m.IsRunning())
		assert.Nil(t, m.Current())
		assert.Equal(t, (want+1)%len(lib), m.Index())
	}
}

func TestMulti_EmptyNeverRuns(t *testing.T) {
	m := NewMulti("empty", nil)
	m.Start()
	assert.False(t, m.IsRunning())
	assert.Empty(t, m.Tick(1))
}

func TestBackground_ActivationRate(t *testing.T) {
	// A one-frame animation finishes in the tick that starts it, so every
	// tick is an independent trial with probability dt/expectedStart.
	blip := mustKeyframe(t, testFile(1, 20, map[int]map[string]float64{0: {"a": 1}}))
	rng := rand.New(rand.NewPCG(1, 2))
	b := NewBackground("idle", []*KeyframeAnimation{blip}, 1, rng)

	const ticks = 20000
	starts := 0
	for i := 0; i < ticks; i++ {
		if len(b.Tick(0.05)) > 0 {
			starts++
		}
		require.Equal(t, 0, b.ActiveCount())
	}

	// expected 1000, standard deviation about 31
	assert.InDelta(t, 1000, starts, 150)
}

func TestBackground_LaterMemberWins(t *testing.T) {
	low := mustKeyframe(t, testFile(10, 10, map[int]map[string]float64{0: {"a": 10}}))
	high := mustKeyframe(t, testFile(10, 10, map[int]map[string]float64{0: {"a": 20, "b": 1}}))
	b := NewBackground("idle", []*KeyframeAnimation{low, high}, 1e9, rand.New(rand.NewPCG(3, 4)))
	b.active[0], b.active[1] = true, true

	out := b.Tick(0.1)
	assert.Equal(t, 20.0, out["a"])
	assert.Equal(t, 1.0, out["b"])
	assert.Equal(t, 2, b.ActiveCount())
}

func TestHead_FollowsAndHolds(t *testing.T) {
	x, tracked := 0.25, true
	src := PoseFunc(func() (float64, bool) { return x, tracked })
	h := NewHead("head", src,
		map[string]float64{"K": 0},
		map[string]float64{"K": 50},
		map[string]float64{"K": 100},
		WithStrength(0),
	)

	out := h.Tick(0.05)
	assert.InDelta(t, 25.0, out["K"], 1e-9)
	assert.Equal(t, 1.0, h.TargetStrength())

	x = 1
	assert.InDelta(t, 100.0, h.Tick(0.05)["K"], 1e-9)

	tracked = false
	out = h.Tick(0.05)
	assert.InDelta(t, 100.0, out["K"], 1e-9, "holds the last pose")
	assert.Equal(t, 0.0, h.TargetStrength())
}

func TestHead_NeutralFallback(t *testing.T) {
	src := PoseFunc(func() (float64, bool) { return 0.5, true })
	h := NewHead("head", src,
		map[string]float64{"L": 0},
		map[string]float64{"K": 50},
		map[string]float64{"R": 100},
	)

	assert.Equal(t, map[string]float64{"K": 50}, h.LastPose(), "neutral is the initial pose")
	assert.Equal(t, map[string]float64{"K": 50}, h.Tick(0.05))
}

func TestNewHeadFromFile(t *testing.T) {
	src := PoseFunc(func() (float64, bool) { return 0, false })

	_, err := NewHeadFromFile("head", src, testFile(10, 10, map[int]map[string]float64{0: {"K": 0}, 1: {"K": 1}}))
	assert.ErrorIs(t, err, ErrInsufficientKeyframes)

	h, err := NewHeadFromFile("head", src, testFile(10, 10, map[int]map[string]float64{
		4: {"K": 180},
		0: {"K": 0},
		2: {"K": 90},
	}))
	require.NoError(t, err)
	assert.Equal(t, 90.0, h.LastPose()["K"])
}

func TestExternal_PlaybackAndSliders(t *testing.T) {
	e := NewExternalControl("webui", WithPriority(10))

	_, err := e.CurrentFrame()
	assert.ErrorIs(t, err, ErrNotPlaying)

	e.SetSliders(map[string]float64{"K": 42})
	assert.Equal(t, 42.0, e.Tick(0.05)["K"])

	f := testFile(20, 10, map[int]map[string]float64{0: {"K": 0}, 10: {"K": 100}})
	f.Config.CurrentFrameIndex = 5
	require.NoError(t, e.StartAnimation(f))
	assert.True(t, e.Playing())

	frame, err := e.CurrentFrame()
	require.NoError(t, err)
	assert.Equal(t, 5, frame, "playback is seeded at currentFrameIndex")

	out := e.Tick(0.1)
	assert.InDelta(t, 60.0, out["K"], 1e-9)

	e.StopAnimation()
	assert.False(t, e.Playing())
	assert.Equal(t, 42.0, e.Tick(0.05)["K"])

	assert.Error(t, e.StartAnimation(File{}))
}

func TestExternal_Enabled(t *testing.T) {
	e := NewExternalControl("webui", WithStrength(0))
	assert.False(t, e.Enabled())

	e.SetEnabled(true)
	assert.True(t, e.Enabled())
	e.Tick(0.5)
	assert.InDelta(t, 0.5, e.Strength(), 1e-9)

	e.SetEnabled(false)
	assert.False(t, e.Enabled())
}

func TestExternal_Concurrent(t *testing.T) {
	e := NewExternalControl("webui")
	f := testFile(10, 10, map[int]map[string]float64{0: {"K": 0}})

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			e.SetSliders(map[string]float64{"K": float64(i)})
			e.SetEnabled(i%2 == 0)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			if i%50 == 0 {
				_ = e.StartAnimation(f)
			}
			_, _ = e.CurrentFrame()
			e.StopAnimation()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			out := e.Tick(0.01)
			out["K"] = -1 // callers may not corrupt internal state
		}
	}()
	wg.Wait()

	assert.Equal(t, 499.0, e.Sliders()["K"])
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(oneSecond(t)))

	h := NewHead("head", PoseFunc(func() (float64, bool) { return 0, false }), nil, nil, nil)
	require.NoError(t, r.Register(h))

	assert.ErrorIs(t, r.Register(h), ErrDuplicateName)
	assert.Equal(t, []string{"test", "head"}, r.Names())

	got, ok := r.Get("head")
	require.True(t, ok)
	assert.Same(t, h, got)

	_, err := r.MustGet("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBake(t *testing.T) {
	f := testFile(5, 10, map[int]map[string]float64{
		1: {"a": 0},
		3: {"a": 10},
	})

	frames, err := Bake(f)
	require.NoError(t, err)
	require.Len(t, frames, 5)

	want := []float64{0, 0, 5, 10, 10}
	for i, fr := range frames {
		assert.Equal(t, i, fr.FrameIndex)
		assert.InDelta(t, want[i], fr.Values["a"], 1e-9, "frame %d", i)
	}
}

func TestScale(t *testing.T) {
	f := testFile(10, 10, map[int]map[string]float64{3: {"a": 1}})
	s := Scale(f, 3)

	assert.Equal(t, 30, s.Config.TotalFrames)
	assert.Equal(t, 30.0, s.Config.FPS)
	assert.Equal(t, 9, s.Keyframes[0].FrameIndex)
	assert.Equal(t, f.Duration(), s.Duration())
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, f File) {
		data, err := json.Marshal(f)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}
	valid := testFile(10, 10, map[int]map[string]float64{0: {"a": 1}})
	write("b_wave.json", valid)
	write("a_bow.json", valid)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o644))

	anims, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, anims, 2)
	assert.Equal(t, "a_bow", anims[0].Name())
	assert.Equal(t, "b_wave", anims[1].Name())

	_, err = LoadDir(t.TempDir())
	assert.ErrorIs(t, err, ErrEmptyLibrary)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "c_broken.json"), []byte("{"), 0o644))
	_, err = LoadDir(dir)
	assert.Error(t, err)
}
