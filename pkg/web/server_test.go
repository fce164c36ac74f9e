package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-marionette/pkg/animation"
	"github.com/teslashibe/go-marionette/pkg/eventlog"
	"github.com/teslashibe/go-marionette/pkg/hardware"
	"github.com/teslashibe/go-marionette/pkg/protocol"
	"github.com/teslashibe/go-marionette/pkg/schedule"
)

type testEnv struct {
	server   *Server
	remote   *animation.ExternalControlAnimation
	events   *eventlog.Store
	schedule *schedule.Store
	inputs   *hardware.StaticInputs
}

func newTestEnv(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()
	events, err := eventlog.Open("")
	require.NoError(t, err)
	sched, err := schedule.NewStore("")
	require.NoError(t, err)

	env := &testEnv{
		remote:   animation.NewExternalControl("remote"),
		events:   events,
		schedule: sched,
		inputs:   hardware.NewStaticInputs(nil),
	}
	deps := Deps{
		Remote:   env.remote,
		Status:   func() protocol.StatusData { return protocol.StatusData{State: "no_observers", Ticks: 7} },
		Events:   events,
		Schedule: sched,
		Inputs:   env.inputs,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	env.server = NewServer(":0", deps)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()
	code, _, data := e.request(t, method, path, body)
	return code, data
}

func (e *testEnv) request(t *testing.T, method, path, body string) (int, http.Header, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.server.App().Test(req, -1)
	require.NoError(t, err, "%s %s", method, path)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, resp.Header, data
}

const playBody = `{"animation": {
	"config": {"totalFrames": 50, "fps": 50, "currentFrameIndex": 25},
	"keyframes": [
		{"frameIndex": 0, "values": {"head": 0}},
		{"frameIndex": 50, "values": {"head": 100}}
	]
}}`

func TestPlayAndPause(t *testing.T) {
	env := newTestEnv(t)

	code, _ := env.do(t, http.MethodGet, "/marionette/current_index", "")
	assert.Equal(t, http.StatusConflict, code, "current_index while idle")

	code, body := env.do(t, http.MethodPost, "/marionette/play", playBody)
	require.Equal(t, http.StatusOK, code, string(body))

	code, body = env.do(t, http.MethodGet, "/marionette/current_index", "")
	require.Equal(t, http.StatusOK, code)
	var idx struct {
		CurrentIndex int `json:"current_index"`
	}
	require.NoError(t, json.Unmarshal(body, &idx))
	assert.Equal(t, 25, idx.CurrentIndex)

	code, _ = env.do(t, http.MethodPost, "/marionette/pause", "")
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, env.remote.Playing(), "remote should stop after pause")
}

func TestPlay_Invalid(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"animation":`},
		{"zero fps", `{"animation": {"config": {"totalFrames": 10, "fps": 0}, "keyframes": [{"frameIndex": 0, "values": {}}]}}`},
		{"no keyframes", `{"animation": {"config": {"totalFrames": 10, "fps": 10}, "keyframes": []}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := env.do(t, http.MethodPost, "/marionette/play", tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
		})
	}
}

func TestEnabled(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/marionette/enabled", `{"enabled": true}`)
	require.Equal(t, http.StatusOK, code, string(body))
	assert.True(t, env.remote.Enabled())

	_, body = env.do(t, http.MethodGet, "/marionette/enabled", "")
	var got EnabledBody
	require.NoError(t, json.Unmarshal(body, &got))
	assert.True(t, got.Enabled)
}

func TestSliders(t *testing.T) {
	env := newTestEnv(t)

	code, _ := env.do(t, http.MethodPost, "/marionette/sliders", `{"values": {"head": 42, "off": 180}}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 42.0, env.remote.Sliders()["head"])

	_, body := env.do(t, http.MethodGet, "/marionette/sliders", "")
	var got SlidersBody
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, 180.0, got.Values["off"])
}

func TestStatusAndHealth(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, code)
	var status protocol.StatusData
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, "no_observers", status.State)
	assert.Equal(t, uint64(7), status.Ticks)

	code, _ = env.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestEvents(t *testing.T) {
	env := newTestEnv(t)
	for _, lib := range []string{"dances", "dances_closed", "dances"} {
		require.NoError(t, env.events.Record(lib, lib == "dances"))
	}

	_, body := env.do(t, http.MethodGet, "/api/events?limit=2", "")
	var got struct {
		Total  int              `json:"total"`
		Events []eventlog.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, 3, got.Total)
	assert.Len(t, got.Events, 2)
}

func TestSchedule(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/config/schedule", `{"Mon": [{"start": "10:00", "end": "11:00"}]}`)
	require.Equal(t, http.StatusOK, code, string(body))
	got := env.schedule.Get()
	require.Len(t, got, 1)
	assert.Equal(t, "10:00", got["Mon"][0].Start)

	code, _ = env.do(t, http.MethodPost, "/config/schedule", `{"Funday": []}`)
	assert.Equal(t, http.StatusBadRequest, code, "invalid day")
	code, _ = env.do(t, http.MethodPost, "/config/schedule", `{"Tue": [{"start": "late", "end": "11:00"}]}`)
	assert.Equal(t, http.StatusBadRequest, code, "invalid range")
	assert.Len(t, env.schedule.Get(), 1, "rejected schedules must not replace the active one")

	_, body = env.do(t, http.MethodGet, "/config/schedule", "")
	var fetched schedule.Schedule
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, "11:00", fetched["Mon"][0].End)
}

func TestInputs(t *testing.T) {
	env := newTestEnv(t)
	code, _ := env.do(t, http.MethodPost, "/api/inputs/start", `{"on": true}`)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.inputs.Read()["start"])
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	env := newTestEnv(t)
	code, _ := env.do(t, http.MethodGet, "/ws/status", "")
	assert.Equal(t, http.StatusUpgradeRequired, code)
}

type fakeCamera struct {
	jpg []byte
	err error
}

func (c fakeCamera) LatestJPEG() ([]byte, error) { return c.jpg, c.err }

func TestCamera(t *testing.T) {
	t.Run("snapshot", func(t *testing.T) {
		env := newTestEnv(t, func(d *Deps) { d.Camera = fakeCamera{jpg: []byte{0xFF, 0xD8, 0xFF, 0xD9}} })
		code, header, body := env.request(t, http.MethodGet, "/api/camera.jpg", "")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "image/jpeg", header.Get("Content-Type"))
		assert.Equal(t, "no-store", header.Get("Cache-Control"))
		assert.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xD9}, body)
	})

	t.Run("no frame yet", func(t *testing.T) {
		env := newTestEnv(t, func(d *Deps) { d.Camera = fakeCamera{err: errors.New("no frame")} })
		code, _ := env.do(t, http.MethodGet, "/api/camera.jpg", "")
		assert.Equal(t, http.StatusServiceUnavailable, code)
	})

	t.Run("no camera source", func(t *testing.T) {
		env := newTestEnv(t)
		code, _ := env.do(t, http.MethodGet, "/api/camera.jpg", "")
		assert.Equal(t, http.StatusNotFound, code)
	})
}

func TestStaticDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>marionette</h1>"), 0o644))
	env := newTestEnv(t, func(d *Deps) { d.StaticDir = dir })

	code, body := env.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "<h1>marionette</h1>", string(body))

	code, _ = env.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, code, "API routes still resolve behind the static handler")
}
