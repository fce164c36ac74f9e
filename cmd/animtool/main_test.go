package main

import (
	"bytes"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/teslashibe/go-marionette/internal/httpc"
	"github.com/teslashibe/go-marionette/pkg/animation"
	"github.com/teslashibe/go-marionette/pkg/web"
)

const wave = `{
	"config": {"totalFrames": 4, "fps": 2},
	"keyframes": [
		{"frameIndex": 0, "values": {"arm": 0, "jaw": 10}},
		{"frameIndex": 4, "values": {"arm": 100}}
	]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "wave.json", wave)
	writeFile(t, dir, "notes.txt", "ignored")

	var out bytes.Buffer
	if err := run([]string{"validate", dir}, nil, &out); err != nil {
		t.Fatalf("validate: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "ok   ") {
		t.Errorf("output = %q", out.String())
	}

	writeFile(t, dir, "broken.json", `{"config": {"totalFrames": 0, "fps": 2}, "keyframes": []}`)
	out.Reset()
	if err := run([]string{"validate", dir}, nil, &out); err == nil {
		t.Error("expected an error for the broken file")
	}
	if !strings.Contains(out.String(), "FAIL") {
		t.Errorf("output = %q", out.String())
	}
}

func TestBake(t *testing.T) {
	p := writeFile(t, t.TempDir(), "wave.json", wave)

	var out bytes.Buffer
	if err := run([]string{"bake", p}, nil, &out); err != nil {
		t.Fatal(err)
	}
	var frames []animation.BakedFrame
	if err := json.Unmarshal(out.Bytes(), &frames); err != nil {
		t.Fatal(err)
	}
	if len(frames) != 4 {
		t.Fatalf("got %d frames, want 4", len(frames))
	}
	if got := frames[2].Values["arm"]; got != 50 {
		t.Errorf("frame 2 arm = %v, want 50", got)
	}
	if got := frames[3].Values["jaw"]; got != 10 {
		t.Errorf("frame 3 jaw = %v, want 10 (held)", got)
	}
}

func TestInfo(t *testing.T) {
	p := writeFile(t, t.TempDir(), "wave.json", wave)

	var out bytes.Buffer
	if err := run([]string{"info", p}, nil, &out); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"name:      wave", "duration:  2.00s", "keyframes: 2", "channels:  arm, jaw"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestScale(t *testing.T) {
	p := writeFile(t, t.TempDir(), "wave.json", wave)

	var out bytes.Buffer
	if err := run([]string{"scale", p, "3"}, nil, &out); err != nil {
		t.Fatal(err)
	}
	var f animation.File
	if err := json.Unmarshal(out.Bytes(), &f); err != nil {
		t.Fatal(err)
	}
	if f.Config.TotalFrames != 12 || f.Config.FPS != 6 {
		t.Errorf("config = %+v, want 12 frames at 6 fps", f.Config)
	}
	if f.Keyframes[1].FrameIndex != 12 {
		t.Errorf("second keyframe at %d, want 12", f.Keyframes[1].FrameIndex)
	}
	if f.Duration() != 2 {
		t.Errorf("duration = %v, want unchanged 2s", f.Duration())
	}

	for _, bad := range []string{"0", "-2", "x"} {
		if err := run([]string{"scale", p, bad}, nil, &bytes.Buffer{}); err == nil {
			t.Errorf("factor %q: expected an error", bad)
		}
	}
	if err := run([]string{"scale", p}, nil, &bytes.Buffer{}); err == nil {
		t.Error("expected usage error without a factor")
	}
}

func TestRun_Usage(t *testing.T) {
	if err := run(nil, nil, &bytes.Buffer{}); err == nil {
		t.Error("expected usage error")
	}
	if err := run([]string{"explode", "x"}, nil, &bytes.Buffer{}); err == nil {
		t.Error("expected unknown command error")
	}
	if err := run([]string{"bake"}, nil, &bytes.Buffer{}); err == nil {
		t.Error("expected usage error for bake without a file")
	}
}

func TestPlay_Remote(t *testing.T) {
	remote := animation.NewExternalControl("remote")
	srv := web.NewServer(":0", web.Deps{Remote: remote})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go srv.App().Listener(ln)
	defer srv.App().Shutdown()

	p := writeFile(t, t.TempDir(), "wave.json", wave)
	client := httpc.New("http://" + ln.Addr().String())
	if err := run([]string{"play", p}, client, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}
	if !remote.Playing() {
		t.Error("remote should be playing")
	}
	if err := run([]string{"pause"}, client, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}
	if remote.Playing() {
		t.Error("remote should be stopped")
	}
}
