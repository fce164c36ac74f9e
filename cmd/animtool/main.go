// animtool: checks and inspects animation files
//
//	animtool validate <file|dir>...   parse every file and report errors
//	animtool bake <file>              print the interpolated value set of every frame
//	animtool info <file>              print duration, keyframe count and channels
//	animtool scale <file> <factor>    print the file with factor times the frame resolution
//	animtool [-addr url] play <file>  play a file on a running figure
//	animtool [-addr url] pause        stop ad-hoc playback
//	animtool [-addr url] status       print the figure's status
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/teslashibe/go-marionette/internal/httpc"
	"github.com/teslashibe/go-marionette/pkg/animation"
)

var (
	addr = flag.String("addr", "http://localhost:5001", "Web API of the running figure")

	errUsage = errors.New("usage: animtool validate|bake|info|play <file> | scale <file> <factor> | pause | status")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), errUsage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(flag.Args(), httpc.New(*addr), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "animtool:", err)
		os.Exit(1)
	}
}

func run(args []string, remote *httpc.Client, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "validate", "bake", "info", "play":
		if len(rest) == 0 {
			return errUsage
		}
	case "scale":
		if len(rest) != 2 {
			return errUsage
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), httpc.DefaultTimeout)
	defer cancel()

	switch cmd {
	case "validate":
		return validate(rest, out)
	case "bake":
		return bake(rest[0], out)
	case "info":
		return info(rest[0], out)
	case "scale":
		return scale(rest[0], rest[1], out)
	case "play":
		f, err := animation.ReadFile(rest[0])
		if err != nil {
			return err
		}
		return remote.Play(ctx, f)
	case "pause":
		return remote.Pause(ctx)
	case "status":
		st, err := remote.Status(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

// validate checks every path; directories contribute their *.json files.
// All files are checked before the first error is reported.
func validate(paths []string, out io.Writer) error {
	var files []string
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil {
			return err
		}
		if !st.IsDir() {
			files = append(files, p)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(p, "*.json"))
		if err != nil {
			return err
		}
		files = append(files, matches...)
	}

	var failed int
	for _, f := range files {
		if _, err := animation.LoadKeyframe(f); err != nil {
			fmt.Fprintf(out, "FAIL %s: %v\n", f, err)
			failed++
			continue
		}
		fmt.Fprintf(out, "ok   %s\n", f)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files invalid", failed, len(files))
	}
	return nil
}

func bake(path string, out io.Writer) error {
	f, err := animation.ReadFile(path)
	if err != nil {
		return err
	}
	frames, err := animation.Bake(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(frames)
}

func scale(path, factor string, out io.Writer) error {
	n, err := strconv.Atoi(factor)
	if err != nil || n < 1 {
		return fmt.Errorf("factor must be a positive integer, got %q", factor)
	}
	f, err := animation.ReadFile(path)
	if err != nil {
		return err
	}
	if err := f.Validate(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(animation.Scale(f, n))
}

func info(path string, out io.Writer) error {
	f, err := animation.ReadFile(path)
	if err != nil {
		return err
	}
	if err := f.Validate(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	fmt.Fprintf(out, "name:      %s\n", animation.NameFromPath(path))
	fmt.Fprintf(out, "frames:    %d @ %g fps\n", f.Config.TotalFrames, f.Config.FPS)
	fmt.Fprintf(out, "duration:  %.2fs\n", f.Duration())
	fmt.Fprintf(out, "keyframes: %d\n", len(f.Keyframes))
	fmt.Fprintf(out, "channels:  %s\n", strings.Join(f.Channels(), ", "))
	return nil
}
