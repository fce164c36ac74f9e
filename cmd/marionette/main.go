// marionette: runs the animatronic figure
// Drives the servos and LEDs, watches for observers and serves the web API
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-marionette/internal/config"
	"github.com/teslashibe/go-marionette/internal/log"
	"github.com/teslashibe/go-marionette/pkg/marionette"
)

var (
	version    = "1.0.0"
	configPath = flag.String("config", "", "Config file (default $"+config.EnvConfig+" or "+config.DefaultPath+")")
	dryRun     = flag.Bool("dry-run", false, "Run without hardware")
	addr       = flag.String("addr", "", "Web API listen address")
	logLevel   = flag.String("log-level", "", "Log level: debug, info, warn, error")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "marionette:", err)
		os.Exit(2)
	}

	log.Init(cfg.LogLevel)
	log.Info("starting marionette", "version", version, "config", config.Path(*configPath))

	app, err := marionette.New(cfg)
	if err != nil {
		log.Error("failed to start", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Error("marionette stopped with error", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to the defaults when the
// default file is absent, then applies flags.
func loadConfig() (*config.Config, error) {
	path := config.Path(*configPath)
	cfg, err := config.Load(path)
	if err != nil {
		if *configPath != "" || os.Getenv(config.EnvConfig) != "" || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = config.Default()
		if err := cfg.ApplyEnv(); err != nil {
			return nil, err
		}
	}

	if *dryRun {
		cfg.Hardware.DryRun = true
	}
	if *addr != "" {
		cfg.Web.Addr = *addr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	return cfg, cfg.Validate()
}
