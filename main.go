/*
This is an example of application that will use the
engine package to run the testbed frame graph
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/framegraph/engine"
	"github.com/spaghettifunk/framegraph/engine/config"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
	"github.com/spaghettifunk/framegraph/engine/renderer/null"
	"github.com/spaghettifunk/framegraph/engine/renderer/vulkan"
	"github.com/spaghettifunk/framegraph/testbed"
)

func main() {
	configPath := flag.String("config", "", "graph configuration file (TOML)")
	frames := flag.Int("frames", 0, "number of frames to run, 0 runs until interrupted")
	watch := flag.Bool("watch", false, "reload the configuration file when it changes")
	backend := flag.String("device", "null", "resource device: null or vulkan")
	debug := flag.Bool("debug", false, "enable Vulkan validation layers")
	flag.Parse()

	if err := run(*configPath, *frames, *watch, *backend, *debug); err != nil {
		core.LogFatal("%+v", err)
	}
}

func run(configPath string, frames int, watch bool, backend string, debug bool) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	tb := testbed.NewTestGame()

	var device metadata.Device
	switch backend {
	case "vulkan":
		vd, err := vulkan.NewDevice(tb.ApplicationConfig.Name, debug)
		if err != nil {
			return err
		}
		defer vd.Shutdown()
		device = vd
	default:
		device = null.NewDevice()
	}

	e, err := engine.New(tb.Game, device, cfg)
	if err != nil {
		return err
	}
	if err := e.Initialize(); err != nil {
		return err
	}
	if watch && configPath != "" {
		if err := e.WatchConfig(configPath); err != nil {
			return err
		}
	}

	// signal context to capture system calls
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if frames > 0 {
		err = e.RunFrames(frames)
	} else {
		err = e.Run(ctx)
	}
	if shutdownErr := e.Shutdown(); err == nil {
		err = shutdownErr
	}
	return err
}
