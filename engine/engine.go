package engine

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/framegraph/engine/config"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/framegraph"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
	"github.com/spaghettifunk/framegraph/engine/renderer/null"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	isRunning    bool
	isSuspended  bool

	device  metadata.Device
	graph   *framegraph.RenderGraph
	cmd     *null.CommandList
	watcher *config.Watcher

	width    uint32
	height   uint32
	clock    *core.Clock
	lastTime time.Duration
}

func New(g *Game, device metadata.Device, cfg config.GraphConfig) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil || g.FnRender == nil {
		return nil, errors.New("func New - the game needs an application config and a render function")
	}
	graph, err := framegraph.NewRenderGraph(device, cfg)
	if err != nil {
		core.LogError("%s", err.Error())
		return nil, err
	}
	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		device:       device,
		graph:        graph,
		cmd:          null.NewCommandList(),
		clock:        core.NewClock(),
		width:        g.ApplicationConfig.StartWidth,
		height:       g.ApplicationConfig.StartHeight,
	}, nil
}

// WatchConfig reloads the graph configuration whenever path changes. New
// configurations are applied between frames.
func (e *Engine) WatchConfig(path string) error {
	w, err := config.NewWatcher(path)
	if err != nil {
		return err
	}
	if e.watcher != nil {
		_ = e.watcher.Close()
	}
	e.watcher = w
	core.LogInfo("watching %s for configuration changes", path)
	return nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	core.SetLogLevel(e.gameInstance.ApplicationConfig.LogLevel)
	if err := e.applyLogLevel(e.graph.Config()); err != nil {
		return err
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.isRunning = true
	e.currentStage = EngineStageInitialized
	core.LogInfo("%s initialized at %dx%d", e.gameInstance.ApplicationConfig.Name, e.width, e.height)
	return nil
}

// RunFrames runs exactly n frames, or fewer if a frame fails.
func (e *Engine) RunFrames(n int) error {
	e.startRunning()
	for i := 0; i < n && e.isRunning; i++ {
		if err := e.frame(); err != nil {
			e.isRunning = false
			return err
		}
	}
	return nil
}

// Run runs frames until ctx is done or a frame fails.
func (e *Engine) Run(ctx context.Context) error {
	e.startRunning()

	var targetFrameTime time.Duration
	if rate := e.gameInstance.ApplicationConfig.TargetFrameRate; rate > 0 {
		targetFrameTime = time.Second / time.Duration(rate)
	}

	for e.isRunning {
		select {
		case <-ctx.Done():
			core.LogInfo("run loop interrupted, shutting down.")
			e.isRunning = false
			return nil
		default:
		}

		frameStart := time.Now()
		if err := e.frame(); err != nil {
			e.isRunning = false
			return err
		}

		// If there is time left, give it back to the OS.
		if remaining := targetFrameTime - time.Since(frameStart); targetFrameTime > 0 && remaining > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(remaining):
			}
		}
	}
	return nil
}

func (e *Engine) startRunning() {
	core.Assertf(e.currentStage >= EngineStageInitialized, "engine ran before Initialize")
	if e.currentStage != EngineStageRunning {
		e.currentStage = EngineStageRunning
		e.clock.Start()
		e.lastTime = 0
	}
}

func (e *Engine) frame() error {
	e.applyPendingConfig()
	if e.isSuspended {
		return nil
	}

	// Update clock and get delta time.
	e.clock.Update()
	currentTime := e.clock.Elapsed()
	delta := (currentTime - e.lastTime).Seconds()
	e.lastTime = currentTime

	if e.gameInstance.FnUpdate != nil {
		if err := e.gameInstance.FnUpdate(delta); err != nil {
			core.LogError("Game update failed, shutting down.")
			return err
		}
	}

	e.cmd.Reset()
	frame := e.graph.FrameIndex()
	if err := e.gameInstance.FnRender(e.graph, frame); err != nil {
		core.LogError("Game render failed, shutting down.")
		return err
	}
	if err := e.graph.Execute(e.cmd); err != nil {
		return errors.Wrapf(err, "frame %d", frame)
	}
	return nil
}

func (e *Engine) applyPendingConfig() {
	if e.watcher == nil {
		return
	}
	for {
		select {
		case cfg := <-e.watcher.Updates():
			if err := e.ApplyConfig(cfg); err != nil {
				core.LogError("configuration rejected: %v", err)
			}
		case err := <-e.watcher.Errors():
			core.LogWarn("configuration reload failed: %v", err)
		default:
			return
		}
	}
}

// ApplyConfig hands cfg to the graph and adopts its log level.
func (e *Engine) ApplyConfig(cfg config.GraphConfig) error {
	if err := e.graph.ApplyConfig(cfg); err != nil {
		return err
	}
	return e.applyLogLevel(cfg)
}

func (e *Engine) applyLogLevel(cfg config.GraphConfig) error {
	level, err := core.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "log level %q", cfg.LogLevel), core.ErrInvalidConfig)
	}
	core.SetLogLevel(level)
	return nil
}

// Resize changes the backbuffer size. A zero size suspends rendering until
// the next non zero size.
func (e *Engine) Resize(width, height uint32) error {
	if width == e.width && height == e.height {
		return nil
	}
	e.width = width
	e.height = height
	core.LogDebug("Backbuffer resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Backbuffer minimized, suspending application.")
		e.isSuspended = true
		return nil
	}
	if e.isSuspended {
		core.LogInfo("Backbuffer restored, resuming application.")
		e.isSuspended = false
	}
	if e.gameInstance.FnOnResize != nil {
		return e.gameInstance.FnOnResize(width, height)
	}
	return nil
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	e.isRunning = false

	var err error
	if e.watcher != nil {
		err = errors.CombineErrors(err, e.watcher.Close())
		e.watcher = nil
	}
	if e.gameInstance.FnShutdown != nil {
		err = errors.CombineErrors(err, e.gameInstance.FnShutdown())
	}

	stats := e.graph.Stats()
	e.graph.Shutdown()
	core.LogInfo("images created %d reused %d, buffers created %d reused %d",
		stats.Images.Created, stats.Images.Reused, stats.Buffers.Created, stats.Buffers.Reused)
	e.currentStage = EngineStageUninitialized
	return err
}

// GetFramebufferSize returns the width and height (in this order)
// of the backbuffer.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) Graph() *framegraph.RenderGraph {
	return e.graph
}

// Commands is the command list of the last frame.
func (e *Engine) Commands() *null.CommandList {
	return e.cmd
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) IsSuspended() bool {
	return e.isSuspended
}
