package testbed

import (
	"github.com/gogpu/gputypes"

	"github.com/spaghettifunk/framegraph/engine"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/framegraph"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
	"github.com/spaghettifunk/framegraph/engine/renderer/null"
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	width  uint32
	height uint32

	graph      *framegraph.RenderGraph
	backbuffer metadata.Image

	history      framegraph.ImageHandle
	historyValid bool

	shadowsEnabled bool
	cascades       int
	lightCount     uint32
}

func NewTestGame() *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				StartWidth:      1280,
				StartHeight:     720,
				Name:            "FrameGraph Testbed",
				LogLevel:        core.InfoLevel,
				TargetFrameRate: 60,
			},
			State: &gameState{
				shadowsEnabled: true,
				cascades:       4,
				lightCount:     1024,
			},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	return nil
}

// SetShadowsEnabled toggles the shadow stage. Lighting copes without it.
func (g *TestGame) SetShadowsEnabled(enabled bool) {
	g.state().shadowsEnabled = enabled
}

func (g *TestGame) Render(graph *framegraph.RenderGraph, frame uint64) error {
	state := g.state()
	state.graph = graph

	if !state.history.IsValid() {
		state.history = graph.GetPersistentImage(screenTarget("taa-history", state.width, state.height, gputypes.TextureFormatRGBA8Unorm))
		state.historyValid = false
	}

	if state.shadowsEnabled {
		addShadowStage(graph, state.cascades)
	}
	addGBufferStage(graph, state.width, state.height)
	addLightingStage(graph, state.width, state.height, state.lightCount)
	addBloomStage(graph, state.width, state.height)
	addExposureStage(graph)
	addTAAStage(graph, state.history, state.historyValid, state.width, state.height)
	addPresentStage(graph, state.backbuffer)

	// Written by taa-history this frame, readable from the next one on.
	state.historyValid = true
	return nil
}

// OnResize swaps the backbuffer and drops the TAA history, whose contents
// do not survive a size change.
func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.state()
	state.width = width
	state.height = height

	if state.graph != nil {
		if state.history.IsValid() {
			state.graph.ReleasePersistentImage(state.history)
		}
		if state.backbuffer != nil {
			state.graph.ReleasePersistentImage(state.graph.ImportImage(state.backbuffer))
		}
	}
	state.history = framegraph.ImageHandle{}
	state.historyValid = false

	state.backbuffer = null.NewExternalImage(metadata.ImageDescriptor{
		Name:      "backbuffer",
		Width:     width,
		Height:    height,
		Format:    gputypes.TextureFormatBGRA8Unorm,
		Dimension: gputypes.TextureDimension2D,
		Usage:     gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopyDst,
	})
	core.LogDebug("testbed resized to %dx%d", width, height)
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogInfo("shutting down testbed...")
	return nil
}
