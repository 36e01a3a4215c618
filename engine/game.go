package engine

import (
	"github.com/spaghettifunk/framegraph/engine/framegraph"
)

type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnRender          Render
	FnOnResize        OnResize
	FnShutdown        Shutdown
}

type Initialize func() error
type Update func(deltaTime float64) error

// Render declares the passes of one frame on graph. The engine executes the
// graph right after it returns.
type Render func(graph *framegraph.RenderGraph, frame uint64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
