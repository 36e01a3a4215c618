// Package framegraph schedules the transient GPU resources of a frame.
//
// Client code adds passes in execution order and declares, per pass, which
// images and buffers it writes and reads. Execute then walks the passes,
// binding each resource right before its first writer runs and handing it
// back to a pool right after its last reader ran, so later passes and later
// frames can reuse it.
package framegraph

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/framegraph/engine/config"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/mem"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

// GraphOption is a functional option for configuring a RenderGraph via
// NewRenderGraph.
type GraphOption func(*RenderGraph)

// WithArena makes the graph build its schedules in arena. The graph resets
// the arena at the start of every Execute.
func WithArena(arena *mem.FrameArena) GraphOption {
	return func(g *RenderGraph) {
		g.arena = arena
	}
}

// WithMetrics records frame statistics into m instead of a private Metrics.
func WithMetrics(m *core.Metrics) GraphOption {
	return func(g *RenderGraph) {
		g.metrics = m
	}
}

// WithStartFrame sets the index of the first frame.
func WithStartFrame(frame uint64) GraphOption {
	return func(g *RenderGraph) {
		g.frameIndex = frame
	}
}

// GraphStats is a snapshot of the graph and its pools.
type GraphStats struct {
	Frame            uint64
	Images           PoolStats
	Buffers          PoolStats
	LastFrame        core.FrameStats
	AverageFrameTime time.Duration
}

type RenderGraph struct {
	device metadata.Device
	config config.GraphConfig
	arena  *mem.FrameArena

	images    *ImagePool
	buffers   *BufferPool
	resources *ResourceMap

	passes []*RenderPass
	spare  []*RenderPass
	ctx    PassContext

	frameIndex    uint64
	executing     bool
	captureActive bool

	clock   *core.Clock
	metrics *core.Metrics
}

func NewRenderGraph(device metadata.Device, cfg config.GraphConfig, opts ...GraphOption) (*RenderGraph, error) {
	if device == nil {
		return nil, errors.New("func NewRenderGraph - device must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &RenderGraph{
		device:        device,
		config:        cfg,
		resources:     NewResourceMap(),
		captureActive: cfg.CaptureActive,
		clock:         core.NewClock(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.arena == nil {
		g.arena = mem.NewFrameArena()
	}
	if g.metrics == nil {
		g.metrics = core.NewMetrics()
	}
	g.images = NewImagePool(device, cfg.Images, g.arena)
	g.buffers = NewBufferPool(device, cfg.Buffers, g.arena)
	g.ctx.graph = g
	g.resources.setFrame(g.frameIndex)
	return g, nil
}

// AddPass appends a pass. Passes execute in the order they were added.
func (g *RenderGraph) AddPass(name string) *RenderPass {
	g.assertBuilding("AddPass")
	var pass *RenderPass
	if n := len(g.spare); n > 0 {
		pass = g.spare[n-1]
		g.spare = g.spare[:n-1]
	} else {
		pass = &RenderPass{}
	}
	pass.reset(g, name, len(g.passes))
	g.passes = append(g.passes, pass)
	return pass
}

func (g *RenderGraph) GetImage(desc metadata.ImageDescriptor) ImageHandle {
	g.assertBuilding("GetImage")
	return g.images.GetResourceHandle(desc, false)
}

// GetPersistentImage returns a handle whose image survives across frames
// until ReleasePersistentImage.
func (g *RenderGraph) GetPersistentImage(desc metadata.ImageDescriptor) ImageHandle {
	g.assertBuilding("GetPersistentImage")
	return g.images.GetResourceHandle(desc, true)
}

func (g *RenderGraph) GetBuffer(desc metadata.BufferDescriptor) BufferHandle {
	g.assertBuilding("GetBuffer")
	return g.buffers.GetResourceHandle(desc, false)
}

func (g *RenderGraph) GetPersistentBuffer(desc metadata.BufferDescriptor) BufferHandle {
	g.assertBuilding("GetPersistentBuffer")
	return g.buffers.GetResourceHandle(desc, true)
}

// ImportImage wraps an image the graph does not own, such as a swapchain
// image. Importing the same image twice yields the same handle.
func (g *RenderGraph) ImportImage(img metadata.Image) ImageHandle {
	g.assertBuilding("ImportImage")
	return g.images.ImportResource(img)
}

func (g *RenderGraph) ImportBuffer(buf metadata.Buffer) BufferHandle {
	g.assertBuilding("ImportBuffer")
	return g.buffers.ImportResource(buf)
}

func (g *RenderGraph) ReleasePersistentImage(h ImageHandle) {
	g.assertBuilding("ReleasePersistentImage")
	g.images.ReleasePersistentResource(h)
}

func (g *RenderGraph) ReleasePersistentBuffer(h BufferHandle) {
	g.assertBuilding("ReleasePersistentBuffer")
	g.buffers.ReleasePersistentResource(h)
}

// Image resolves h. Only valid from inside a RenderFunc.
func (g *RenderGraph) Image(h ImageHandle) metadata.Image {
	core.Assertf(g.executing, "image %v resolved while the graph is not executing", h)
	return g.images.GetResource(h)
}

// Buffer resolves h. Only valid from inside a RenderFunc.
func (g *RenderGraph) Buffer(h BufferHandle) metadata.Buffer {
	core.Assertf(g.executing, "buffer %v resolved while the graph is not executing", h)
	return g.buffers.GetResource(h)
}

// Resources is the side channel passes publish typed values on.
func (g *RenderGraph) Resources() *ResourceMap {
	return g.resources
}

// Execute runs every pass added since the last Execute and advances the
// frame. A resource that cannot be created aborts the frame: nothing after
// the failing pass runs and the error wraps core.ErrResourceCreation.
func (g *RenderGraph) Execute(cmd metadata.CommandList) error {
	core.Assertf(!g.executing, "render graph executed while already executing")
	g.executing = true
	g.clock.Start()
	g.arena.Reset()

	passCount := len(g.passes)
	g.buffers.BeginFrame(passCount, g.frameIndex)
	g.images.BeginFrame(passCount, g.frameIndex)

	var err error
	for i, pass := range g.passes {
		if err = g.runPass(cmd, i, pass); err != nil {
			break
		}
	}

	g.buffers.EndFrame()
	g.images.EndFrame()

	if err != nil {
		core.LogError("frame %d aborted: %v", g.frameIndex, err)
		g.clock.Stop()
		g.resetPasses()
		g.executing = false
		return err
	}

	g.buffers.CleanupCurrentFrame(g.frameIndex)
	g.images.CleanupCurrentFrame(g.frameIndex)
	g.clock.Stop()

	stats := core.FrameStats{
		Frame:    g.frameIndex,
		Passes:   passCount,
		Duration: g.clock.Elapsed(),
		Images:   g.images.FrameStats(),
		Buffers:  g.buffers.FrameStats(),
	}
	g.metrics.Record(stats)
	core.LogDebug("frame %d: %d passes in %s, images %+v, buffers %+v",
		stats.Frame, stats.Passes, stats.Duration, stats.Images, stats.Buffers)

	if !g.captureActive {
		g.frameIndex++
	}
	g.resources.setFrame(g.frameIndex)
	g.resetPasses()
	g.executing = false
	return nil
}

func (g *RenderGraph) runPass(cmd metadata.CommandList, i int, pass *RenderPass) error {
	if err := g.buffers.AllocatePass(i); err != nil {
		return errors.Wrapf(err, "pass %q", pass.name)
	}
	if err := g.images.AllocatePass(i); err != nil {
		return errors.Wrapf(err, "pass %q", pass.name)
	}

	core.LogDebug("executing pass %d %q", i, pass.name)
	cmd.BeginSample(pass.name)
	if pass.renderFunc != nil {
		g.ctx.pass = pass
		err := pass.renderFunc(cmd, &g.ctx)
		g.ctx.pass = nil
		if err != nil {
			cmd.EndSample(pass.name)
			return errors.Wrapf(err, "pass %q", pass.name)
		}
	}
	for _, h := range pass.imageWrites {
		if g.images.Descriptor(h).AutoGenerateMips {
			cmd.GenerateMips(g.images.GetResource(h))
		}
	}
	cmd.EndSample(pass.name)

	g.buffers.ReleasePass(i)
	g.images.ReleasePass(i)
	return nil
}

func (g *RenderGraph) resetPasses() {
	for i := len(g.passes) - 1; i >= 0; i-- {
		pass := g.passes[i]
		pass.reset(nil, "", -1)
		g.spare = append(g.spare, pass)
		g.passes[i] = nil
	}
	g.passes = g.passes[:0]
}

// CleanupCurrentFrame destroys pooled resources that sat idle for longer
// than their retention window. Execute already does this once per frame.
func (g *RenderGraph) CleanupCurrentFrame() {
	g.assertBuilding("CleanupCurrentFrame")
	g.buffers.CleanupCurrentFrame(g.frameIndex)
	g.images.CleanupCurrentFrame(g.frameIndex)
}

// ApplyConfig swaps retention policy and capture state. Resources already
// released keep the retention stamp they were released with.
func (g *RenderGraph) ApplyConfig(cfg config.GraphConfig) error {
	g.assertBuilding("ApplyConfig")
	if err := cfg.Validate(); err != nil {
		return err
	}
	applyPoolConfig(g.images, cfg.Images)
	applyPoolConfig(g.buffers, cfg.Buffers)
	g.captureActive = cfg.CaptureActive
	g.config = cfg
	core.LogInfo("render graph config applied at frame %d", g.frameIndex)
	return nil
}

func (g *RenderGraph) Config() config.GraphConfig {
	return g.config
}

// SetCaptureActive freezes the frame counter while a capture tool records
// several executions as one frame.
func (g *RenderGraph) SetCaptureActive(active bool) {
	g.captureActive = active
}

func (g *RenderGraph) FrameIndex() uint64 {
	return g.frameIndex
}

func (g *RenderGraph) IsExecuting() bool {
	return g.executing
}

func (g *RenderGraph) PassCount() int {
	return len(g.passes)
}

func (g *RenderGraph) Metrics() *core.Metrics {
	return g.metrics
}

func (g *RenderGraph) Stats() GraphStats {
	last, _ := g.metrics.Last()
	return GraphStats{
		Frame:            g.frameIndex,
		Images:           g.images.Stats(),
		Buffers:          g.buffers.Stats(),
		LastFrame:        last,
		AverageFrameTime: g.metrics.AverageFrameTime(),
	}
}

// ImagePool exposes the image pool, mostly for inspection.
func (g *RenderGraph) ImagePool() *ImagePool {
	return g.images
}

func (g *RenderGraph) BufferPool() *BufferPool {
	return g.buffers
}

// Shutdown destroys every resource the graph created.
func (g *RenderGraph) Shutdown() {
	g.assertBuilding("Shutdown")
	g.resetPasses()
	g.buffers.Shutdown()
	g.images.Shutdown()
	g.resources.Clear()
	core.LogInfo("render graph shut down after %d frames", g.metrics.FramesRecorded())
}

func (g *RenderGraph) assertBuilding(op string) {
	core.Assertf(!g.executing, "%s called while the graph is executing", op)
}
