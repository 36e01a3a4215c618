package framegraph

import (
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

const (
	AllMips   = -1
	AllSlices = -1
)

// RenderFunc records the commands of a pass. It runs once every resource the
// pass declared is bound.
type RenderFunc func(cmd metadata.CommandList, ctx *PassContext) error

// ImageRead is one ReadImage declaration of a pass.
type ImageRead struct {
	Handle ImageHandle
	Mip    int
	Slice  int
}

type bufferBinding struct {
	name   string
	handle BufferHandle
}

// RenderPass is one unit of scheduling. The order passes are added in is
// the order they execute in.
type RenderPass struct {
	name  string
	index int
	graph *RenderGraph

	imageWrites []ImageHandle
	imageReads  []ImageRead
	buffers     []bufferBinding

	renderFunc RenderFunc
	// owned by the pass until it has executed
	data any
}

func (p *RenderPass) Name() string {
	return p.name
}

func (p *RenderPass) Index() int {
	return p.index
}

// WriteImage declares that the pass renders into h.
func (p *RenderPass) WriteImage(h ImageHandle) {
	p.graph.assertBuilding("WriteImage")
	p.graph.images.WriteResource(h, p.index)
	p.imageWrites = append(p.imageWrites, h)
}

// ReadImage declares that the pass samples h. mip and slice select a
// subresource, AllMips and AllSlices select all of them.
func (p *RenderPass) ReadImage(h ImageHandle, mip, slice int) {
	p.graph.assertBuilding("ReadImage")
	core.Assertf(mip >= AllMips && slice >= AllSlices, "pass %q reads mip %d slice %d", p.name, mip, slice)
	p.graph.images.ReadResource(h, p.index)
	p.imageReads = append(p.imageReads, ImageRead{Handle: h, Mip: mip, Slice: slice})
}

// WriteBuffer declares that the pass writes h, bound under name.
func (p *RenderPass) WriteBuffer(name string, h BufferHandle) {
	p.graph.assertBuilding("WriteBuffer")
	p.graph.buffers.WriteResource(h, p.index)
	p.bindBuffer(name, h)
}

// ReadBuffer declares that the pass reads h, bound under name.
func (p *RenderPass) ReadBuffer(name string, h BufferHandle) {
	p.graph.assertBuilding("ReadBuffer")
	p.graph.buffers.ReadResource(h, p.index)
	p.bindBuffer(name, h)
}

func (p *RenderPass) SetRenderFunc(fn RenderFunc) {
	p.graph.assertBuilding("SetRenderFunc")
	p.renderFunc = fn
}

func (p *RenderPass) bindBuffer(name string, h BufferHandle) {
	for i := range p.buffers {
		if p.buffers[i].name == name {
			p.buffers[i].handle = h
			return
		}
	}
	p.buffers = append(p.buffers, bufferBinding{name: name, handle: h})
}

func (p *RenderPass) reset(g *RenderGraph, name string, index int) {
	p.name = name
	p.index = index
	p.graph = g
	p.imageWrites = p.imageWrites[:0]
	p.imageReads = p.imageReads[:0]
	p.buffers = p.buffers[:0]
	p.renderFunc = nil
	p.data = nil
}

// PassContext is what a RenderFunc sees of the graph while it runs.
type PassContext struct {
	graph *RenderGraph
	pass  *RenderPass
}

func (c *PassContext) Image(h ImageHandle) metadata.Image {
	return c.graph.Image(h)
}

func (c *PassContext) Buffer(h BufferHandle) metadata.Buffer {
	return c.graph.Buffer(h)
}

// BufferByName resolves a buffer the pass declared under name.
func (c *PassContext) BufferByName(name string) metadata.Buffer {
	for _, b := range c.pass.buffers {
		if b.name == name {
			return c.graph.Buffer(b.handle)
		}
	}
	core.Assertf(false, "pass %q has no buffer named %q", c.pass.name, name)
	return nil
}

// ImageReads lists the pass's ReadImage declarations in call order.
func (c *PassContext) ImageReads() []ImageRead {
	return c.pass.imageReads
}

func (c *PassContext) Resources() *ResourceMap {
	return c.graph.resources
}

func (c *PassContext) PassIndex() int {
	return c.pass.index
}

func (c *PassContext) PassName() string {
	return c.pass.name
}

func (c *PassContext) FrameIndex() uint64 {
	return c.graph.frameIndex
}

// AddPassWithData adds a pass that carries a zeroed T. Fill it while
// building and read it back from the RenderFunc; it is dropped once the
// pass has executed.
func AddPassWithData[T any](g *RenderGraph, name string) (*RenderPass, *T) {
	pass := g.AddPass(name)
	data := new(T)
	pass.data = data
	return pass, data
}

// PassData returns the data attached by AddPassWithData.
func PassData[T any](ctx *PassContext) *T {
	data, ok := ctx.pass.data.(*T)
	core.Assertf(ok, "pass %q carries %T", ctx.pass.name, ctx.pass.data)
	return data
}
