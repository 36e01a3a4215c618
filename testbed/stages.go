package testbed

import (
	"github.com/gogpu/gputypes"

	"github.com/spaghettifunk/framegraph/engine/framegraph"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

const shadowMapSize = 2048

// ShadowResult is published by the shadow stage for whoever wants to sample
// the shadow map.
type ShadowResult struct {
	Map      framegraph.ImageHandle
	Cascades int
}

type GBuffer struct {
	Albedo framegraph.ImageHandle
	Normal framegraph.ImageHandle
	Depth  framegraph.ImageHandle
}

type LightingResult struct {
	HDR framegraph.ImageHandle
}

type BloomResult struct {
	Composite framegraph.ImageHandle
}

type ExposureResult struct {
	Readback framegraph.BufferHandle
}

type TAAResult struct {
	Resolved framegraph.ImageHandle
}

// recorder is implemented by command lists that keep a textual trace.
type recorder interface {
	Record(format string, args ...interface{})
}

func record(cmd metadata.CommandList, format string, args ...interface{}) {
	if r, ok := cmd.(recorder); ok {
		r.Record(format, args...)
	}
}

func screenTarget(name string, width, height uint32, format gputypes.TextureFormat) metadata.ImageDescriptor {
	return metadata.ImageDescriptor{
		Name:            name,
		Width:           width,
		Height:          height,
		Format:          format,
		Dimension:       gputypes.TextureDimension2D,
		Usage:           gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding,
		IsScreenTexture: true,
	}
}

func addShadowStage(g *framegraph.RenderGraph, cascades int) {
	shadowMap := g.GetImage(metadata.ImageDescriptor{
		Name:               "shadow-map",
		Width:              shadowMapSize,
		Height:             shadowMapSize,
		Format:             gputypes.TextureFormatDepth24PlusStencil8,
		Dimension:          gputypes.TextureDimension2D,
		DepthOrArrayLayers: uint32(cascades),
		Usage:              gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding,
	})

	pass := g.AddPass("shadow")
	pass.WriteImage(shadowMap)
	pass.SetRenderFunc(func(cmd metadata.CommandList, ctx *framegraph.PassContext) error {
		target := ctx.Image(shadowMap)
		for c := 0; c < cascades; c++ {
			record(cmd, "draw shadow casters into %s slice %d", target.Label(), c)
		}
		return nil
	})

	framegraph.SetResource(g.Resources(), ShadowResult{Map: shadowMap, Cascades: cascades}, false)
}

func addGBufferStage(g *framegraph.RenderGraph, width, height uint32) GBuffer {
	gb := GBuffer{
		Albedo: g.GetImage(screenTarget("gbuffer-albedo", width, height, gputypes.TextureFormatRGBA8Unorm)),
		Normal: g.GetImage(screenTarget("gbuffer-normal", width, height, gputypes.TextureFormatRGBA8Unorm)),
		Depth:  g.GetImage(screenTarget("gbuffer-depth", width, height, gputypes.TextureFormatDepth24PlusStencil8)),
	}

	pass := g.AddPass("gbuffer")
	pass.WriteImage(gb.Albedo)
	pass.WriteImage(gb.Normal)
	pass.WriteImage(gb.Depth)
	pass.SetRenderFunc(func(cmd metadata.CommandList, ctx *framegraph.PassContext) error {
		record(cmd, "draw opaque geometry into %s, %s and %s",
			ctx.Image(gb.Albedo).Label(), ctx.Image(gb.Normal).Label(), ctx.Image(gb.Depth).Label())
		return nil
	})

	framegraph.SetResource(g.Resources(), gb, false)
	return gb
}

type lightingData struct {
	gbuffer   GBuffer
	shadow    ShadowResult
	hasShadow bool
	hdr       framegraph.ImageHandle
}

func addLightingStage(g *framegraph.RenderGraph, width, height uint32, lightCount uint32) LightingResult {
	gb := framegraph.GetResource[GBuffer](g.Resources())

	lights := g.GetBuffer(metadata.BufferDescriptor{
		Name:   "light-list",
		Count:  lightCount,
		Stride: 32,
		Usage:  gputypes.BufferUsageStorage,
	})
	cull := g.AddPass("light-cull")
	cull.ReadImage(gb.Depth, 0, framegraph.AllSlices)
	cull.WriteBuffer("lights", lights)
	cull.SetRenderFunc(func(cmd metadata.CommandList, ctx *framegraph.PassContext) error {
		record(cmd, "cull %d lights into %s", lightCount, ctx.BufferByName("lights").Label())
		return nil
	})

	pass, data := framegraph.AddPassWithData[lightingData](g, "lighting")
	data.gbuffer = gb
	data.hdr = g.GetImage(screenTarget("hdr", width, height, gputypes.TextureFormatRGBA32Float))
	pass.ReadImage(gb.Albedo, 0, framegraph.AllSlices)
	pass.ReadImage(gb.Normal, 0, framegraph.AllSlices)
	pass.ReadImage(gb.Depth, 0, framegraph.AllSlices)
	pass.ReadBuffer("lights", lights)
	// The shadow stage is optional.
	if shadow, ok := framegraph.TryGetResource[ShadowResult](g.Resources()); ok {
		data.shadow = shadow
		data.hasShadow = true
		pass.ReadImage(shadow.Map, 0, framegraph.AllSlices)
	}
	pass.WriteImage(data.hdr)
	pass.SetRenderFunc(func(cmd metadata.CommandList, ctx *framegraph.PassContext) error {
		d := framegraph.PassData[lightingData](ctx)
		record(cmd, "shade %d lights from %s", lightCount, ctx.BufferByName("lights").Label())
		if d.hasShadow {
			record(cmd, "sample %d shadow cascades from %s", d.shadow.Cascades, ctx.Image(d.shadow.Map).Label())
		}
		return nil
	})

	result := LightingResult{HDR: data.hdr}
	framegraph.SetResource(g.Resources(), result, false)
	return result
}

func addBloomStage(g *framegraph.RenderGraph, width, height uint32) BloomResult {
	hdr := framegraph.GetResource[LightingResult](g.Resources()).HDR

	bloom := g.GetImage(metadata.ImageDescriptor{
		Name:              "bloom-chain",
		Width:             max(width/2, 1),
		Height:            max(height/2, 1),
		Format:            gputypes.TextureFormatRGBA32Float,
		Dimension:         gputypes.TextureDimension2D,
		Usage:             gputypes.TextureUsageTextureBinding,
		HasMips:           true,
		AutoGenerateMips:  true,
		EnableRandomWrite: true,
		IsScreenTexture:   true,
	})
	downsample := g.AddPass("bloom-downsample")
	downsample.ReadImage(hdr, 0, framegraph.AllSlices)
	downsample.WriteImage(bloom)
	downsample.SetRenderFunc(func(cmd metadata.CommandList, ctx *framegraph.PassContext) error {
		record(cmd, "threshold %s into %s", ctx.Image(hdr).Label(), ctx.Image(bloom).Label())
		return nil
	})

	composite := g.GetImage(screenTarget("composite", width, height, gputypes.TextureFormatRGBA8Unorm))
	pass := g.AddPass("bloom-composite")
	pass.ReadImage(hdr, 0, framegraph.AllSlices)
	pass.ReadImage(bloom, framegraph.AllMips, framegraph.AllSlices)
	pass.WriteImage(composite)
	pass.SetRenderFunc(func(cmd metadata.CommandList, ctx *framegraph.PassContext) error {
		for _, read := range ctx.ImageReads() {
			if read.Mip == framegraph.AllMips {
				img := ctx.Image(read.Handle)
				record(cmd, "upsample %d mips of %s", img.Descriptor().MipLevelCount(), img.Label())
			}
		}
		record(cmd, "tonemap into %s", ctx.Image(composite).Label())
		return nil
	})

	result := BloomResult{Composite: composite}
	framegraph.SetResource(g.Resources(), result, false)
	return result
}

const histogramBins = 256

func addExposureStage(g *framegraph.RenderGraph) ExposureResult {
	composite := framegraph.GetResource[BloomResult](g.Resources()).Composite

	histogram := g.GetBuffer(metadata.BufferDescriptor{
		Name:   "luminance-histogram",
		Count:  histogramBins,
		Stride: 4,
		Usage:  gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
	})
	build := g.AddPass("luminance-histogram")
	build.ReadImage(composite, 0, framegraph.AllSlices)
	build.WriteBuffer("histogram", histogram)
	build.SetRenderFunc(func(cmd metadata.CommandList, ctx *framegraph.PassContext) error {
		record(cmd, "bin %s into %d buckets", ctx.Image(composite).Label(), histogramBins)
		return nil
	})

	// The CPU maps this a few frames later, the pool keeps it alive meanwhile.
	readback := g.GetBuffer(metadata.BufferDescriptor{
		Name:   "exposure-readback",
		Count:  histogramBins,
		Stride: 4,
		Usage:  gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	copyPass := g.AddPass("exposure-readback")
	copyPass.ReadBuffer("histogram", histogram)
	copyPass.WriteBuffer("readback", readback)
	copyPass.SetRenderFunc(func(cmd metadata.CommandList, ctx *framegraph.PassContext) error {
		record(cmd, "copy %s to %s", ctx.BufferByName("histogram").Label(), ctx.BufferByName("readback").Label())
		return nil
	})

	result := ExposureResult{Readback: readback}
	framegraph.SetResource(g.Resources(), result, false)
	return result
}

// addTAAStage resolves the composite against last frame's history. history
// is persistent and only readable once a previous frame wrote it.
func addTAAStage(g *framegraph.RenderGraph, history framegraph.ImageHandle, historyValid bool, width, height uint32) TAAResult {
	composite := framegraph.GetResource[BloomResult](g.Resources()).Composite
	resolved := g.GetImage(screenTarget("taa-resolved", width, height, gputypes.TextureFormatRGBA8Unorm))

	resolve := g.AddPass("taa-resolve")
	resolve.ReadImage(composite, 0, framegraph.AllSlices)
	if historyValid {
		resolve.ReadImage(history, 0, framegraph.AllSlices)
	}
	resolve.WriteImage(resolved)
	resolve.SetRenderFunc(func(cmd metadata.CommandList, ctx *framegraph.PassContext) error {
		if historyValid {
			record(cmd, "blend %s with %s", ctx.Image(composite).Label(), ctx.Image(history).Label())
		} else {
			record(cmd, "copy %s, no history yet", ctx.Image(composite).Label())
		}
		return nil
	})

	update := g.AddPass("taa-history")
	update.ReadImage(resolved, 0, framegraph.AllSlices)
	update.WriteImage(history)
	update.SetRenderFunc(func(cmd metadata.CommandList, ctx *framegraph.PassContext) error {
		record(cmd, "copy %s to %s", ctx.Image(resolved).Label(), ctx.Image(history).Label())
		return nil
	})

	result := TAAResult{Resolved: resolved}
	framegraph.SetResource(g.Resources(), result, false)
	return result
}

func addPresentStage(g *framegraph.RenderGraph, backbuffer metadata.Image) {
	resolved := framegraph.GetResource[TAAResult](g.Resources()).Resolved
	target := g.ImportImage(backbuffer)

	pass := g.AddPass("present")
	pass.ReadImage(resolved, 0, framegraph.AllSlices)
	pass.WriteImage(target)
	pass.SetRenderFunc(func(cmd metadata.CommandList, ctx *framegraph.PassContext) error {
		record(cmd, "blit %s to %s", ctx.Image(resolved).Label(), ctx.Image(target).Label())
		return nil
	})
}
