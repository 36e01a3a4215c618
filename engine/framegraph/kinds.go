package framegraph

import (
	"github.com/google/uuid"

	"github.com/spaghettifunk/framegraph/engine/config"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/mem"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

type ImagePool = ResourcePool[metadata.Image, metadata.ImageDescriptor]
type BufferPool = ResourcePool[metadata.Buffer, metadata.BufferDescriptor]

type imageKind struct {
	device      metadata.Device
	extraFrames int
}

// NewImagePool builds the image pool over device.
func NewImagePool(device metadata.Device, cfg config.PoolConfig, arena *mem.FrameArena) *ImagePool {
	kind := &imageKind{device: device, extraFrames: cfg.ExtraFramesToKeep}
	return NewResourcePool[metadata.Image, metadata.ImageDescriptor](kind, arena, cfg.RetentionFrames)
}

func (k *imageKind) Name() string { return "image" }

func (k *imageKind) Create(desc metadata.ImageDescriptor) (metadata.Image, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if desc.Name == "" {
		desc.Name = "image-" + uuid.NewString()
	}
	img, err := k.device.CreateImage(desc)
	if err != nil {
		return nil, err
	}
	core.LogDebug("image pool: created %q %dx%d", desc.Name, desc.Width, desc.Height)
	return img, nil
}

func (k *imageKind) Destroy(img metadata.Image) {
	core.LogDebug("image pool: destroying %q", img.Label())
	k.device.DestroyImage(img)
}

func (k *imageKind) Describe(img metadata.Image) metadata.ImageDescriptor {
	return img.Descriptor()
}

// Matches compares everything but the name. Screen sized images may be
// served by a bigger idle image since passes render into a viewport of it.
func (k *imageKind) Matches(pooled, requested metadata.ImageDescriptor) bool {
	if pooled.Format != requested.Format ||
		pooled.Dimension != requested.Dimension ||
		pooled.Layers() != requested.Layers() ||
		pooled.HasMips != requested.HasMips ||
		pooled.AutoGenerateMips != requested.AutoGenerateMips ||
		pooled.Usage != requested.Usage ||
		pooled.EnableRandomWrite != requested.EnableRandomWrite ||
		pooled.IsScreenTexture != requested.IsScreenTexture {
		return false
	}
	if requested.IsScreenTexture {
		return pooled.Width >= requested.Width && pooled.Height >= requested.Height
	}
	return pooled.Width == requested.Width && pooled.Height == requested.Height
}

func (k *imageKind) ExtraFramesToKeep(metadata.ImageDescriptor) int {
	return k.extraFrames
}

type bufferKind struct {
	device        metadata.Device
	extraFrames   int
	readbackExtra int
}

// NewBufferPool builds the buffer pool over device.
func NewBufferPool(device metadata.Device, cfg config.PoolConfig, arena *mem.FrameArena) *BufferPool {
	kind := &bufferKind{
		device:        device,
		extraFrames:   cfg.ExtraFramesToKeep,
		readbackExtra: cfg.ReadbackExtraFrames,
	}
	return NewResourcePool[metadata.Buffer, metadata.BufferDescriptor](kind, arena, cfg.RetentionFrames)
}

func (k *bufferKind) Name() string { return "buffer" }

func (k *bufferKind) Create(desc metadata.BufferDescriptor) (metadata.Buffer, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if desc.Name == "" {
		desc.Name = "buffer-" + uuid.NewString()
	}
	buf, err := k.device.CreateBuffer(desc)
	if err != nil {
		return nil, err
	}
	core.LogDebug("buffer pool: created %q (%d bytes)", desc.Name, desc.Size())
	return buf, nil
}

func (k *bufferKind) Destroy(buf metadata.Buffer) {
	core.LogDebug("buffer pool: destroying %q", buf.Label())
	k.device.DestroyBuffer(buf)
}

func (k *bufferKind) Describe(buf metadata.Buffer) metadata.BufferDescriptor {
	return buf.Descriptor()
}

// Matches requires the same usage, which also keeps readback buffers and
// plain buffers apart, and the same stride. Buffers that take part in copies
// need the exact count; others may be served by a longer idle buffer.
func (k *bufferKind) Matches(pooled, requested metadata.BufferDescriptor) bool {
	if pooled.Usage != requested.Usage || pooled.Stride != requested.Stride {
		return false
	}
	if requested.IsCopyExact() {
		return pooled.Count == requested.Count
	}
	return pooled.Count >= requested.Count
}

func (k *bufferKind) ExtraFramesToKeep(desc metadata.BufferDescriptor) int {
	if desc.IsReadback() {
		return k.readbackExtra
	}
	return k.extraFrames
}

// applyPoolConfig swaps the retention policy of a pool built by NewImagePool
// or NewBufferPool.
func applyPoolConfig[T comparable, V any](p *ResourcePool[T, V], cfg config.PoolConfig) {
	p.SetRetentionFrames(cfg.RetentionFrames)
	switch k := any(p.kind).(type) {
	case *imageKind:
		k.extraFrames = cfg.ExtraFramesToKeep
	case *bufferKind:
		k.extraFrames = cfg.ExtraFramesToKeep
		k.readbackExtra = cfg.ReadbackExtraFrames
	}
}
