package framegraph

import (
	"io"
	"os"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/spaghettifunk/framegraph/engine/config"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/mem"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
	"github.com/spaghettifunk/framegraph/engine/renderer/null"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

type fixture struct {
	dev     *null.Device
	arena   *mem.FrameArena
	images  *ImagePool
	buffers *BufferPool
}

func newFixture(cfg config.GraphConfig) *fixture {
	dev := null.NewDevice()
	arena := mem.NewFrameArena()
	return &fixture{
		dev:     dev,
		arena:   arena,
		images:  NewImagePool(dev, cfg.Images, arena),
		buffers: NewBufferPool(dev, cfg.Buffers, arena),
	}
}

// runFrame steps a pool through one frame. during runs after the pass's
// resources are bound and before the ones it frees are released.
func runFrame[T comparable, V any](t *testing.T, f *fixture, p *ResourcePool[T, V], passCount int, frame uint64, during func(pass int)) {
	t.Helper()
	f.arena.Reset()
	p.BeginFrame(passCount, frame)
	for i := 0; i < passCount; i++ {
		if err := p.AllocatePass(i); err != nil {
			t.Fatalf("AllocatePass(%d) error = %v", i, err)
		}
		if during != nil {
			during(i)
		}
		p.ReleasePass(i)
	}
	p.EndFrame()
}

func expectAssertion(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected an assertion failure, got none")
		}
		if !core.IsAssertionFailure(r) {
			t.Fatalf("recovered %v, want an assertion failure", r)
		}
	}()
	fn()
}

func colorTarget(w, h uint32) metadata.ImageDescriptor {
	return metadata.ImageDescriptor{
		Width:     w,
		Height:    h,
		Format:    gputypes.TextureFormatRGBA8Unorm,
		Dimension: gputypes.TextureDimension2D,
		Usage:     gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding,
	}
}

func storageBuffer(count uint32) metadata.BufferDescriptor {
	return metadata.BufferDescriptor{
		Count:  count,
		Stride: 16,
		Usage:  gputypes.BufferUsageStorage,
	}
}

func readbackBuffer(count uint32) metadata.BufferDescriptor {
	return metadata.BufferDescriptor{
		Count:  count,
		Stride: 4,
		Usage:  gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	}
}

func imageID(img metadata.Image) uint64 {
	return img.(*null.Image).ID
}
