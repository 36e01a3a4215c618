package framegraph

import (
	"slices"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"

	"github.com/spaghettifunk/framegraph/engine/config"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/mem"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
	"github.com/spaghettifunk/framegraph/engine/renderer/null"
)

func newTestGraph(t *testing.T, cfg config.GraphConfig, opts ...GraphOption) (*RenderGraph, *null.Device) {
	t.Helper()
	dev := null.NewDevice()
	g, err := NewRenderGraph(dev, cfg, opts...)
	if err != nil {
		t.Fatalf("NewRenderGraph() error = %v", err)
	}
	return g, dev
}

func TestNewRenderGraphRejectsBadInput(t *testing.T) {
	if _, err := NewRenderGraph(nil, config.Default()); err == nil {
		t.Error("NewRenderGraph(nil) error = nil, want error")
	}
	cfg := config.Default()
	cfg.Images.RetentionFrames = -1
	if _, err := NewRenderGraph(null.NewDevice(), cfg); !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("NewRenderGraph() error = %v, want ErrInvalidConfig", err)
	}
}

func TestExecuteRunsPassesInOrder(t *testing.T) {
	g, _ := newTestGraph(t, config.Default())
	cmd := null.NewCommandList()

	color := g.GetImage(colorTarget(640, 480))
	lightList := storageBuffer(32)
	lightList.Name = "light-list"
	lights := g.GetBuffer(lightList)

	upload := g.AddPass("upload")
	upload.WriteBuffer("lights", lights)
	upload.SetRenderFunc(func(cmd metadata.CommandList, ctx *PassContext) error {
		cmd.(*null.CommandList).Record("fill %s", ctx.BufferByName("lights").Label())
		return nil
	})

	shade := g.AddPass("shade")
	shade.ReadBuffer("lights", lights)
	shade.WriteImage(color)
	shade.SetRenderFunc(func(cmd metadata.CommandList, ctx *PassContext) error {
		if ctx.PassIndex() != 1 || ctx.PassName() != "shade" {
			t.Errorf("PassIndex(), PassName() = %d, %q; want 1, shade", ctx.PassIndex(), ctx.PassName())
		}
		cmd.(*null.CommandList).Record("draw into %dx%d", ctx.Image(color).Descriptor().Width, ctx.Image(color).Descriptor().Height)
		return nil
	})

	present := g.AddPass("present")
	present.ReadImage(color, AllMips, AllSlices)
	present.SetRenderFunc(func(cmd metadata.CommandList, ctx *PassContext) error {
		reads := ctx.ImageReads()
		if len(reads) != 1 || reads[0].Handle != color || reads[0].Mip != AllMips {
			t.Errorf("ImageReads() = %+v, want one read of the color target", reads)
		}
		cmd.(*null.CommandList).Record("blit")
		return nil
	})

	if err := g.Execute(cmd); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := []string{
		"begin upload",
		"  fill light-list",
		"end upload",
		"begin shade",
		"  draw into 640x480",
		"end shade",
		"begin present",
		"  blit",
		"end present",
	}
	if !slices.Equal(cmd.Commands, want) {
		t.Errorf("commands =\n%v\nwant\n%v", cmd.Commands, want)
	}
	if g.PassCount() != 0 {
		t.Errorf("PassCount() = %d after Execute, want 0", g.PassCount())
	}
	if g.FrameIndex() != 1 {
		t.Errorf("FrameIndex() = %d, want 1", g.FrameIndex())
	}
}

func TestAutoGenerateMips(t *testing.T) {
	g, _ := newTestGraph(t, config.Default())
	cmd := null.NewCommandList()

	desc := colorTarget(256, 256)
	desc.Name = "bloom"
	desc.HasMips = true
	desc.AutoGenerateMips = true
	bloom := g.GetImage(desc)
	plain := g.GetImage(colorTarget(256, 256))

	var built *null.Image
	p := g.AddPass("downsample")
	p.WriteImage(bloom)
	p.WriteImage(plain)
	p.SetRenderFunc(func(cmd metadata.CommandList, ctx *PassContext) error {
		built = ctx.Image(bloom).(*null.Image)
		return nil
	})

	if err := g.Execute(cmd); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	want := []string{"begin downsample", "  mips bloom", "end downsample"}
	if !slices.Equal(cmd.Commands, want) {
		t.Errorf("commands = %v, want %v", cmd.Commands, want)
	}
	if built.MipsBuilt != 1 {
		t.Errorf("MipsBuilt = %d, want 1", built.MipsBuilt)
	}
}

func TestGraphSteadyState(t *testing.T) {
	g, dev := newTestGraph(t, config.Default())
	cmd := null.NewCommandList()
	backbuffer := null.NewExternalImage(colorTarget(1920, 1080))

	buildFrame := func() {
		depth := g.GetImage(metadata.ImageDescriptor{
			Width: 1920, Height: 1080, Format: gputypes.TextureFormatDepth24PlusStencil8,
			Dimension: gputypes.TextureDimension2D, Usage: gputypes.TextureUsageRenderAttachment,
			IsScreenTexture: true,
		})
		hdr := g.GetImage(colorTarget(1920, 1080))
		readback := g.GetBuffer(readbackBuffer(1))
		out := g.ImportImage(backbuffer)

		p := g.AddPass("opaque")
		p.WriteImage(depth)
		p.WriteImage(hdr)
		p = g.AddPass("exposure")
		p.ReadImage(hdr, 0, 0)
		p.WriteBuffer("result", readback)
		p = g.AddPass("tonemap")
		p.ReadImage(hdr, 0, 0)
		p.ReadImage(depth, 0, 0)
		p.WriteImage(out)
	}

	var created []int
	for frame := 0; frame < 8; frame++ {
		buildFrame()
		if err := g.Execute(cmd); err != nil {
			t.Fatalf("frame %d: Execute() error = %v", frame, err)
		}
		created = append(created, dev.ImagesCreated+dev.BuffersCreated)
	}

	// readback buffers stay in flight for three extra frames
	for frame := 4; frame < len(created); frame++ {
		if created[frame] != created[3] {
			t.Errorf("frame %d: created = %d, want steady %d", frame, created[frame], created[3])
		}
	}
	if last, _ := g.Metrics().Last(); last.Images.Created != 0 || last.Buffers.Created != 0 {
		t.Errorf("last frame stats = %+v, want no creations", last)
	}
	if dev.ImagesCreated != 2 {
		t.Errorf("ImagesCreated = %d, want 2", dev.ImagesCreated)
	}
}

func TestExecutePhaseIsEnforced(t *testing.T) {
	g, _ := newTestGraph(t, config.Default())
	h := g.GetImage(colorTarget(16, 16))
	expectAssertion(t, func() { g.Image(h) })

	p := g.AddPass("misbehaving")
	p.WriteImage(h)
	p.SetRenderFunc(func(metadata.CommandList, *PassContext) error {
		if !g.IsExecuting() {
			t.Error("IsExecuting() = false inside a pass")
		}
		expectAssertion(t, func() { g.AddPass("late") })
		expectAssertion(t, func() { g.GetImage(colorTarget(16, 16)) })
		expectAssertion(t, func() { p.ReadImage(h, 0, 0) })
		return nil
	})
	if err := g.Execute(null.NewCommandList()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if g.IsExecuting() {
		t.Error("IsExecuting() = true after Execute")
	}
}

func TestCreationFailureAbortsFrame(t *testing.T) {
	g, dev := newTestGraph(t, config.Default())
	cmd := null.NewCommandList()

	ok := g.GetImage(colorTarget(8, 8))
	broken := g.GetImage(colorTarget(8, 8))
	ran := []string{}
	for i, h := range []ImageHandle{ok, broken} {
		p := g.AddPass([]string{"first", "second"}[i])
		p.WriteImage(h)
		p.SetRenderFunc(func(_ metadata.CommandList, ctx *PassContext) error {
			ran = append(ran, ctx.PassName())
			return nil
		})
	}
	// the first pass frees its image, so the second would reuse it; keep it
	// bound so the second pass has to create
	g.passes[1].ReadImage(ok, 0, 0)

	calls := 0
	dev.FailCreate = func(string) error {
		calls++
		if calls == 2 {
			return errors.New("device lost")
		}
		return nil
	}

	err := g.Execute(cmd)
	if !errors.Is(err, core.ErrResourceCreation) {
		t.Fatalf("Execute() error = %v, want ErrResourceCreation", err)
	}
	if !slices.Equal(ran, []string{"first"}) {
		t.Errorf("passes run = %v, want [first]", ran)
	}
	if g.IsExecuting() || g.PassCount() != 0 {
		t.Errorf("IsExecuting(), PassCount() = %v, %d after abort; want false, 0", g.IsExecuting(), g.PassCount())
	}
	if g.FrameIndex() != 0 {
		t.Errorf("FrameIndex() = %d after abort, want 0", g.FrameIndex())
	}
	if got := g.ImagePool().AvailableCount(); got != 1 {
		t.Errorf("AvailableCount() = %d, want the first image back in the pool", got)
	}

	dev.FailCreate = nil
	h := g.GetImage(colorTarget(8, 8))
	g.AddPass("retry").WriteImage(h)
	if err := g.Execute(cmd); err != nil {
		t.Errorf("Execute() after abort error = %v", err)
	}
}

func TestRenderFuncErrorStopsFrame(t *testing.T) {
	g, _ := newTestGraph(t, config.Default())
	cmd := null.NewCommandList()
	boom := errors.New("boom")

	g.AddPass("fails").SetRenderFunc(func(metadata.CommandList, *PassContext) error { return boom })
	g.AddPass("never").SetRenderFunc(func(metadata.CommandList, *PassContext) error {
		t.Error("pass after a failing one ran")
		return nil
	})

	if err := g.Execute(cmd); !errors.Is(err, boom) {
		t.Errorf("Execute() error = %v, want boom", err)
	}
	want := []string{"begin fails", "end fails"}
	if !slices.Equal(cmd.Commands, want) {
		t.Errorf("commands = %v, want %v", cmd.Commands, want)
	}
}

func TestCaptureFreezesFrameCounter(t *testing.T) {
	g, _ := newTestGraph(t, config.Default(), WithStartFrame(10))
	cmd := null.NewCommandList()

	g.SetCaptureActive(true)
	for i := 0; i < 3; i++ {
		if err := g.Execute(cmd); err != nil {
			t.Fatal(err)
		}
	}
	if g.FrameIndex() != 10 {
		t.Errorf("FrameIndex() = %d while capturing, want 10", g.FrameIndex())
	}
	g.SetCaptureActive(false)
	if err := g.Execute(cmd); err != nil {
		t.Fatal(err)
	}
	if g.FrameIndex() != 11 {
		t.Errorf("FrameIndex() = %d, want 11", g.FrameIndex())
	}
}

func TestPassData(t *testing.T) {
	g, _ := newTestGraph(t, config.Default())

	type blurData struct {
		Source ImageHandle
		Radius int
	}
	src := g.GetImage(colorTarget(32, 32))
	g.AddPass("source").WriteImage(src)

	pass, data := AddPassWithData[blurData](g, "blur")
	data.Source = src
	data.Radius = 3
	pass.ReadImage(src, 0, AllSlices)

	var radius int
	pass.SetRenderFunc(func(_ metadata.CommandList, ctx *PassContext) error {
		d := PassData[blurData](ctx)
		radius = d.Radius
		if ctx.Image(d.Source) == nil {
			t.Error("Image(Source) = nil")
		}
		return nil
	})
	if err := g.Execute(null.NewCommandList()); err != nil {
		t.Fatal(err)
	}
	if radius != 3 {
		t.Errorf("Radius = %d, want 3", radius)
	}
}

func TestSideChannelAcrossFrames(t *testing.T) {
	g, _ := newTestGraph(t, config.Default())
	cmd := null.NewCommandList()

	type shadowInfo struct{ Cascades int }
	SetResource(g.Resources(), shadowInfo{Cascades: 4}, false)
	g.AddPass("consumer").SetRenderFunc(func(_ metadata.CommandList, ctx *PassContext) error {
		if got := GetResource[shadowInfo](ctx.Resources()); got.Cascades != 4 {
			t.Errorf("Cascades = %d, want 4", got.Cascades)
		}
		return nil
	})
	if err := g.Execute(cmd); err != nil {
		t.Fatal(err)
	}

	if _, ok := TryGetResource[shadowInfo](g.Resources()); ok {
		t.Error("side channel value survived into the next frame")
	}
}

func TestPersistentImageThroughGraph(t *testing.T) {
	cfg := config.Default()
	cfg.Images.RetentionFrames = 0
	g, dev := newTestGraph(t, cfg)
	cmd := null.NewCommandList()

	history := g.GetPersistentImage(colorTarget(64, 64))
	var first metadata.Image
	for frame := 0; frame < 5; frame++ {
		p := g.AddPass("taa")
		p.ReadImage(history, 0, 0)
		p.WriteImage(history)
		p.SetRenderFunc(func(_ metadata.CommandList, ctx *PassContext) error {
			img := ctx.Image(history)
			if first == nil {
				first = img
			} else if img != first {
				t.Errorf("frame %d: history rebound", ctx.FrameIndex())
			}
			return nil
		})
		if err := g.Execute(cmd); err != nil {
			t.Fatal(err)
		}
	}
	if dev.LiveImages() != 1 {
		t.Fatalf("LiveImages() = %d, want 1", dev.LiveImages())
	}

	g.ReleasePersistentImage(history)
	if err := g.Execute(cmd); err != nil {
		t.Fatal(err)
	}
	if err := g.Execute(cmd); err != nil {
		t.Fatal(err)
	}
	if dev.LiveImages() != 0 {
		t.Errorf("LiveImages() = %d after release, want 0", dev.LiveImages())
	}
}

func TestApplyConfig(t *testing.T) {
	arena := mem.NewFrameArena()
	g, _ := newTestGraph(t, config.Default(), WithArena(arena))

	next := config.Default()
	next.Images.RetentionFrames = 12
	next.CaptureActive = true
	if err := g.ApplyConfig(next); err != nil {
		t.Fatalf("ApplyConfig() error = %v", err)
	}
	if got := g.ImagePool().RetentionFrames(); got != 12 {
		t.Errorf("RetentionFrames() = %d, want 12", got)
	}
	if err := g.Execute(null.NewCommandList()); err != nil {
		t.Fatal(err)
	}
	if g.FrameIndex() != 0 {
		t.Errorf("FrameIndex() = %d with capture from config, want 0", g.FrameIndex())
	}

	bad := config.Default()
	bad.Buffers.ReadbackExtraFrames = -1
	if err := g.ApplyConfig(bad); !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("ApplyConfig() error = %v, want ErrInvalidConfig", err)
	}
	if g.Config() != next {
		t.Error("a rejected config replaced the active one")
	}
}

func TestGraphShutdown(t *testing.T) {
	g, dev := newTestGraph(t, config.Default())
	persistent := g.GetPersistentBuffer(storageBuffer(8))
	transient := g.GetImage(colorTarget(8, 8))
	p := g.AddPass("p")
	p.WriteBuffer("b", persistent)
	p.WriteImage(transient)
	if err := g.Execute(null.NewCommandList()); err != nil {
		t.Fatal(err)
	}

	stats := g.Stats()
	if stats.Buffers.Live != 1 || stats.Images.Idle != 1 || stats.Frame != 1 {
		t.Errorf("Stats() = %+v, want 1 live buffer, 1 idle image, frame 1", stats)
	}

	g.Shutdown()
	if dev.LiveImages() != 0 || dev.LiveBuffers() != 0 {
		t.Errorf("live images, buffers = %d, %d after Shutdown; want 0, 0", dev.LiveImages(), dev.LiveBuffers())
	}
}
