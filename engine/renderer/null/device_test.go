package null

import (
	"slices"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

func TestDeviceCounts(t *testing.T) {
	d := NewDevice()
	img, err := d.CreateImage(metadata.ImageDescriptor{
		Name: "a", Width: 4, Height: 4,
		Format:    gputypes.TextureFormatR8Unorm,
		Dimension: gputypes.TextureDimension2D,
	})
	if err != nil {
		t.Fatalf("CreateImage() error = %v", err)
	}
	buf, err := d.CreateBuffer(metadata.BufferDescriptor{Name: "b", Count: 3, Stride: 8})
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	if got := len(buf.(*Buffer).Data); got != 24 {
		t.Errorf("len(Data) = %d, want 24", got)
	}
	if d.LiveImages() != 1 || d.LiveBuffers() != 1 {
		t.Errorf("LiveImages(), LiveBuffers() = %d, %d; want 1, 1", d.LiveImages(), d.LiveBuffers())
	}

	d.DestroyImage(img)
	d.DestroyBuffer(buf)
	if d.LiveImages() != 0 || d.LiveBuffers() != 0 {
		t.Errorf("LiveImages(), LiveBuffers() = %d, %d; want 0, 0", d.LiveImages(), d.LiveBuffers())
	}
}

func TestDeviceRejectsInvalidDescriptors(t *testing.T) {
	d := NewDevice()
	if _, err := d.CreateImage(metadata.ImageDescriptor{Width: 4}); !errors.Is(err, core.ErrInvalidDescriptor) {
		t.Errorf("CreateImage() error = %v, want ErrInvalidDescriptor", err)
	}
	if _, err := d.CreateBuffer(metadata.BufferDescriptor{Count: 1}); !errors.Is(err, core.ErrInvalidDescriptor) {
		t.Errorf("CreateBuffer() error = %v, want ErrInvalidDescriptor", err)
	}
	if d.ImagesCreated != 0 || d.BuffersCreated != 0 {
		t.Error("invalid descriptors were counted as created")
	}
}

func TestDoubleDestroyPanics(t *testing.T) {
	d := NewDevice()
	buf, _ := d.CreateBuffer(metadata.BufferDescriptor{Count: 1, Stride: 1})
	d.DestroyBuffer(buf)
	defer func() {
		if recover() == nil {
			t.Error("second DestroyBuffer did not panic")
		}
	}()
	d.DestroyBuffer(buf)
}

func TestCommandListNesting(t *testing.T) {
	c := NewCommandList()
	c.BeginSample("outer")
	c.BeginSample("inner")
	c.Record("draw %d", 3)
	c.EndSample("inner")
	c.GenerateMips(NewExternalImage(metadata.ImageDescriptor{Name: "bloom"}))
	c.EndSample("outer")

	want := []string{
		"begin outer",
		"  begin inner",
		"    draw 3",
		"  end inner",
		"  mips bloom",
		"end outer",
	}
	if !slices.Equal(c.Commands, want) {
		t.Errorf("Commands = %v, want %v", c.Commands, want)
	}
	c.Reset()
	if len(c.Commands) != 0 {
		t.Errorf("len(Commands) = %d after Reset, want 0", len(c.Commands))
	}
}
