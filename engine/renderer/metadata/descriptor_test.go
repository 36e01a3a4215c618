package metadata

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/spaghettifunk/framegraph/engine/core"
)

func TestImageDescriptor_MipLevelCount(t *testing.T) {
	tests := []struct {
		name string
		desc ImageDescriptor
		want uint32
	}{
		{"no mips", ImageDescriptor{Width: 512, Height: 512}, 1},
		{"square power of two", ImageDescriptor{Width: 512, Height: 512, HasMips: true}, 10},
		{"non square", ImageDescriptor{Width: 1920, Height: 1080, HasMips: true}, 11},
		{"one texel", ImageDescriptor{Width: 1, Height: 1, HasMips: true}, 1},
		{
			"volume uses depth",
			ImageDescriptor{Width: 4, Height: 4, DepthOrArrayLayers: 64, Dimension: gputypes.TextureDimension3D, HasMips: true},
			7,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.desc.MipLevelCount(); got != tt.want {
				t.Errorf("MipLevelCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestImageDescriptor_Validate(t *testing.T) {
	valid := ImageDescriptor{Width: 8, Height: 8, Format: gputypes.TextureFormatRGBA8Unorm}

	tests := []struct {
		name    string
		mutate  func(*ImageDescriptor)
		wantErr bool
	}{
		{"valid", func(*ImageDescriptor) {}, false},
		{"zero width", func(d *ImageDescriptor) { d.Width = 0 }, true},
		{"undefined format", func(d *ImageDescriptor) { d.Format = gputypes.TextureFormatUndefined }, true},
		{"auto mips without mips", func(d *ImageDescriptor) { d.AutoGenerateMips = true }, true},
		{"auto mips with mips", func(d *ImageDescriptor) { d.AutoGenerateMips = true; d.HasMips = true }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid
			tt.mutate(&d)
			err := d.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, core.ErrInvalidDescriptor) {
				t.Errorf("Validate() error = %v, want ErrInvalidDescriptor", err)
			}
		})
	}
}

func TestBufferDescriptor(t *testing.T) {
	readback := BufferDescriptor{Count: 4, Stride: 16, Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst}
	if !readback.IsReadback() {
		t.Error("IsReadback() = false for a MapRead buffer")
	}
	if !readback.IsCopyExact() {
		t.Error("IsCopyExact() = false for a CopyDst buffer")
	}
	if readback.Size() != 64 {
		t.Errorf("Size() = %d, want 64", readback.Size())
	}

	storage := BufferDescriptor{Count: 4, Stride: 16, Usage: gputypes.BufferUsageStorage}
	if storage.IsReadback() || storage.IsCopyExact() {
		t.Error("storage buffer reported readback or copy-exact")
	}

	if err := (BufferDescriptor{Stride: 4}).Validate(); !errors.Is(err, core.ErrInvalidDescriptor) {
		t.Errorf("Validate() on zero count = %v, want ErrInvalidDescriptor", err)
	}
}
