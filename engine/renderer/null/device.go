// Package null implements a Device that keeps resources in host memory only.
// It backs the tests and the testbed, where no GPU is around.
package null

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

type Image struct {
	ID        uint64
	desc      metadata.ImageDescriptor
	Destroyed bool
	MipsBuilt int
}

func (i *Image) Label() string                        { return i.desc.Name }
func (i *Image) Descriptor() metadata.ImageDescriptor { return i.desc }

type Buffer struct {
	ID        uint64
	desc      metadata.BufferDescriptor
	Data      []byte
	Destroyed bool
}

func (b *Buffer) Label() string                         { return b.desc.Name }
func (b *Buffer) Descriptor() metadata.BufferDescriptor { return b.desc }

// Device counts every construction and destruction so tests can assert on
// pooling behaviour.
type Device struct {
	nextID uint64

	ImagesCreated    int
	ImagesDestroyed  int
	BuffersCreated   int
	BuffersDestroyed int

	// FailCreate, when set, is consulted before every construction.
	FailCreate func(name string) error
}

func NewDevice() *Device {
	return &Device{}
}

func (d *Device) CreateImage(desc metadata.ImageDescriptor) (metadata.Image, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if d.FailCreate != nil {
		if err := d.FailCreate(desc.Name); err != nil {
			return nil, errors.Wrapf(err, "creating image %q", desc.Name)
		}
	}
	d.nextID++
	d.ImagesCreated++
	core.LogDebug("null device: created image %q (%dx%d, %d mips)", desc.Name, desc.Width, desc.Height, desc.MipLevelCount())
	return &Image{ID: d.nextID, desc: desc}, nil
}

func (d *Device) DestroyImage(image metadata.Image) {
	img, ok := image.(*Image)
	if !ok {
		panic(fmt.Sprintf("null device: cannot destroy foreign image %T", image))
	}
	if img.Destroyed {
		panic(fmt.Sprintf("null device: image %q destroyed twice", img.Label()))
	}
	img.Destroyed = true
	d.ImagesDestroyed++
}

func (d *Device) CreateBuffer(desc metadata.BufferDescriptor) (metadata.Buffer, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if d.FailCreate != nil {
		if err := d.FailCreate(desc.Name); err != nil {
			return nil, errors.Wrapf(err, "creating buffer %q", desc.Name)
		}
	}
	d.nextID++
	d.BuffersCreated++
	core.LogDebug("null device: created buffer %q (%d bytes)", desc.Name, desc.Size())
	return &Buffer{ID: d.nextID, desc: desc, Data: make([]byte, desc.Size())}, nil
}

func (d *Device) DestroyBuffer(buffer metadata.Buffer) {
	buf, ok := buffer.(*Buffer)
	if !ok {
		panic(fmt.Sprintf("null device: cannot destroy foreign buffer %T", buffer))
	}
	if buf.Destroyed {
		panic(fmt.Sprintf("null device: buffer %q destroyed twice", buf.Label()))
	}
	buf.Destroyed = true
	buf.Data = nil
	d.BuffersDestroyed++
}

// LiveImages is the number of images created and not yet destroyed.
func (d *Device) LiveImages() int {
	return d.ImagesCreated - d.ImagesDestroyed
}

// LiveBuffers is the number of buffers created and not yet destroyed.
func (d *Device) LiveBuffers() int {
	return d.BuffersCreated - d.BuffersDestroyed
}

// NewExternalImage builds an image the device does not own, the way a
// swapchain image would be handed to the graph.
func NewExternalImage(desc metadata.ImageDescriptor) *Image {
	return &Image{desc: desc}
}

// NewExternalBuffer is NewExternalImage for buffers.
func NewExternalBuffer(desc metadata.BufferDescriptor) *Buffer {
	return &Buffer{desc: desc, Data: make([]byte, desc.Size())}
}

// CommandList records every command as a line of text.
type CommandList struct {
	Commands []string
	depth    int
}

func NewCommandList() *CommandList {
	return &CommandList{}
}

func (c *CommandList) BeginSample(name string) {
	c.Record("begin %s", name)
	c.depth++
}

func (c *CommandList) EndSample(name string) {
	c.depth--
	c.Record("end %s", name)
}

func (c *CommandList) GenerateMips(image metadata.Image) {
	if img, ok := image.(*Image); ok {
		img.MipsBuilt++
	}
	c.Record("mips %s", image.Label())
}

// Record appends a free-form command; passes use it in place of real draws.
func (c *CommandList) Record(format string, args ...interface{}) {
	c.Commands = append(c.Commands, strings.Repeat("  ", c.depth)+fmt.Sprintf(format, args...))
}

// Reset drops recorded commands so the list can be reused next frame.
func (c *CommandList) Reset() {
	c.Commands = c.Commands[:0]
	c.depth = 0
}
