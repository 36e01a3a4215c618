package metadata

// Device creates and destroys the physical resources the frame graph pools.
// Implementations receive validated descriptors with a non-empty Name.
type Device interface {
	CreateImage(desc ImageDescriptor) (Image, error)
	DestroyImage(image Image)
	CreateBuffer(desc BufferDescriptor) (Buffer, error)
	DestroyBuffer(buffer Buffer)
}

// CommandList receives the commands the graph itself emits around passes.
// Whatever a pass records beyond that is up to the pass.
type CommandList interface {
	BeginSample(name string)
	EndSample(name string)
	GenerateMips(image Image)
}
