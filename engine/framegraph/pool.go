package framegraph

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/mem"
)

// ResourceKind supplies everything the pool needs to know about one kind of
// resource. T is the physical resource, V its descriptor.
type ResourceKind[T comparable, V any] interface {
	Name() string
	Create(desc V) (T, error)
	Destroy(res T)
	// Describe returns the descriptor of a resource the pool did not create.
	Describe(res T) V
	// Matches reports whether an idle pooled resource built from pooled can
	// stand in for a request for requested.
	Matches(pooled, requested V) bool
	// ExtraFramesToKeep is how many frames a released resource stays out of
	// reuse, so the GPU can finish with it.
	ExtraFramesToKeep(desc V) int
}

// PoolStats are the cumulative counters of a pool.
type PoolStats struct {
	Created   uint64
	Reused    uint64
	Destroyed uint64
	Handles   int
	Live      int
	Idle      int
}

// ResourcePool maps handles onto a pool of physical resources and computes,
// once per frame, at which pass each handle gets bound and at which pass its
// resource goes back to the pool.
//
// A frame goes through BeginFrame, then AllocatePass/ReleasePass for every
// pass in submission order, then EndFrame. Registration (GetResourceHandle,
// WriteResource, ReadResource, ...) is only legal outside that window and
// GetResource only inside it.
type ResourcePool[T comparable, V any] struct {
	kind            ResourceKind[T, V]
	arena           *mem.FrameArena
	retentionFrames int

	// Indexed by handle index.
	handles       *core.IdentifierPool[int]
	descriptors   []V
	resourceIndex []int
	createAtPass  []int
	freeAtPass    []int
	isAssigned    []bool
	isPersistent  []bool
	isReleasable  []bool
	isImported    []bool

	// Indexed by resource index.
	slots         *core.IdentifierPool[int]
	resources     []T
	resourceDescs []V
	lastFrameUsed []uint64
	isAvailable   []bool
	occupied      []bool
	imported      []bool

	importedHandles map[T]int

	toCreate    [][]int
	toFree      [][]int
	passCount   int
	frameIndex  uint64
	frameActive bool

	stats PoolStats
	frame core.PoolFrameStats
}

// NewResourcePool builds an empty pool. Idle resources are destroyed once
// they have not been used for more than retentionFrames frames. The arena is
// owned by the caller, which resets it between frames.
func NewResourcePool[T comparable, V any](kind ResourceKind[T, V], arena *mem.FrameArena, retentionFrames int) *ResourcePool[T, V] {
	if arena == nil {
		arena = mem.NewFrameArena()
	}
	return &ResourcePool[T, V]{
		kind:            kind,
		arena:           arena,
		retentionFrames: retentionFrames,
		handles:         core.NewIdentifierPool[int](),
		slots:           core.NewIdentifierPool[int](),
		importedHandles: make(map[T]int),
	}
}

func (p *ResourcePool[T, V]) SetRetentionFrames(frames int) {
	core.Assertf(frames >= 0, "%s pool retention must be >= 0, got %d", p.kind.Name(), frames)
	p.retentionFrames = frames
}

func (p *ResourcePool[T, V]) RetentionFrames() int {
	return p.retentionFrames
}

// GetResourceHandle reserves a handle for a resource described by desc. No
// physical resource exists until a pass writes the handle and the frame
// executes.
func (p *ResourcePool[T, V]) GetResourceHandle(desc V, persistent bool) ResourceHandle[T] {
	p.assertBuilding("request a handle")
	idx := p.acquireHandle()
	p.descriptors[idx] = desc
	p.isPersistent[idx] = persistent
	return newHandle[T](idx, persistent, false)
}

// ImportResource wraps a resource owned by someone else. Importing the same
// resource again returns the same handle.
func (p *ResourcePool[T, V]) ImportResource(res T) ResourceHandle[T] {
	p.assertBuilding("import a resource")
	if idx, ok := p.importedHandles[res]; ok {
		return newHandle[T](idx, false, true)
	}

	slot := p.acquireSlot()
	p.resources[slot] = res
	p.resourceDescs[slot] = p.kind.Describe(res)
	p.occupied[slot] = true
	p.imported[slot] = true
	p.isAvailable[slot] = false

	idx := p.acquireHandle()
	p.descriptors[idx] = p.resourceDescs[slot]
	p.resourceIndex[idx] = slot
	p.isAssigned[idx] = true
	p.isImported[idx] = true
	p.importedHandles[res] = idx
	return newHandle[T](idx, false, true)
}

// WriteResource declares that pass produces the resource, so it has to
// exist no later than pass. A write also counts as a use, which frees a
// resource nobody reads right after the pass that wrote it.
func (p *ResourcePool[T, V]) WriteResource(h ResourceHandle[T], pass int) {
	p.assertBuilding("write a resource")
	idx := p.checkHandle(h)
	core.Assertf(pass >= 0, "%s pass index %d is negative", p.kind.Name(), pass)
	if p.isImported[idx] {
		return
	}
	if !p.isPersistent[idx] || !p.isAssigned[idx] {
		p.createAtPass[idx] = minPass(p.createAtPass[idx], pass)
	}
	if !p.isPersistent[idx] || p.isReleasable[idx] {
		p.freeAtPass[idx] = max(p.freeAtPass[idx], pass)
	}
}

// ReadResource declares that pass consumes the resource, so it must not be
// released before pass has executed.
func (p *ResourcePool[T, V]) ReadResource(h ResourceHandle[T], pass int) {
	p.assertBuilding("read a resource")
	idx := p.checkHandle(h)
	core.Assertf(pass >= 0, "%s pass index %d is negative", p.kind.Name(), pass)
	if p.isImported[idx] {
		return
	}
	if p.isPersistent[idx] && !p.isReleasable[idx] {
		return
	}
	p.freeAtPass[idx] = max(p.freeAtPass[idx], pass)
}

// GetResource resolves a handle to the resource currently bound to it.
func (p *ResourcePool[T, V]) GetResource(h ResourceHandle[T]) T {
	core.Assertf(p.frameActive, "%s %v resolved outside of graph execution", p.kind.Name(), h)
	idx := p.checkHandle(h)
	r := p.resourceIndex[idx]
	core.Assertf(r >= 0, "%s %v is not bound at this point of the frame", p.kind.Name(), h)
	return p.resources[r]
}

// Descriptor returns the descriptor the handle was requested with.
func (p *ResourcePool[T, V]) Descriptor(h ResourceHandle[T]) V {
	return p.descriptors[p.checkHandle(h)]
}

// ReleasePersistentResource lets a persistent handle go. Its resource
// returns to the pool at the handle's next free point: the last pass that
// reads it in the next executed frame, or the end of that frame if nobody
// does. Releasing an imported handle forgets the import; the resource itself
// is left alone.
func (p *ResourcePool[T, V]) ReleasePersistentResource(h ResourceHandle[T]) {
	p.assertBuilding("release a persistent resource")
	idx := p.checkHandle(h)

	if p.isImported[idx] {
		slot := p.resourceIndex[idx]
		delete(p.importedHandles, p.resources[slot])
		p.clearSlot(slot)
		p.releaseHandle(idx)
		return
	}

	core.Assertf(p.isPersistent[idx], "%s %v is not persistent", p.kind.Name(), h)
	p.isReleasable[idx] = true
	if !p.isAssigned[idx] && p.createAtPass[idx] < 0 {
		// never materialized
		p.releaseHandle(idx)
	}
}

// AllocateFrameResources runs the whole sweep for a frame in one go. The
// graph interleaves the steps with pass execution instead.
func (p *ResourcePool[T, V]) AllocateFrameResources(passCount int, frameIndex uint64) error {
	p.BeginFrame(passCount, frameIndex)
	for i := 0; i < passCount; i++ {
		if err := p.AllocatePass(i); err != nil {
			p.EndFrame()
			return err
		}
		p.ReleasePass(i)
	}
	p.EndFrame()
	return nil
}

// BeginFrame turns the per-handle create/free passes into per-pass lists.
func (p *ResourcePool[T, V]) BeginFrame(passCount int, frameIndex uint64) {
	core.Assertf(!p.frameActive, "%s pool frame %d started twice", p.kind.Name(), frameIndex)
	p.frame = core.PoolFrameStats{}
	p.passCount = passCount
	p.frameIndex = frameIndex
	p.toCreate = p.arena.Schedule(passCount)
	p.toFree = p.arena.Schedule(passCount)

	for idx := 0; idx < p.handles.Len(); idx++ {
		if !p.handles.InUse(idx) || p.isImported[idx] {
			continue
		}
		create, free := p.createAtPass[idx], p.freeAtPass[idx]
		if p.isPersistent[idx] && p.isReleasable[idx] && p.isAssigned[idx] && free < 0 && passCount > 0 {
			free = passCount - 1
			p.freeAtPass[idx] = free
		}
		core.Assertf(create < passCount && free < passCount,
			"%s handle %d scheduled at pass %d/%d but the frame has %d passes", p.kind.Name(), idx, create, free, passCount)
		if create >= 0 && !p.isAssigned[idx] {
			p.arena.Push(p.toCreate, create, idx)
		}
		if free >= 0 {
			core.Assertf(create >= 0 || p.isAssigned[idx],
				"%s handle %d is read at pass %d but never written", p.kind.Name(), idx, free)
			p.arena.Push(p.toFree, free, idx)
		}
	}
	p.frameActive = true
}

// AllocatePass binds every handle first written by pass, reusing an idle
// resource when one matches and creating one otherwise.
func (p *ResourcePool[T, V]) AllocatePass(pass int) error {
	core.Assertf(p.frameActive, "%s pool allocating pass %d outside of a frame", p.kind.Name(), pass)
	for _, idx := range p.toCreate[pass] {
		if p.isAssigned[idx] {
			continue
		}
		desc := p.descriptors[idx]
		slot := p.findIdle(desc)
		if slot >= 0 {
			p.isAvailable[slot] = false
			p.stats.Reused++
			p.frame.Reused++
		} else {
			res, err := p.kind.Create(desc)
			if err != nil {
				core.LogError("%s pool: creating resource for handle %d at pass %d: %v", p.kind.Name(), idx, pass, err)
				return errors.Mark(errors.Wrapf(err, "%s handle %d at pass %d", p.kind.Name(), idx, pass), core.ErrResourceCreation)
			}
			slot = p.acquireSlot()
			p.resources[slot] = res
			p.resourceDescs[slot] = p.kind.Describe(res)
			p.occupied[slot] = true
			p.imported[slot] = false
			p.isAvailable[slot] = false
			p.lastFrameUsed[slot] = p.frameIndex
			p.stats.Created++
			p.frame.Created++
		}
		p.resourceIndex[idx] = slot
		p.isAssigned[idx] = true
	}
	return nil
}

// ReleasePass returns the resources whose last consumer was pass.
func (p *ResourcePool[T, V]) ReleasePass(pass int) {
	core.Assertf(p.frameActive, "%s pool releasing pass %d outside of a frame", p.kind.Name(), pass)
	for _, idx := range p.toFree[pass] {
		if !p.handles.InUse(idx) {
			continue
		}
		p.unbind(idx)
		p.releaseHandle(idx)
	}
}

// EndFrame returns whatever the sweep did not: handles nobody wrote or read,
// released persistent handles in a frame without passes, and everything
// still bound when a frame is cut short.
func (p *ResourcePool[T, V]) EndFrame() {
	core.Assertf(p.frameActive, "%s pool ending a frame that never began", p.kind.Name())
	for idx := 0; idx < p.handles.Len(); idx++ {
		if !p.handles.InUse(idx) || p.isImported[idx] {
			continue
		}
		if p.isPersistent[idx] && !p.isReleasable[idx] {
			p.createAtPass[idx] = -1
			p.freeAtPass[idx] = -1
			continue
		}
		p.unbind(idx)
		p.releaseHandle(idx)
	}
	p.toCreate = nil
	p.toFree = nil
	p.frameActive = false
}

// CleanupCurrentFrame destroys idle resources that have not been used for
// longer than the retention window.
func (p *ResourcePool[T, V]) CleanupCurrentFrame(frameIndex uint64) {
	core.Assertf(!p.frameActive, "%s pool cleaned up during a frame", p.kind.Name())
	for slot := 0; slot < len(p.resources); slot++ {
		if !p.occupied[slot] || p.imported[slot] || !p.isAvailable[slot] {
			continue
		}
		if p.lastFrameUsed[slot]+uint64(p.retentionFrames) < frameIndex {
			p.destroySlot(slot)
			p.frame.Destroyed++
		}
	}
}

// Shutdown destroys every resource the pool created, bound or not, and
// forgets all handles and imports.
func (p *ResourcePool[T, V]) Shutdown() {
	core.Assertf(!p.frameActive, "%s pool shut down during a frame", p.kind.Name())
	for slot := 0; slot < len(p.resources); slot++ {
		if p.occupied[slot] && !p.imported[slot] {
			p.destroySlot(slot)
		}
	}
	kind, arena, retention, stats := p.kind, p.arena, p.retentionFrames, p.stats
	*p = *NewResourcePool(kind, arena, retention)
	p.stats.Created, p.stats.Reused, p.stats.Destroyed = stats.Created, stats.Reused, stats.Destroyed
	core.LogDebug("%s pool shut down", kind.Name())
}

func (p *ResourcePool[T, V]) Stats() PoolStats {
	s := p.stats
	s.Handles = p.handles.Len() - p.handles.FreeCount()
	s.Live = p.ResourceCount()
	s.Idle = p.AvailableCount()
	return s
}

// FrameStats covers the current frame, from BeginFrame through cleanup.
func (p *ResourcePool[T, V]) FrameStats() core.PoolFrameStats {
	s := p.frame
	s.Live = p.ResourceCount()
	s.Idle = p.AvailableCount()
	return s
}

// ResourceCount is the number of physical resources the pool owns.
func (p *ResourcePool[T, V]) ResourceCount() int {
	n := 0
	for slot := range p.resources {
		if p.occupied[slot] && !p.imported[slot] {
			n++
		}
	}
	return n
}

// AvailableCount is the number of owned resources that are idle.
func (p *ResourcePool[T, V]) AvailableCount() int {
	n := 0
	for slot := range p.resources {
		if p.occupied[slot] && !p.imported[slot] && p.isAvailable[slot] {
			n++
		}
	}
	return n
}

// ResourceIndex is the physical slot bound to h, or -1.
func (p *ResourcePool[T, V]) ResourceIndex(h ResourceHandle[T]) int {
	return p.resourceIndex[p.checkHandle(h)]
}

func (p *ResourcePool[T, V]) IsResourceAvailable(slot int) bool {
	return slot >= 0 && slot < len(p.resources) && p.occupied[slot] && p.isAvailable[slot]
}

func (p *ResourcePool[T, V]) findIdle(desc V) int {
	for slot := 0; slot < len(p.resources); slot++ {
		if !p.occupied[slot] || p.imported[slot] || !p.isAvailable[slot] {
			continue
		}
		if p.lastFrameUsed[slot] > p.frameIndex {
			// still in flight
			continue
		}
		if p.kind.Matches(p.resourceDescs[slot], desc) {
			return slot
		}
	}
	return -1
}

func (p *ResourcePool[T, V]) unbind(idx int) {
	slot := p.resourceIndex[idx]
	if slot < 0 {
		return
	}
	p.isAvailable[slot] = true
	p.lastFrameUsed[slot] = p.frameIndex + uint64(p.kind.ExtraFramesToKeep(p.resourceDescs[slot]))
	p.resourceIndex[idx] = -1
	p.isAssigned[idx] = false
}

func (p *ResourcePool[T, V]) acquireHandle() int {
	idx, fresh := p.handles.Acquire()
	if fresh {
		var desc V
		p.descriptors = append(p.descriptors, desc)
		p.resourceIndex = append(p.resourceIndex, -1)
		p.createAtPass = append(p.createAtPass, -1)
		p.freeAtPass = append(p.freeAtPass, -1)
		p.isAssigned = append(p.isAssigned, false)
		p.isPersistent = append(p.isPersistent, false)
		p.isReleasable = append(p.isReleasable, false)
		p.isImported = append(p.isImported, false)
	}
	return idx
}

func (p *ResourcePool[T, V]) releaseHandle(idx int) {
	var desc V
	p.descriptors[idx] = desc
	p.resourceIndex[idx] = -1
	p.createAtPass[idx] = -1
	p.freeAtPass[idx] = -1
	p.isAssigned[idx] = false
	p.isPersistent[idx] = false
	p.isReleasable[idx] = false
	p.isImported[idx] = false
	if err := p.handles.Release(idx); err != nil {
		core.LogWarn("%s pool: %v", p.kind.Name(), err)
	}
}

// acquireSlot recycles an empty physical slot before growing the table.
func (p *ResourcePool[T, V]) acquireSlot() int {
	slot, fresh := p.slots.Acquire()
	if fresh {
		var res T
		var desc V
		p.resources = append(p.resources, res)
		p.resourceDescs = append(p.resourceDescs, desc)
		p.lastFrameUsed = append(p.lastFrameUsed, 0)
		p.isAvailable = append(p.isAvailable, false)
		p.occupied = append(p.occupied, false)
		p.imported = append(p.imported, false)
	}
	return slot
}

func (p *ResourcePool[T, V]) destroySlot(slot int) {
	p.kind.Destroy(p.resources[slot])
	p.stats.Destroyed++
	p.clearSlot(slot)
}

func (p *ResourcePool[T, V]) clearSlot(slot int) {
	var res T
	var desc V
	p.resources[slot] = res
	p.resourceDescs[slot] = desc
	p.lastFrameUsed[slot] = 0
	p.isAvailable[slot] = false
	p.occupied[slot] = false
	p.imported[slot] = false
	if err := p.slots.Release(slot); err != nil {
		core.LogWarn("%s pool: %v", p.kind.Name(), err)
	}
}

func (p *ResourcePool[T, V]) checkHandle(h ResourceHandle[T]) int {
	idx := h.Index()
	core.Assertf(h.IsValid() && p.handles.InUse(idx), "%s %v is not a live handle", p.kind.Name(), h)
	return idx
}

func (p *ResourcePool[T, V]) assertBuilding(what string) {
	core.Assertf(!p.frameActive, "cannot %s on the %s pool while the graph executes", what, p.kind.Name())
}

func minPass(current, pass int) int {
	if current < 0 || pass < current {
		return pass
	}
	return current
}
