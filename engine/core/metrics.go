package core

import (
	"time"

	"github.com/spaghettifunk/framegraph/engine/containers"
)

const AVG_COUNT int = 30

// PoolFrameStats counts what one resource pool did during a frame.
type PoolFrameStats struct {
	Created   int
	Reused    int
	Destroyed int
	Live      int
	Idle      int
}

// FrameStats is what the graph records after each executed frame.
type FrameStats struct {
	Frame    uint64
	Passes   int
	Duration time.Duration
	Images   PoolFrameStats
	Buffers  PoolFrameStats
}

// Metrics keeps the last AVG_COUNT frames of graph statistics.
type Metrics struct {
	frames *containers.RingQueue[FrameStats]
	total  uint64
}

func NewMetrics() *Metrics {
	return &Metrics{
		frames: containers.NewRingQueue[FrameStats](AVG_COUNT),
	}
}

func (m *Metrics) Record(stats FrameStats) {
	m.frames.Push(stats)
	m.total++
}

// Last returns the most recently recorded frame.
func (m *Metrics) Last() (FrameStats, bool) {
	var last FrameStats
	found := false
	m.frames.Each(func(s FrameStats) {
		last = s
		found = true
	})
	return last, found
}

// FramesRecorded is the number of frames ever recorded, not only the ones
// still in the window.
func (m *Metrics) FramesRecorded() uint64 {
	return m.total
}

// AverageFrameTime is the mean Execute duration over the window.
func (m *Metrics) AverageFrameTime() time.Duration {
	if m.frames.Len() == 0 {
		return 0
	}
	var sum time.Duration
	m.frames.Each(func(s FrameStats) {
		sum += s.Duration
	})
	return sum / time.Duration(m.frames.Len())
}

// Allocations sums the physical resources created over the window. A frame
// loop that reached a steady state reports zero here once the window has
// rolled past its warm-up frames.
func (m *Metrics) Allocations() int {
	total := 0
	m.frames.Each(func(s FrameStats) {
		total += s.Images.Created + s.Buffers.Created
	})
	return total
}
