package engine

import (
	"github.com/spaghettifunk/framegraph/engine/core"
)

type ApplicationConfig struct {
	// Backbuffer starting width.
	StartWidth uint32
	// Backbuffer starting height.
	StartHeight uint32
	// The application name, used for the device and in logs.
	Name     string
	LogLevel core.LogLevel
	// Frames per second Run aims for. Zero runs unthrottled.
	TargetFrameRate uint32
}
