// Package config holds the tunables of the frame graph. They are read from a
// TOML file and may be swapped between frames.
package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/framegraph/engine/core"
)

/**
 * @brief Retention policy of one resource pool. All values are in frames.
 */
type PoolConfig struct {
	/** @brief How long an idle physical resource survives before it is destroyed. */
	RetentionFrames int `toml:"retention_frames"`
	/** @brief Frames a released resource stays out of reuse, to cover GPU latency. */
	ExtraFramesToKeep int `toml:"extra_frames_to_keep"`
	/** @brief Same as ExtraFramesToKeep, for buffers the CPU reads back. */
	ReadbackExtraFrames int `toml:"readback_extra_frames"`
}

type GraphConfig struct {
	/** @brief One of debug, info, warn, error, fatal. */
	LogLevel string `toml:"log_level"`
	/** @brief Set while a frame capture tool is attached. Freezes the frame counter. */
	CaptureActive bool       `toml:"capture_active"`
	Images        PoolConfig `toml:"images"`
	Buffers       PoolConfig `toml:"buffers"`
}

// Default matches a renderer with three frames in flight.
func Default() GraphConfig {
	return GraphConfig{
		LogLevel: "info",
		Images: PoolConfig{
			RetentionFrames:     3,
			ExtraFramesToKeep:   0,
			ReadbackExtraFrames: 0,
		},
		Buffers: PoolConfig{
			RetentionFrames:     3,
			ExtraFramesToKeep:   0,
			ReadbackExtraFrames: 3,
		},
	}
}

// Parse decodes a TOML document on top of the defaults, so a file only needs
// to name what it changes.
func Parse(data []byte) (GraphConfig, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return GraphConfig{}, errors.Wrap(errors.Mark(err, core.ErrInvalidConfig), "decoding graph config")
	}
	if err := cfg.Validate(); err != nil {
		return GraphConfig{}, err
	}
	return cfg, nil
}

func Load(path string) (GraphConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GraphConfig{}, errors.Wrapf(err, "reading graph config %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return GraphConfig{}, errors.Wrapf(err, "loading %s", path)
	}
	return cfg, nil
}

// Marshal encodes the config back to TOML.
func (c GraphConfig) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

func (c GraphConfig) Validate() error {
	if _, err := core.ParseLogLevel(c.LogLevel); err != nil {
		return errors.Wrapf(core.ErrInvalidConfig, "log_level %q: %v", c.LogLevel, err)
	}
	if err := c.Images.validate("images"); err != nil {
		return err
	}
	return c.Buffers.validate("buffers")
}

func (p PoolConfig) validate(section string) error {
	switch {
	case p.RetentionFrames < 0:
		return errors.Wrapf(core.ErrInvalidConfig, "%s.retention_frames must be >= 0, got %d", section, p.RetentionFrames)
	case p.ExtraFramesToKeep < 0:
		return errors.Wrapf(core.ErrInvalidConfig, "%s.extra_frames_to_keep must be >= 0, got %d", section, p.ExtraFramesToKeep)
	case p.ReadbackExtraFrames < 0:
		return errors.Wrapf(core.ErrInvalidConfig, "%s.readback_extra_frames must be >= 0, got %d", section, p.ReadbackExtraFrames)
	}
	return nil
}
