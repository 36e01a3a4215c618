//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the testbed on the null device for a fixed number of frames.
func (Run) Testbed() error {
	fmt.Println("Run testbed...")
	if _, err := executeCmd("go", withArgs("run", ".", "-frames", "300"), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the testbed until interrupted, reloading the given configuration.
func (Run) Watch(configPath string) error {
	if _, err := executeCmd("go", withArgs("run", ".", "-config", configPath, "-watch"), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the testbed on a Vulkan device with validation layers.
func (Run) Vulkan() error {
	if _, err := executeCmd("go", withArgs("run", ".", "-device", "vulkan", "-debug", "-frames", "300"), withStream()); err != nil {
		return err
	}
	return nil
}
