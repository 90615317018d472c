// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpiocdev

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// deviceSubsystemFn reports the kernel subsystem of a character device
// node. A variable so the tests can substitute fake devices.
var deviceSubsystemFn = rawDeviceSubsystem

// devDir is where device nodes are enumerated from.
var devDir = "/dev"

// IsChipDevice reports whether path refers to a GPIO character device.
// Symlinks are resolved first, and the decision is made from kernel
// device metadata (the device's subsystem registration), not from the
// file name.
func IsChipDevice(path string) bool {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return false
	}
	sub, err := deviceSubsystemFn(resolved)
	return err == nil && sub == "gpio"
}

// ChipPaths enumerates the GPIO character devices present on the
// system, sorted by path. Symlinked aliases of the same device node
// are reported once, under the first alias encountered.
func ChipPaths() ([]string, error) {
	entries, err := os.ReadDir(devDir)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var paths []string
	for _, e := range entries {
		// Cheap prefilter; IsChipDevice makes the real decision.
		if !strings.HasPrefix(e.Name(), "gpiochip") {
			continue
		}
		p := filepath.Join(devDir, e.Name())
		resolved, err := filepath.EvalSymlinks(p)
		if err != nil || seen[resolved] {
			continue
		}
		if IsChipDevice(p) {
			seen[resolved] = true
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths, nil
}
