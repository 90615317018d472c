//go:build !linux

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.
//
// The GPIO character device only exists on Linux. These stubs let the
// package build elsewhere so that consumers can cross-compile; every
// kernel-facing call fails at runtime.

package gpiocdev

import (
	"errors"
	"time"
	"unsafe"
)

var errNotSupported = errors.New("gpiocdev: not supported on this OS")

func rawIoctl(fd uintptr, req uintptr, data unsafe.Pointer) error {
	return errNotSupported
}

func rawSetNonblock(fd int) error {
	return errNotSupported
}

func rawWaitReadable(fd int, timeout time.Duration) (int, error) {
	return 0, errNotSupported
}

func rawDeviceSubsystem(path string) (string, error) {
	return "", errNotSupported
}
