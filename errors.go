// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpiocdev

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument indicates malformed or out-of-domain input.
	// It is detected locally and never reaches the kernel.
	ErrInvalidArgument = errors.New("gpiocdev: invalid argument")

	// ErrInvalidOffset indicates an offset that is not valid for the
	// chip or not part of the line request it was used with.
	ErrInvalidOffset = errors.New("gpiocdev: invalid line offset")

	// ErrChipClosed indicates an operation on a closed Chip.
	ErrChipClosed = errors.New("gpiocdev: chip is closed")

	// ErrRequestReleased indicates an operation on a LineRequest that
	// has already been released.
	ErrRequestReleased = errors.New("gpiocdev: line request already released")

	// ErrInterrupted indicates a blocking operation was interrupted by
	// a signal before completing. The operation may be retried.
	ErrInterrupted = errors.New("gpiocdev: interrupted by signal")
)

// OpenError reports a failure to open a GPIO chip device node. The
// underlying OS error is preserved and available via errors.Is/As.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("gpiocdev: open %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// IOError reports a kernel call that failed during an operation on an
// open chip or request. The underlying OS error is preserved.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("gpiocdev: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// RequestError reports that the kernel refused to grant or reconfigure
// a set of lines, e.g. because a line is already requested elsewhere or
// the settings combination is invalid. Nothing was applied. The
// underlying OS error is preserved.
type RequestError struct {
	Op  string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("gpiocdev: %s: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }
