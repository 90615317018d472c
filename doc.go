// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package gpiocdev provides access to GPIO lines through the Linux GPIO
// character device ABI (uAPI v2).
//
// https://docs.kernel.org/userspace-api/gpio/chardev.html
//
// A Chip is an open handle to one GPIO controller device node. Lines are
// claimed from a chip by building a LineConfig (one or more LineSettings
// applied to subsets of line offsets) and submitting it together with a
// RequestConfig via Chip.RequestLines. The resulting LineRequest owns its
// own file descriptor, independent of the chip, and serves value I/O,
// live reconfiguration and edge events until released. A Chip can also
// watch individual lines for request/release/reconfigure transitions and
// deliver those as InfoEvents on its own descriptor.
//
// The package performs no internal locking around I/O: concurrent calls
// into the same Chip or LineRequest from multiple goroutines must be
// serialized by the caller. Distinct chips and requests own distinct
// descriptors and are safe to use concurrently with each other.
//
// ReadInfoEvent, ReadEdgeEvents, WaitInfoEvent and WaitEdgeEvents are the
// only blocking operations. Blocked reads are unblocked by closing or
// releasing the owning object, or by an earlier SetReadDeadline; the Wait
// variants are bounded by their timeout and report interruption by a
// signal as a distinct result.
//
// GPIO pins speaking periph.io/x/conn/v3/gpio interfaces can be obtained
// from the gpiopin sub-package.
package gpiocdev
