// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpiocdev

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

// Chip is an open handle to one GPIO controller device node.
//
// Chip-level metadata is read once at open time and is immutable for
// the life of the handle. Per-line information is queried from the
// kernel on demand; LineInfo results are independent snapshots.
//
// The mutex only guards the lifecycle state (close and watch
// bookkeeping); concurrent I/O calls into one Chip must be serialized
// by the caller.
type Chip struct {
	path      string
	name      string
	label     string
	lineCount int
	file      *os.File
	rawFd     int
	mu        sync.Mutex
	closed    bool
	watched   map[uint32]bool
}

// OpenChip opens the GPIO character device at path. The path may be a
// symlink; it is resolved before the device check. Non-GPIO device
// nodes and nodes the chip-info ioctl fails on are rejected with an
// OpenError.
func OpenChip(path string) (*Chip, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	sub, err := deviceSubsystemFn(resolved)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	if sub != "gpio" {
		return nil, &OpenError{Path: path, Err: fmt.Errorf("not a GPIO character device (subsystem %q)", sub)}
	}
	f, err := os.OpenFile(resolved, os.O_RDWR, 0)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	c := &Chip{
		path:    resolved,
		file:    f,
		watched: make(map[uint32]bool),
	}
	if err := c.controlFd(func(fd uintptr) { c.rawFd = int(fd) }); err != nil {
		_ = f.Close()
		return nil, &OpenError{Path: path, Err: err}
	}
	var info gpiochip_info
	if err := c.ioctl(func(fd uintptr) error { return ioctl_gpiochip_info(fd, &info) }); err != nil {
		_ = f.Close()
		return nil, &OpenError{Path: path, Err: err}
	}
	c.name = bytesToString(info.name[:])
	c.label = bytesToString(info.label[:])
	if len(c.label) == 0 {
		c.label = c.name
	}
	c.lineCount = int(info.lines)
	return c, nil
}

// controlFd runs fn with the chip descriptor without disturbing its
// registration with the runtime poller.
func (c *Chip) controlFd(fn func(fd uintptr)) error {
	conn, err := c.file.SyscallConn()
	if err != nil {
		return err
	}
	return conn.Control(fn)
}

func (c *Chip) ioctl(fn func(fd uintptr) error) error {
	var opErr error
	if err := c.controlFd(func(fd uintptr) { opErr = fn(fd) }); err != nil {
		return err
	}
	return opErr
}

func (c *Chip) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrChipClosed
	}
	return nil
}

// Name returns the device name reported by the kernel.
func (c *Chip) Name() string { return c.name }

// Label returns the controller label reported by the kernel, falling
// back to the name when the driver supplies none.
func (c *Chip) Label() string { return c.label }

// Path returns the resolved device node path the chip was opened from.
func (c *Chip) Path() string { return c.path }

// LineCount returns the number of lines this controller exposes.
func (c *Chip) LineCount() int { return c.lineCount }

// Fd returns the chip descriptor, for use in caller-side readiness
// polling across multiple chips and requests. The descriptor remains
// owned by the Chip.
func (c *Chip) Fd() int { return c.rawFd }

// LineInfo returns a fresh snapshot of the current configuration of
// the line at offset.
func (c *Chip) LineInfo(offset uint32) (LineInfo, error) {
	if err := c.checkOpen(); err != nil {
		return LineInfo{}, err
	}
	if int(offset) >= c.lineCount {
		return LineInfo{}, fmt.Errorf("offset %d on %s: %w", offset, c.name, ErrInvalidOffset)
	}
	var li gpio_v2_line_info
	li.Offset = offset
	if err := c.ioctl(func(fd uintptr) error { return ioctl_gpio_v2_line_info(fd, &li) }); err != nil {
		return LineInfo{}, &IOError{Op: fmt.Sprintf("line info query for offset %d", offset), Err: err}
	}
	return lineInfoFromUapi(&li), nil
}

// LineOffsetFromName scans the chip's lines for the first one with the
// given name and returns its offset. Line names are not guaranteed
// unique. Returns -1 and a nil error when no line matches.
func (c *Chip) LineOffsetFromName(name string) (int, error) {
	if err := c.checkOpen(); err != nil {
		return -1, err
	}
	for offset := 0; offset < c.lineCount; offset++ {
		info, err := c.LineInfo(uint32(offset))
		if err != nil {
			return -1, err
		}
		if info.Name == name {
			return offset, nil
		}
	}
	return -1, nil
}

// WatchLineInfo registers the chip descriptor to receive InfoEvents
// for the line at offset and returns a snapshot of its current state.
// Watching an already watched offset is a no-op that returns a fresh
// snapshot.
func (c *Chip) WatchLineInfo(offset uint32) (LineInfo, error) {
	if err := c.checkOpen(); err != nil {
		return LineInfo{}, err
	}
	if int(offset) >= c.lineCount {
		return LineInfo{}, fmt.Errorf("offset %d on %s: %w", offset, c.name, ErrInvalidOffset)
	}
	c.mu.Lock()
	already := c.watched[offset]
	c.mu.Unlock()
	if already {
		return c.LineInfo(offset)
	}
	var li gpio_v2_line_info
	li.Offset = offset
	if err := c.ioctl(func(fd uintptr) error { return ioctl_gpio_v2_line_info_watch(fd, &li) }); err != nil {
		return LineInfo{}, &IOError{Op: fmt.Sprintf("watch line info for offset %d", offset), Err: err}
	}
	c.mu.Lock()
	c.watched[offset] = true
	c.mu.Unlock()
	return lineInfoFromUapi(&li), nil
}

// UnwatchLineInfo removes the watch for offset. Unwatching an offset
// that was never watched is rejected with ErrInvalidArgument.
func (c *Chip) UnwatchLineInfo(offset uint32) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if int(offset) >= c.lineCount {
		return fmt.Errorf("offset %d on %s: %w", offset, c.name, ErrInvalidOffset)
	}
	c.mu.Lock()
	watched := c.watched[offset]
	c.mu.Unlock()
	if !watched {
		return fmt.Errorf("offset %d is not watched: %w", offset, ErrInvalidArgument)
	}
	o := offset
	if err := c.ioctl(func(fd uintptr) error { return ioctl_gpio_lineinfo_unwatch(fd, &o) }); err != nil {
		return &IOError{Op: fmt.Sprintf("unwatch line info for offset %d", offset), Err: err}
	}
	c.mu.Lock()
	delete(c.watched, offset)
	c.mu.Unlock()
	return nil
}

// ReadInfoEvent reads exactly one pending info event from the chip
// descriptor, blocking until one is available. The read is unblocked
// by Close and reports ErrChipClosed. An earlier SetReadDeadline
// surfaces as os.ErrDeadlineExceeded.
func (c *Chip) ReadInfoEvent() (*InfoEvent, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	buf := make([]byte, lineInfoChangedSize)
	n, err := c.file.Read(buf)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrClosed):
			return nil, ErrChipClosed
		case errors.Is(err, os.ErrDeadlineExceeded):
			return nil, err
		case errors.Is(err, syscall.EINTR):
			return nil, fmt.Errorf("info event read: %w", ErrInterrupted)
		}
		return nil, &IOError{Op: "info event read", Err: err}
	}
	if n != lineInfoChangedSize {
		return nil, &IOError{Op: "info event read", Err: fmt.Errorf("truncated event of %d bytes", n)}
	}
	return infoEventFromBytes(buf)
}

// WaitInfoEvent blocks up to timeout for an info event to become
// ready to read. A negative timeout blocks indefinitely; zero reports
// the current readiness without blocking.
func (c *Chip) WaitInfoEvent(timeout time.Duration) (WaitResult, error) {
	if err := c.checkOpen(); err != nil {
		return WaitError, err
	}
	return waitResult(waitReadableFn(c.rawFd, timeout))
}

// SetReadDeadline bounds future ReadInfoEvent calls; a deadline in the
// past interrupts a read already in progress.
func (c *Chip) SetReadDeadline(t time.Time) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	return c.file.SetReadDeadline(t)
}

// RequestLines submits the line config and request metadata to the
// kernel in one request ioctl covering every offset the config names.
// The grant is atomic: either all lines are granted or none. The
// returned LineRequest owns its own descriptor and outlives the Chip.
func (c *Chip) RequestLines(rcfg *RequestConfig, lcfg *LineConfig) (*LineRequest, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if lcfg == nil {
		return nil, fmt.Errorf("nil line config: %w", ErrInvalidArgument)
	}
	offsets, settings, err := lcfg.resolve()
	if err != nil {
		return nil, err
	}
	for _, o := range offsets {
		if int(o) >= c.lineCount {
			return nil, fmt.Errorf("offset %d on %s: %w", o, c.name, ErrInvalidOffset)
		}
	}
	cfg, err := buildUapiConfig(settings)
	if err != nil {
		return nil, err
	}
	ebs, err := rcfg.eventBufferSize()
	if err != nil {
		return nil, err
	}

	var req gpio_v2_line_request
	copy(req.offsets[:], offsets)
	stringToBytes(rcfg.consumerName(), req.consumer[:])
	req.config = cfg
	req.num_lines = uint32(len(offsets))
	req.event_buffer_size = uint32(ebs)

	if err := c.ioctl(func(fd uintptr) error { return ioctl_gpio_v2_line_request(fd, &req) }); err != nil {
		return nil, &RequestError{Op: fmt.Sprintf("request %d lines on %s", len(offsets), c.name), Err: err}
	}

	return newLineRequest(c.name, offsets, settings, int(req.fd))
}

// Close releases the chip descriptor and unblocks any pending
// ReadInfoEvent. Lines already granted to outstanding LineRequests are
// unaffected; they hold their own descriptors. Using the chip after
// Close, including closing twice, reports ErrChipClosed.
func (c *Chip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrChipClosed
	}
	c.closed = true
	return c.file.Close()
}

func (c *Chip) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name      string `json:"Name"`
		Path      string `json:"Path"`
		Label     string `json:"Label"`
		LineCount int    `json:"LineCount"`
	}{
		Name:      c.name,
		Path:      c.path,
		Label:     c.label,
		LineCount: c.lineCount})
}

// String returns the chip metadata in JSON format.
func (c *Chip) String() string {
	j, _ := json.MarshalIndent(c, "", "    ")
	return string(j)
}
