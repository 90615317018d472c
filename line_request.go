// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpiocdev

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"
)

// Seams over the raw syscalls so the tests can stand in a fake kernel.
var (
	setNonblockFn  = rawSetNonblock
	waitReadableFn = rawWaitReadable
)

// WaitResult is the outcome of a bounded wait for event readiness.
type WaitResult int

const (
	WaitError WaitResult = iota
	// WaitReady means at least one event is queued and a read will
	// not block.
	WaitReady
	WaitTimedOut
	// WaitInterrupted means a signal interrupted the wait before an
	// event arrived or the timeout expired. The wait may be retried.
	WaitInterrupted
)

var WaitResultLabels = []Label{"Error", "Ready", "TimedOut", "Interrupted"}

func (r WaitResult) String() string { return string(labelOf(WaitResultLabels, int(r))) }

func waitResult(n int, err error) (WaitResult, error) {
	if err != nil {
		if errors.Is(err, syscall.EINTR) {
			return WaitInterrupted, nil
		}
		return WaitError, &IOError{Op: "event poll", Err: err}
	}
	if n == 0 {
		return WaitTimedOut, nil
	}
	return WaitReady, nil
}

// LineRequest is an active, exclusive kernel grant over a fixed set of
// line offsets. It is created by Chip.RequestLines, owns its own
// descriptor independent of the chip, and serves value I/O, live
// reconfiguration and edge events until released.
//
// The offset set is immutable for the life of the request. Bulk value
// operations are positionally correlated with the offset order fixed
// at request time, or with the offsets argument for the subset
// variants.
//
// The mutex only guards the release state; concurrent I/O calls into
// one request must be serialized by the caller.
type LineRequest struct {
	chipName string
	offsets  []uint32
	index    map[uint32]int
	settings map[uint32]*LineSettings
	file     *os.File
	rawFd    int
	mu       sync.Mutex
	released bool
}

func newLineRequest(chipName string, offsets []uint32, settings []*LineSettings, fd int) (*LineRequest, error) {
	if err := setNonblockFn(fd); err != nil {
		return nil, &IOError{Op: "set request descriptor nonblocking", Err: err}
	}
	r := &LineRequest{
		chipName: chipName,
		offsets:  offsets,
		index:    make(map[uint32]int, len(offsets)),
		settings: make(map[uint32]*LineSettings, len(offsets)),
		file:     os.NewFile(uintptr(fd), "gpio-lines:"+chipName),
		rawFd:    fd,
	}
	for i, o := range offsets {
		r.index[o] = i
		r.settings[o] = settings[i]
	}
	return r, nil
}

func (r *LineRequest) checkLive() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrRequestReleased
	}
	return nil
}

func (r *LineRequest) ioctl(fn func(fd uintptr) error) error {
	conn, err := r.file.SyscallConn()
	if err != nil {
		return err
	}
	var opErr error
	if err := conn.Control(func(fd uintptr) { opErr = fn(fd) }); err != nil {
		return err
	}
	return opErr
}

// ChipName returns the name of the chip the lines were requested from.
func (r *LineRequest) ChipName() string { return r.chipName }

// Offsets returns the requested offsets in request order. The order
// fixes the positional correlation of Values and SetValues.
func (r *LineRequest) Offsets() []uint32 {
	return append([]uint32(nil), r.offsets...)
}

// LineCount returns the number of lines in this request.
func (r *LineRequest) LineCount() int { return len(r.offsets) }

// Fd returns the request descriptor, for use in caller-side readiness
// polling across multiple chips and requests. The descriptor remains
// owned by the request.
func (r *LineRequest) Fd() int { return r.rawFd }

// mask builds the kernel bit mask selecting the given offsets, which
// must all be part of this request.
func (r *LineRequest) mask(offsets []uint32) (uint64, error) {
	var m uint64
	for _, o := range offsets {
		i, ok := r.index[o]
		if !ok {
			return 0, fmt.Errorf("offset %d not in request on %s: %w", o, r.chipName, ErrInvalidOffset)
		}
		m |= 1 << uint(i)
	}
	return m, nil
}

// Value reads the current logical value of one requested line.
func (r *LineRequest) Value(offset uint32) (Value, error) {
	vals, err := r.ValuesSubset([]uint32{offset})
	if err != nil {
		return ValueInactive, err
	}
	return vals[0], nil
}

// Values reads the current logical values of all requested lines,
// positionally correlated with Offsets, in one kernel call.
func (r *LineRequest) Values() ([]Value, error) {
	return r.ValuesSubset(r.offsets)
}

// ValuesSubset reads the current logical values of the given requested
// lines, positionally correlated with offsets, in one kernel call.
func (r *LineRequest) ValuesSubset(offsets []uint32) ([]Value, error) {
	if err := r.checkLive(); err != nil {
		return nil, err
	}
	if len(offsets) == 0 {
		return nil, fmt.Errorf("no offsets: %w", ErrInvalidArgument)
	}
	m, err := r.mask(offsets)
	if err != nil {
		return nil, err
	}
	lv := gpio_v2_line_values{mask: m}
	if err := r.ioctl(func(fd uintptr) error { return ioctl_get_gpio_v2_line_values(fd, &lv) }); err != nil {
		return nil, &IOError{Op: "get line values", Err: err}
	}
	vals := make([]Value, len(offsets))
	for i, o := range offsets {
		if lv.bits&(1<<uint(r.index[o])) != 0 {
			vals[i] = ValueActive
		}
	}
	return vals, nil
}

// SetValue writes the logical value of one requested output line.
// Writes are not pre-validated against the line direction; writing to
// a line not configured as output is rejected by the kernel and
// surfaces as an IOError carrying the OS error.
func (r *LineRequest) SetValue(offset uint32, v Value) error {
	return r.SetValuesSubset([]uint32{offset}, []Value{v})
}

// SetValues writes the logical values of all requested lines,
// positionally correlated with Offsets, in one kernel call.
func (r *LineRequest) SetValues(values []Value) error {
	if len(values) != len(r.offsets) {
		return fmt.Errorf("%d values for %d lines: %w", len(values), len(r.offsets), ErrInvalidArgument)
	}
	return r.SetValuesSubset(r.offsets, values)
}

// SetValuesSubset writes the logical values of the given requested
// lines, positionally correlated with offsets, in one kernel call.
func (r *LineRequest) SetValuesSubset(offsets []uint32, values []Value) error {
	if err := r.checkLive(); err != nil {
		return err
	}
	if len(offsets) == 0 || len(values) != len(offsets) {
		return fmt.Errorf("%d values for %d offsets: %w", len(values), len(offsets), ErrInvalidArgument)
	}
	m, err := r.mask(offsets)
	if err != nil {
		return err
	}
	for _, v := range values {
		if v != ValueInactive && v != ValueActive {
			return fmt.Errorf("value %d: %w", int(v), ErrInvalidArgument)
		}
	}
	lv := gpio_v2_line_values{mask: m}
	for i, o := range offsets {
		if values[i] == ValueActive {
			lv.bits |= 1 << uint(r.index[o])
		}
	}
	if err := r.ioctl(func(fd uintptr) error { return ioctl_set_gpio_v2_line_values(fd, &lv) }); err != nil {
		return &IOError{Op: "set line values", Err: err}
	}
	return nil
}

// Reconfigure atomically replaces the settings of the lines named in
// lcfg without releasing the request. Lines of the request not named
// in lcfg keep their current settings; offsets in lcfg that are not
// part of the request are rejected with ErrInvalidOffset. The change
// is all-or-nothing: a local validation failure or kernel rejection
// leaves the previous configuration fully in place.
func (r *LineRequest) Reconfigure(lcfg *LineConfig) error {
	if err := r.checkLive(); err != nil {
		return err
	}
	if lcfg == nil {
		return fmt.Errorf("nil line config: %w", ErrInvalidArgument)
	}
	offsets, settings, err := lcfg.resolve()
	if err != nil {
		return err
	}
	merged := make(map[uint32]*LineSettings, len(r.offsets))
	for o, s := range r.settings {
		merged[o] = s
	}
	for i, o := range offsets {
		if _, ok := r.index[o]; !ok {
			return fmt.Errorf("offset %d not in request on %s: %w", o, r.chipName, ErrInvalidOffset)
		}
		merged[o] = settings[i]
	}
	full := make([]*LineSettings, len(r.offsets))
	for i, o := range r.offsets {
		full[i] = merged[o]
	}
	cfg, err := buildUapiConfig(full)
	if err != nil {
		return err
	}
	if err := r.ioctl(func(fd uintptr) error { return ioctl_gpio_v2_line_config(fd, &cfg) }); err != nil {
		return &RequestError{Op: fmt.Sprintf("reconfigure lines on %s", r.chipName), Err: err}
	}
	r.settings = merged
	return nil
}

// ReadEdgeEvents blocks until at least one edge event is queued for
// any line in the request, then fills buf up to its capacity from the
// events already queued, in one read, without blocking again once the
// first event is available. Returns the number of events placed in
// buf.
//
// The read is unblocked by Release and reports ErrRequestReleased. An
// earlier SetReadDeadline surfaces as os.ErrDeadlineExceeded.
func (r *LineRequest) ReadEdgeEvents(buf *EdgeEventBuffer) (int, error) {
	if err := r.checkLive(); err != nil {
		return 0, err
	}
	if buf == nil {
		return 0, fmt.Errorf("nil event buffer: %w", ErrInvalidArgument)
	}
	n, err := r.file.Read(buf.raw)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrClosed):
			return 0, ErrRequestReleased
		case errors.Is(err, os.ErrDeadlineExceeded):
			return 0, err
		case errors.Is(err, syscall.EINTR):
			return 0, fmt.Errorf("edge event read: %w", ErrInterrupted)
		}
		return 0, &IOError{Op: "edge event read", Err: err}
	}
	count, err := buf.fill(n)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// WaitEdgeEvents blocks up to timeout for an edge event to become
// ready to read on any line in the request. A negative timeout blocks
// indefinitely; zero reports the current readiness without blocking.
func (r *LineRequest) WaitEdgeEvents(timeout time.Duration) (WaitResult, error) {
	if err := r.checkLive(); err != nil {
		return WaitError, err
	}
	return waitResult(waitReadableFn(r.rawFd, timeout))
}

// SetReadDeadline bounds future ReadEdgeEvents calls; a deadline in
// the past interrupts a read already in progress.
func (r *LineRequest) SetReadDeadline(t time.Time) error {
	if err := r.checkLive(); err != nil {
		return err
	}
	return r.file.SetReadDeadline(t)
}

// Release relinquishes the kernel grant on every line in the request
// and unblocks any pending ReadEdgeEvents. Any further operation on
// the request, including a second Release, reports ErrRequestReleased.
func (r *LineRequest) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrRequestReleased
	}
	r.released = true
	return r.file.Close()
}

func (r *LineRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Chip    string   `json:"Chip"`
		Offsets []uint32 `json:"Offsets"`
	}{
		Chip:    r.chipName,
		Offsets: r.offsets})
}

// String returns the request's chip and offsets in JSON format.
func (r *LineRequest) String() string {
	j, _ := json.MarshalIndent(r, "", "    ")
	return string(j)
}
