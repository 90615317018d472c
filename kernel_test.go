// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpiocdev

// A fake kernel for the tests: ioctls are dispatched to an in-memory
// chip model installed behind the package's syscall seams, line
// request descriptors are the read end of a pipe so the event paths
// exercise the real file handling, and the chip device node is a
// plain temp file the fakes approve as a GPIO device.

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

var (
	reqChipInfo      = _IOR(0xb4, 0x01, unsafe.Sizeof(gpiochip_info{}))
	reqLineInfo      = _IOWR(0xb4, 0x05, unsafe.Sizeof(gpio_v2_line_info{}))
	reqLineInfoWatch = _IOWR(0xb4, 0x06, unsafe.Sizeof(gpio_v2_line_info{}))
	reqLineRequest   = _IOWR(0xb4, 0x07, unsafe.Sizeof(gpio_v2_line_request{}))
	reqUnwatch       = _IOWR(0xb4, 0x0c, unsafe.Sizeof(uint32(0)))
	reqSetConfig     = _IOWR(0xb4, 0x0d, unsafe.Sizeof(gpio_v2_line_config{}))
	reqGetValues     = _IOWR(0xb4, 0x0e, unsafe.Sizeof(gpio_v2_line_values{}))
	reqSetValues     = _IOWR(0xb4, 0x0f, unsafe.Sizeof(gpio_v2_line_values{}))
)

type fakeLine struct {
	name       string
	consumer   string
	used       bool
	flags      uint64
	debounceUs uint64
}

type fakeRequest struct {
	offsets []uint32
	config  gpio_v2_line_config
	bits    uint64
	eventW  *os.File
}

type fakeKernel struct {
	t        *testing.T
	name     string
	label    string
	lines    []fakeLine
	watched  map[uint32]bool
	requests map[uintptr]*fakeRequest
}

func newFakeKernel(t *testing.T, name, label string, lineCount int) *fakeKernel {
	return &fakeKernel{
		t:        t,
		name:     name,
		label:    label,
		lines:    make([]fakeLine, lineCount),
		watched:  make(map[uint32]bool),
		requests: make(map[uintptr]*fakeRequest),
	}
}

// install points the package seams at the fake until the test ends.
func (k *fakeKernel) install() {
	origIoctl := ioctlFn
	origSub := deviceSubsystemFn
	ioctlFn = k.ioctl
	deviceSubsystemFn = func(string) (string, error) { return "gpio", nil }
	k.t.Cleanup(func() {
		ioctlFn = origIoctl
		deviceSubsystemFn = origSub
		for _, r := range k.requests {
			_ = r.eventW.Close()
		}
	})
}

// devNode creates a stand-in device node, optionally preloaded with
// raw event records for the chip read path.
func (k *fakeKernel) devNode(records ...interface{}) string {
	path := filepath.Join(k.t.TempDir(), "gpiochip0")
	f, err := os.Create(path)
	if err != nil {
		k.t.Fatal(err)
	}
	defer f.Close()
	for _, rec := range records {
		if err := binary.Write(f, binary.NativeEndian, rec); err != nil {
			k.t.Fatal(err)
		}
	}
	return path
}

func (k *fakeKernel) ioctl(fd uintptr, req uintptr, data unsafe.Pointer) error {
	switch req {
	case reqChipInfo:
		ci := (*gpiochip_info)(data)
		stringToBytes(k.name, ci.name[:])
		stringToBytes(k.label, ci.label[:])
		ci.lines = uint32(len(k.lines))
		return nil
	case reqLineInfo, reqLineInfoWatch:
		li := (*gpio_v2_line_info)(data)
		if int(li.Offset) >= len(k.lines) {
			return syscall.EINVAL
		}
		if req == reqLineInfoWatch {
			if k.watched[li.Offset] {
				return syscall.EBUSY
			}
			k.watched[li.Offset] = true
		}
		k.fillLineInfo(li)
		return nil
	case reqUnwatch:
		offset := (*uint32)(data)
		if !k.watched[*offset] {
			return syscall.EBUSY
		}
		delete(k.watched, *offset)
		return nil
	case reqLineRequest:
		return k.lineRequest((*gpio_v2_line_request)(data))
	case reqSetConfig:
		r, ok := k.requests[fd]
		if !ok {
			return syscall.EBADF
		}
		cfg := (*gpio_v2_line_config)(data)
		r.config = *cfg
		k.applyConfig(r)
		return nil
	case reqGetValues:
		r, ok := k.requests[fd]
		if !ok {
			return syscall.EBADF
		}
		lv := (*gpio_v2_line_values)(data)
		lv.bits = r.bits & lv.mask
		return nil
	case reqSetValues:
		r, ok := k.requests[fd]
		if !ok {
			return syscall.EBADF
		}
		lv := (*gpio_v2_line_values)(data)
		for i := range r.offsets {
			bit := uint64(1) << uint(i)
			if lv.mask&bit == 0 {
				continue
			}
			if configFlags(&r.config, i)&_GPIO_V2_LINE_FLAG_OUTPUT == 0 {
				return syscall.EPERM
			}
		}
		r.bits = (lv.bits & lv.mask) | (r.bits &^ lv.mask)
		return nil
	}
	k.t.Fatalf("unexpected ioctl %#x", req)
	return syscall.EINVAL
}

func (k *fakeKernel) fillLineInfo(li *gpio_v2_line_info) {
	l := &k.lines[li.Offset]
	*li = gpio_v2_line_info{Offset: li.Offset}
	stringToBytes(l.name, li.Name[:])
	stringToBytes(l.consumer, li.Consumer[:])
	li.Flags = l.flags
	if l.used {
		li.Flags |= _GPIO_V2_LINE_FLAG_USED
	}
	if l.debounceUs != 0 {
		li.Attrs[0].Id = _GPIO_V2_LINE_ATTR_ID_DEBOUNCE
		li.Attrs[0].Value = l.debounceUs
		li.Num_attrs = 1
	}
}

func (k *fakeKernel) lineRequest(lr *gpio_v2_line_request) error {
	if lr.num_lines == 0 || lr.num_lines > _GPIO_V2_LINES_MAX {
		return syscall.EINVAL
	}
	offsets := make([]uint32, lr.num_lines)
	for i := range offsets {
		o := lr.offsets[i]
		if int(o) >= len(k.lines) {
			return syscall.EINVAL
		}
		if k.lines[o].used {
			return syscall.EBUSY
		}
		offsets[i] = o
	}
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return err
	}
	r := &fakeRequest{
		offsets: offsets,
		config:  lr.config,
		eventW:  os.NewFile(uintptr(p[1]), "fake-gpio-events-w"),
	}
	consumer := bytesToString(lr.consumer[:])
	for _, o := range offsets {
		k.lines[o].used = true
		k.lines[o].consumer = consumer
	}
	k.applyConfig(r)
	k.requests[uintptr(p[0])] = r
	lr.fd = int32(p[0])
	return nil
}

// applyConfig mirrors what the kernel does with a new config: flags
// take effect per line and output values latch into the line state.
func (k *fakeKernel) applyConfig(r *fakeRequest) {
	for i, o := range r.offsets {
		k.lines[o].flags = configFlags(&r.config, i)
		k.lines[o].debounceUs = 0
	}
	for a := 0; a < int(r.config.num_attrs); a++ {
		attr := r.config.attrs[a]
		for i, o := range r.offsets {
			bit := uint64(1) << uint(i)
			if attr.mask&bit == 0 {
				continue
			}
			switch attr.attr.id {
			case _GPIO_V2_LINE_ATTR_ID_DEBOUNCE:
				k.lines[o].debounceUs = attr.attr.value
			case _GPIO_V2_LINE_ATTR_ID_OUTPUT_VALUES:
				if attr.attr.value&bit != 0 {
					r.bits |= bit
				} else {
					r.bits &^= bit
				}
			}
		}
	}
}

// configFlags resolves the effective flags of the line at index i,
// first matching FLAGS attribute wins, as in the kernel.
func configFlags(cfg *gpio_v2_line_config, i int) uint64 {
	bit := uint64(1) << uint(i)
	for a := 0; a < int(cfg.num_attrs); a++ {
		if cfg.attrs[a].attr.id == _GPIO_V2_LINE_ATTR_ID_FLAGS && cfg.attrs[a].mask&bit != 0 {
			return cfg.attrs[a].attr.value
		}
	}
	return cfg.flags
}

// request returns the fake state backing a LineRequest.
func (k *fakeKernel) request(r *LineRequest) *fakeRequest {
	fr, ok := k.requests[uintptr(r.rawFd)]
	if !ok {
		k.t.Fatalf("no fake request for fd %d", r.rawFd)
	}
	return fr
}

// injectEdge queues one edge event record on the request's descriptor.
func (k *fakeKernel) injectEdge(r *LineRequest, ev gpio_v2_line_event) {
	fr := k.request(r)
	if err := binary.Write(fr.eventW, binary.NativeEndian, &ev); err != nil {
		k.t.Fatal(err)
	}
}

// openChip opens a chip backed by the fake, failing the test on error.
func (k *fakeKernel) openChip(records ...interface{}) *Chip {
	c, err := OpenChip(k.devNode(records...))
	if err != nil {
		k.t.Fatal(err)
	}
	k.t.Cleanup(func() { _ = c.Close() })
	return c
}

// stubWaitReadable replaces the poll seam until the test ends.
func stubWaitReadable(t *testing.T, fn func(fd int, timeout time.Duration) (int, error)) {
	orig := waitReadableFn
	waitReadableFn = fn
	t.Cleanup(func() { waitReadableFn = orig })
}
