// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpiocdev

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unsafe"
)

var edgeEventSize = int(unsafe.Sizeof(gpio_v2_line_event{}))

const (
	// DefaultEdgeEventBufferCapacity is used when NewEdgeEventBuffer
	// is given a capacity of zero.
	DefaultEdgeEventBufferCapacity = 64
	// MaxEdgeEventBufferCapacity bounds the size of a single read
	// batch.
	MaxEdgeEventBufferCapacity = 1024
)

// EdgeEvent is one hardware transition observed on a requested line.
// Events are owned by the EdgeEventBuffer that produced them and
// remain valid until the buffer's next read.
type EdgeEvent struct {
	eventType   EdgeEventType
	offset      uint32
	timestampNs uint64
	lineSeqno   uint32
	globalSeqno uint32
}

// Type reports whether the transition was a rising or falling edge.
func (e *EdgeEvent) Type() EdgeEventType { return e.eventType }

// Offset is the chip offset of the line the edge occurred on.
func (e *EdgeEvent) Offset() uint32 { return e.offset }

// Timestamp is the time of the transition in nanoseconds on the event
// clock the line was configured with.
func (e *EdgeEvent) Timestamp() uint64 { return e.timestampNs }

// LineSeqno counts edges on this event's line since the request began.
// Strictly increasing per line, independent across lines, and never
// reset by a reconfigure.
func (e *EdgeEvent) LineSeqno() uint32 { return e.lineSeqno }

// GlobalSeqno counts edges across all lines of the request since it
// began. Strictly increasing and never reset by a reconfigure.
func (e *EdgeEvent) GlobalSeqno() uint32 { return e.globalSeqno }

// EdgeEventBuffer is a reusable, caller-sized holding area for a batch
// of edge events. It is created once and refilled by successive
// ReadEdgeEvents calls, avoiding per-event allocation. Its capacity
// bounds the number of events returned by one read call.
type EdgeEventBuffer struct {
	capacity int
	raw      []byte
	events   []EdgeEvent
}

// NewEdgeEventBuffer returns a buffer holding up to capacity events
// per read. A capacity of zero selects the default; a negative or
// excessive capacity is rejected with ErrInvalidArgument.
func NewEdgeEventBuffer(capacity int) (*EdgeEventBuffer, error) {
	if capacity < 0 || capacity > MaxEdgeEventBufferCapacity {
		return nil, fmt.Errorf("event buffer capacity %d: %w", capacity, ErrInvalidArgument)
	}
	if capacity == 0 {
		capacity = DefaultEdgeEventBufferCapacity
	}
	return &EdgeEventBuffer{
		capacity: capacity,
		raw:      make([]byte, capacity*edgeEventSize),
		events:   make([]EdgeEvent, 0, capacity),
	}, nil
}

// Capacity returns the maximum number of events one read can place in
// the buffer.
func (b *EdgeEventBuffer) Capacity() int { return b.capacity }

// Len returns the number of events placed by the last read.
func (b *EdgeEventBuffer) Len() int { return len(b.events) }

// Event returns the i-th event of the last read. The event is owned
// by the buffer and valid until the next read into it.
func (b *EdgeEventBuffer) Event(i int) (*EdgeEvent, error) {
	if i < 0 || i >= len(b.events) {
		return nil, fmt.Errorf("event index %d of %d: %w", i, len(b.events), ErrInvalidArgument)
	}
	return &b.events[i], nil
}

// Events returns the events of the last read. The slice is owned by
// the buffer and valid until the next read into it.
func (b *EdgeEventBuffer) Events() []EdgeEvent { return b.events }

// fill decodes n bytes of kernel event records from the raw read area.
func (b *EdgeEventBuffer) fill(n int) (int, error) {
	if n%edgeEventSize != 0 {
		b.events = b.events[:0]
		return 0, &IOError{Op: "edge event read", Err: fmt.Errorf("truncated event record of %d bytes", n%edgeEventSize)}
	}
	count := n / edgeEventSize
	b.events = b.events[:0]
	rd := bytes.NewReader(b.raw[:n])
	for i := 0; i < count; i++ {
		var raw gpio_v2_line_event
		if err := binary.Read(rd, binary.NativeEndian, &raw); err != nil {
			return 0, &IOError{Op: "edge event decode", Err: err}
		}
		b.events = append(b.events, EdgeEvent{
			eventType:   EdgeEventType(raw.Id),
			offset:      raw.Offset,
			timestampNs: raw.Timestamp_ns,
			lineSeqno:   raw.LineSeqno,
			globalSeqno: raw.Seqno,
		})
	}
	return count, nil
}
