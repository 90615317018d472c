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

var lineInfoChangedSize = int(unsafe.Sizeof(gpio_v2_line_info_changed{}))

// InfoEvent is a notification that a watched line was requested,
// released or reconfigured. Each event carries a full LineInfo
// snapshot as of the transition; consumers should treat the snapshot
// as authoritative state, not a delta.
type InfoEvent struct {
	eventType   InfoEventType
	timestampNs uint64
	info        LineInfo
}

// Type reports the kind of transition.
func (e *InfoEvent) Type() InfoEventType { return e.eventType }

// Timestamp is the time of the transition in nanoseconds on the
// monotonic clock.
func (e *InfoEvent) Timestamp() uint64 { return e.timestampNs }

// LineInfo is the state of the line as of the transition.
func (e *InfoEvent) LineInfo() LineInfo { return e.info }

func infoEventFromBytes(buf []byte) (*InfoEvent, error) {
	var raw gpio_v2_line_info_changed
	if err := binary.Read(bytes.NewReader(buf), binary.NativeEndian, &raw); err != nil {
		return nil, &IOError{Op: "info event decode", Err: err}
	}
	switch InfoEventType(raw.Event_type) {
	case InfoEventLineRequested, InfoEventLineReleased, InfoEventLineConfigChanged:
	default:
		return nil, &IOError{Op: "info event decode", Err: fmt.Errorf("unknown event type %d", raw.Event_type)}
	}
	return &InfoEvent{
		eventType:   InfoEventType(raw.Event_type),
		timestampNs: raw.Timestamp_ns,
		info:        lineInfoFromUapi(&raw.Info),
	}, nil
}
