// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpiocdev

import (
	"fmt"
	"time"
)

// Label is a human readable name for an enumerated configuration value.
type Label string

func labelOf(labels []Label, v int) Label {
	if v < 0 || v >= len(labels) {
		return Label(fmt.Sprintf("Unknown(%d)", v))
	}
	return labels[v]
}

// Value is the logical state of a line: active or inactive. The mapping
// to the electrical state depends on the line's active-low setting.
type Value int

const (
	ValueInactive Value = 0
	ValueActive   Value = 1
)

var ValueLabels = []Label{"Inactive", "Active"}

func (v Value) String() string { return string(labelOf(ValueLabels, int(v))) }

// Direction is the configured direction of a line.
type Direction int

const (
	// DirectionAsIs keeps whatever direction the line already has.
	DirectionAsIs Direction = iota
	DirectionInput
	DirectionOutput
)

var DirectionLabels = []Label{"AsIs", "Input", "Output"}

func (d Direction) String() string { return string(labelOf(DirectionLabels, int(d))) }

// Edge selects which hardware transitions generate edge events on an
// input line.
type Edge int

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

var EdgeLabels = []Label{"None", "Rising", "Falling", "Both"}

func (e Edge) String() string { return string(labelOf(EdgeLabels, int(e))) }

// Bias is the internal pull resistor configuration of a line.
type Bias int

const (
	// BiasAsIs keeps whatever bias the line already has.
	BiasAsIs Bias = iota
	BiasDisabled
	BiasPullUp
	BiasPullDown
)

var BiasLabels = []Label{"AsIs", "Disabled", "PullUp", "PullDown"}

func (b Bias) String() string { return string(labelOf(BiasLabels, int(b))) }

// Drive is the electrical output mode of a line.
type Drive int

const (
	DrivePushPull Drive = iota
	DriveOpenDrain
	DriveOpenSource
)

var DriveLabels = []Label{"PushPull", "OpenDrain", "OpenSource"}

func (d Drive) String() string { return string(labelOf(DriveLabels, int(d))) }

// EventClock selects the clock used to timestamp edge events.
type EventClock int

const (
	EventClockMonotonic EventClock = iota
	EventClockRealtime
	// EventClockHTE is the hardware timestamp engine, available on
	// some SoCs with kernels v5.19 and later.
	EventClockHTE
)

var EventClockLabels = []Label{"Monotonic", "Realtime", "HTE"}

func (c EventClock) String() string { return string(labelOf(EventClockLabels, int(c))) }

// EdgeEventType is the kind of transition an EdgeEvent reports. The
// values match the kernel event ids.
type EdgeEventType int

const (
	EdgeEventRising  EdgeEventType = 1
	EdgeEventFalling EdgeEventType = 2
)

var EdgeEventLabels = []Label{"Invalid", "RisingEdge", "FallingEdge"}

func (t EdgeEventType) String() string { return string(labelOf(EdgeEventLabels, int(t))) }

// InfoEventType is the kind of line state transition an InfoEvent
// reports. The values match the kernel event ids.
type InfoEventType int

const (
	InfoEventLineRequested     InfoEventType = 1
	InfoEventLineReleased      InfoEventType = 2
	InfoEventLineConfigChanged InfoEventType = 3
)

var InfoEventLabels = []Label{"Invalid", "Requested", "Released", "ConfigChanged"}

func (t InfoEventType) String() string { return string(labelOf(InfoEventLabels, int(t))) }

// LineInfo is a point-in-time snapshot of one line's configuration as
// reported by the kernel. A fresh snapshot is produced by every
// Chip.LineInfo call and embedded in every InfoEvent; snapshots are
// never shared or updated in place.
type LineInfo struct {
	// Offset is the zero-based index of the line within its chip. It
	// has no relationship to any pin numbering scheme in use on a
	// board.
	Offset uint32
	Name   string
	// Consumer is the name given by whoever holds the line, empty if
	// the line is unused.
	Consumer string
	// Used reports whether the line is in use by the kernel or by a
	// line request. A used line cannot be requested again until freed.
	Used           bool
	ActiveLow      bool
	Direction      Direction
	Edge           Edge
	Bias           Bias
	Drive          Drive
	EventClock     EventClock
	Debounced      bool
	DebouncePeriod time.Duration
}
