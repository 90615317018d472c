// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpiocdev

import (
	"fmt"
	"time"
)

// LineSettings is a bundle of desired configuration values for one or
// more lines. Settings have no kernel-side existence of their own;
// they take effect when attached to a LineConfig and submitted via
// Chip.RequestLines or LineRequest.Reconfigure.
//
// Setters validate their enumerated domain. An out-of-domain value is
// rejected with ErrInvalidArgument and leaves the field at its
// previous value.
type LineSettings struct {
	direction      Direction
	edge           Edge
	bias           Bias
	drive          Drive
	activeLow      bool
	debouncePeriod time.Duration
	eventClock     EventClock
	outputValue    Value
}

// NewLineSettings returns settings with the default configuration:
// direction and bias as-is, no edge detection, push-pull drive,
// active-high, no debounce, monotonic event clock, inactive output
// value.
func NewLineSettings() *LineSettings {
	s := &LineSettings{}
	s.Reset()
	return s
}

// Reset restores the default configuration.
func (s *LineSettings) Reset() {
	s.direction = DirectionAsIs
	s.edge = EdgeNone
	s.bias = BiasAsIs
	s.drive = DrivePushPull
	s.activeLow = false
	s.debouncePeriod = 0
	s.eventClock = EventClockMonotonic
	s.outputValue = ValueInactive
}

// Copy returns an independent snapshot of the settings.
func (s *LineSettings) Copy() *LineSettings {
	c := *s
	return &c
}

func (s *LineSettings) SetDirection(d Direction) error {
	switch d {
	case DirectionAsIs, DirectionInput, DirectionOutput:
		s.direction = d
		return nil
	}
	return fmt.Errorf("direction %d: %w", int(d), ErrInvalidArgument)
}

func (s *LineSettings) Direction() Direction { return s.direction }

func (s *LineSettings) SetEdgeDetection(e Edge) error {
	switch e {
	case EdgeNone, EdgeRising, EdgeFalling, EdgeBoth:
		s.edge = e
		return nil
	}
	return fmt.Errorf("edge detection %d: %w", int(e), ErrInvalidArgument)
}

func (s *LineSettings) EdgeDetection() Edge { return s.edge }

func (s *LineSettings) SetBias(b Bias) error {
	switch b {
	case BiasAsIs, BiasDisabled, BiasPullUp, BiasPullDown:
		s.bias = b
		return nil
	}
	return fmt.Errorf("bias %d: %w", int(b), ErrInvalidArgument)
}

func (s *LineSettings) Bias() Bias { return s.bias }

func (s *LineSettings) SetDrive(d Drive) error {
	switch d {
	case DrivePushPull, DriveOpenDrain, DriveOpenSource:
		s.drive = d
		return nil
	}
	return fmt.Errorf("drive %d: %w", int(d), ErrInvalidArgument)
}

func (s *LineSettings) Drive() Drive { return s.drive }

func (s *LineSettings) SetActiveLow(v bool) { s.activeLow = v }

func (s *LineSettings) ActiveLow() bool { return s.activeLow }

// SetDebouncePeriod sets the kernel-side debounce period for edge
// detection. Zero disables debouncing. The period is passed to the
// kernel with microsecond granularity.
func (s *LineSettings) SetDebouncePeriod(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("debounce period %v: %w", d, ErrInvalidArgument)
	}
	s.debouncePeriod = d
	return nil
}

func (s *LineSettings) DebouncePeriod() time.Duration { return s.debouncePeriod }

func (s *LineSettings) SetEventClock(c EventClock) error {
	switch c {
	case EventClockMonotonic, EventClockRealtime, EventClockHTE:
		s.eventClock = c
		return nil
	}
	return fmt.Errorf("event clock %d: %w", int(c), ErrInvalidArgument)
}

func (s *LineSettings) EventClock() EventClock { return s.eventClock }

// SetOutputValue sets the initial value driven when the line is
// configured as an output. LineConfig.SetOutputValues overrides it.
func (s *LineSettings) SetOutputValue(v Value) error {
	switch v {
	case ValueInactive, ValueActive:
		s.outputValue = v
		return nil
	}
	return fmt.Errorf("output value %d: %w", int(v), ErrInvalidArgument)
}

func (s *LineSettings) OutputValue() Value { return s.outputValue }

// uapiFlags maps the settings onto the kernel line flag bits. Invalid
// combinations, e.g. edge detection on an output, are left for the
// kernel to reject at request time.
func (s *LineSettings) uapiFlags() uint64 {
	var f uint64
	if s.activeLow {
		f |= _GPIO_V2_LINE_FLAG_ACTIVE_LOW
	}
	switch s.direction {
	case DirectionInput:
		f |= _GPIO_V2_LINE_FLAG_INPUT
	case DirectionOutput:
		f |= _GPIO_V2_LINE_FLAG_OUTPUT
	}
	switch s.edge {
	case EdgeRising:
		f |= _GPIO_V2_LINE_FLAG_EDGE_RISING
	case EdgeFalling:
		f |= _GPIO_V2_LINE_FLAG_EDGE_FALLING
	case EdgeBoth:
		f |= _GPIO_V2_LINE_FLAG_EDGE_RISING | _GPIO_V2_LINE_FLAG_EDGE_FALLING
	}
	switch s.bias {
	case BiasDisabled:
		f |= _GPIO_V2_LINE_FLAG_BIAS_DISABLED
	case BiasPullUp:
		f |= _GPIO_V2_LINE_FLAG_BIAS_PULL_UP
	case BiasPullDown:
		f |= _GPIO_V2_LINE_FLAG_BIAS_PULL_DOWN
	}
	switch s.drive {
	case DriveOpenDrain:
		f |= _GPIO_V2_LINE_FLAG_OPEN_DRAIN
	case DriveOpenSource:
		f |= _GPIO_V2_LINE_FLAG_OPEN_SOURCE
	}
	switch s.eventClock {
	case EventClockRealtime:
		f |= _GPIO_V2_LINE_FLAG_EVENT_CLOCK_REALTIME
	case EventClockHTE:
		f |= _GPIO_V2_LINE_FLAG_EVENT_CLOCK_HTE
	}
	return f
}

// lineInfoFromUapi decodes a kernel line info struct into a snapshot.
func lineInfoFromUapi(li *gpio_v2_line_info) LineInfo {
	info := LineInfo{
		Offset:   li.Offset,
		Name:     bytesToString(li.Name[:]),
		Consumer: bytesToString(li.Consumer[:]),
	}
	f := li.Flags
	info.Used = f&_GPIO_V2_LINE_FLAG_USED != 0
	info.ActiveLow = f&_GPIO_V2_LINE_FLAG_ACTIVE_LOW != 0
	switch {
	case f&_GPIO_V2_LINE_FLAG_OUTPUT != 0:
		info.Direction = DirectionOutput
	case f&_GPIO_V2_LINE_FLAG_INPUT != 0:
		info.Direction = DirectionInput
	}
	switch f & (_GPIO_V2_LINE_FLAG_EDGE_RISING | _GPIO_V2_LINE_FLAG_EDGE_FALLING) {
	case _GPIO_V2_LINE_FLAG_EDGE_RISING:
		info.Edge = EdgeRising
	case _GPIO_V2_LINE_FLAG_EDGE_FALLING:
		info.Edge = EdgeFalling
	case _GPIO_V2_LINE_FLAG_EDGE_RISING | _GPIO_V2_LINE_FLAG_EDGE_FALLING:
		info.Edge = EdgeBoth
	}
	switch {
	case f&_GPIO_V2_LINE_FLAG_BIAS_DISABLED != 0:
		info.Bias = BiasDisabled
	case f&_GPIO_V2_LINE_FLAG_BIAS_PULL_UP != 0:
		info.Bias = BiasPullUp
	case f&_GPIO_V2_LINE_FLAG_BIAS_PULL_DOWN != 0:
		info.Bias = BiasPullDown
	}
	switch {
	case f&_GPIO_V2_LINE_FLAG_OPEN_DRAIN != 0:
		info.Drive = DriveOpenDrain
	case f&_GPIO_V2_LINE_FLAG_OPEN_SOURCE != 0:
		info.Drive = DriveOpenSource
	}
	switch {
	case f&_GPIO_V2_LINE_FLAG_EVENT_CLOCK_REALTIME != 0:
		info.EventClock = EventClockRealtime
	case f&_GPIO_V2_LINE_FLAG_EVENT_CLOCK_HTE != 0:
		info.EventClock = EventClockHTE
	}
	for i := 0; i < int(li.Num_attrs) && i < _GPIO_V2_LINE_NUM_ATTRS_MAX; i++ {
		if li.Attrs[i].Id == _GPIO_V2_LINE_ATTR_ID_DEBOUNCE {
			info.Debounced = true
			info.DebouncePeriod = time.Duration(li.Attrs[i].Value) * time.Microsecond
		}
	}
	return info
}
