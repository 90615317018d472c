// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpiocdev

import (
	"fmt"
	"time"
)

type configEntry struct {
	offsets  []uint32
	settings *LineSettings
}

// LineConfig maps subsets of line offsets to LineSettings. It is built
// by the caller and consumed by Chip.RequestLines or
// LineRequest.Reconfigure; it has no kernel-side state. The zero value
// is an empty config ready for use.
//
// Entries are ordered: when the same offset appears in more than one
// Add call, the settings from the last entry win. The request's offset
// order is the order in which offsets first appear across entries.
type LineConfig struct {
	entries      []configEntry
	outputValues []Value
}

// Add appends settings for a subset of line offsets. The settings are
// snapshotted at call time; later mutation of the LineSettings does
// not affect the entry. A nil settings adds the default configuration.
// An empty offset slice is rejected with ErrInvalidArgument.
func (lc *LineConfig) Add(offsets []uint32, settings *LineSettings) error {
	if len(offsets) == 0 {
		return fmt.Errorf("no offsets in config entry: %w", ErrInvalidArgument)
	}
	if settings == nil {
		settings = NewLineSettings()
	}
	lc.entries = append(lc.entries, configEntry{
		offsets:  append([]uint32(nil), offsets...),
		settings: settings.Copy(),
	})
	return nil
}

// SetOutputValues attaches explicit output values, positionally
// correlated with the config's resolved offset order, overriding any
// output value embedded in per-line settings. The values apply only to
// lines whose direction is output when the config is applied, and the
// slice length must then equal the number of configured offsets.
func (lc *LineConfig) SetOutputValues(values []Value) error {
	for _, v := range values {
		if v != ValueInactive && v != ValueActive {
			return fmt.Errorf("output value %d: %w", int(v), ErrInvalidArgument)
		}
	}
	lc.outputValues = append([]Value(nil), values...)
	return nil
}

// Reset discards all entries and output values.
func (lc *LineConfig) Reset() {
	lc.entries = nil
	lc.outputValues = nil
}

// resolve flattens the entries into the request offset order and one
// settings snapshot per offset, with last-wins override resolution and
// explicit output values already applied.
func (lc *LineConfig) resolve() ([]uint32, []*LineSettings, error) {
	if len(lc.entries) == 0 {
		return nil, nil, fmt.Errorf("empty line config: %w", ErrInvalidArgument)
	}
	var offsets []uint32
	byOffset := make(map[uint32]*LineSettings)
	for _, e := range lc.entries {
		for _, o := range e.offsets {
			if _, ok := byOffset[o]; !ok {
				offsets = append(offsets, o)
			}
			byOffset[o] = e.settings
		}
	}
	if len(offsets) > _GPIO_V2_LINES_MAX {
		return nil, nil, fmt.Errorf("%d lines exceeds the per-request maximum of %d: %w",
			len(offsets), _GPIO_V2_LINES_MAX, ErrInvalidArgument)
	}
	if lc.outputValues != nil && len(lc.outputValues) != len(offsets) {
		return nil, nil, fmt.Errorf("%d output values for %d lines: %w",
			len(lc.outputValues), len(offsets), ErrInvalidArgument)
	}
	settings := make([]*LineSettings, len(offsets))
	for i, o := range offsets {
		s := byOffset[o].Copy()
		if lc.outputValues != nil && s.direction == DirectionOutput {
			s.outputValue = lc.outputValues[i]
		}
		settings[i] = s
	}
	return offsets, settings, nil
}

// buildUapiConfig packs per-offset settings into the kernel config
// struct: the most common flag combination becomes the default flags,
// deviating lines are expressed as FLAGS attributes, debounce periods
// are grouped into DEBOUNCE attributes and output values into a single
// OUTPUT_VALUES attribute. The kernel caps the attribute count, so
// configs too varied to pack are rejected with ErrInvalidArgument.
func buildUapiConfig(settings []*LineSettings) (gpio_v2_line_config, error) {
	var cfg gpio_v2_line_config

	flags := make([]uint64, len(settings))
	counts := make(map[uint64]int)
	var order []uint64
	for i, s := range settings {
		flags[i] = s.uapiFlags()
		if counts[flags[i]] == 0 {
			order = append(order, flags[i])
		}
		counts[flags[i]]++
	}
	def := order[0]
	for _, f := range order {
		if counts[f] > counts[def] {
			def = f
		}
	}
	cfg.flags = def

	addAttr := func(id uint32, value, mask uint64) error {
		if cfg.num_attrs == _GPIO_V2_LINE_NUM_ATTRS_MAX {
			return fmt.Errorf("config needs more than %d attributes: %w",
				_GPIO_V2_LINE_NUM_ATTRS_MAX, ErrInvalidArgument)
		}
		cfg.attrs[cfg.num_attrs] = gpio_v2_line_config_attribute{
			attr: gpio_v2_line_attribute{id: id, value: value},
			mask: mask,
		}
		cfg.num_attrs++
		return nil
	}

	for _, f := range order {
		if f == def {
			continue
		}
		var mask uint64
		for i := range settings {
			if flags[i] == f {
				mask |= 1 << uint(i)
			}
		}
		if err := addAttr(_GPIO_V2_LINE_ATTR_ID_FLAGS, f, mask); err != nil {
			return cfg, err
		}
	}

	periods := make(map[time.Duration]uint64)
	var periodOrder []time.Duration
	for i, s := range settings {
		if s.debouncePeriod == 0 {
			continue
		}
		if _, ok := periods[s.debouncePeriod]; !ok {
			periodOrder = append(periodOrder, s.debouncePeriod)
		}
		periods[s.debouncePeriod] |= 1 << uint(i)
	}
	for _, p := range periodOrder {
		us := uint64(p / time.Microsecond)
		if err := addAttr(_GPIO_V2_LINE_ATTR_ID_DEBOUNCE, us, periods[p]); err != nil {
			return cfg, err
		}
	}

	var outMask, outBits uint64
	for i, s := range settings {
		if s.direction != DirectionOutput {
			continue
		}
		outMask |= 1 << uint(i)
		if s.outputValue == ValueActive {
			outBits |= 1 << uint(i)
		}
	}
	if outMask != 0 {
		if err := addAttr(_GPIO_V2_LINE_ATTR_ID_OUTPUT_VALUES, outBits, outMask); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}
