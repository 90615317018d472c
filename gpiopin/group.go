// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpiopin

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/pin"

	"periph.io/x/gpiocdev"
)

// Group adapts a multi-line request to gpio.Group. Using a Group you
// can read or write multiple lines as one kernel operation, and wait
// for an edge on any line of the set with a single call. According to
// the Linux kernel docs:
//
// "A number of lines may be requested in the one line request, and
// request operations are performed on the requested lines by the
// kernel as atomically as possible."
//
// https://docs.kernel.org/userspace-api/gpio/gpio-v2-get-line-ioctl.html
type Group struct {
	req   *gpiocdev.LineRequest
	lines []*GroupLine
	buf   *gpiocdev.EdgeEventBuffer
}

// RequestGroup claims the lines described by lcfg on chip and wraps
// the request as a Group. rcfg may be nil for defaults.
func RequestGroup(chip *gpiocdev.Chip, rcfg *gpiocdev.RequestConfig, lcfg *gpiocdev.LineConfig) (*Group, error) {
	req, err := chip.RequestLines(rcfg, lcfg)
	if err != nil {
		return nil, err
	}
	buf, err := gpiocdev.NewEdgeEventBuffer(1)
	if err != nil {
		_ = req.Release()
		return nil, err
	}
	g := &Group{req: req, buf: buf}
	for i, o := range req.Offsets() {
		info, err := chip.LineInfo(o)
		if err != nil {
			_ = req.Release()
			return nil, err
		}
		name := info.Name
		if name == "" {
			name = fmt.Sprintf("%s-%d", chip.Name(), o)
		}
		g.lines = append(g.lines, &GroupLine{
			parent:    g,
			number:    o,
			index:     i,
			name:      name,
			direction: info.Direction,
			pull:      pullFromBias(info.Bias),
			edge:      connFromEdge(info.Edge),
		})
	}
	return g, nil
}

// Close releases the lines of the group.
func (g *Group) Close() error {
	return g.req.Release()
}

// LineCount returns the number of lines in this group.
func (g *Group) LineCount() int { return len(g.lines) }

// Lines returns the set of GroupLine in this group.
func (g *Group) Lines() []*GroupLine { return g.lines }

// Pins implements gpio.Group.
func (g *Group) Pins() []pin.Pin {
	pins := make([]pin.Pin, len(g.lines))
	for i, l := range g.lines {
		pins[i] = l
	}
	return pins
}

// ByOffset returns a line by its position within the group.
func (g *Group) ByOffset(offset int) pin.Pin {
	if offset < 0 || offset >= len(g.lines) {
		return nil
	}
	return g.lines[offset]
}

// ByName returns a line by name from the group.
func (g *Group) ByName(name string) pin.Pin {
	for _, l := range g.lines {
		if l.name == name {
			return l
		}
	}
	return nil
}

// ByNumber returns a line by its chip line offset.
func (g *Group) ByNumber(number int) pin.Pin {
	for _, l := range g.lines {
		if int(l.number) == number {
			return l
		}
	}
	return nil
}

func (g *Group) selected(mask gpio.GPIOValue) ([]uint32, []int) {
	if mask == 0 {
		mask = (1 << len(g.lines)) - 1
	}
	var offsets []uint32
	var indices []int
	for i, l := range g.lines {
		if mask&(1<<uint(i)) != 0 {
			offsets = append(offsets, l.number)
			indices = append(indices, i)
		}
	}
	return offsets, indices
}

// Out writes bits to the group's lines in one kernel call. mask
// selects the lines to write; 0 selects all of them. bits and mask are
// indexed by group position.
func (g *Group) Out(bits, mask gpio.GPIOValue) error {
	offsets, indices := g.selected(mask)
	values := make([]gpiocdev.Value, len(offsets))
	for n, i := range indices {
		if bits&(1<<uint(i)) != 0 {
			values[n] = gpiocdev.ValueActive
		}
	}
	return g.req.SetValuesSubset(offsets, values)
}

// Read reads the group's lines in one kernel call. mask selects the
// lines to read; 0 selects all of them.
func (g *Group) Read(mask gpio.GPIOValue) (gpio.GPIOValue, error) {
	offsets, indices := g.selected(mask)
	values, err := g.req.ValuesSubset(offsets)
	if err != nil {
		return 0, err
	}
	var bits gpio.GPIOValue
	for n, i := range indices {
		if values[n] == gpiocdev.ValueActive {
			bits |= 1 << uint(i)
		}
	}
	return bits, nil
}

// WaitForEdge waits for an edge on any line of the group configured
// for edge detection. A timeout of 0 waits forever. Returns the chip
// offset of the line that triggered and the edge observed; on timeout
// or Halt the edge is gpio.NoEdge.
func (g *Group) WaitForEdge(timeout time.Duration) (number int, edge gpio.Edge, err error) {
	edge = gpio.NoEdge
	var deadline time.Time
	if timeout != 0 {
		deadline = time.Now().Add(timeout)
	}
	if err = g.req.SetReadDeadline(deadline); err != nil {
		return
	}
	if _, err = g.req.ReadEdgeEvents(g.buf); err != nil {
		return
	}
	ev, err := g.buf.Event(0)
	if err != nil {
		return
	}
	switch ev.Type() {
	case gpiocdev.EdgeEventRising:
		edge = gpio.RisingEdge
	case gpiocdev.EdgeEventFalling:
		edge = gpio.FallingEdge
	}
	number = int(ev.Offset())
	return
}

// Halt interrupts a pending WaitForEdge.
func (g *Group) Halt() error {
	return g.req.SetReadDeadline(time.UnixMilli(0))
}

func (g *Group) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Lines []*GroupLine `json:"Lines"`
	}{
		Lines: g.lines})
}

// String returns the group information in JSON format, along with the
// details for all of its lines.
func (g *Group) String() string {
	j, _ := json.MarshalIndent(g, "", "    ")
	return string(j)
}

// GroupLine is a specific line in a Group. It implements gpio.PinIO
// for single-pin I/O within the set; configuration and edge waits must
// go through the Group.
type GroupLine struct {
	parent    *Group
	number    uint32
	index     int
	name      string
	direction gpiocdev.Direction
	pull      gpio.Pull
	edge      gpio.Edge
}

// Number returns the line's chip offset. Implements pin.Pin.
func (l *GroupLine) Number() int { return int(l.number) }

// Name returns the line's name. Implements pin.Pin.
func (l *GroupLine) Name() string { return l.name }

func (l *GroupLine) Function() string {
	return "not implemented"
}

func (l *GroupLine) Direction() gpiocdev.Direction { return l.direction }

func (l *GroupLine) Edge() gpio.Edge { return l.edge }

// Out writes to this specific line.
func (l *GroupLine) Out(level gpio.Level) error {
	v := gpiocdev.ValueInactive
	if level {
		v = gpiocdev.ValueActive
	}
	return l.parent.req.SetValue(l.number, v)
}

// Read returns the value of this specific line. The gpio.PinIn
// interface leaves no way to report a failed read; it reports gpio.Low.
func (l *GroupLine) Read() gpio.Level {
	v, err := l.parent.req.Value(l.number)
	if err != nil {
		return gpio.Low
	}
	return v == gpiocdev.ValueActive
}

// In returns an error; individual lines of a group cannot be
// reconfigured. Reconfigure through the owning request instead.
func (l *GroupLine) In(pull gpio.Pull, edge gpio.Edge) error {
	return errors.New("gpiopin: a group line cannot be re-configured individually")
}

// WaitForEdge always returns false for a GroupLine. Use
// Group.WaitForEdge.
func (l *GroupLine) WaitForEdge(timeout time.Duration) bool {
	return false
}

// Halt returns an error; a wait on a group cannot be halted through
// one of its lines. Use Group.Halt.
func (l *GroupLine) Halt() error {
	return errors.New("gpiopin: halt the Group, not an individual line")
}

// PWM is not supported by the GPIO character device.
func (l *GroupLine) PWM(gpio.Duty, physic.Frequency) error {
	return errors.New("gpiopin: PWM is not supported")
}

// Pull returns the configured line bias.
func (l *GroupLine) Pull() gpio.Pull { return l.pull }

// DefaultPull returns gpio.PullNoChange; the character device ABI has
// no way to report a default.
func (l *GroupLine) DefaultPull() gpio.Pull { return gpio.PullNoChange }

// Offset returns the position of this line within its Group,
// 0..Group.LineCount.
func (l *GroupLine) Offset() int { return l.index }

func (l *GroupLine) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name      string `json:"Name"`
		Offset    int    `json:"Offset"`
		Number    int    `json:"Number"`
		Direction string `json:"Direction"`
		Pull      string `json:"Pull"`
		Edge      string `json:"Edge"`
	}{
		Name:      l.name,
		Offset:    l.index,
		Number:    int(l.number),
		Direction: l.direction.String(),
		Pull:      l.pull.String(),
		Edge:      l.edge.String()})
}

// String returns information about the line in JSON format.
func (l *GroupLine) String() string {
	j, _ := json.MarshalIndent(l, "", "    ")
	return string(j)
}

// Ensure the conn interfaces stay implemented fully.
var _ gpio.Group = &Group{}
var _ gpio.PinIO = &GroupLine{}
var _ gpio.PinIn = &GroupLine{}
var _ gpio.PinOut = &GroupLine{}
