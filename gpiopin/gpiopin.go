// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package gpiopin exposes gpiocdev lines through the
// periph.io/x/conn/v3 pin interfaces.
//
// A Pin wraps a single-line request and implements gpio.PinIO, so it
// can be handed to any periph driver expecting a pin. A Group wraps a
// multi-line request and implements gpio.Group for atomic multi-line
// reads and writes.
package gpiopin

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/pin"

	"periph.io/x/gpiocdev"
)

func biasFromPull(p gpio.Pull) (gpiocdev.Bias, error) {
	switch p {
	case gpio.PullNoChange:
		return gpiocdev.BiasAsIs, nil
	case gpio.Float:
		return gpiocdev.BiasDisabled, nil
	case gpio.PullDown:
		return gpiocdev.BiasPullDown, nil
	case gpio.PullUp:
		return gpiocdev.BiasPullUp, nil
	}
	return gpiocdev.BiasAsIs, fmt.Errorf("gpiopin: unsupported pull %d", p)
}

func pullFromBias(b gpiocdev.Bias) gpio.Pull {
	switch b {
	case gpiocdev.BiasDisabled:
		return gpio.Float
	case gpiocdev.BiasPullDown:
		return gpio.PullDown
	case gpiocdev.BiasPullUp:
		return gpio.PullUp
	}
	return gpio.PullNoChange
}

func edgeFromConn(e gpio.Edge) (gpiocdev.Edge, error) {
	switch e {
	case gpio.NoEdge:
		return gpiocdev.EdgeNone, nil
	case gpio.RisingEdge:
		return gpiocdev.EdgeRising, nil
	case gpio.FallingEdge:
		return gpiocdev.EdgeFalling, nil
	case gpio.BothEdges:
		return gpiocdev.EdgeBoth, nil
	}
	return gpiocdev.EdgeNone, fmt.Errorf("gpiopin: unsupported edge %d", e)
}

func connFromEdge(e gpiocdev.Edge) gpio.Edge {
	switch e {
	case gpiocdev.EdgeRising:
		return gpio.RisingEdge
	case gpiocdev.EdgeFalling:
		return gpio.FallingEdge
	case gpiocdev.EdgeBoth:
		return gpio.BothEdges
	}
	return gpio.NoEdge
}

// Pin adapts one GPIO line, claimed through its own single-line
// request, to gpio.PinIO. Obtain one with RequestPin and release the
// line with Close.
type Pin struct {
	req       *gpiocdev.LineRequest
	offset    uint32
	name      string
	mu        sync.Mutex
	buf       *gpiocdev.EdgeEventBuffer
	direction gpiocdev.Direction
	pull      gpio.Pull
	edge      gpio.Edge
}

// RequestPin claims the line at offset on chip as-is. Use In or Out to
// configure it.
func RequestPin(chip *gpiocdev.Chip, offset uint32) (*Pin, error) {
	info, err := chip.LineInfo(offset)
	if err != nil {
		return nil, err
	}
	var cfg gpiocdev.LineConfig
	if err := cfg.Add([]uint32{offset}, nil); err != nil {
		return nil, err
	}
	req, err := chip.RequestLines(nil, &cfg)
	if err != nil {
		return nil, err
	}
	buf, err := gpiocdev.NewEdgeEventBuffer(1)
	if err != nil {
		_ = req.Release()
		return nil, err
	}
	name := info.Name
	if name == "" {
		name = fmt.Sprintf("%s-%d", chip.Name(), offset)
	}
	return &Pin{
		req:       req,
		offset:    offset,
		name:      name,
		buf:       buf,
		direction: info.Direction,
		pull:      pullFromBias(info.Bias),
		edge:      connFromEdge(info.Edge),
	}, nil
}

// Close releases the line.
func (p *Pin) Close() error {
	return p.req.Release()
}

// Name returns the line name supplied by the driver, or a synthetic
// chip-offset name when the driver supplies none. Implements pin.Pin.
func (p *Pin) Name() string { return p.name }

// Number returns the line offset within its chip. Note that this has
// no relationship to the pin numbering scheme that may be in use on a
// board. Implements pin.Pin.
func (p *Pin) Number() int { return int(p.offset) }

// In configures the line for input. Implements gpio.PinIn.
func (p *Pin) In(pull gpio.Pull, edge gpio.Edge) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	bias, err := biasFromPull(pull)
	if err != nil {
		return err
	}
	e, err := edgeFromConn(edge)
	if err != nil {
		return err
	}
	s := gpiocdev.NewLineSettings()
	_ = s.SetDirection(gpiocdev.DirectionInput)
	if err := s.SetBias(bias); err != nil {
		return err
	}
	if err := s.SetEdgeDetection(e); err != nil {
		return err
	}
	var cfg gpiocdev.LineConfig
	if err := cfg.Add([]uint32{p.offset}, s); err != nil {
		return err
	}
	if err := p.req.Reconfigure(&cfg); err != nil {
		return err
	}
	p.direction = gpiocdev.DirectionInput
	p.pull = pull
	p.edge = edge
	return nil
}

// Read returns the current level of the line. The gpio.PinIn interface
// leaves no way to report a failed read; it reports gpio.Low.
// Implements gpio.PinIn.
func (p *Pin) Read() gpio.Level {
	v, err := p.req.Value(p.offset)
	if err != nil {
		return gpio.Low
	}
	return v == gpiocdev.ValueActive
}

// Out drives the line to the given level, reconfiguring it for output
// first if needed. Implements gpio.PinOut.
func (p *Pin) Out(l gpio.Level) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := gpiocdev.ValueInactive
	if l {
		v = gpiocdev.ValueActive
	}
	if p.direction != gpiocdev.DirectionOutput {
		s := gpiocdev.NewLineSettings()
		_ = s.SetDirection(gpiocdev.DirectionOutput)
		_ = s.SetOutputValue(v)
		var cfg gpiocdev.LineConfig
		if err := cfg.Add([]uint32{p.offset}, s); err != nil {
			return err
		}
		if err := p.req.Reconfigure(&cfg); err != nil {
			return fmt.Errorf("gpiopin: Out(): %w", err)
		}
		p.direction = gpiocdev.DirectionOutput
		p.pull = gpio.PullNoChange
		p.edge = gpio.NoEdge
		return nil
	}
	return p.req.SetValue(p.offset, v)
}

// WaitForEdge waits for an edge on the line. The line must have been
// configured for edge detection with In. A timeout of 0 waits
// forever. To interrupt a waiting pin, call Halt.
func (p *Pin) WaitForEdge(timeout time.Duration) bool {
	if p.edge == gpio.NoEdge {
		return false
	}
	var deadline time.Time
	if timeout != 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := p.req.SetReadDeadline(deadline); err != nil {
		return false
	}
	_, err := p.req.ReadEdgeEvents(p.buf)
	return err == nil
}

// Halt interrupts a pending WaitForEdge. Implements conn.Resource.
func (p *Pin) Halt() error {
	return p.req.SetReadDeadline(time.UnixMilli(0))
}

// Pull returns the configured line bias.
func (p *Pin) Pull() gpio.Pull { return p.pull }

// DefaultPull returns gpio.PullNoChange; the character device ABI has
// no way to report a default.
func (p *Pin) DefaultPull() gpio.Pull { return gpio.PullNoChange }

// PWM is not supported by the GPIO character device.
func (p *Pin) PWM(gpio.Duty, physic.Frequency) error {
	return errors.New("gpiopin: PWM is not supported")
}

// Deprecated: Use PinFunc.Func. Function implements pin.Pin.
func (p *Pin) Function() string {
	return string(p.Func())
}

// Func implements pin.PinFunc.
func (p *Pin) Func() pin.Func {
	switch p.direction {
	case gpiocdev.DirectionInput:
		if p.Read() {
			return gpio.IN_HIGH
		}
		return gpio.IN_LOW
	case gpiocdev.DirectionOutput:
		if p.Read() {
			return gpio.OUT_HIGH
		}
		return gpio.OUT_LOW
	}
	return pin.FuncNone
}

// SupportedFuncs implements pin.PinFunc.
func (p *Pin) SupportedFuncs() []pin.Func {
	return []pin.Func{gpio.IN, gpio.OUT}
}

// SetFunc implements pin.PinFunc.
func (p *Pin) SetFunc(f pin.Func) error {
	switch f {
	case gpio.IN:
		return p.In(gpio.PullNoChange, gpio.NoEdge)
	case gpio.OUT_HIGH:
		return p.Out(gpio.High)
	case gpio.OUT, gpio.OUT_LOW:
		return p.Out(gpio.Low)
	default:
		return errors.New("gpiopin: unsupported function")
	}
}

func (p *Pin) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name      string `json:"Name"`
		Offset    int    `json:"Offset"`
		Direction string `json:"Direction"`
		Pull      string `json:"Pull"`
		Edge      string `json:"Edge"`
	}{
		Name:      p.name,
		Offset:    int(p.offset),
		Direction: p.direction.String(),
		Pull:      p.pull.String(),
		Edge:      p.edge.String()})
}

// String returns information about the pin in JSON format.
func (p *Pin) String() string {
	j, _ := json.MarshalIndent(p, "", "    ")
	return string(j)
}

// Ensure the conn interfaces stay implemented fully.
var _ gpio.PinIO = &Pin{}
var _ gpio.PinIn = &Pin{}
var _ gpio.PinOut = &Pin{}
var _ pin.PinFunc = &Pin{}
