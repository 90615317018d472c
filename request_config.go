// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpiocdev

import (
	"fmt"
	"os"
	"path"
)

// RequestConfig carries the request-wide metadata for a line request.
// It is consumed once at request time.
type RequestConfig struct {
	// Consumer is the name recorded against the requested lines so
	// that other processes can see who holds them. Truncated to the
	// kernel's 31 byte limit. If empty, "program@pid" is used.
	Consumer string

	// EventBufferSize is a hint for the size of the kernel edge event
	// queue for this request. Zero keeps the kernel default (16 events
	// per line); the kernel caps excessive values.
	EventBufferSize int
}

// consumerName returns the consumer to record for a request governed
// by this config. A nil config selects all defaults.
func (rc *RequestConfig) consumerName() string {
	if rc != nil && rc.Consumer != "" {
		return rc.Consumer
	}
	return fmt.Sprintf("%s@%d", path.Base(os.Args[0]), os.Getpid())
}

func (rc *RequestConfig) eventBufferSize() (int, error) {
	if rc == nil || rc.EventBufferSize == 0 {
		return 0, nil
	}
	if rc.EventBufferSize < 0 {
		return 0, fmt.Errorf("event buffer size %d: %w", rc.EventBufferSize, ErrInvalidArgument)
	}
	return rc.EventBufferSize, nil
}
