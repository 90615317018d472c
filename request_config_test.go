// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpiocdev

import (
	"errors"
	"fmt"
	"os"
	"path"
	"testing"
)

func TestRequestConfigConsumerName(t *testing.T) {
	rc := &RequestConfig{Consumer: "watcher"}
	if got := rc.consumerName(); got != "watcher" {
		t.Errorf("explicit consumer: got %q", got)
	}
	want := fmt.Sprintf("%s@%d", path.Base(os.Args[0]), os.Getpid())
	if got := (&RequestConfig{}).consumerName(); got != want {
		t.Errorf("default consumer: got %q, expected %q", got, want)
	}
	var nilRC *RequestConfig
	if got := nilRC.consumerName(); got != want {
		t.Errorf("nil config consumer: got %q, expected %q", got, want)
	}
}

func TestRequestConfigEventBufferSize(t *testing.T) {
	var nilRC *RequestConfig
	if n, err := nilRC.eventBufferSize(); n != 0 || err != nil {
		t.Errorf("nil config: got %d, %v", n, err)
	}
	if n, err := (&RequestConfig{EventBufferSize: 128}).eventBufferSize(); n != 128 || err != nil {
		t.Errorf("explicit size: got %d, %v", n, err)
	}
	if _, err := (&RequestConfig{EventBufferSize: -1}).eventBufferSize(); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("negative size: got %v, expected ErrInvalidArgument", err)
	}
}
