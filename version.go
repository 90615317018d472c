// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpiocdev

// Version is the library version in MAJOR.MINOR.PATCH form.
const Version = "2.1.0"
