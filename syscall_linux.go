// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpiocdev

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

func rawIoctl(fd uintptr, req uintptr, data unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(data))
	if errno != 0 {
		return errno
	}
	return nil
}

func rawSetNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}

// rawWaitReadable polls fd for readability. A negative timeout blocks
// indefinitely. Returns the number of ready descriptors, so 0 means
// the timeout expired.
func rawWaitReadable(fd int, timeout time.Duration) (int, error) {
	pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}
	return unix.Ppoll(pfd, ts, nil)
}

// rawDeviceSubsystem stats path, which must resolve to a character
// device, and reports the kernel subsystem its device numbers are
// registered under.
func rawDeviceSubsystem(path string) (string, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return "", err
	}
	if st.Mode&unix.S_IFMT != unix.S_IFCHR {
		return "", fmt.Errorf("%s is not a character device", path)
	}
	rdev := uint64(st.Rdev)
	link, err := os.Readlink(fmt.Sprintf("/sys/dev/char/%d:%d/subsystem",
		unix.Major(rdev), unix.Minor(rdev)))
	if err != nil {
		return "", err
	}
	return filepath.Base(link), nil
}
