// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// Syscalls is the kernel interface used by the [MountExecutor].
type Syscalls interface {
	Stat(path string) (fs.FileInfo, error)
	Mkdir(path string, perm fs.FileMode) error
	Mount(source, target, fsType string, flags MountFlags, data string) error
}

// HostSyscalls implements [Syscalls] for the running kernel.
type HostSyscalls struct{}

var _ Syscalls = HostSyscalls{}

// Stat wraps [os.Stat].
func (HostSyscalls) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Mkdir wraps [os.Mkdir].
func (HostSyscalls) Mkdir(path string, perm fs.FileMode) error {
	return os.Mkdir(path, perm)
}

// Mount wraps mount(2).
func (HostSyscalls) Mount(source, target, fsType string, flags MountFlags, data string) error {
	if err := unix.Mount(source, target, fsType, uintptr(flags), data); err != nil {
		return fmt.Errorf("mount: %w", err)
	}

	return nil
}

func getpid() int {
	return unix.Getpid()
}

func setsid() error {
	if _, err := unix.Setsid(); err != nil {
		return fmt.Errorf("setsid: %w", err)
	}

	return nil
}

func setenv(key, value string) error {
	if err := os.Setenv(key, value); err != nil {
		return fmt.Errorf("setenv %s: %w", key, err)
	}

	return nil
}

func exit(code int) {
	os.Exit(code)
}

// wait4Any collects the exit status of any terminated child without blocking.
// It returns 0 if there are children, but none has terminated.
func wait4Any(status *unix.WaitStatus) (int, error) {
	for {
		pid, err := unix.Wait4(-1, status, unix.WNOHANG, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}

		return pid, err
	}
}

func openConsole(path string) (int, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("open %s: %w", path, err)
	}

	return fd, nil
}

func dupCloexec(fd int) (int, error) {
	newFD, err := unix.FcntlInt(uintptr(fd), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("dup: %w", err)
	}

	return newFD, nil
}

func tcgetattr(fd int) (*unix.Termios, error) {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, fmt.Errorf("tcgetattr: %w", err)
	}

	return termios, nil
}

func tcsetattr(fd int, termios *unix.Termios) error {
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return fmt.Errorf("tcsetattr: %w", err)
	}

	return nil
}

// pollReadable blocks until the fd is readable or the timeout in milliseconds
// expired. A negative timeout blocks indefinitely. It returns true if the fd
// is readable. No data is consumed.
func pollReadable(fd int, timeout int) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}

	for {
		n, err := unix.Poll(fds, timeout)
		if errors.Is(err, unix.EINTR) {
			continue
		}

		if err != nil {
			return false, fmt.Errorf("poll: %w", err)
		}

		if n == 0 {
			return false, nil
		}

		revents := fds[0].Revents
		if revents&unix.POLLIN != 0 {
			return true, nil
		}

		if revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			return false, fmt.Errorf("poll: %w", unix.EIO)
		}
	}
}
