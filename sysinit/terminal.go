// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Terminal is a console device a [Session] runs on.
type Terminal interface {
	io.Writer

	// SetRaw disables line buffering, echo and signal characters.
	SetRaw() error

	// SetCooked restores the attributes captured on open.
	SetCooked() error

	// WaitReadable blocks until input is available. The input is not
	// consumed.
	WaitReadable(ctx context.Context) error

	// Stdio returns three new duplicates of the device to be used as
	// stdin, stdout and stderr of a child. The caller must close them.
	Stdio() ([]*os.File, error)
}

// OpenTerminalFunc opens the console device at path.
type OpenTerminalFunc func(path string) (Terminal, error)

// TerminalMode is the line discipline mode of a [ConsoleState].
type TerminalMode int

// Terminal modes.
const (
	TerminalModeCooked TerminalMode = iota
	TerminalModeRaw
)

// pollInterval limits how long [ConsoleState.WaitReadable] blocks before it
// checks the context, if the context can be cancelled at all.
const pollInterval = 500 * time.Millisecond

// ConsoleState is a [Terminal] backed by a real console device.
//
// The cooked attributes are captured once on open and never change.
type ConsoleState struct {
	file   *os.File
	fd     int
	cooked unix.Termios
	raw    unix.Termios
	mode   TerminalMode
}

var _ Terminal = (*ConsoleState)(nil)

// OpenTerminal opens the console device at path and captures its current
// terminal attributes.
//
// The device does not become the controlling terminal of the process.
func OpenTerminal(path string) (Terminal, error) {
	fd, err := openConsole(path)
	if err != nil {
		return nil, err
	}

	cooked, err := tcgetattr(fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &ConsoleState{
		file:   os.NewFile(uintptr(fd), path),
		fd:     fd,
		cooked: *cooked,
		raw:    makeRaw(*cooked),
		mode:   TerminalModeCooked,
	}, nil
}

// makeRaw derives raw attributes like cfmakeraw(3).
func makeRaw(termios unix.Termios) unix.Termios {
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	termios.Cflag &^= unix.CSIZE | unix.PARENB
	termios.Cflag |= unix.CS8
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0

	return termios
}

// Name returns the path of the device.
func (c *ConsoleState) Name() string {
	return c.file.Name()
}

// Mode returns the mode last applied.
func (c *ConsoleState) Mode() TerminalMode {
	return c.mode
}

func (c *ConsoleState) Write(p []byte) (int, error) {
	return c.file.Write(p)
}

// SetRaw applies the raw attributes.
func (c *ConsoleState) SetRaw() error {
	if err := tcsetattr(c.fd, &c.raw); err != nil {
		return err
	}

	c.mode = TerminalModeRaw

	return nil
}

// SetCooked applies the attributes captured on open.
func (c *ConsoleState) SetCooked() error {
	if err := tcsetattr(c.fd, &c.cooked); err != nil {
		return err
	}

	c.mode = TerminalModeCooked

	return nil
}

// WaitReadable blocks until the device has input. If the context can not be
// cancelled, it blocks in a single poll(2) call.
func (c *ConsoleState) WaitReadable(ctx context.Context) error {
	timeout := -1
	if ctx.Done() != nil {
		timeout = int(pollInterval.Milliseconds())
	}

	for {
		readable, err := pollReadable(c.fd, timeout)
		if err != nil {
			return err
		}

		if readable {
			return nil
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// Stdio returns three duplicates of the device.
func (c *ConsoleState) Stdio() ([]*os.File, error) {
	files := make([]*os.File, 0, 3)

	for range 3 {
		fd, err := dupCloexec(c.fd)
		if err != nil {
			closeFiles(files)
			return nil, err
		}

		files = append(files, os.NewFile(uintptr(fd), c.file.Name()))
	}

	return files, nil
}

// Close closes the device.
func (c *ConsoleState) Close() error {
	return c.file.Close()
}

func closeFiles(files []*os.File) {
	for _, file := range files {
		_ = file.Close()
	}
}
