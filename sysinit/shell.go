// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// ErrStdio is returned if a shell is spawned with other than three stdio
// files.
var ErrStdio = errors.New("stdin, stdout and stderr required")

// Login is the fixed identity interactive sessions run with.
type Login struct {
	Name   string
	Home   string
	Shell  string
	UID    uint32
	GID    uint32
	Groups []uint32
}

// ShellSpawner starts a shell bound to the given stdio files.
type ShellSpawner interface {
	Spawn(stdio []*os.File) (<-chan ExitStatus, error)
}

// LoginShell spawns the [Login] shell without root privileges.
type LoginShell struct {
	Login  Login
	Env    EnvVars
	Reaper *Reaper
}

var _ ShellSpawner = (*LoginShell)(nil)

// Spawn starts the shell with the working directory and HOME set to the
// login home.
//
// Supplementary groups, group ID and user ID are set in the child in that
// order before the shell is executed. If any of them fails, the shell is
// not executed and an error is returned. The shell becomes session leader
// with stdin as its controlling terminal.
func (s *LoginShell) Spawn(stdio []*os.File) (<-chan ExitStatus, error) {
	if len(stdio) != 3 {
		return nil, ErrStdio
	}

	cmd := exec.Command(s.Login.Shell)
	cmd.Dir = s.Login.Home
	cmd.Env = s.Env.With("HOME", s.Login.Home).List()
	cmd.Stdin = stdio[0]
	cmd.Stdout = stdio[1]
	cmd.Stderr = stdio[2]
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Credential: &syscall.Credential{
			Uid:    s.Login.UID,
			Gid:    s.Login.GID,
			Groups: s.Login.Groups,
		},
		Setsid:  true,
		Setctty: true,
		Ctty:    0,
	}

	return s.Reaper.Start(cmd)
}
