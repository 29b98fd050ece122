// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// Runner runs external programs.
type Runner interface {
	// Run runs the program and waits for it to exit. It returns an
	// [*ExitError] if it did not exit successfully.
	Run(ctx context.Context, name string, args ...string) error

	// Start starts the program without waiting for it.
	Start(name string, args ...string) error
}

// CommandRunner implements [Runner] with children collected by a [Reaper].
type CommandRunner struct {
	// Reaper is used to start the children and collect their exit status.
	Reaper *Reaper

	// Env is the complete environment of the children. It replaces the
	// inherited environment.
	Env EnvVars

	// Stdout and Stderr of the children. If nil, the null device is used.
	Stdout *os.File
	Stderr *os.File
}

var _ Runner = (*CommandRunner)(nil)

func (r *CommandRunner) command(name string, args ...string) *exec.Cmd {
	cmd := exec.Command(name, args...)
	cmd.Env = r.Env.List()

	// Only use [os.File]s so no copying goroutines are started that would
	// need [exec.Cmd.Wait].
	if r.Stdout != nil {
		cmd.Stdout = r.Stdout
	}

	if r.Stderr != nil {
		cmd.Stderr = r.Stderr
	}

	return cmd
}

// Run runs the program and waits until the [Reaper] collected it. If the
// context is done first, the program keeps running and its exit status is
// discarded.
func (r *CommandRunner) Run(ctx context.Context, name string, args ...string) error {
	pid, exited, err := r.Reaper.startWaiting(r.command(name, args...))
	if err != nil {
		return err
	}

	select {
	case status := <-exited:
		if err := status.Err(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}

		return nil
	case <-ctx.Done():
		r.Reaper.forget(pid)
		return fmt.Errorf("%s: %w", name, ctx.Err())
	}
}

// Start starts the program detached. Its exit status is discarded by the
// [Reaper].
func (r *CommandRunner) Start(name string, args ...string) error {
	return r.Reaper.StartDetached(r.command(name, args...))
}
