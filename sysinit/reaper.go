// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"
)

// ExitStatus is the collected exit status of a terminated child.
type ExitStatus struct {
	Pid    int
	Status unix.WaitStatus
}

// Err returns nil if the child exited with code 0. Otherwise an [*ExitError]
// is returned.
func (s ExitStatus) Err() error {
	if s.Status.Exited() && s.Status.ExitStatus() == 0 {
		return nil
	}

	return &ExitError{ExitStatus: s}
}

// ExitError is returned if a child did not exit successfully.
type ExitError struct {
	ExitStatus
}

func (e *ExitError) Error() string {
	if e.Status.Signaled() {
		return "signal: " + e.Status.Signal().String()
	}

	return fmt.Sprintf("exit status %d", e.Status.ExitStatus())
}

// ExitCode returns the exit code of the child or -1 if it was terminated by a
// signal.
func (e *ExitError) ExitCode() int {
	if !e.Status.Exited() {
		return -1
	}

	return e.Status.ExitStatus()
}

// Reaper collects the exit status of all terminated children of the process,
// including orphans re-parented to PID 1.
//
// It must be the only caller of wait(2) in the process. Children started by
// [exec.Cmd] must therefore be started via [Reaper.Start] or
// [Reaper.StartDetached] and [exec.Cmd.Wait] must not be called.
type Reaper struct {
	mu      sync.Mutex
	waiters map[int]chan<- ExitStatus
	wait    func(*unix.WaitStatus) (int, error)
}

// NewReaper creates a new [Reaper].
func NewReaper() *Reaper {
	return &Reaper{
		waiters: make(map[int]chan<- ExitStatus),
		wait:    wait4Any,
	}
}

// Run reaps children on each SIGCHLD until the context is done.
//
// It reaps once right away to catch children that terminated before.
func (r *Reaper) Run(ctx context.Context) error {
	notify := make(chan os.Signal, 1)
	signal.Notify(notify, unix.SIGCHLD)

	defer signal.Stop(notify)

	for {
		r.Reap()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-notify:
		}
	}
}

// Reap collects all terminated children without blocking and returns the
// number of collected children.
//
// If the exit status of a child was requested by [Reaper.Start], it is sent
// to the waiter. Otherwise it is discarded.
func (r *Reaper) Reap() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var reaped int

	for {
		var status unix.WaitStatus

		pid, err := r.wait(&status)
		if err != nil || pid <= 0 {
			return reaped
		}

		reaped++

		if waiter, exists := r.waiters[pid]; exists {
			delete(r.waiters, pid)
			waiter <- ExitStatus{Pid: pid, Status: status}
		}
	}
}

// Start starts the given command and returns a channel that receives the exit
// status once the child terminated and has been reaped.
func (r *Reaper) Start(cmd *exec.Cmd) (<-chan ExitStatus, error) {
	_, exited, err := r.startWaiting(cmd)
	return exited, err
}

func (r *Reaper) startWaiting(cmd *exec.Cmd) (int, <-chan ExitStatus, error) {
	// Hold the lock until the waiter is registered, so the child can not be
	// reaped before.
	r.mu.Lock()
	defer r.mu.Unlock()

	pid, err := start(cmd)
	if err != nil {
		return 0, nil, err
	}

	exited := make(chan ExitStatus, 1)
	r.waiters[pid] = exited

	return pid, exited, nil
}

// forget removes the waiter of the given pid. The child is reaped like any
// orphan then.
func (r *Reaper) forget(pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.waiters, pid)
}

// StartDetached starts the given command without interest in its exit
// status. The child is reaped like any orphan.
func (r *Reaper) StartDetached(cmd *exec.Cmd) error {
	_, err := start(cmd)
	return err
}

func start(cmd *exec.Cmd) (int, error) {
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", cmd.Path, err)
	}

	pid := cmd.Process.Pid

	// The process is waited for by the reaper only. Release the handle so no
	// resources are held by it.
	_ = cmd.Process.Release()

	return pid, nil
}
