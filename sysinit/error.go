// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"errors"
	"fmt"
)

var (
	// ErrNotPidOne is returned if the process is expected to be run as PID 1
	// but is not.
	ErrNotPidOne = errors.New("process does not have ID 1")

	// ErrNotReady is returned by boot steps that waited for the root file
	// system to become writable, but the remount never happened.
	ErrNotReady = errors.New("root file system not writable")

	// ErrPanic is returned if a boot branch or session panicked.
	ErrPanic = errors.New("function panicked")
)

// MountError is returned by [MountExecutor.Mount] if the directory for the
// mount point could not be created or the mount syscall failed.
type MountError struct {
	Target string
	Err    error
}

func (e *MountError) Error() string {
	return fmt.Sprintf("mount %s: %v", e.Target, e.Err)
}

func (e *MountError) Unwrap() error {
	return e.Err
}

// BootFatalError is returned by [Boot.Run] if a step failed the system can
// not run without. The system must not continue once this is returned.
type BootFatalError struct {
	Target string
	Err    error
}

func (e *BootFatalError) Error() string {
	return fmt.Sprintf("boot failed at %s: %v", e.Target, e.Err)
}

func (e *BootFatalError) Unwrap() error {
	return e.Err
}

// StepError is an error of a named boot step, like "address eth0".
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// BestEffortErrors is a collection of errors that occurred in steps that may
// fail without aborting the boot, like network configuration.
type BestEffortErrors []error

func (e BestEffortErrors) Error() string {
	return fmt.Sprintf("best effort errors: %q", []error(e))
}

func (BestEffortErrors) Is(other error) bool {
	_, ok := other.(BestEffortErrors)
	return ok
}

func (e BestEffortErrors) Unwrap() []error {
	return e
}

// Step returns the first error recorded for the given step name, or nil.
func (e BestEffortErrors) Step(step string) error {
	for _, err := range e {
		var stepErr *StepError
		if errors.As(err, &stepErr) && stepErr.Step == step {
			return stepErr
		}
	}

	return nil
}

// SessionError is returned by [Session.Run] if the session can not continue
// on its console. Other consoles are not affected.
type SessionError struct {
	Console string
	Err     error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s: %v", e.Console, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}
