// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit_test

import (
	"context"
	"testing"
	"time"

	"github.com/aibor/ttyinit/sysinit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var iteration = []string{"banner", "raw", "wait", "cooked", "stdio", "spawn"}

func openFake(term sysinit.Terminal) sysinit.OpenTerminalFunc {
	return func(string) (sysinit.Terminal, error) {
		return term, nil
	}
}

func TestSession_Run(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := &callLog{}
	term := &fakeTerminal{log: log}
	shell := &fakeShell{log: log, status: 1, cancelAt: 3, cancel: cancel}
	reporter := &eventRecorder{}

	session := &sysinit.Session{
		Console:  "/dev/tty1",
		Banner:   "welcome\n",
		Open:     openFake(term),
		Shell:    shell,
		Reporter: reporter,
	}

	err := session.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	var expected []string
	for range 3 {
		expected = append(expected, iteration...)
	}

	assert.Equal(t, expected, log.list())
	assert.Equal(t, "welcome\nwelcome\nwelcome\n", term.written)

	// The last exit races with the cancellation.
	events := reporter.list()
	assert.GreaterOrEqual(t, len(events), 2)

	for _, event := range events {
		assert.Equal(t, sysinit.StepSession, event.Step)
		assert.Equal(t, "/dev/tty1", event.Target)

		var exitErr *sysinit.ExitError
		require.ErrorAs(t, event.Err, &exitErr, "non-zero exit is reported")
		assert.Equal(t, 1, exitErr.ExitCode())
	}
}

func TestSession_Run_Fails(t *testing.T) {
	tests := []struct {
		name          string
		termErrs      map[string]error
		shellErr      error
		expectedCalls []string
	}{
		{
			name:          "banner",
			termErrs:      map[string]error{"banner": assert.AnError},
			expectedCalls: []string{"banner"},
		},
		{
			name:          "raw",
			termErrs:      map[string]error{"raw": assert.AnError},
			expectedCalls: []string{"banner", "raw"},
		},
		{
			name:          "wait",
			termErrs:      map[string]error{"wait": assert.AnError},
			expectedCalls: []string{"banner", "raw", "wait"},
		},
		{
			name:          "cooked",
			termErrs:      map[string]error{"cooked": assert.AnError},
			expectedCalls: []string{"banner", "raw", "wait", "cooked"},
		},
		{
			name:          "stdio",
			termErrs:      map[string]error{"stdio": assert.AnError},
			expectedCalls: []string{"banner", "raw", "wait", "cooked", "stdio"},
		},
		{
			name:          "spawn",
			shellErr:      assert.AnError,
			expectedCalls: iteration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &callLog{}
			session := &sysinit.Session{
				Console: "/dev/tty2",
				Open:    openFake(&fakeTerminal{log: log, errs: tt.termErrs}),
				Shell:   &fakeShell{log: log, err: tt.shellErr},
			}

			err := session.Run(context.Background())

			var sessionErr *sysinit.SessionError
			require.ErrorAs(t, err, &sessionErr)
			assert.Equal(t, "/dev/tty2", sessionErr.Console)
			require.ErrorIs(t, err, assert.AnError)

			assert.Equal(t, tt.expectedCalls, log.list())
		})
	}
}

func TestSession_Run_OpenFails(t *testing.T) {
	session := &sysinit.Session{
		Console: "/dev/tty1",
		Open: func(string) (sysinit.Terminal, error) {
			return nil, assert.AnError
		},
	}

	err := session.Run(context.Background())

	var sessionErr *sysinit.SessionError
	require.ErrorAs(t, err, &sessionErr)
	assert.Equal(t, "/dev/tty1", sessionErr.Console)
	require.ErrorIs(t, err, assert.AnError)
}

func TestRunSessions(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log := &callLog{}
	shell := &fakeShell{log: log, cancelAt: 5, cancel: cancel}

	sessions := []*sysinit.Session{
		{
			Console: "/dev/tty1",
			Open: func(string) (sysinit.Terminal, error) {
				return nil, assert.AnError
			},
			Shell: shell,
		},
		{
			Console: "/dev/tty2",
			Open:    openFake(&fakeTerminal{log: log}),
			Shell:   shell,
		},
	}

	err := sysinit.RunSessions(ctx, sessions)

	var sessionErr *sysinit.SessionError
	require.ErrorAs(t, err, &sessionErr)
	assert.Equal(t, "/dev/tty1", sessionErr.Console)
	require.ErrorIs(t, err, context.Canceled, "second console ran until cancelled")

	assert.Equal(t, 5, shell.count())

	calls := log.list()
	assert.Equal(t, iteration, calls[:len(iteration)])
	assert.Equal(t, 5, countCalls(calls, "spawn"))
}

func countCalls(calls []string, call string) int {
	var count int

	for _, c := range calls {
		if c == call {
			count++
		}
	}

	return count
}
