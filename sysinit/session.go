// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Session runs interactive login sessions on a single console forever.
//
// Each iteration prints the banner, waits for the first keystroke in raw mode,
// restores the cooked mode and runs the shell until it exits.
type Session struct {
	// Console is the path of the console device.
	Console string

	// Banner is printed before waiting for input.
	Banner string

	// Open opens the console. Defaults to [OpenTerminal].
	Open OpenTerminalFunc

	Shell    ShellSpawner
	Reporter Reporter
}

// Run runs the session loop. It only returns if the terminal can not be used
// anymore, in which case a [*SessionError] is returned, or if the context is
// done. A shell exiting is not an error.
func (s *Session) Run(ctx context.Context) error {
	open := s.Open
	if open == nil {
		open = OpenTerminal
	}

	term, err := open(s.Console)
	if err != nil {
		return &SessionError{Console: s.Console, Err: err}
	}

	if closer, ok := term.(io.Closer); ok {
		defer closer.Close()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.iterate(ctx, term); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}

			return &SessionError{Console: s.Console, Err: err}
		}
	}
}

func (s *Session) iterate(ctx context.Context, term Terminal) error {
	if _, err := io.WriteString(term, s.Banner); err != nil {
		return fmt.Errorf("write banner: %w", err)
	}

	if err := term.SetRaw(); err != nil {
		return fmt.Errorf("set raw: %w", err)
	}

	if err := term.WaitReadable(ctx); err != nil {
		return fmt.Errorf("wait for input: %w", err)
	}

	if err := term.SetCooked(); err != nil {
		return fmt.Errorf("set cooked: %w", err)
	}

	start := time.Now()

	exited, err := s.spawn(term)
	if err != nil {
		return err
	}

	select {
	case status := <-exited:
		if s.Reporter != nil {
			s.Reporter.Report(Event{
				Step:     StepSession,
				Target:   s.Console,
				Outcome:  OutcomeOK,
				Duration: time.Since(start),
				Err:      status.Err(),
			})
		}

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) spawn(term Terminal) (<-chan ExitStatus, error) {
	stdio, err := term.Stdio()
	if err != nil {
		return nil, fmt.Errorf("stdio: %w", err)
	}

	// The child has its own copies once started.
	defer closeFiles(stdio)

	exited, err := s.Shell.Spawn(stdio)
	if err != nil {
		return nil, fmt.Errorf("spawn shell: %w", err)
	}

	return exited, nil
}

// RunSessions runs the given sessions concurrently until all of them
// returned. A session that stopped is reported and does not affect the
// others. It returns the joined errors of all sessions.
func RunSessions(ctx context.Context, sessions []*Session) error {
	var (
		group errgroup.Group
		errs  = make([]error, len(sessions))
	)

	for idx, session := range sessions {
		goRecover(&group, func() error {
			err := session.Run(ctx)
			if err != nil && ctx.Err() == nil {
				slog.Error("Session stopped",
					slog.String("console", session.Console),
					slog.Any("error", err))
			}

			errs[idx] = err

			return nil
		})
	}

	// Only panics are returned by the group.
	panicErr := group.Wait()

	return errors.Join(append(errs, panicErr)...)
}
