// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"context"
	"log/slog"
	"time"
)

// Outcome is the result of a single boot or session step.
type Outcome string

// Step outcomes.
const (
	OutcomeOK      Outcome = "ok"
	OutcomeWarning Outcome = "warning"
	OutcomeFailed  Outcome = "failed"
)

// Step names used in [Event]s.
const (
	StepRemount  = "remount"
	StepMount    = "mount"
	StepMkdir    = "mkdir"
	StepAddress  = "address"
	StepRoute    = "route"
	StepDaemon   = "udevd"
	StepColdplug = "coldplug"
	StepBoot     = "boot"
	StepSession  = "session"
)

// Event describes a finished step.
type Event struct {
	Step     string
	Target   string
	Outcome  Outcome
	Duration time.Duration
	Err      error
}

// Reporter consumes [Event]s. Implementations must be safe for concurrent
// use, since boot branches report concurrently.
type Reporter interface {
	Report(event Event)
}

// ReporterFunc is an adapter to use ordinary functions as [Reporter].
type ReporterFunc func(event Event)

// Report calls f(event).
func (f ReporterFunc) Report(event Event) {
	f(event)
}

// SlogReporter writes [Event]s to a [slog.Logger]. If Logger is nil, the
// default logger is used.
type SlogReporter struct {
	Logger *slog.Logger
}

// Report logs the event with a level matching its [Outcome].
func (r SlogReporter) Report(event Event) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	level := slog.LevelInfo

	switch event.Outcome {
	case OutcomeWarning:
		level = slog.LevelWarn
	case OutcomeFailed:
		level = slog.LevelError
	}

	attrs := []slog.Attr{
		slog.String("target", event.Target),
		slog.String("outcome", string(event.Outcome)),
		slog.Duration("duration", event.Duration),
	}
	if event.Err != nil {
		attrs = append(attrs, slog.Any("error", event.Err))
	}

	logger.LogAttrs(context.Background(), level, event.Step, attrs...)
}

// track runs fn and reports its result as step on target. The outcome on
// failure is [OutcomeWarning] if mayFail is set, [OutcomeFailed] otherwise.
func track(reporter Reporter, step, target string, mayFail bool, fn func() error) error {
	start := time.Now()
	err := fn()

	event := Event{
		Step:     step,
		Target:   target,
		Outcome:  OutcomeOK,
		Duration: time.Since(start),
		Err:      err,
	}

	if err != nil {
		event.Outcome = OutcomeFailed
		if mayFail {
			event.Outcome = OutcomeWarning
		}
	}

	if reporter != nil {
		reporter.Report(event)
	}

	return err
}
