// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"context"
	"log/slog"
	"os"
)

// Main is the entry point for the init system.
//
// It applies the [OverrideFile] on top of the given config, starts the
// [Reaper], runs the [Boot] and then a [Session] on each console. It only
// returns if the process is not PID 1 or the boot failed, in both cases by
// exiting with a non-zero exit code. For PID 1 this makes the kernel panic,
// which keeps the failure visible on the console.
func Main(cfg Config) {
	overrideErr := cfg.LoadOverrides(OverrideFile)

	setupLogging(os.Stderr, cfg.LogLevel)

	if overrideErr != nil {
		slog.Warn("Ignoring invalid overrides", slog.Any("error", overrideErr))
	}

	err := main(context.Background(), cfg, os.Stderr)

	_, _ = FprintError(os.Stderr, err)

	exit(1)
}

func main(ctx context.Context, cfg Config, out *os.File) error {
	if !IsPidOne() {
		return ErrNotPidOne
	}

	_, _ = FprintHeader(out)

	if err := setsid(); err != nil {
		slog.Warn("Failed to create session", slog.Any("error", err))
	}

	// Programs are looked up with the PATH of the process.
	if err := SetEnv(cfg.Env()); err != nil {
		return err
	}

	reaper := NewReaper()

	go func() {
		_ = reaper.Run(ctx)
	}()

	reporter := SlogReporter{}
	runner := &CommandRunner{
		Reaper: reaper,
		Env:    cfg.Env(),
		Stdout: out,
		Stderr: out,
	}

	result, err := NewBoot(cfg, runner, reporter).Run(ctx)
	if err != nil {
		return err
	}

	slog.Info("Boot done",
		slog.Duration("duration", result.Duration),
		slog.Int("warnings", len(result.BestEffort)))

	err = RunSessions(ctx, NewSessions(cfg, reaper, reporter))
	slog.Error("All sessions stopped", slog.Any("error", err))

	// Keep reaping orphans for the rest of the uptime.
	<-ctx.Done()

	return ctx.Err()
}

// NewBoot creates the [Boot] for the given config.
func NewBoot(cfg Config, runner Runner, reporter Reporter) *Boot {
	var network NetworkConfigurator = IPCommand{Runner: runner}
	if cfg.NetworkBackend == NetworkBackendNetlink {
		network = Netlink{}
	}

	return &Boot{
		Mounts:     cfg.Mounts,
		Executor:   NewMountExecutor(HostSyscalls{}),
		Network:    network,
		Interfaces: cfg.Interfaces,
		Routes:     cfg.Routes,
		Devices: DeviceEvents{
			Runner:  runner,
			Daemon:  cfg.DeviceDaemon,
			Trigger: cfg.DeviceTrigger,
		},
		Reporter: reporter,
	}
}

// NewSessions creates a [Session] for each console of the given config.
func NewSessions(cfg Config, reaper *Reaper, reporter Reporter) []*Session {
	shell := &LoginShell{
		Login:  cfg.Login,
		Env:    cfg.Env(),
		Reaper: reaper,
	}

	sessions := make([]*Session, 0, len(cfg.Consoles))
	for _, console := range cfg.Consoles {
		sessions = append(sessions, &Session{
			Console:  console,
			Banner:   LoginBanner(cfg.Login),
			Open:     OpenTerminal,
			Shell:    shell,
			Reporter: reporter,
		})
	}

	return sessions
}
