// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"context"
	"fmt"
)

// DeviceEvents starts the device event daemon and triggers the coldplug scan.
// /sys must be mounted before.
type DeviceEvents struct {
	Runner Runner

	// Daemon is the device event daemon. Defaults to "udevd".
	Daemon string

	// Trigger is the companion tool run with the "trigger" sub command.
	// Defaults to "udevadm".
	Trigger string
}

// StartDaemon starts the daemon detached. It is expected to run for the whole
// uptime of the system.
func (d DeviceEvents) StartDaemon() error {
	daemon := d.Daemon
	if daemon == "" {
		daemon = "udevd"
	}

	if err := d.Runner.Start(daemon); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	return nil
}

// Coldplug requests events for all devices present already and waits for
// the trigger tool to exit.
func (d DeviceEvents) Coldplug(ctx context.Context) error {
	trigger := d.Trigger
	if trigger == "" {
		trigger = "udevadm"
	}

	if err := d.Runner.Run(ctx, trigger, "trigger"); err != nil {
		return fmt.Errorf("trigger: %w", err)
	}

	return nil
}
