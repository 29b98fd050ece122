// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package sysinit provides a minimal init system. It remounts the root file
// system, mounts the essential virtual file systems, configures the network,
// starts the device event daemon, reaps all terminated children and runs
// interactive login sessions on text consoles.
//
// It is meant to be run as PID 1. See [Main].
package sysinit
