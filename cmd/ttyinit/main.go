// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Command ttyinit is a minimal init system meant to be run as PID 1. It does
// not take any arguments.
package main

import "github.com/aibor/ttyinit/sysinit"

func main() {
	sysinit.Main(sysinit.DefaultConfig())
}
