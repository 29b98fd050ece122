// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"fmt"
	"io"
)

const (
	ansiBrightRed = "\x1b[38;5;9m"
	ansiReset     = "\x1b[m"
	indent        = "  "
)

// Name is the name printed in the header.
const Name = "ttyinit"

// Version is printed in the header. It is set at build time.
var Version = "dev"

// FprintHeader prints the startup header to the writer (like [os.Stderr]).
func FprintHeader(dst io.Writer) (int, error) {
	return fmt.Fprintf(dst, "\n%s%s%s%s v%s\n\n", indent, ansiBrightRed, Name, ansiReset, Version)
}

// FprintError prints an error to the writer (like [os.Stderr]).
func FprintError(dst io.Writer, err error) (int, error) {
	return fmt.Fprintf(dst, "Error: %v\n", err)
}

// LoginBanner returns the text printed on a console before it waits for
// input.
func LoginBanner(login Login) string {
	return fmt.Sprintf("\n%s%slogin%s %s with %s\n",
		indent, ansiBrightRed, ansiReset, login.Home, login.Shell)
}
