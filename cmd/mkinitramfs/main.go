// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Command mkinitramfs writes a bootable initramfs with ttyinit as init.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/aibor/ttyinit/internal/initramfs"
)

func main() {
	err := run(os.Args, os.Stdout)
	if errors.Is(err, flag.ErrHelp) {
		return
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	cfg, err := parseArgs(args)
	if err != nil {
		return err
	}

	dst := stdout

	if cfg.output != "" {
		file, err := os.Create(cfg.output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer file.Close()

		dst = file
	}

	if err := cfg.image.Write(dst, initramfs.OpenHost); err != nil {
		return fmt.Errorf("write initramfs: %w", err)
	}

	return nil
}
