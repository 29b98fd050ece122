// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"flag"
	"fmt"
	"path/filepath"

	"github.com/aibor/ttyinit/internal/initramfs"
	"github.com/aibor/ttyinit/sysinit"
)

type config struct {
	output string
	image  initramfs.Image
}

func parseArgs(args []string) (*config, error) {
	login := sysinit.DefaultConfig().Login

	cfg := &config{
		image: initramfs.Image{
			Home: login.Home,
			HomeOwner: initramfs.Owner{
				UID: int(login.UID),
				GID: int(login.GID),
			},
			Files: map[string]string{},
			Links: map[string]string{},
		},
	}

	fsName := fmt.Sprintf("%s [flags...] init", filepath.Base(args[0]))
	fs := flag.NewFlagSet(fsName, flag.ContinueOnError)

	fs.StringVar(
		&cfg.output,
		"o",
		cfg.output,
		"output file (default stdout)",
	)

	fs.Func(
		"file",
		"additional file as `path=source`, can be given multiple times",
		func(arg string) error {
			path, source, err := initramfs.ParseFileArg(arg)
			if err != nil {
				return err
			}

			cfg.image.Files[path] = source

			return nil
		},
	)

	fs.Func(
		"link",
		"additional symbolic link as `path=target`, can be given multiple times",
		func(arg string) error {
			path, target, err := initramfs.ParseFileArg(arg)
			if err != nil {
				return err
			}

			cfg.image.Links[path] = target

			return nil
		},
	)

	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return nil, fmt.Errorf("%w: exactly one init file required", initramfs.ErrInvalidArgument)
	}

	initFile, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		return nil, fmt.Errorf("lookup absolute path for %s: %w", fs.Arg(0), err)
	}

	cfg.image.Init = initFile

	return cfg, nil
}
