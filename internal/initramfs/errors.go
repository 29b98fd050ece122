// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initramfs

import (
	"errors"
	"io/fs"
)

var (
	// ErrFileNotExist is returned if a tree node that is looked up does not
	// exist.
	ErrFileNotExist = fs.ErrNotExist

	// ErrFileExist is returned if a tree node exists that was not expected.
	ErrFileExist = fs.ErrExist

	// ErrFileNotDir is returned if a file exists but is not a directory.
	ErrFileNotDir = errors.New("not a directory")

	// ErrFileNotRegular is returned if the source is not a regular file.
	ErrFileNotRegular = errors.New("source is not a regular file")

	// ErrInvalidArgument is returned if an invalid argument is given.
	ErrInvalidArgument = errors.New("invalid argument")
)
