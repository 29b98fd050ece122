// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initramfs_test

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/aibor/ttyinit/internal/initramfs"
	"github.com/cavaliergopher/cpio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type archiveEntry struct {
	mode cpio.FileMode
	uid  int
	gid  int
	body string
}

func readArchive(t *testing.T, archive io.Reader) map[string]archiveEntry {
	t.Helper()

	entries := map[string]archiveEntry{}
	reader := cpio.NewReader(archive)

	for {
		hdr, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return entries
		}

		require.NoError(t, err)

		body, err := io.ReadAll(reader)
		require.NoError(t, err)

		if hdr.Mode&cpio.TypeSymlink == cpio.TypeSymlink {
			body = []byte(hdr.Linkname)
		}

		entries[hdr.Name] = archiveEntry{
			mode: hdr.Mode,
			uid:  hdr.Uid,
			gid:  hdr.Guid,
			body: string(body),
		}
	}
}

func TestImage_Write(t *testing.T) {
	sources := fstest.MapFS{
		"ttyinit": &fstest.MapFile{Data: []byte("init binary")},
		"zsh":     &fstest.MapFile{Data: []byte("shell binary")},
	}

	image := initramfs.Image{
		Init:      "ttyinit",
		Home:      "/saraph",
		HomeOwner: initramfs.Owner{UID: 1, GID: 1},
		Files: map[string]string{
			"/bin/zsh": "zsh",
		},
		Links: map[string]string{
			"/bin/sh": "zsh",
		},
	}

	var archive bytes.Buffer

	err := image.Write(&archive, sources.Open)
	require.NoError(t, err)

	entries := readArchive(t, &archive)

	for _, dir := range initramfs.BaseDirs {
		name := dir[1:]
		if assert.Contains(t, entries, name) {
			assert.Equal(t, cpio.FileMode(cpio.TypeDir), entries[name].mode&cpio.TypeDir, name)
			assert.Equal(t, 0, entries[name].uid, name)
		}
	}

	if assert.Contains(t, entries, "saraph") {
		assert.Equal(t, 1, entries["saraph"].uid)
		assert.Equal(t, 1, entries["saraph"].gid)
	}

	if assert.Contains(t, entries, "init") {
		assert.Equal(t, "init binary", entries["init"].body)
		assert.EqualValues(t, 0o755, entries["init"].mode&cpio.ModePerm)
	}

	if assert.Contains(t, entries, "bin/zsh") {
		assert.Equal(t, "shell binary", entries["bin/zsh"].body)
	}

	if assert.Contains(t, entries, "bin/sh") {
		assert.Equal(t, "zsh", entries["bin/sh"].body)
	}
}

func TestImage_Write_Fails(t *testing.T) {
	tests := []struct {
		name        string
		image       initramfs.Image
		expectedErr error
	}{
		{
			name:        "no init",
			expectedErr: initramfs.ErrInvalidArgument,
		},
		{
			name: "missing source",
			image: initramfs.Image{
				Init: "missing",
			},
			expectedErr: fs.ErrNotExist,
		},
		{
			name: "file below file",
			image: initramfs.Image{
				Init:  "ttyinit",
				Files: map[string]string{"/init/zsh": "ttyinit"},
			},
			expectedErr: initramfs.ErrFileNotDir,
		},
	}

	sources := fstest.MapFS{
		"ttyinit": &fstest.MapFile{Data: []byte("init binary")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.image.Write(io.Discard, sources.Open)
			require.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func TestParseFileArg(t *testing.T) {
	tests := []struct {
		name           string
		arg            string
		expectedPath   string
		expectedSource string
		expectedErr    error
	}{
		{
			name:           "with source",
			arg:            "/bin/zsh=/usr/bin/zsh",
			expectedPath:   "/bin/zsh",
			expectedSource: "/usr/bin/zsh",
		},
		{
			name:           "same path",
			arg:            "/etc/ttyinit.env",
			expectedPath:   "/etc/ttyinit.env",
			expectedSource: "/etc/ttyinit.env",
		},
		{
			name:        "relative path",
			arg:         "bin/zsh=zsh",
			expectedErr: initramfs.ErrInvalidArgument,
		},
		{
			name:        "empty source",
			arg:         "/bin/zsh=",
			expectedErr: initramfs.ErrInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, source, err := initramfs.ParseFileArg(tt.arg)
			require.ErrorIs(t, err, tt.expectedErr)

			assert.Equal(t, tt.expectedPath, path)
			assert.Equal(t, tt.expectedSource, source)
		})
	}
}
