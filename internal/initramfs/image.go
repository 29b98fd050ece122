// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initramfs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// InitPath is the path the kernel executes from an initramfs.
const InitPath = "/init"

// BaseDirs are created in every image. The mount points are required before
// the root file system is writable.
var BaseDirs = []string{
	"/bin",
	"/dev",
	"/etc",
	"/proc",
	"/sbin",
	"/sys",
	"/usr/local/bin",
	"/usr/local/sbin",
}

// OpenFunc opens the source of a regular file.
type OpenFunc func(path string) (fs.File, error)

// OpenHost opens files of the host file system.
func OpenHost(path string) (fs.File, error) {
	return os.Open(path)
}

// Image describes the content of an initramfs.
type Image struct {
	// Init is the path of the init binary. It is added as [InitPath].
	Init string

	// Home is the home directory of the login user, owned by HomeOwner.
	Home      string
	HomeOwner Owner

	// Files are additional regular files by archive path with the path of
	// their content.
	Files map[string]string

	// Links are additional symbolic links by archive path with their target.
	Links map[string]string
}

// ParseFileArg parses "path=source" as used for [Image.Files]. If there is no
// "=", the source is added with its own path.
func ParseFileArg(arg string) (string, string, error) {
	path, source, found := strings.Cut(arg, "=")
	if !found {
		source = path
	}

	if path == "" || source == "" || !filepath.IsAbs(path) {
		return "", "", fmt.Errorf("%w: file %q", ErrInvalidArgument, arg)
	}

	return filepath.Clean(path), source, nil
}

// Tree creates the file tree of the image.
func (i Image) Tree() (*Tree, error) {
	if i.Init == "" {
		return nil, fmt.Errorf("%w: no init given", ErrInvalidArgument)
	}

	tree := &Tree{}

	for _, dir := range BaseDirs {
		if _, err := tree.Mkdir(dir); err != nil {
			return nil, fmt.Errorf("add %s: %w", dir, err)
		}
	}

	if i.Home != "" {
		home, err := tree.Mkdir(i.Home)
		if err != nil {
			return nil, fmt.Errorf("add home %s: %w", i.Home, err)
		}

		home.Owner = i.HomeOwner
	}

	if err := tree.AddRegular(InitPath, i.Init); err != nil {
		return nil, fmt.Errorf("add init: %w", err)
	}

	for path, source := range i.Files {
		if err := tree.AddRegular(path, source); err != nil {
			return nil, fmt.Errorf("add file %s: %w", path, err)
		}
	}

	for path, target := range i.Links {
		if err := tree.Ln(target, path); err != nil {
			return nil, fmt.Errorf("add link %s: %w", path, err)
		}
	}

	return tree, nil
}

// Write writes the image as CPIO archive into w. Content of regular files is
// opened with open.
func (i Image) Write(w io.Writer, open OpenFunc) error {
	tree, err := i.Tree()
	if err != nil {
		return err
	}

	writer := NewCPIOWriter(w)

	if err := WriteTree(writer, tree, open); err != nil {
		return err
	}

	return writer.Close()
}

// WriteTree writes all nodes of the tree into the [Writer]. Archive paths are
// relative to the root.
func WriteTree(writer Writer, tree *Tree, open OpenFunc) error {
	for path, node := range tree.All() {
		name := strings.TrimPrefix(path, string(filepath.Separator))

		if err := writeNode(writer, name, node, open); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	return nil
}

func writeNode(writer Writer, name string, node *Node, open OpenFunc) error {
	switch node.Type {
	case NodeTypeDirectory:
		return writer.WriteDirectory(name, dirMode, node.Owner)
	case NodeTypeLink:
		return writer.WriteLink(name, node.Source)
	case NodeTypeRegular:
		source, err := open(node.Source)
		if err != nil {
			return fmt.Errorf("open source: %w", err)
		}
		defer source.Close()

		return writer.WriteRegular(name, source, regularMode, node.Owner)
	default:
		return fmt.Errorf("%w: node type %d", ErrInvalidArgument, node.Type)
	}
}
