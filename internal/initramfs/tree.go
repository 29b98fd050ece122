// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initramfs

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"path/filepath"
	"slices"
)

const (
	dirMode     = 0o755
	regularMode = 0o755
)

// Owner is the numeric owner of an archive entry.
type Owner struct {
	UID int
	GID int
}

// NodeType is the type of a [Node].
type NodeType int

// Node types.
const (
	NodeTypeDirectory NodeType = iota
	NodeTypeRegular
	NodeTypeLink
)

// Node is a single file tree node.
type Node struct {
	Type NodeType

	// Source is the path of the content of a regular file or the target of
	// a link.
	Source string

	Owner Owner

	children map[string]*Node
}

// IsDir returns true if the [Node] is a directory.
func (n *Node) IsDir() bool {
	return n.Type == NodeTypeDirectory
}

func (n *Node) add(name string, node *Node) (*Node, error) {
	if !n.IsDir() {
		return nil, ErrFileNotDir
	}

	if existing, exists := n.children[name]; exists {
		return existing, ErrFileExist
	}

	if n.children == nil {
		n.children = make(map[string]*Node)
	}

	n.children[name] = node

	return node, nil
}

func (n *Node) get(name string) (*Node, error) {
	if !n.IsDir() {
		return nil, ErrFileNotDir
	}

	node, exists := n.children[name]
	if !exists {
		return nil, ErrFileNotExist
	}

	return node, nil
}

// Tree represents a simple file tree.
type Tree struct {
	// Do not access directly! Always use [Tree.Root] to ensure it exists.
	root *Node
}

func isRoot(path string) bool {
	switch filepath.Clean(path) {
	case "", ".", "..", string(filepath.Separator):
		return true
	default:
		return false
	}
}

// Root returns the root node of the tree.
func (t *Tree) Root() *Node {
	if t.root == nil {
		t.root = &Node{Type: NodeTypeDirectory}
	}

	return t.root
}

// Get returns the node for the given path.
func (t *Tree) Get(path string) (*Node, error) {
	if isRoot(path) {
		return t.Root(), nil
	}

	dir, name := filepath.Split(filepath.Clean(path))

	parent, err := t.Get(dir)
	if err != nil {
		return nil, err
	}

	return parent.get(name)
}

// Mkdir adds a directory node for the given path. Non existing parents are
// created recursively and owned by root. If any of the parents exists but is
// not a directory [ErrFileNotDir] is returned.
func (t *Tree) Mkdir(path string) (*Node, error) {
	cleaned := filepath.Clean(path)
	if isRoot(cleaned) {
		return t.Root(), nil
	}

	dir, name := filepath.Split(cleaned)

	parent, err := t.Mkdir(dir)
	if err != nil {
		return nil, err
	}

	node, err := parent.add(name, &Node{Type: NodeTypeDirectory})
	if errors.Is(err, ErrFileExist) {
		if !node.IsDir() {
			return nil, fmt.Errorf("%w: %s", ErrFileNotDir, cleaned)
		}

		err = nil
	}

	return node, err
}

// AddRegular adds a regular file at path with the content read from source.
func (t *Tree) AddRegular(path, source string) error {
	if isRoot(path) || source == "" {
		return fmt.Errorf("%w: regular %q from %q", ErrInvalidArgument, path, source)
	}

	dir, name := filepath.Split(filepath.Clean(path))

	parent, err := t.Mkdir(dir)
	if err != nil {
		return err
	}

	_, err = parent.add(name, &Node{Type: NodeTypeRegular, Source: source})

	return err
}

// Ln adds a link to target for the given path.
func (t *Tree) Ln(target, path string) error {
	dir, name := filepath.Split(filepath.Clean(path))

	parent, err := t.Mkdir(dir)
	if err != nil {
		return err
	}

	node, err := parent.add(name, &Node{Type: NodeTypeLink, Source: target})
	if errors.Is(err, ErrFileExist) && node.Type == NodeTypeLink && node.Source == target {
		err = nil
	}

	return err
}

// All returns an iterator that iterates all nodes except the root breadth
// first. Parents are always yielded before their children and siblings in
// lexicographic order, so the order is stable.
func (t *Tree) All() iter.Seq2[string, *Node] {
	return func(yield func(string, *Node) bool) {
		type dir struct {
			path string
			node *Node
		}

		queue := []dir{{string(filepath.Separator), t.Root()}}

		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]

			for _, name := range slices.Sorted(maps.Keys(current.node.children)) {
				node := current.node.children[name]
				path := filepath.Join(current.path, name)

				if !yield(path, node) {
					return
				}

				if node.IsDir() {
					queue = append(queue, dir{path, node})
				}
			}
		}
	}
}
