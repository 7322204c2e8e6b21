package project

import (
	"os"
	"path"
	"strings"
	"time"
)

// Kind distinguishes files from folders.
type Kind int

const (
	KindFolder Kind = iota
	KindFile
)

// Node is one file or folder of a project tree. Nodes are compared by
// identity: two *Node values are the same entry iff the pointers are equal.
type Node struct {
	name     string
	kind     Kind
	parent   *Node
	children []*Node

	// absPath is empty for nodes built in memory.
	absPath string
	modTime func() (time.Time, error)
}

// NewFolder returns a detached folder node.
func NewFolder(name string) *Node {
	return &Node{name: name, kind: KindFolder}
}

// NewFile returns a detached file node whose modification time is fixed.
func NewFile(name string, modTime time.Time) *Node {
	return &Node{name: name, kind: KindFile, modTime: func() (time.Time, error) { return modTime, nil }}
}

// Add appends children to a folder and returns the folder so trees can be
// built inline.
func (n *Node) Add(children ...*Node) *Node {
	for _, c := range children {
		c.parent = n
		n.children = append(n.children, c)
	}
	return n
}

func (n *Node) Name() string      { return n.name }
func (n *Node) Parent() *Node     { return n.parent }
func (n *Node) Children() []*Node { return n.children }
func (n *Node) IsFile() bool      { return n.kind == KindFile }
func (n *Node) IsFolder() bool    { return n.kind == KindFolder }

// AbsPath is the location on local disk, or "" for in-memory nodes.
func (n *Node) AbsPath() string { return n.absPath }

// RelPath returns the slash separated path relative to the project root.
// The root itself has the empty path.
func (n *Node) RelPath() string {
	if n.parent == nil {
		return ""
	}
	var parts []string
	for cur := n; cur.parent != nil; cur = cur.parent {
		parts = append(parts, cur.name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// ModTime reports the current modification time. It is queried lazily so a
// file touched after the scan is seen as modified.
func (n *Node) ModTime() (time.Time, error) {
	if n.modTime != nil {
		return n.modTime()
	}
	if n.absPath == "" {
		return time.Time{}, os.ErrNotExist
	}
	info, err := os.Stat(n.absPath)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// IsAncestorOf reports whether n is a strict ancestor of other.
func (n *Node) IsAncestorOf(other *Node) bool {
	if other == nil {
		return false
	}
	for cur := other.parent; cur != nil; cur = cur.parent {
		if cur == n {
			return true
		}
	}
	return false
}

// Tree is a project's file hierarchy rooted at the project directory.
type Tree struct {
	ID   string
	root *Node
}

// NewTree wraps an in-memory root folder.
func NewTree(id string, root *Node) *Tree {
	return &Tree{ID: id, root: root}
}

func (t *Tree) Root() *Node { return t.root }

// Find resolves a project relative path ("" or "." is the root).
func (t *Tree) Find(rel string) *Node {
	rel = strings.Trim(path.Clean("/"+strings.ReplaceAll(rel, "\\", "/")), "/")
	if rel == "" {
		return t.root
	}
	cur := t.root
	for _, part := range strings.Split(rel, "/") {
		var next *Node
		for _, c := range cur.children {
			if c.name == part {
				next = c
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

// Contains reports whether n belongs to this tree.
func (t *Tree) Contains(n *Node) bool {
	return n != nil && (n == t.root || t.root.IsAncestorOf(n))
}

// Walk visits every node depth-first in tree order. Returning false from fn
// skips the node's children.
func (t *Tree) Walk(fn func(n *Node) bool) {
	var visit func(n *Node)
	visit = func(n *Node) {
		if !fn(n) {
			return
		}
		for _, c := range n.children {
			visit(c)
		}
	}
	visit(t.root)
}
