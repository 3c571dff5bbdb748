// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package namespace implements the directory tree: creating and deleting
// directories and files, iterating a directory's children, and resolving
// slash-separated paths, all on top of the block/node allocators in
// internal/store.
package namespace

import (
	"bytes"
	"strings"

	"github.com/mmapfs/mmapfs/common"
	"github.com/mmapfs/mmapfs/internal/store"
)

// Engine wires directory-tree operations to a single backing Store.
type Engine struct {
	// Dependencies.
	Store *store.Store
}

// New returns an Engine operating over s.
func New(s *store.Store) *Engine {
	return &Engine{Store: s}
}

// RootDir returns the offset of the root directory inode.
func (e *Engine) RootDir() store.Offset {
	return e.Store.Root().RootDir
}

func validateName(name string) error {
	if name == "" || len(name) >= store.NameMax {
		return store.ErrInvalidName
	}
	if strings.ContainsRune(name, '/') {
		return store.ErrInvalidName
	}
	return nil
}

func setName(dst *[store.NameMax]byte, name string) {
	*dst = [store.NameMax]byte{}
	copy(dst[:], name)
}

func nameEquals(raw [store.NameMax]byte, name string) bool {
	end := bytes.IndexByte(raw[:], 0)
	if end == -1 {
		end = len(raw)
	}
	return string(raw[:end]) == name
}

// CreateDir creates an empty directory named name under parent.
func (e *Engine) CreateDir(parent store.Offset, name string) (store.Offset, error) {
	return e.createChild(parent, name, store.NodeTypeDir)
}

// CreateFile creates an empty file named name under parent.
func (e *Engine) CreateFile(parent store.Offset, name string) (store.Offset, error) {
	return e.createChild(parent, name, store.NodeTypeFile)
}

func (e *Engine) createChild(parent store.Offset, name string, kind store.NodeType) (store.Offset, error) {
	if err := validateName(name); err != nil {
		return store.None, err
	}

	p := e.Store.NodeAt(parent)
	if p.Type != store.NodeTypeDir {
		return store.None, store.ErrNotADir
	}

	for c := p.FirstChild; c != store.None; {
		cn := e.Store.NodeAt(c)
		if nameEquals(cn.Name, name) {
			return store.None, &store.AlreadyExistsError{Parent: parent, Name: name}
		}
		c = cn.NextSibling
	}

	off, err := e.Store.AllocNode()
	if err != nil {
		return store.None, err
	}

	// Re-resolve: AllocNode may have grown the store and moved the mapping.
	p = e.Store.NodeAt(parent)
	child := e.Store.NodeAt(off)
	child.Type = kind
	setName(&child.Name, name)
	child.Parent = parent
	child.NextSibling = p.FirstChild
	p.FirstChild = off

	switch kind {
	case store.NodeTypeDir:
		child.FirstChild = store.None
	case store.NodeTypeFile:
		child.Size = 0
		child.FirstBlock = store.None
	}

	return off, nil
}

// ChildIterator walks a directory's children in list order (most recently
// created first).
type ChildIterator struct {
	eng  *Engine
	next store.Offset
}

// IterChildren returns an iterator over dir's children. dir must be a
// directory.
func (e *Engine) IterChildren(dir store.Offset) (*ChildIterator, error) {
	d := e.Store.NodeAt(dir)
	if d.Type != store.NodeTypeDir {
		return nil, store.ErrNotADir
	}
	return &ChildIterator{eng: e, next: d.FirstChild}, nil
}

// Next returns the next child offset, or (None, false) once exhausted.
func (it *ChildIterator) Next() (store.Offset, bool) {
	if it.next == store.None {
		return store.None, false
	}
	n := it.next
	it.next = it.eng.Store.NodeAt(n).NextSibling
	return n, true
}

// Name returns the NUL-trimmed name of the inode at off.
func (e *Engine) Name(off store.Offset) string {
	raw := e.Store.NodeAt(off).Name
	end := bytes.IndexByte(raw[:], 0)
	if end == -1 {
		end = len(raw)
	}
	return string(raw[:end])
}

// Kind returns the type of the inode at off.
func (e *Engine) Kind(off store.Offset) store.NodeType {
	return e.Store.NodeAt(off).Type
}

// Size returns the declared byte length of the file at off. off must be a
// FILE inode.
func (e *Engine) Size(off store.Offset) uint64 {
	return e.Store.NodeAt(off).Size
}

func (e *Engine) findChild(dir store.Offset, name string) (store.Offset, bool) {
	d := e.Store.NodeAt(dir)
	for c := d.FirstChild; c != store.None; {
		cn := e.Store.NodeAt(c)
		if nameEquals(cn.Name, name) {
			return c, true
		}
		c = cn.NextSibling
	}
	return store.None, false
}

// Resolve walks a '/'-separated path starting at from. The token ".."
// moves to the parent (a no-op at the root); "." is a no-op; empty tokens
// (from leading, trailing, or repeated slashes) are skipped. Returns
// ErrNotFound if any non-trivial token has no matching child.
func (e *Engine) Resolve(from store.Offset, path string) (store.Offset, error) {
	cur := from
	for _, tok := range strings.Split(path, "/") {
		switch tok {
		case "", ".":
			continue
		case "..":
			if parent := e.Store.NodeAt(cur).Parent; parent != store.None {
				cur = parent
			}
		default:
			next, ok := e.findChild(cur, tok)
			if !ok {
				return store.None, store.ErrNotFound
			}
			cur = next
		}
	}
	return cur, nil
}

func (e *Engine) freeFileBlocks(first store.Offset) {
	b := first
	for b != store.None {
		hdr := e.Store.DataBlockHeaderAt(b)
		next := hdr.NextBlock
		e.Store.FreeBlock(b)
		b = next
	}
}

// Delete removes the inode at off from its parent's child list and
// reclaims it. Directories are removed recursively using an explicit
// worklist rather than Go call-stack recursion, so a deep tree cannot
// overflow the goroutine stack. Deleting the root directory is rejected.
func (e *Engine) Delete(off store.Offset) error {
	if off == e.RootDir() {
		return store.ErrIsRoot
	}

	n := e.Store.NodeAt(off)
	parent := n.Parent
	p := e.Store.NodeAt(parent)
	if p.FirstChild == off {
		p.FirstChild = n.NextSibling
	} else {
		for c := p.FirstChild; c != store.None; {
			cn := e.Store.NodeAt(c)
			if cn.NextSibling == off {
				cn.NextSibling = n.NextSibling
				break
			}
			c = cn.NextSibling
		}
	}

	work := common.NewLinkedListQueue[store.Offset]()
	work.Push(off)
	for !work.IsEmpty() {
		cur := work.Pop()
		node := e.Store.NodeAt(cur)
		switch node.Type {
		case store.NodeTypeDir:
			for c := node.FirstChild; c != store.None; {
				cn := e.Store.NodeAt(c)
				work.Push(c)
				c = cn.NextSibling
			}
		case store.NodeTypeFile:
			e.freeFileBlocks(node.FirstBlock)
		}
		e.Store.FreeNode(cur)
	}

	return nil
}
