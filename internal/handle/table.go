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

// Package handle implements the open-file-handle table and the
// read/write/seek path over a file's data-block chain.
package handle

import (
	"github.com/mmapfs/mmapfs/internal/store"
)

// Whence values for Seek, mirroring io.Seeker.
const (
	SeekSet = 0
	SeekCur = 1
	SeekEnd = 2
)

type slot struct {
	inUse  bool
	file   store.Offset
	cursor uint64
}

// Table is the process-local open-handle table: FDMax slots, each FREE or
// OPEN with its own cursor. Not persisted.
type Table struct {
	// Dependencies.
	store *store.Store

	// Mutable state.
	slots [store.FDMax]slot
}

// New returns a Table of handles backed by s.
func New(s *store.Store) *Table {
	return &Table{store: s}
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func (t *Table) check(fd int) error {
	if fd < 0 || fd >= store.FDMax || !t.slots[fd].inUse {
		return store.ErrBadHandle
	}
	return nil
}

// Open picks the lowest-index free slot for file and returns it. file must
// be a FILE inode. Returns ErrTooManyOpen if every slot is in use.
func (t *Table) Open(file store.Offset) (int, error) {
	if t.store.NodeAt(file).Type != store.NodeTypeFile {
		return -1, store.ErrNotAFile
	}
	for i := range t.slots {
		if !t.slots[i].inUse {
			t.slots[i] = slot{inUse: true, file: file, cursor: 0}
			return i, nil
		}
	}
	return -1, store.ErrTooManyOpen
}

// Close frees fd. Double-close is a usage error.
func (t *Table) Close(fd int) error {
	if err := t.check(fd); err != nil {
		return err
	}
	t.slots[fd] = slot{}
	return nil
}

// walkTo advances from the first data block of a file through n whole
// blocks, returning the offset of the resulting block. allocate controls
// whether a missing link is created (write) or treated as EOF (read).
func (t *Table) walkTo(first store.Offset, blocks uint64, allocate bool) (store.Offset, bool, error) {
	block := first
	for i := uint64(0); i < blocks; i++ {
		hdr := t.store.DataBlockHeaderAt(block)
		if hdr.NextBlock == store.None {
			if !allocate {
				return store.None, false, nil
			}
			nb, err := t.store.AllocDataBlock()
			if err != nil {
				return store.None, false, err
			}
			hdr = t.store.DataBlockHeaderAt(block)
			hdr.NextBlock = nb
		}
		block = t.store.DataBlockHeaderAt(block).NextBlock
	}
	return block, true, nil
}

// Read copies up to len(buf) bytes starting at the handle's cursor into
// buf, stopping at the file's declared size. It never allocates a block:
// a read positioned at or beyond EOF returns 0 bytes and no error.
func (t *Table) Read(fd int, buf []byte) (int, error) {
	if err := t.check(fd); err != nil {
		return 0, err
	}
	s := t.slots[fd]
	node := t.store.NodeAt(s.file)

	if s.cursor >= node.Size || node.FirstBlock == store.None {
		return 0, nil
	}

	toRead := min64(uint64(len(buf)), node.Size-s.cursor)
	if toRead == 0 {
		return 0, nil
	}

	blockIdx := s.cursor / uint64(store.DataPerBlock)
	block, ok, err := t.walkTo(node.FirstBlock, blockIdx, false)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	blockOff := s.cursor % uint64(store.DataPerBlock)
	var nRead uint64
	for nRead < toRead {
		payload := t.store.DataBlockPayload(block)
		n := min64(uint64(store.DataPerBlock)-blockOff, toRead-nRead)
		copy(buf[nRead:nRead+n], payload[blockOff:blockOff+n])
		nRead += n
		blockOff = 0

		if nRead < toRead {
			next := t.store.DataBlockHeaderAt(block).NextBlock
			if next == store.None {
				break
			}
			block = next
		}
	}

	s.cursor += nRead
	t.slots[fd] = s
	return int(nRead), nil
}

// Write copies buf into the file's block chain starting at the handle's
// cursor, allocating and linking data blocks as needed, and updates the
// file's declared size to max(size, cursor+len(buf)).
func (t *Table) Write(fd int, buf []byte) (int, error) {
	if err := t.check(fd); err != nil {
		return 0, err
	}
	if len(buf) == 0 {
		return 0, nil
	}
	s := t.slots[fd]
	cursor := s.cursor
	length := uint64(len(buf))

	node := t.store.NodeAt(s.file)
	if node.FirstBlock == store.None {
		nb, err := t.store.AllocDataBlock()
		if err != nil {
			return 0, err
		}
		node = t.store.NodeAt(s.file)
		node.FirstBlock = nb
	}

	blockIdx := cursor / uint64(store.DataPerBlock)
	block, _, err := t.walkTo(node.FirstBlock, blockIdx, true)
	if err != nil {
		return 0, err
	}

	blockOff := cursor % uint64(store.DataPerBlock)
	var nWritten uint64
	for nWritten < length {
		payload := t.store.DataBlockPayload(block)
		n := min64(uint64(store.DataPerBlock)-blockOff, length-nWritten)
		copy(payload[blockOff:blockOff+n], buf[nWritten:nWritten+n])
		nWritten += n
		blockOff = 0

		if nWritten < length {
			next := t.store.DataBlockHeaderAt(block).NextBlock
			if next == store.None {
				nb, err := t.store.AllocDataBlock()
				if err != nil {
					return int(nWritten), err
				}
				t.store.DataBlockHeaderAt(block).NextBlock = nb
				next = nb
			}
			block = next
		}
	}

	node = t.store.NodeAt(s.file)
	if newSize := cursor + nWritten; newSize > node.Size {
		node.Size = newSize
	}

	s.cursor = cursor + nWritten
	t.slots[fd] = s
	return int(nWritten), nil
}

// Seek repositions fd's cursor. SeekEnd computes size - offset exactly,
// with no off-by-one. Resulting negative cursors are rejected.
func (t *Table) Seek(fd int, offset int64, whence int) error {
	if err := t.check(fd); err != nil {
		return err
	}
	s := t.slots[fd]
	node := t.store.NodeAt(s.file)

	var next int64
	switch whence {
	case SeekSet:
		next = offset
	case SeekCur:
		next = int64(s.cursor) + offset
	case SeekEnd:
		next = int64(node.Size) - offset
	default:
		return store.ErrInvalidArg
	}
	if next < 0 {
		return store.ErrInvalidArg
	}

	s.cursor = uint64(next)
	t.slots[fd] = s
	return nil
}
