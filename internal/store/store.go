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

package store

import (
	"context"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/mmapfs/mmapfs/common"
)

// Store owns the backing file descriptor, the current length of the
// mapping, and the current mapping itself. Every accessor re-slices data
// fresh on each call: no pointer derived from data is ever stashed in a
// struct field, because Alloc* calls may grow the file and move the
// mapping to a new base address.
type Store struct {
	// Dependencies.
	file    *os.File
	metrics common.AllocMetricHandle

	// Mutable state.
	data []byte
	size int64
}

// Option configures Open.
type Option func(*Store)

// WithMetrics records allocator activity (nodes/blocks handed out, store
// growth) through h instead of the default no-op handle.
func WithMetrics(h common.AllocMetricHandle) Option {
	return func(s *Store) { s.metrics = h }
}

// Open opens or creates the backing file at path. An empty (zero-length)
// file is initialized with a fresh root record and an empty root
// directory; a non-empty file is mapped as-is.
func Open(path string, opts ...Option) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, &IOError{Op: "open", Err: err}
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &IOError{Op: "stat", Err: err}
	}

	size := info.Size()
	empty := size == 0
	if empty {
		if err := f.Truncate(BlockSize); err != nil {
			f.Close()
			return nil, &IOError{Op: "truncate", Err: err}
		}
		size = BlockSize
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, &IOError{Op: "mmap", Err: err}
	}

	s := &Store{file: f, data: data, size: size, metrics: common.NewNoopMetrics()}
	for _, opt := range opts {
		opt(s)
	}
	if empty {
		if err := s.initRoot(); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// initRoot lays down a fresh root record and allocates the root directory
// inode. Grounded on the original new_mapper: the root directory node is
// allocated before RootDir is set, because allocating the first node block
// forces the first store growth.
func (s *Store) initRoot() error {
	root := s.rootAt(None)
	root.Type = NodeTypeRoot
	root.FirstFreeNode = None
	root.FirstFreeBlock = None
	root.FirstNodeBlock = None
	root.RootDir = None

	rootDir, err := s.AllocNode()
	if err != nil {
		return err
	}

	dir := s.NodeAt(rootDir)
	dir.Type = NodeTypeDir
	dir.Parent = None
	dir.NextSibling = None
	dir.FirstChild = None
	dir.Name = [NameMax]byte{}

	s.rootAt(None).RootDir = rootDir
	return nil
}

// Flush synchronizes the mapping back to the backing file.
func (s *Store) Flush() error {
	if err := unix.Msync(s.data, unix.MS_SYNC); err != nil {
		return &IOError{Op: "msync", Err: err}
	}
	return nil
}

// Close flushes, unmaps, and closes the backing file. The Store must not
// be used afterward.
func (s *Store) Close() error {
	var flushErr error
	if s.data != nil {
		flushErr = s.Flush()
		if err := unix.Munmap(s.data); err != nil && flushErr == nil {
			flushErr = &IOError{Op: "munmap", Err: err}
		}
		s.data = nil
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil && flushErr == nil {
			flushErr = &IOError{Op: "close", Err: err}
		}
		s.file = nil
	}
	return flushErr
}

// Size returns the current length of the backing store, in bytes. Always
// a multiple of BlockSize.
func (s *Store) Size() int64 { return s.size }

// growOneBlock extends the backing file by one block, remaps (possibly at
// a new base address), and returns the offset of the newly appended block.
func (s *Store) growOneBlock() (Offset, error) {
	oldSize := s.size
	newSize := oldSize + BlockSize

	if err := s.file.Truncate(newSize); err != nil {
		return None, &IOError{Op: "truncate", Err: err}
	}

	newData, err := unix.Mremap(s.data, int(newSize), unix.MREMAP_MAYMOVE)
	if err != nil {
		return None, &IOError{Op: "mremap", Err: err}
	}

	s.data = newData
	s.size = newSize
	s.metrics.StoreGrowCount(context.Background(), 1)
	return Offset(oldSize), nil
}

// checkOffset panics if off does not leave room for n bytes inside the
// current mapping. This guards a programming-level invariant violation
// (a corrupt or out-of-range offset), not a recoverable user error.
func (s *Store) checkOffset(off Offset, n int) {
	if int64(off)+int64(n) > int64(len(s.data)) {
		panic(fmt.Sprintf("store: offset %d+%d out of range (mapping size %d)", off, n, len(s.data)))
	}
}

func (s *Store) rootAt(off Offset) *RootRecord {
	s.checkOffset(off, int(unsafe.Sizeof(RootRecord{})))
	return (*RootRecord)(unsafe.Pointer(&s.data[off]))
}

// Root returns the root record. The returned pointer must not be retained
// across any call that may allocate.
func (s *Store) Root() *RootRecord { return s.rootAt(None) }

// NodeAt returns the inode at off. The returned pointer must not be
// retained across any call that may allocate.
func (s *Store) NodeAt(off Offset) *Node {
	s.checkOffset(off, int(nodeSize))
	return (*Node)(unsafe.Pointer(&s.data[off]))
}

func (s *Store) emptyNodeAt(off Offset) *EmptyNode {
	s.checkOffset(off, int(unsafe.Sizeof(EmptyNode{})))
	return (*EmptyNode)(unsafe.Pointer(&s.data[off]))
}

// NodeBlockHeaderAt returns the header of the node block at off.
func (s *Store) NodeBlockHeaderAt(off Offset) *NodeBlockHeader {
	s.checkOffset(off, int(nodeBlockHeaderSize))
	return (*NodeBlockHeader)(unsafe.Pointer(&s.data[off]))
}

// DataBlockHeaderAt returns the header of the data block at off.
func (s *Store) DataBlockHeaderAt(off Offset) *DataBlockHeader {
	s.checkOffset(off, int(dataBlockHeaderSize))
	return (*DataBlockHeader)(unsafe.Pointer(&s.data[off]))
}

// DataBlockPayload returns the writable payload bytes of the data block at
// off, i.e. the block's content area following its header. The returned
// slice must not be retained across any call that may allocate.
func (s *Store) DataBlockPayload(off Offset) []byte {
	start := off + dataBlockHeaderSize
	s.checkOffset(start, DataPerBlock)
	return s.data[start : start+Offset(DataPerBlock)]
}

func (s *Store) emptyBlockAt(off Offset) *EmptyBlock {
	s.checkOffset(off, int(unsafe.Sizeof(EmptyBlock{})))
	return (*EmptyBlock)(unsafe.Pointer(&s.data[off]))
}

func (s *Store) zeroBlock(off Offset) {
	s.checkOffset(off, BlockSize)
	clear(s.data[off : off+BlockSize])
}
