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

import "context"

// AllocBlock returns a block from the free-block list (LIFO), or grows the
// backing store by one block when the free list is empty. The returned
// block's contents are indeterminate.
func (s *Store) AllocBlock() (Offset, error) {
	var (
		off Offset
		err error
	)
	if free := s.Root().FirstFreeBlock; free != None {
		next := s.emptyBlockAt(free).NextBlock
		s.Root().FirstFreeBlock = next
		off, err = free, nil
	} else {
		off, err = s.growOneBlock()
	}
	if err == nil {
		s.metrics.BlocksAllocatedCount(context.Background(), 1)
	}
	return off, err
}

// AllocDataBlock allocates a block and zeroes it for use as a data block.
func (s *Store) AllocDataBlock() (Offset, error) {
	b, err := s.AllocBlock()
	if err != nil {
		return None, err
	}
	s.zeroBlock(b)
	return b, nil
}

// AllocNodeBlock allocates a block, initializes it as an empty node block,
// and pushes it onto the head of the node-block list so that it becomes
// the block future AllocNode calls fill first.
func (s *Store) AllocNodeBlock() (Offset, error) {
	b, err := s.AllocBlock()
	if err != nil {
		return None, err
	}
	hdr := s.NodeBlockHeaderAt(b)
	hdr.NodeCount = 0
	hdr.NextBlock = s.Root().FirstNodeBlock
	s.Root().FirstNodeBlock = b
	return b, nil
}

// FreeBlock returns a block to the free-block list.
func (s *Store) FreeBlock(off Offset) {
	eb := s.emptyBlockAt(off)
	eb.NextBlock = s.Root().FirstFreeBlock
	s.Root().FirstFreeBlock = off
}

// AllocNode returns an inode slot: from the free-node list if non-empty,
// otherwise from the head node block if it has room, otherwise from a
// freshly allocated node block. Amortized O(1); the head node block always
// has room unless the free-node list is non-empty.
func (s *Store) AllocNode() (Offset, error) {
	off, err := s.allocNode()
	if err == nil {
		s.metrics.NodesAllocatedCount(context.Background(), 1)
	}
	return off, err
}

func (s *Store) allocNode() (Offset, error) {
	if free := s.Root().FirstFreeNode; free != None {
		next := s.emptyNodeAt(free).NextNode
		s.Root().FirstFreeNode = next
		return free, nil
	}

	head := s.Root().FirstNodeBlock
	if head != None {
		hdr := s.NodeBlockHeaderAt(head)
		if hdr.NodeCount < uint64(NodesPerBlock) {
			idx := hdr.NodeCount
			hdr.NodeCount++
			return head + nodeBlockHeaderSize + Offset(idx)*nodeSize, nil
		}
	}

	nb, err := s.AllocNodeBlock()
	if err != nil {
		return None, err
	}
	hdr := s.NodeBlockHeaderAt(nb)
	hdr.NodeCount = 1
	return nb + nodeBlockHeaderSize, nil
}

// FreeNode returns an inode slot to the free-node list.
func (s *Store) FreeNode(off Offset) {
	en := s.emptyNodeAt(off)
	en.NextNode = s.Root().FirstFreeNode
	s.Root().FirstFreeNode = off
}
