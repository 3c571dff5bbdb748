// Package store implements the on-disk, memory-mapped block layout that
// backs the filesystem: the root record, the packed-inode node blocks, the
// raw data blocks, and the allocators that carve blocks and nodes out of a
// single growable backing file.
//
// Every persistent reference into the mapping is an Offset (a byte distance
// from the start of the mapping) rather than a pointer. Allocation may grow
// the backing file and move the mapping to a new base address, so no
// exported accessor returns a pointer that is expected to outlive the next
// allocator call; callers re-derive pointers from the live Store after every
// Alloc* call.
package store

import "unsafe"

// BlockSize is the fixed size of every block in the backing store.
const BlockSize = 4096

// NameMax is the fixed width, in bytes, of a packed inode name.
const NameMax = 64

// FDMax is the number of slots in the open-handle table.
const FDMax = 1024

// Offset is a byte offset from the start of the mapping. It is the only
// form a persistent reference takes; raw pointers never survive past the
// call that produced them.
type Offset uint64

// None is the reserved sentinel offset meaning "absent". The root record
// occupies offset 0 but is never itself referred to via a next/first field.
const None Offset = 0

// NodeType discriminates what an inode slot currently represents.
type NodeType uint32

const (
	// NodeTypeRoot marks the fixed root record at offset 0. It is never
	// the type of a packed inode slot; it exists so that an accidental
	// dereference of offset 0 as an inode is recognizable.
	NodeTypeRoot NodeType = iota
	NodeTypeFile
	NodeTypeDir
	// NodeTypeSymlink is reserved for a future link type; nothing in
	// this package constructs a node of this type.
	NodeTypeSymlink
)

// Node is a packed inode slot. DIR and FILE variants share one flat layout
// (Go has no union type); only the fields relevant to Type are meaningful.
type Node struct {
	Type        NodeType
	_           uint32 // padding to keep Offset fields 8-byte aligned
	Parent      Offset
	NextSibling Offset
	Name        [NameMax]byte

	// DIR variant.
	FirstChild Offset

	// FILE variant.
	Size       uint64
	FirstBlock Offset
}

const nodeSize = Offset(unsafe.Sizeof(Node{}))

// EmptyNode overlays a free inode slot. Only its leading word is
// meaningful; the rest of the slot's bytes are garbage until reused.
type EmptyNode struct {
	NextNode Offset
}

// NodeBlockHeader is the header of a block holding a packed array of inode
// slots.
type NodeBlockHeader struct {
	NextBlock Offset
	NodeCount uint64
}

const nodeBlockHeaderSize = Offset(unsafe.Sizeof(NodeBlockHeader{}))

// NodesPerBlock is the number of inode slots that fit after a node block's
// header.
const NodesPerBlock = (BlockSize - int(nodeBlockHeaderSize)) / int(nodeSize)

// DataBlockHeader is the header of a block holding raw file bytes.
type DataBlockHeader struct {
	NextBlock Offset
}

const dataBlockHeaderSize = Offset(unsafe.Sizeof(DataBlockHeader{}))

// DataPerBlock is the number of payload bytes available in a data block
// after its header.
const DataPerBlock = BlockSize - int(dataBlockHeaderSize)

// EmptyBlock overlays a block on the free-block list. Only its leading word
// is meaningful.
type EmptyBlock struct {
	NextBlock Offset
}

// RootRecord is the fixed header at offset 0 of the backing store. Its
// leading Type field mirrors Node's so that a Type read at offset 0 always
// reports NodeTypeRoot, never a valid inode kind.
type RootRecord struct {
	Type           NodeType
	_              uint32
	FirstFreeNode  Offset
	FirstFreeBlock Offset
	RootDir        Offset
	FirstNodeBlock Offset
}
