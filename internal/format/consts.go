// Package format defines the on-arena layout of allocator blocks: word sizes,
// alignment, sentinel placement, and the packed boundary-tag encoding.
package format

import "math"

// Word geometry.
const (
	// WordSize is the size of one boundary tag or free-list link.
	WordSize = 4

	// DoubleWordSize is the alignment unit and the header+footer overhead.
	DoubleWordSize = 8

	// Alignment is the payload alignment guaranteed to callers.
	Alignment     = 8
	AlignmentMask = Alignment - 1
)

// Block geometry.
const (
	// Overhead is the per-block cost of the header and footer tags.
	Overhead = 2 * WordSize

	// MinBlockSize holds header + next + prev + footer. Split remainders
	// smaller than this are absorbed into the allocated block.
	MinBlockSize = 4 * WordSize

	// MaxBlockSize bounds block sizes and arena offsets so both fit an int32.
	MaxBlockSize = math.MaxInt32 &^ AlignmentMask

	// NextLinkOffset and PrevLinkOffset locate the free-list links relative
	// to the payload of a free block.
	NextLinkOffset = 0
	PrevLinkOffset = WordSize
)

// Sentinel layout at the start of a freshly initialized arena:
//
//	Offset  Size  Description
//	0x00    4     Alignment padding (never a block; doubles as the nil link)
//	0x04    4     Prologue header  [size 8, allocated]
//	0x08    4     Prologue footer  [size 8, allocated]
//	0x0C    4     Epilogue header  [size 0, allocated]
const (
	PadOffset            = 0
	PrologueHeaderOffset = WordSize
	PrologueFooterOffset = 2 * WordSize
	EpilogueHeaderOffset = 3 * WordSize

	// ProloguePayload is the block pointer of the prologue; the first real
	// block starts PrologueSize bytes after it.
	ProloguePayload = DoubleWordSize
	PrologueSize    = DoubleWordSize

	// InitialSize is the arena footprint of the empty heap.
	InitialSize = 4 * WordSize
)

// Free-list table geometry.
const (
	// NumClasses is the number of segregated buckets. Bucket i holds sizes
	// in [2^i, 2^(i+1)); the last bucket also holds every larger size.
	NumClasses = 27

	// DefaultChunkSize is the minimum arena growth step in bytes.
	DefaultChunkSize = 512
)
