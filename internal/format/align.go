package format

// Align8 returns n aligned up to the next 8-byte boundary.
//
// Example:
//
//	Align8(1)  = 8
//	Align8(8)  = 8
//	Align8(9)  = 16
//	Align8(16) = 16
func Align8(n int) int {
	return (n + AlignmentMask) & ^AlignmentMask
}

// AdjustedSize returns the block size needed to satisfy a request of n
// payload bytes: the aligned payload plus header and footer, never less
// than MinBlockSize. ok is false when the result cannot be described by a
// boundary tag.
//
// Example:
//
//	AdjustedSize(1)  = 16
//	AdjustedSize(8)  = 16
//	AdjustedSize(9)  = 24
//	AdjustedSize(32) = 40
func AdjustedSize(n int) (int, bool) {
	if n <= 0 || n > MaxBlockSize-Overhead {
		return 0, false
	}
	if n <= DoubleWordSize {
		return MinBlockSize, true
	}
	return Align8(n) + Overhead, true
}

// PayloadSize returns the number of caller-usable bytes in a block of the
// given total size.
func PayloadSize(blockSize int) int {
	if blockSize < Overhead {
		return 0
	}
	return blockSize - Overhead
}
