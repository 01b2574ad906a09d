// Package buf contains bounds-checked, endian-safe word access over byte regions.
package buf

import "encoding/binary"

// U32LE reads a little-endian uint32 from b. Returns 0 when b is too short.
func U32LE(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// U32At reads the little-endian uint32 at b[off:off+4].
// ok is false when the word does not lie entirely within b.
func U32At(b []byte, off int) (uint32, bool) {
	w, ok := Slice(b, off, 4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(w), true
}

// PutU32At writes v little-endian at b[off:off+4].
// It reports false, leaving b untouched, when the word is out of bounds.
func PutU32At(b []byte, off int, v uint32) bool {
	w, ok := Slice(b, off, 4)
	if !ok {
		return false
	}
	binary.LittleEndian.PutUint32(w, v)
	return true
}
