package buf

import "testing"

func TestU32LE(t *testing.T) {
	if got := U32LE([]byte{0x78, 0x56, 0x34, 0x12}); got != 0x12345678 {
		t.Fatalf("U32LE = %#x", got)
	}
	if got := U32LE([]byte{1, 2}); got != 0 {
		t.Fatalf("U32LE on short buffer = %#x, want 0", got)
	}
}

func TestU32AtRoundTrip(t *testing.T) {
	b := make([]byte, 16)
	if !PutU32At(b, 8, 0xdeadbeef) {
		t.Fatalf("PutU32At in bounds reported false")
	}
	v, ok := U32At(b, 8)
	if !ok || v != 0xdeadbeef {
		t.Fatalf("U32At = %#x, %v", v, ok)
	}
	if b[8] != 0xef || b[11] != 0xde {
		t.Fatalf("expected little-endian layout, got % x", b[8:12])
	}
}

func TestU32AtOutOfBounds(t *testing.T) {
	b := make([]byte, 8)
	if _, ok := U32At(b, 5); ok {
		t.Fatalf("U32At straddling the end should fail")
	}
	if _, ok := U32At(b, -4); ok {
		t.Fatalf("U32At with negative offset should fail")
	}
	if PutU32At(b, 6, 1) {
		t.Fatalf("PutU32At straddling the end should fail")
	}
	for i, c := range b {
		if c != 0 {
			t.Fatalf("byte %d modified by failed write", i)
		}
	}
}
