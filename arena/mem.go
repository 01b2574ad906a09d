package arena

// Mem is a Source backed by an ordinary Go byte slice.
type Mem struct {
	region
}

// NewMem reserves capacity bytes on the Go heap.
func NewMem(capacity int) *Mem {
	return &Mem{region{data: make([]byte, clampCapacity(capacity))}}
}

// Close releases the reservation. Further Grow calls fail with ErrClosed.
func (m *Mem) Close() error {
	m.closed = true
	m.data = m.data[:0]
	m.brk = 0
	return nil
}

var _ Source = (*Mem)(nil)
