//go:build !unix

package arena

// Mapped falls back to a Go heap reservation where mmap is unavailable.
type Mapped struct {
	region
}

// NewMapped reserves capacity bytes on the Go heap.
func NewMapped(capacity int) (*Mapped, error) {
	return &Mapped{region{data: make([]byte, clampCapacity(capacity))}}, nil
}

// Close releases the reservation.
func (m *Mapped) Close() error {
	m.closed = true
	m.data, m.brk = nil, 0
	return nil
}

var _ Source = (*Mapped)(nil)
