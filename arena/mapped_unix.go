//go:build unix

package arena

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Mapped is a Source backed by an anonymous private mapping. The kernel
// commits pages lazily, so a large reservation costs nothing until the
// break reaches it.
type Mapped struct {
	region
}

// NewMapped reserves capacity bytes with mmap.
func NewMapped(capacity int) (*Mapped, error) {
	capacity = clampCapacity(capacity)
	data, err := unix.Mmap(-1, 0, capacity,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("arena: mmap %d bytes: %w", capacity, err)
	}
	return &Mapped{region{data: data}}, nil
}

// Close unmaps the reservation. Calling Close twice is a no-op.
func (m *Mapped) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	data := m.data
	m.data, m.brk = nil, 0
	if err := unix.Munmap(data); err != nil && !errors.Is(err, unix.EINVAL) {
		return err
	}
	return nil
}

var _ Source = (*Mapped)(nil)
