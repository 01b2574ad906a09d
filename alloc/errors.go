package alloc

import "errors"

var (
	// ErrInvalidRequest indicates a non-positive, overflowing or oversized request.
	ErrInvalidRequest = errors.New("alloc: invalid request size")

	// ErrOutOfMemory indicates no free block fits and the arena could not grow.
	ErrOutOfMemory = errors.New("alloc: out of memory")

	// ErrInvalidFree indicates a pointer that is not a live allocation.
	ErrInvalidFree = errors.New("alloc: invalid pointer")

	// ErrCorrupt indicates the heap found a tag or link outside the arena.
	// The heap refuses further work once this happens.
	ErrCorrupt = errors.New("alloc: heap corrupt")

	// ErrNotInitialized indicates use of a heap before Init.
	ErrNotInitialized = errors.New("alloc: heap not initialized")
)
