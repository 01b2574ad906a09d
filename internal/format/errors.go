package format

import "errors"

var (
	// ErrTruncated indicates a tag or link word lies outside the arena.
	ErrTruncated = errors.New("format: truncated arena")
	// ErrBadTag indicates a tag with reserved bits set or an impossible size.
	ErrBadTag = errors.New("format: malformed boundary tag")
)
