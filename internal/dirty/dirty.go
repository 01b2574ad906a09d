// Package dirty tracks modified byte ranges of a memory-mapped arena so that
// a flush only syncs the pages that actually changed.
//
// The tracker records raw ranges cheaply on every write, then page-aligns,
// sorts and merges them at flush time, syncing each range with msync on
// Unix systems.
package dirty

import (
	"context"
	"os"
	"sort"
)

// defaultRangeCapacity is the pre-allocated capacity for dirty ranges.
const defaultRangeCapacity = 64

// Range is a dirty byte range in arena offsets.
type Range struct {
	Off int64
	Len int64
}

// Tracker accumulates dirty ranges and flushes them efficiently.
//
// NOT thread-safe. Only one goroutine should use it at a time.
type Tracker struct {
	ranges   []Range
	pageSize int64
}

// NewTracker creates a tracker that aligns ranges to the OS page size.
func NewTracker() *Tracker {
	return NewTrackerWithPageSize(os.Getpagesize())
}

// NewTrackerWithPageSize creates a tracker with an explicit page size.
func NewTrackerWithPageSize(pageSize int) *Tracker {
	if pageSize <= 0 {
		pageSize = 4096
	}
	return &Tracker{
		ranges:   make([]Range, 0, defaultRangeCapacity),
		pageSize: int64(pageSize),
	}
}

// Add records a dirty range. Empty or negative ranges are ignored.
func (t *Tracker) Add(off, length int) {
	if length <= 0 || off < 0 {
		return
	}
	t.ranges = append(t.ranges, Range{Off: int64(off), Len: int64(length)})
}

// Len returns the number of raw, uncoalesced ranges.
func (t *Tracker) Len() int { return len(t.ranges) }

// Reset clears all tracked ranges.
func (t *Tracker) Reset() {
	t.ranges = t.ranges[:0]
}

// Ranges returns the page-aligned, sorted, merged ranges that a flush would sync.
func (t *Tracker) Ranges() []Range {
	return t.coalesce()
}

// Flush syncs every dirty page of data to its backing file and clears the
// tracked ranges. data must be the full mapping the offsets refer to.
//
// The context is checked between ranges; if it is cancelled part way, some
// ranges may have been synced while the tracker keeps all of them.
func (t *Tracker) Flush(ctx context.Context, data []byte) error {
	if len(t.ranges) == 0 || len(data) == 0 {
		t.Reset()
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.flushRanges(ctx, data); err != nil {
		return err
	}
	t.Reset()
	return nil
}

// coalesce page-aligns all ranges, sorts them, and merges overlapping/adjacent ranges.
func (t *Tracker) coalesce() []Range {
	if len(t.ranges) == 0 {
		return nil
	}

	aligned := make([]Range, len(t.ranges))
	for i, r := range t.ranges {
		start := (r.Off / t.pageSize) * t.pageSize

		end := r.Off + r.Len
		if end%t.pageSize != 0 {
			end = ((end / t.pageSize) + 1) * t.pageSize
		}

		aligned[i] = Range{Off: start, Len: end - start}
	}

	sort.Slice(aligned, func(i, j int) bool {
		return aligned[i].Off < aligned[j].Off
	})

	merged := make([]Range, 0, len(aligned))
	current := aligned[0]

	for _, next := range aligned[1:] {
		if next.Off <= current.Off+current.Len {
			end := max(current.Off+current.Len, next.Off+next.Len)
			current.Len = end - current.Off
		} else {
			merged = append(merged, current)
			current = next
		}
	}

	return append(merged, current)
}

// clip bounds r to a region of n bytes; ok is false when nothing remains.
func clip(r Range, n int) (start, end int, ok bool) {
	start = int(r.Off)
	end = min(int(r.Off+r.Len), n)
	return start, end, start < end
}
