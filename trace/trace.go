// Package trace reads, writes and generates allocation trace files.
//
// A trace is a text file with a four-line header followed by one operation
// per line:
//
//	<suggested heap size>
//	<number of ids>
//	<number of ops>
//	<weight>
//	a <id> <size>    allocate size bytes and remember them as id
//	r <id> <size>    resize id to size bytes
//	f <id>           free id
//
// Ids name allocations, not addresses. An id must be allocated before it is
// resized or freed and may be allocated again once freed.
package trace

import (
	"bytes"
	"fmt"
	"io"

	"github.com/JohnCGriffin/overflow"
)

// OpKind is the operation letter of a trace line.
type OpKind byte

const (
	OpAlloc   OpKind = 'a'
	OpRealloc OpKind = 'r'
	OpFree    OpKind = 'f'
)

func (k OpKind) String() string {
	switch k {
	case OpAlloc:
		return "alloc"
	case OpRealloc:
		return "realloc"
	case OpFree:
		return "free"
	default:
		return fmt.Sprintf("OpKind(%q)", byte(k))
	}
}

// Op is one trace operation. Size is unused for OpFree.
type Op struct {
	Kind OpKind
	ID   int
	Size int
	Line int // 1-based source line, 0 for generated ops
}

// Trace is a parsed or generated trace.
type Trace struct {
	Name          string
	SuggestedHeap int
	NumIDs        int
	Weight        int
	Ops           []Op
}

// PeakLive returns the largest total of requested bytes live at once. ok is
// false when the total does not fit an int.
func (t *Trace) PeakLive() (peak int, ok bool) {
	sizes := make([]int, t.NumIDs)
	live := 0
	for _, op := range t.Ops {
		if op.ID < 0 || op.ID >= len(sizes) {
			continue
		}
		switch op.Kind {
		case OpAlloc, OpRealloc:
			live -= sizes[op.ID]
			sizes[op.ID] = op.Size
			if live, ok = overflow.Add(live, op.Size); !ok {
				return 0, false
			}
		case OpFree:
			live -= sizes[op.ID]
			sizes[op.ID] = 0
		}
		peak = max(peak, live)
	}
	return peak, true
}

// WriteTo writes t in trace file format.
func (t *Trace) WriteTo(w io.Writer) (int64, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%d\n%d\n%d\n%d\n", t.SuggestedHeap, t.NumIDs, len(t.Ops), t.Weight)
	for _, op := range t.Ops {
		if op.Kind == OpFree {
			fmt.Fprintf(&b, "%c %d\n", op.Kind, op.ID)
		} else {
			fmt.Fprintf(&b, "%c %d %d\n", op.Kind, op.ID, op.Size)
		}
	}
	n, err := w.Write(b.Bytes())
	return int64(n), err
}
