package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ParseError reports a malformed trace line.
type ParseError struct {
	Name string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("%s:%d: %s", e.Name, e.Line, e.Msg)
}

// Load parses the trace file at path. The trace is named after the file.
func Load(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()
	return Parse(f, filepath.Base(path))
}

// Parse reads a trace. Blank lines are ignored. Besides syntax it checks
// that every id is in range and that ids are allocated before they are
// resized or freed.
func Parse(r io.Reader, name string) (*Trace, error) {
	p := parser{sc: bufio.NewScanner(r), name: name}
	tr := &Trace{Name: name}

	var numOps int
	header := []*int{&tr.SuggestedHeap, &tr.NumIDs, &numOps, &tr.Weight}
	labels := []string{"suggested heap size", "number of ids", "number of ops", "weight"}
	for i, dst := range header {
		fields, ok := p.next()
		if !ok {
			return nil, p.fail("missing header field %q", labels[i])
		}
		if len(fields) != 1 {
			return nil, p.fail("%s: want one number, got %d fields", labels[i], len(fields))
		}
		v, err := strconv.Atoi(fields[0])
		if err != nil || v < 0 {
			return nil, p.fail("%s: bad value %q", labels[i], fields[0])
		}
		*dst = v
	}

	live := make([]bool, tr.NumIDs)
	tr.Ops = make([]Op, 0, min(numOps, 1<<20))
	for {
		fields, ok := p.next()
		if !ok {
			break
		}
		op, err := p.op(fields, tr.NumIDs)
		if err != nil {
			return nil, err
		}
		switch op.Kind {
		case OpAlloc:
			if live[op.ID] {
				return nil, p.fail("id %d allocated twice", op.ID)
			}
			live[op.ID] = true
		case OpRealloc:
			if !live[op.ID] {
				return nil, p.fail("realloc of id %d, which is not allocated", op.ID)
			}
		case OpFree:
			if !live[op.ID] {
				return nil, p.fail("free of id %d, which is not allocated", op.ID)
			}
			live[op.ID] = false
		}
		tr.Ops = append(tr.Ops, op)
	}
	if err := p.sc.Err(); err != nil {
		return nil, fmt.Errorf("read trace %s: %w", name, err)
	}
	if len(tr.Ops) != numOps {
		return nil, p.fail("header promises %d ops, found %d", numOps, len(tr.Ops))
	}
	return tr, nil
}

type parser struct {
	sc   *bufio.Scanner
	name string
	line int
}

// next returns the fields of the next non-blank line.
func (p *parser) next() ([]string, bool) {
	for p.sc.Scan() {
		p.line++
		if fields := strings.Fields(p.sc.Text()); len(fields) > 0 {
			return fields, true
		}
	}
	return nil, false
}

func (p *parser) fail(format string, args ...any) *ParseError {
	return &ParseError{Name: p.name, Line: p.line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) op(fields []string, numIDs int) (Op, error) {
	if len(fields[0]) != 1 {
		return Op{}, p.fail("unknown operation %q", fields[0])
	}
	op := Op{Kind: OpKind(fields[0][0]), Line: p.line}

	want := 3
	switch op.Kind {
	case OpAlloc, OpRealloc:
	case OpFree:
		want = 2
	default:
		return Op{}, p.fail("unknown operation %q", fields[0])
	}
	if len(fields) != want {
		return Op{}, p.fail("%v takes %d arguments, got %d", op.Kind, want-1, len(fields)-1)
	}

	id, err := strconv.Atoi(fields[1])
	if err != nil || id < 0 || id >= numIDs {
		return Op{}, p.fail("id %q out of range [0, %d)", fields[1], numIDs)
	}
	op.ID = id

	if want == 3 {
		size, err := strconv.Atoi(fields[2])
		if err != nil || size < 0 {
			return Op{}, p.fail("bad size %q", fields[2])
		}
		op.Size = size
	}
	return op, nil
}
