package trace

import (
	"fmt"
	"math/rand"
)

// GenConfig controls Generate.
type GenConfig struct {
	Name    string
	Seed    int64
	Ops     int // operations before the closing frees
	IDs     int // distinct ids; bounds the number of live blocks
	MaxSize int // largest request
	Weight  int
}

// DefaultGenConfig is a small mixed workload.
var DefaultGenConfig = GenConfig{
	Name:    "random",
	Seed:    1,
	Ops:     4000,
	IDs:     400,
	MaxSize: 16 << 10,
	Weight:  1,
}

// Generate builds a random well-formed trace: ids are allocated before they
// are resized or freed, and every live id is freed at the end. The same
// config always yields the same trace.
func Generate(cfg GenConfig) (*Trace, error) {
	if cfg.Ops < 0 || cfg.IDs <= 0 || cfg.MaxSize <= 0 {
		return nil, fmt.Errorf("generate trace: need ops >= 0, ids > 0, max size > 0 (got %d, %d, %d)",
			cfg.Ops, cfg.IDs, cfg.MaxSize)
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	tr := &Trace{Name: cfg.Name, NumIDs: cfg.IDs, Weight: cfg.Weight}

	free := make([]int, cfg.IDs) // ids available for allocation
	for i := range free {
		free[i] = cfg.IDs - 1 - i
	}
	var live []int

	size := func() int {
		switch r := rng.Intn(100); {
		case r < 70:
			return 1 + rng.Intn(min(256, cfg.MaxSize))
		case r < 95:
			return 1 + rng.Intn(min(4096, cfg.MaxSize))
		default:
			return 1 + rng.Intn(cfg.MaxSize)
		}
	}

	for range cfg.Ops {
		r := rng.Intn(10)
		switch {
		case len(free) > 0 && (r < 5 || len(live) == 0):
			id := free[len(free)-1]
			free = free[:len(free)-1]
			live = append(live, id)
			tr.Ops = append(tr.Ops, Op{Kind: OpAlloc, ID: id, Size: size()})
		case r < 7:
			id := live[rng.Intn(len(live))]
			tr.Ops = append(tr.Ops, Op{Kind: OpRealloc, ID: id, Size: size()})
		default:
			i := rng.Intn(len(live))
			id := live[i]
			live[i] = live[len(live)-1]
			live = live[:len(live)-1]
			free = append(free, id)
			tr.Ops = append(tr.Ops, Op{Kind: OpFree, ID: id})
		}
	}
	for _, id := range live {
		tr.Ops = append(tr.Ops, Op{Kind: OpFree, ID: id})
	}

	peak, ok := tr.PeakLive()
	if !ok {
		return nil, fmt.Errorf("generate trace: live bytes overflow int")
	}
	tr.SuggestedHeap = peak
	return tr, nil
}
