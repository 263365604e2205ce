package debuginfo

import "golang.org/x/exp/slices"

// Table is an in-memory Provider, filled by hand or by a code generator
// that knows where it put each instruction.
type Table struct {
	lines  []LineEntry
	chains map[uint64]FrameStack
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{chains: make(map[uint64]FrameStack)}
}

// Add records that the code at addr was generated for chain. The line
// table entry carries the innermost frame.
func (t *Table) Add(addr uint64, chain ...SourceFrame) {
	if len(chain) == 0 {
		return
	}
	t.lines = append(t.lines, LineEntry{Addr: addr, Frame: chain[len(chain)-1]})
	t.chains[addr] = append(FrameStack(nil), chain...)
}

// AddLine records a line table entry without an inlining chain.
func (t *Table) AddLine(addr uint64, frame SourceFrame) {
	t.lines = append(t.lines, LineEntry{Addr: addr, Frame: frame})
}

func (t *Table) LineTable(addr, size uint64) []LineEntry {
	var out []LineEntry
	for _, e := range t.lines {
		if e.Addr >= addr && e.Addr-addr < size {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b LineEntry) int {
		switch {
		case a.Addr < b.Addr:
			return -1
		case a.Addr > b.Addr:
			return 1
		}
		return 0
	})
	return out
}

func (t *Table) InliningChain(addr uint64) FrameStack {
	return t.chains[addr]
}
