// Package symtab names the addresses a disassembly refers to.
//
// A Table is filled in two steps. While scanning code, every statically
// known branch or call target is recorded. Finalize then decides a name
// for each of them: targets inside the code region get an offset label
// ("L" followed by the decimal distance from the region's instruction
// pointer), targets outside are handed to a Symbolicator. Addresses that
// were never recorded, such as PC-relative loads, are resolved lazily by
// LookupName with the same rule.
//
// A decision is made once per address and never revised.
package symtab

import (
	"strconv"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Kind tells how an address was named.
type Kind int

const (
	Unresolved Kind = iota
	Local           // offset label inside the code region
	Global          // name supplied by the symbolicator
)

func (k Kind) String() string {
	switch k {
	case Local:
		return "local"
	case Global:
		return "global"
	}
	return "unresolved"
}

// Entry is the name decided for one address.
type Entry struct {
	Kind Kind
	Name string
}

// Resolved pairs an address with its entry.
type Resolved struct {
	Addr uint64
	Entry
}

// Label is a handle for printing an address as a label. The same address
// always yields the same handle.
type Label struct {
	ID   int
	Name string
}

type slot struct {
	Entry
	decided bool
}

// Table is a per-disassembly symbol table. It is not safe for concurrent
// use.
type Table struct {
	slots     map[uint64]*slot
	labels    map[uint64]Label
	finalized bool
	base      uint64
	size      uint64
	ip        uint64
	sym       Symbolicator
}

// New returns an empty Table.
func New() *Table {
	return &Table{
		slots:  make(map[uint64]*slot),
		labels: make(map[uint64]Label),
	}
}

// Record registers addr as a discovered target. Recording an address
// twice is harmless.
func (t *Table) Record(addr uint64) {
	if _, ok := t.slots[addr]; !ok {
		t.slots[addr] = &slot{}
	}
}

// Finalize names every recorded address not yet decided. The code region
// [base, base+size) and ip are kept for later lazy lookups. s may be nil.
func (t *Table) Finalize(base, size, ip uint64, s Symbolicator) {
	t.base, t.size, t.ip, t.sym = base, size, ip, s
	t.finalized = true
	for addr, sl := range t.slots {
		if !sl.decided {
			sl.Entry = t.resolve(addr)
			sl.decided = true
		}
	}
}

// LookupName returns the name of addr, deciding it first when the address
// was never seen. It reports false when no name exists. Before Finalize
// only decided addresses answer.
func (t *Table) LookupName(addr uint64) (string, bool) {
	sl, ok := t.slots[addr]
	if !ok || !sl.decided {
		if !t.finalized {
			return "", false
		}
		sl = &slot{Entry: t.resolve(addr), decided: true}
		t.slots[addr] = sl
	}
	return sl.Name, sl.Kind != Unresolved
}

// LookupSymbolHandle returns the label handle for addr if it has been
// decided and has a name. It never decides a name itself.
func (t *Table) LookupSymbolHandle(addr uint64) (Label, bool) {
	sl, ok := t.slots[addr]
	if !ok || !sl.decided || sl.Kind == Unresolved {
		return Label{}, false
	}
	if l, ok := t.labels[addr]; ok {
		return l, true
	}
	l := Label{ID: len(t.labels), Name: sl.Name}
	t.labels[addr] = l
	return l, true
}

// Entries returns every decided address in ascending order.
func (t *Table) Entries() []Resolved {
	addrs := maps.Keys(t.slots)
	slices.Sort(addrs)
	out := make([]Resolved, 0, len(addrs))
	for _, addr := range addrs {
		if sl := t.slots[addr]; sl.decided {
			out = append(out, Resolved{Addr: addr, Entry: sl.Entry})
		}
	}
	return out
}

func (t *Table) resolve(addr uint64) Entry {
	if addr >= t.base && addr-t.base < t.size {
		return Entry{Kind: Local, Name: "L" + strconv.FormatInt(int64(addr-t.ip), 10)}
	}
	if t.sym != nil {
		if name := t.sym.NameAt(addr); name != "" {
			return Entry{Kind: Global, Name: name}
		}
	}
	return Entry{}
}
