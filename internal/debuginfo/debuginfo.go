// Package debuginfo models source locations and the providers that map
// code addresses to them.
package debuginfo

import (
	"fmt"
	"strings"
)

// SourceFrame is one source location. Line 0 means the line is unknown.
type SourceFrame struct {
	Function string
	File     string
	Line     int
}

func (f SourceFrame) String() string {
	if f.Line == 0 {
		return fmt.Sprintf("%s @ %s", f.Function, f.File)
	}
	return fmt.Sprintf("%s @ %s:%d", f.Function, f.File, f.Line)
}

// FrameStack is an inlining chain ordered from the outermost (physical)
// function to the innermost inlined one.
type FrameStack []SourceFrame

// FromInnermost builds a FrameStack from frames listed innermost first,
// the order DWARF and symbol-table readers produce.
func FromInnermost(frames []SourceFrame) FrameStack {
	s := make(FrameStack, len(frames))
	for i, f := range frames {
		s[len(frames)-1-i] = f
	}
	return s
}

func (s FrameStack) String() string {
	parts := make([]string, len(s))
	for i, f := range s {
		parts[i] = f.String()
	}
	return strings.Join(parts, " > ")
}

// LineEntry maps one address to the source location of the code there.
type LineEntry struct {
	Addr  uint64
	Frame SourceFrame
}

// Provider answers source-location queries for code addresses.
type Provider interface {
	// LineTable returns the line entries in [addr, addr+size) ordered by
	// address.
	LineTable(addr, size uint64) []LineEntry
	// InliningChain returns the frames active at addr, outermost first.
	// An empty result means nothing is known.
	InliningChain(addr uint64) FrameStack
}

// Dedup collapses runs of entries sharing an address, keeping the last
// entry of each run.
func Dedup(entries []LineEntry) []LineEntry {
	out := make([]LineEntry, 0, len(entries))
	for _, e := range entries {
		if n := len(out); n > 0 && out[n-1].Addr == e.Addr {
			out[n-1] = e
			continue
		}
		out = append(out, e)
	}
	return out
}
