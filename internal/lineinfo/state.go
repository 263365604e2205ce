// Package lineinfo renders source locations next to disassembly as a
// nested comment stream.
//
// The annotator tracks the inlining chain that is currently open. Each new
// chain is diffed against it: frames that are no longer active are closed
// with "└", new frames are opened with "┌", and frames that only moved to
// another line are reprinted in place. Runs of frames of the same function
// (recursive inlining) share one bracket.
//
//	; ┌ @ main.c:10 within `main`
//	; │┌ @ util.h:3 within `clamp`
//		cmp	...
//	; │└
//	; │ @ main.c:11 within `main`
//		ret
//	; └
package lineinfo

import (
	"strconv"
	"strings"

	"jitdump/internal/debuginfo"
)

// Verbosity selects how much source information is printed.
type Verbosity int

const (
	VerbositySource Verbosity = iota
	VerbosityNone
)

// ParseVerbosity maps a setting to a Verbosity. "default" and "source"
// print locations, "none" suppresses them, anything else leaves current
// in effect.
func ParseVerbosity(s string, current Verbosity) Verbosity {
	switch s {
	case "default", "source":
		return VerbositySource
	case "none":
		return VerbosityNone
	}
	return current
}

// Options configure an annotator.
type Options struct {
	LineStart string
	// BracketOuter draws a bracket for the outermost frame too, shifting
	// every inner level right by one.
	BracketOuter      bool
	CollapseRecursive bool
	Verbosity         Verbosity
}

// DefaultOptions is the layout used for machine code.
func DefaultOptions() Options {
	return Options{
		LineStart:         "; ",
		BracketOuter:      true,
		CollapseRecursive: true,
	}
}

// State is the open inlining chain and its nesting depth.
type State struct {
	Context debuginfo.FrameStack
	Depth   int
}

// Valid reports whether Depth matches the frames in Context.
func (s State) Valid(opt Options) bool {
	return s.Depth == countRuns(s.Context, opt.CollapseRecursive)
}

// Opening is one printed line that opens or updates frames.
type Opening struct {
	Indent  int
	Bracket bool
	// Frames are printed on the same line; all but the first belong to
	// the same function as the first.
	Frames debuginfo.FrameStack
}

// Transition is the difference between two states, ready to render.
type Transition struct {
	Pops      int
	PopIndent int
	LineOnly  bool
	Opened    []Opening
}

// Empty reports whether the transition prints nothing.
func (t Transition) Empty() bool {
	return t.Pops == 0 && len(t.Opened) == 0
}

// Step moves s to frames and describes what has to be printed. Neither s
// nor frames is modified.
func Step(s State, frames debuginfo.FrameStack, opt Options) (State, Transition) {
	var tr Transition
	if len(frames) == 0 {
		return s, tr
	}
	ctx := s.Context

	k := 0
	for k < len(ctx) && k < len(frames) && ctx[k] == frames[k] {
		k++
	}

	lineOnly := false
	if opt.CollapseRecursive {
		if k > 0 {
			method := trimName(ctx[k-1].Function)
			if (k < len(frames) && trimName(frames[k].Function) == method) ||
				(k < len(ctx) && trimName(ctx[k].Function) == method) {
				// Still inside the same recursive run: reprint it from its
				// first frame instead of nesting another level.
				lineOnly = true
				for k > 0 && trimName(ctx[k-1].Function) == method {
					k--
				}
			}
		}
		if !lineOnly && k < len(ctx) && k < len(frames) &&
			trimName(ctx[k].Function) == trimName(frames[k].Function) {
			lineOnly = true
		}
	} else if k < len(ctx) && k < len(frames) &&
		ctx[k].File == frames[k].File &&
		trimName(ctx[k].Function) == trimName(frames[k].Function) {
		lineOnly = true
	}
	tr.LineOnly = lineOnly

	depth := s.Depth
	if k < len(ctx) {
		pops := countRuns(ctx[k:], opt.CollapseRecursive)
		if lineOnly {
			pops--
		}
		if pops > 0 {
			depth -= pops
			tr.Pops = pops
			tr.PopIndent = indent(depth, opt)
		}
	}

	next := make(debuginfo.FrameStack, k, len(frames))
	copy(next, ctx[:k])
	for k < len(frames) {
		op := Opening{Indent: indent(depth, opt), Frames: debuginfo.FrameStack{frames[k]}}
		next = append(next, frames[k])
		k++
		if lineOnly {
			lineOnly = false
		} else {
			depth++
			op.Bracket = opt.BracketOuter || k != 1
		}
		if opt.CollapseRecursive {
			method := trimName(op.Frames[0].Function)
			for k < len(frames) && trimName(frames[k].Function) == method {
				op.Frames = append(op.Frames, frames[k])
				next = append(next, frames[k])
				k++
			}
		}
		tr.Opened = append(tr.Opened, op)
	}
	return State{Context: next, Depth: depth}, tr
}

// Render prints a transition.
func Render(tr Transition, opt Options) string {
	var b strings.Builder
	if tr.Pops > 0 {
		b.WriteString(opt.LineStart)
		b.WriteString(strings.Repeat("│", tr.PopIndent))
		b.WriteString(strings.Repeat("└", tr.Pops))
		b.WriteByte('\n')
	}
	for _, op := range tr.Opened {
		b.WriteString(opt.LineStart)
		b.WriteString(strings.Repeat("│", op.Indent))
		if op.Bracket {
			b.WriteString("┌")
		}
		first := op.Frames[0]
		writeLocation(&b, first)
		b.WriteString(" within `")
		b.WriteString(trimName(first.Function))
		b.WriteString("`")
		for _, f := range op.Frames[1:] {
			writeLocation(&b, f)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func writeLocation(b *strings.Builder, f debuginfo.SourceFrame) {
	b.WriteString(" @ ")
	b.WriteString(f.File)
	if f.Line != 0 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(f.Line))
	}
}

// indent is the number of continuation glyphs in front of a line at the
// given depth.
func indent(depth int, opt Options) int {
	n := depth
	if opt.BracketOuter {
		n++
	}
	return max(n, 1) - 1
}

// countRuns counts the brackets a chain occupies: one per run of frames
// with the same function when collapsing, one per frame otherwise.
func countRuns(frames debuginfo.FrameStack, collapse bool) int {
	if !collapse {
		return len(frames)
	}
	runs := 0
	for i, f := range frames {
		if i == 0 || trimName(f.Function) != trimName(frames[i-1].Function) {
			runs++
		}
	}
	return runs
}

// trimName drops the trailing ';' markers some front ends append to
// specialized method names.
func trimName(name string) string {
	return strings.TrimRight(name, ";")
}
