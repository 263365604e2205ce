package lineinfo

import (
	"strings"

	"jitdump/internal/debuginfo"
)

// Annotator turns a sequence of inlining chains into comment lines. It
// belongs to one instruction stream; call Finish when the stream ends.
type Annotator struct {
	opt   Options
	state State
}

// New returns an annotator with nothing open.
func New(opt Options) *Annotator {
	return &Annotator{opt: opt}
}

// SetVerbosity applies a verbosity setting, see ParseVerbosity.
func (a *Annotator) SetVerbosity(s string) {
	a.opt.Verbosity = ParseVerbosity(s, a.opt.Verbosity)
}

// Annotate moves to frames and returns the lines to print before the
// instruction they describe.
func (a *Annotator) Annotate(frames debuginfo.FrameStack) string {
	if a.opt.Verbosity == VerbosityNone || len(frames) == 0 {
		return ""
	}
	next, tr := Step(a.state, frames, a.opt)
	a.state = next
	return Render(tr, a.opt)
}

// Finish closes everything still open and resets the annotator.
func (a *Annotator) Finish() string {
	n := indent(a.state.Depth, a.opt)
	a.state = State{}
	if n <= 0 {
		return ""
	}
	return a.opt.LineStart + strings.Repeat("└", n) + "\n"
}

// Indent returns blank padding as wide as the current nesting, for
// aligning text printed between annotations.
func (a *Annotator) Indent() string {
	return strings.Repeat(" ", indent(a.state.Depth, a.opt))
}

// State returns a copy of the current state.
func (a *Annotator) State() State {
	return State{
		Context: append(debuginfo.FrameStack(nil), a.state.Context...),
		Depth:   a.state.Depth,
	}
}
