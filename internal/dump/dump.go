// Package dump disassembles a region of machine code into annotated
// assembly text.
//
// Disassembly runs in two passes over the region. The first pass decodes
// every instruction and records the targets of direct branches and calls;
// once it is done the symbol table names them. The second pass decodes
// again and prints: source annotations, a label wherever a named target
// lands, the instruction, and a comment naming the addresses its operands
// refer to.
package dump

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"jitdump/internal/debuginfo"
	"jitdump/internal/disasm"
	"jitdump/internal/lineinfo"
	"jitdump/internal/symtab"

	"golang.org/x/exp/slices"
)

// ErrMissingTarget is returned when no target description is given.
var ErrMissingTarget = errors.New("dump: missing target description")

// Region is the code to disassemble: Size bytes loaded at Base. Slide is
// added to an address to get the address the debug info uses for it.
type Region struct {
	Base  uint64
	Size  uint64
	Slide int64
}

// Contains reports whether addr lies inside the region.
func (r Region) Contains(addr uint64) bool {
	return addr >= r.Base && addr-r.Base < r.Size
}

func (r Region) debugAddr(addr uint64) uint64 {
	return addr + uint64(r.Slide)
}

// Options control the output. The zero value prints AT&T syntax with
// source annotations when a Provider is set.
type Options struct {
	Syntax disasm.Syntax
	// DebugInfo is "none", "source" or "default".
	DebugInfo string
	// Binary adds a header and the raw encoding of every instruction.
	Binary bool
	// LineStart starts every comment line. Defaults to "; ".
	LineStart    string
	Provider     debuginfo.Provider
	Symbolicator symtab.Symbolicator
	Logger       *slog.Logger
}

// Dump writes the disassembly of region to w. mem holds the region's
// bytes starting at region.Base.
func Dump(w io.Writer, mem []byte, region Region, arch *disasm.Arch, opts Options) error {
	if arch == nil || arch.NewDecoder == nil {
		return ErrMissingTarget
	}
	if uint64(len(mem)) < region.Size {
		return fmt.Errorf("dump: %d bytes of code for a region of %d bytes", len(mem), region.Size)
	}
	if opts.LineStart == "" {
		opts.LineStart = "; "
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	d := &disassembler{
		code:   mem[:region.Size],
		region: region,
		arch:   arch,
		dec:    arch.NewDecoder(),
		opts:   opts,
		syms:   symtab.New(),
		logger: logger.With("arch", arch.Name, "base", fmt.Sprintf("%#x", region.Base)),
	}
	d.discover()

	var b strings.Builder
	d.emit(&b)
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("dump: write: %w", err)
	}
	return nil
}

// String is Dump into a string.
func String(mem []byte, region Region, arch *disasm.Arch, opts Options) (string, error) {
	var b strings.Builder
	if err := Dump(&b, mem, region, arch, opts); err != nil {
		return "", err
	}
	return b.String(), nil
}

type disassembler struct {
	code   []byte
	region Region
	arch   *disasm.Arch
	dec    disasm.Decoder
	opts   Options
	syms   *symtab.Table
	logger *slog.Logger
}

// advance returns how many bytes the decoded instruction occupies, never
// zero and never past the end of the region.
func (d *disassembler) advance(inst disasm.Inst, st disasm.Status, remaining int) int {
	n := d.arch.Step()
	if st != disasm.Fail && inst.Len > 0 {
		n = inst.Len
	}
	return min(n, remaining)
}

// discover is the first pass.
func (d *disassembler) discover() {
	size := len(d.code)
	for off := 0; off < size; {
		addr := d.region.Base + uint64(off)
		inst, st := d.dec.Decode(d.code[off:], addr)
		if st != disasm.Fail {
			c := inst.Control
			if c.HasTarget && (c.Kind == disasm.ControlBranch || c.Kind == disasm.ControlCall) {
				d.syms.Record(c.Target)
			}
		}
		off += d.advance(inst, st, size-off)
	}
	d.syms.Finalize(d.region.Base, d.region.Size, d.region.Base, d.opts.Symbolicator)

	if d.logger.Enabled(context.Background(), slog.LevelDebug) {
		for _, e := range d.syms.Entries() {
			d.logger.Debug("branch target", "addr", fmt.Sprintf("%#x", e.Addr), "kind", e.Kind, "name", e.Name)
		}
	}
}

// emit is the second pass.
func (d *disassembler) emit(b *strings.Builder) {
	lineStart := d.opts.LineStart
	if d.opts.Binary {
		fmt.Fprintf(b, "%scode origin: %016x, code size: %d\n", lineStart, d.region.Base, d.region.Size)
	}

	opt := lineinfo.DefaultOptions()
	opt.LineStart = lineStart
	opt.Verbosity = lineinfo.ParseVerbosity(d.opts.DebugInfo, lineinfo.VerbositySource)
	ann := lineinfo.New(opt)

	var lines []debuginfo.LineEntry
	if d.opts.Provider != nil && opt.Verbosity != lineinfo.VerbosityNone {
		lines = debuginfo.Dedup(d.opts.Provider.LineTable(d.region.debugAddr(d.region.Base), d.region.Size))
	}
	if len(lines) > 0 && lines[0].Addr != d.region.debugAddr(d.region.Base) {
		// Name the enclosing function for instructions before the first row.
		b.WriteString(ann.Annotate(debuginfo.FrameStack{lines[0].Frame}))
	}

	size := len(d.code)
	next := 0
	for off := 0; off < size; {
		addr := d.region.Base + uint64(off)

		dbg := d.region.debugAddr(addr)
		for next < len(lines) && lines[next].Addr < dbg {
			next++
		}
		if next < len(lines) && lines[next].Addr == dbg {
			chain := d.opts.Provider.InliningChain(dbg)
			if len(chain) == 0 {
				chain = debuginfo.FrameStack{lines[next].Frame}
			}
			b.WriteString(ann.Annotate(chain))
			next++
		}

		if label, ok := d.syms.LookupSymbolHandle(addr); ok {
			b.WriteString(label.Name)
			b.WriteString(":\n")
		}

		inst, st := d.dec.Decode(d.code[off:], addr)
		switch st {
		case disasm.Fail:
			text, n := d.arch.Directive(d.code[off:])
			d.logger.Debug("undecodable bytes", "addr", fmt.Sprintf("%#x", addr), "len", n)
			b.WriteString(text)
			b.WriteByte('\n')
			off += n
			continue
		case disasm.SoftFail:
			b.WriteString("potentially undefined instruction encoding:\n")
		}

		n := d.advance(inst, st, size-off)
		if d.opts.Binary {
			b.WriteString(d.arch.RawComment(lineStart, addr, d.code[off:off+n]))
			b.WriteByte('\n')
		}
		b.WriteByte('\t')
		b.WriteString(d.dec.Format(inst, d.opts.Syntax))
		if names := d.operandNames(inst); len(names) > 0 {
			b.WriteByte('\t')
			b.WriteString(d.arch.CommentMarker)
			b.WriteByte(' ')
			b.WriteString(strings.Join(names, ", "))
		}
		b.WriteByte('\n')
		off += n
	}

	b.WriteString(ann.Finish())
}

// operandNames names the addresses inst refers to, in operand order and
// without repeats.
func (d *disassembler) operandNames(inst disasm.Inst) []string {
	var names []string
	for _, op := range inst.Operands {
		if !op.Symbolic {
			continue
		}
		name, ok := d.syms.LookupName(op.Target)
		if !ok || slices.Contains(names, name) {
			continue
		}
		names = append(names, name)
	}
	return names
}
