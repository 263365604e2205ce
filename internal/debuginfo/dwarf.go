package debuginfo

import (
	"debug/dwarf"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/go-delve/delve/pkg/dwarf/godwarf"
	"github.com/go-delve/delve/pkg/dwarf/reader"
)

// DWARF is a Provider backed by DWARF debug info. Compilation units are
// loaded lazily and cached. Lookup failures are logged and reported as
// "nothing known".
type DWARF struct {
	data   *dwarf.Data
	logger *slog.Logger
	units  map[dwarf.Offset]*unitInfo
}

type unitInfo struct {
	lines       []dwarf.LineEntry // sorted by address, end-of-sequence rows kept
	files       []*dwarf.LineFile
	subprograms []*godwarf.Tree
}

// NewDWARF wraps data. A nil logger discards.
func NewDWARF(data *dwarf.Data, logger *slog.Logger) *DWARF {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DWARF{
		data:   data,
		logger: logger,
		units:  make(map[dwarf.Offset]*unitInfo),
	}
}

func (d *DWARF) LineTable(addr, size uint64) []LineEntry {
	unit, err := d.unitFor(addr)
	if err != nil {
		d.logger.Debug("no line table", "addr", fmt.Sprintf("%#x", addr), "err", err)
		return nil
	}

	var out []LineEntry
	for _, e := range unit.lines {
		if e.EndSequence || e.Address < addr || e.Address-addr >= size {
			continue
		}
		fn := ""
		if tree := unit.subprogramAt(e.Address); tree != nil {
			fn = functionName(tree)
		}
		out = append(out, LineEntry{
			Addr:  e.Address,
			Frame: SourceFrame{Function: fn, File: fileName(e.File), Line: e.Line},
		})
	}
	return out
}

func (d *DWARF) InliningChain(addr uint64) FrameStack {
	unit, err := d.unitFor(addr)
	if err != nil {
		d.logger.Debug("no inlining chain", "addr", fmt.Sprintf("%#x", addr), "err", err)
		return nil
	}
	tree := unit.subprogramAt(addr)
	if tree == nil {
		return nil
	}
	row := unit.rowAt(addr)
	if row == nil {
		return nil
	}

	// Innermost first: the line row names the location inside the deepest
	// inlined body; every inlined subroutine carries the call site in its
	// caller.
	inlines := reader.InlineStack(tree, addr)
	frames := make([]SourceFrame, 0, len(inlines)+1)
	file, line := fileName(row.File), row.Line
	for _, inl := range inlines {
		frames = append(frames, SourceFrame{Function: functionName(inl), File: file, Line: line})
		file, line = unit.callSite(inl)
	}
	frames = append(frames, SourceFrame{Function: functionName(tree), File: file, Line: line})
	return FromInnermost(frames)
}

func (d *DWARF) unitFor(addr uint64) (*unitInfo, error) {
	er := reader.New(d.data)
	cu, err := er.SeekPC(addr)
	if err != nil {
		return nil, fmt.Errorf("seek pc %#x: %w", addr, err)
	}
	if cu == nil {
		return nil, errors.New("no compilation unit")
	}
	if unit, ok := d.units[cu.Offset]; ok {
		return unit, nil
	}

	unit := &unitInfo{}
	if err := d.loadLines(cu, unit); err != nil {
		return nil, err
	}
	if err := d.loadSubprograms(cu, unit); err != nil {
		return nil, err
	}
	d.units[cu.Offset] = unit
	return unit, nil
}

func (d *DWARF) loadLines(cu *dwarf.Entry, unit *unitInfo) error {
	lr, err := d.data.LineReader(cu)
	if err != nil {
		return fmt.Errorf("create line reader: %w", err)
	}
	if lr == nil {
		return errors.New("no line reader available")
	}
	for {
		var entry dwarf.LineEntry
		if err := lr.Next(&entry); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("read line entry: %w", err)
		}
		unit.lines = append(unit.lines, entry)
	}
	sort.SliceStable(unit.lines, func(i, j int) bool {
		a, b := unit.lines[i], unit.lines[j]
		if a.Address != b.Address {
			return a.Address < b.Address
		}
		// a sequence ending where the next one starts sorts first
		return a.EndSequence && !b.EndSequence
	})
	unit.files = lr.Files()
	return nil
}

func (d *DWARF) loadSubprograms(cu *dwarf.Entry, unit *unitInfo) error {
	r := d.data.Reader()
	r.Seek(cu.Offset)
	if _, err := r.Next(); err != nil {
		return fmt.Errorf("read compilation unit: %w", err)
	}
	for {
		entry, err := r.Next()
		if err != nil {
			return fmt.Errorf("read entry: %w", err)
		}
		if entry == nil || entry.Tag == dwarf.TagCompileUnit {
			return nil
		}
		if entry.Tag != dwarf.TagSubprogram {
			continue
		}
		if _, abstract := entry.Val(dwarf.AttrInline).(int64); abstract {
			continue
		}
		tree, err := godwarf.LoadTree(entry.Offset, d.data, 0)
		if err != nil {
			return fmt.Errorf("load subprogram tree: %w", err)
		}
		if len(tree.Ranges) > 0 {
			unit.subprograms = append(unit.subprograms, tree)
		}
	}
}

func (u *unitInfo) subprogramAt(addr uint64) *godwarf.Tree {
	for _, tree := range u.subprograms {
		if tree.ContainsPC(addr) {
			return tree
		}
	}
	return nil
}

// rowAt returns the last line row at or before addr, unless a sequence
// ended in between.
func (u *unitInfo) rowAt(addr uint64) *dwarf.LineEntry {
	i := sort.Search(len(u.lines), func(i int) bool { return u.lines[i].Address > addr })
	if i == 0 || u.lines[i-1].EndSequence {
		return nil
	}
	return &u.lines[i-1]
}

func (u *unitInfo) callSite(inl *godwarf.Tree) (string, int) {
	file := "?"
	if idx, ok := inl.Val(dwarf.AttrCallFile).(int64); ok && idx >= 0 && int(idx) < len(u.files) {
		file = fileName(u.files[idx])
	}
	line, _ := inl.Val(dwarf.AttrCallLine).(int64)
	return file, int(line)
}

func functionName(tree *godwarf.Tree) string {
	if name, ok := tree.Val(dwarf.AttrName).(string); ok {
		return name
	}
	if name, ok := tree.Val(dwarf.AttrLinkageName).(string); ok {
		return name
	}
	return "?"
}

func fileName(f *dwarf.LineFile) string {
	if f == nil {
		return "?"
	}
	return f.Name
}
