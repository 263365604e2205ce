package debuginfo

import (
	"debug/elf"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"jitdump/internal/testprog"
)

func TestDedupKeepsLastEntry(t *testing.T) {
	a := SourceFrame{Function: "f", File: "a.c", Line: 1}
	b := SourceFrame{Function: "f", File: "a.c", Line: 2}
	c := SourceFrame{Function: "f", File: "a.c", Line: 3}

	got := Dedup([]LineEntry{
		{Addr: 0x10, Frame: a},
		{Addr: 0x10, Frame: b},
		{Addr: 0x14, Frame: c},
		{Addr: 0x18, Frame: a},
		{Addr: 0x18, Frame: c},
	})
	want := []LineEntry{
		{Addr: 0x10, Frame: b},
		{Addr: 0x14, Frame: c},
		{Addr: 0x18, Frame: c},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Dedup mismatch (-want +got):\n%s", diff)
	}
}

func TestFromInnermost(t *testing.T) {
	inner := SourceFrame{Function: "inner", File: "x.go", Line: 3}
	outer := SourceFrame{Function: "outer", File: "x.go", Line: 9}
	require.Equal(t, FrameStack{outer, inner}, FromInnermost([]SourceFrame{inner, outer}))
	require.Equal(t, "outer @ x.go:9 > inner @ x.go:3", FrameStack{outer, inner}.String())
	require.Equal(t, "f @ y.go", SourceFrame{Function: "f", File: "y.go"}.String())
}

func TestTable(t *testing.T) {
	tbl := NewTable()
	outer := SourceFrame{Function: "outer", File: "x.go", Line: 9}
	inner := SourceFrame{Function: "inner", File: "x.go", Line: 3}
	tbl.Add(0x108, outer, inner)
	tbl.AddLine(0x100, outer)
	tbl.AddLine(0x200, outer)

	lines := tbl.LineTable(0x100, 0x10)
	require.Equal(t, []LineEntry{
		{Addr: 0x100, Frame: outer},
		{Addr: 0x108, Frame: inner},
	}, lines)

	require.Equal(t, FrameStack{outer, inner}, tbl.InliningChain(0x108))
	require.Empty(t, tbl.InliningChain(0x100))
}

func TestDWARFInliningChain(t *testing.T) {
	f, err := elf.Open(testprog.BuildGo(t))
	require.NoError(t, err)
	defer f.Close()
	data, err := f.DWARF()
	require.NoError(t, err)

	syms, err := f.Symbols()
	require.NoError(t, err)
	var work elf.Symbol
	for _, s := range syms {
		if s.Name == testprog.Work {
			work = s
		}
	}
	require.NotZero(t, work.Value, "no symbol %s", testprog.Work)
	require.NotZero(t, work.Size)

	p := NewDWARF(data, nil)
	lines := p.LineTable(work.Value, work.Size)
	require.NotEmpty(t, lines)
	require.Equal(t, work.Value, lines[0].Addr)
	require.Equal(t, testprog.Work, lines[0].Frame.Function)
	require.Equal(t, testprog.File, filepath.Base(lines[0].Frame.File))
	for _, e := range lines {
		require.True(t, e.Addr >= work.Value && e.Addr < work.Value+work.Size, "row %#x outside work", e.Addr)
	}

	var deepest FrameStack
	for _, e := range lines {
		if chain := p.InliningChain(e.Addr); len(chain) > len(deepest) {
			deepest = chain
		}
	}
	require.Len(t, deepest, 3, "chains: %v", deepest)

	want := []struct {
		fn   string
		line int
	}{
		{testprog.Work, testprog.WorkCallsOuter},
		{testprog.Outer, testprog.OuterCallsSq},
		{testprog.Sq, testprog.SqBody},
	}
	for i, w := range want {
		require.Equal(t, w.fn, deepest[i].Function, "frame %d", i)
		require.Equal(t, w.line, deepest[i].Line, "frame %d", i)
		require.Equal(t, testprog.File, filepath.Base(deepest[i].File), "frame %d", i)
	}

	require.Empty(t, p.InliningChain(0))
	require.Empty(t, p.LineTable(0, 16))
}
