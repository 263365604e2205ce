package dump

import (
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"jitdump/internal/debuginfo"
	"jitdump/internal/disasm"
	"jitdump/internal/symtab"
)

// scripted is a decoder that replays a fixed program keyed by address.
// Addresses it does not know fail to decode.
type scripted struct {
	program map[uint64]scriptedInst
	calls   int
}

type scriptedInst struct {
	status   disasm.Status
	length   int
	text     string
	control  disasm.Control
	operands []disasm.Operand
}

func (s *scripted) Decode(code []byte, pc uint64) (disasm.Inst, disasm.Status) {
	s.calls++
	p, ok := s.program[pc]
	if !ok {
		return disasm.Inst{Addr: pc}, disasm.Fail
	}
	return disasm.Inst{
		Addr:     pc,
		Len:      p.length,
		Op:       p.text,
		Control:  p.control,
		Operands: p.operands,
	}, p.status
}

func (s *scripted) Format(inst disasm.Inst, _ disasm.Syntax) string {
	return inst.Op
}

func fixedArch(dec disasm.Decoder) *disasm.Arch {
	return &disasm.Arch{
		Name:          "fixed",
		MinStep:       4,
		FixedWidth:    true,
		ByteOrder:     binary.LittleEndian,
		CommentMarker: "//",
		NewDecoder:    func() disasm.Decoder { return dec },
	}
}

func nop() scriptedInst {
	return scriptedInst{status: disasm.Success, length: 4, text: "nop"}
}

func call(target uint64) scriptedInst {
	return scriptedInst{
		status:   disasm.Success,
		length:   4,
		text:     "call",
		control:  disasm.Control{Kind: disasm.ControlCall, Target: target, HasTarget: true},
		operands: []disasm.Operand{{Target: target, PCRel: true, Symbolic: true}},
	}
}

func TestUndecodableWordThenCallBack(t *testing.T) {
	dec := &scripted{program: map[uint64]scriptedInst{
		0x1004: call(0x1000),
	}}
	mem := []byte{0xef, 0xbe, 0xad, 0xde, 0x00, 0x00, 0x00, 0x00}

	out, err := String(mem, Region{Base: 0x1000, Size: 8}, fixedArch(dec), Options{})
	require.NoError(t, err)
	require.Equal(t,
		"L0:\n"+
			"\t.long\t0xdeadbeef\n"+
			"\tcall\t// L0\n",
		out)
}

func TestSymbolicatorNamesOutsideTargets(t *testing.T) {
	dec := &scripted{program: map[uint64]scriptedInst{
		0x1000: call(0x9000),
		0x1004: call(0x7000),
		0x1008: call(0x1008),
	}}
	sym := symtab.SymbolicatorFunc(func(addr uint64) string {
		if addr == 0x9000 {
			return "printf"
		}
		return ""
	})

	out, err := String(make([]byte, 12), Region{Base: 0x1000, Size: 12}, fixedArch(dec), Options{Symbolicator: sym})
	require.NoError(t, err)
	require.Equal(t,
		"\tcall\t// printf\n"+
			"\tcall\n"+
			"L8:\n"+
			"\tcall\t// L8\n",
		out)
}

func TestOperandNamesAreNotRepeated(t *testing.T) {
	in := call(0x1000)
	in.operands = append(in.operands, disasm.Operand{Target: 0x1000, Symbolic: true}, disasm.Operand{Target: 0x1004})
	dec := &scripted{program: map[uint64]scriptedInst{0x1000: in, 0x1004: nop()}}

	out, err := String(make([]byte, 8), Region{Base: 0x1000, Size: 8}, fixedArch(dec), Options{})
	require.NoError(t, err)
	require.Equal(t, "L0:\n\tcall\t// L0\n\tnop\n", out)
}

func TestForwardProgress(t *testing.T) {
	tests := []struct {
		name    string
		program map[uint64]scriptedInst
	}{
		{"nothing decodes", nil},
		{"zero length success", map[uint64]scriptedInst{
			0x0: {status: disasm.Success}, 0x4: {status: disasm.Success},
			0x8: {status: disasm.Success}, 0xc: {status: disasm.Success},
		}},
		{"overlong instruction", map[uint64]scriptedInst{
			0x0: {status: disasm.Success, length: 64, text: "big"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := &scripted{program: tt.program}
			_, err := String(make([]byte, 16), Region{Size: 16}, fixedArch(dec), Options{})
			require.NoError(t, err)
			require.LessOrEqual(t, dec.calls, 2*16)
			require.Positive(t, dec.calls)
		})
	}
}

func TestTrailingPartialWord(t *testing.T) {
	dec := &scripted{program: map[uint64]scriptedInst{0x0: nop()}}
	out, err := String([]byte{1, 2, 3, 4, 0xaa, 0xbb}, Region{Size: 6}, fixedArch(dec), Options{})
	require.NoError(t, err)
	require.Equal(t, "\tnop\n\t.byte\t0xaa\n\t.byte\t0xbb\n", out)
}

func TestBinaryMode(t *testing.T) {
	soft := scriptedInst{status: disasm.SoftFail, length: 4, text: "udf"}
	dec := &scripted{program: map[uint64]scriptedInst{0x1000: soft, 0x1004: nop()}}
	mem := []byte{0x00, 0x00, 0x00, 0x00, 0x01, 0x02, 0x03, 0x04}

	out, err := String(mem, Region{Base: 0x1000, Size: 8}, fixedArch(dec), Options{Binary: true})
	require.NoError(t, err)
	require.Equal(t,
		"; code origin: 0000000000001000, code size: 8\n"+
			"potentially undefined instruction encoding:\n"+
			"; 1000: 00000000\n"+
			"\tudf\n"+
			"; 1004: 04030201\n"+
			"\tnop\n",
		out)
}

var (
	fA = debuginfo.SourceFrame{Function: "a", File: "x.c", Line: 1}
	fB = debuginfo.SourceFrame{Function: "b", File: "y.h", Line: 2}
)

func threeNops(base uint64) *scripted {
	return &scripted{program: map[uint64]scriptedInst{base: nop(), base + 4: nop(), base + 8: nop()}}
}

func TestSourceAnnotations(t *testing.T) {
	tbl := debuginfo.NewTable()
	tbl.Add(0x2000, fA)
	tbl.Add(0x2004, fA, fB)
	tbl.Add(0x2008, fA)

	out, err := String(make([]byte, 12), Region{Base: 0x2000, Size: 12}, fixedArch(threeNops(0x2000)), Options{Provider: tbl})
	require.NoError(t, err)
	require.Equal(t,
		"; ┌ @ x.c:1 within `a`\n"+
			"\tnop\n"+
			"; │┌ @ y.h:2 within `b`\n"+
			"\tnop\n"+
			"; │└\n"+
			"\tnop\n"+
			"; └\n",
		out)
}

func TestLeadingAnnotationAndFallback(t *testing.T) {
	tbl := debuginfo.NewTable()
	// No inlining chain: the line table frame is used.
	tbl.AddLine(0x2004, fA)

	out, err := String(make([]byte, 12), Region{Base: 0x2000, Size: 12}, fixedArch(threeNops(0x2000)), Options{Provider: tbl})
	require.NoError(t, err)
	require.Equal(t,
		"; ┌ @ x.c:1 within `a`\n"+
			"\tnop\n"+
			"\tnop\n"+
			"\tnop\n"+
			"; └\n",
		out)
}

func TestSlideAndLineStart(t *testing.T) {
	tbl := debuginfo.NewTable()
	tbl.Add(0x500, fA)
	tbl.Add(0x504, fA, fB)

	region := Region{Base: 0x2000, Size: 8, Slide: 0x500 - 0x2000}
	dec := &scripted{program: map[uint64]scriptedInst{0x2000: nop(), 0x2004: nop()}}
	out, err := String(make([]byte, 8), region, fixedArch(dec), Options{Provider: tbl, LineStart: "# "})
	require.NoError(t, err)
	require.Equal(t,
		"# ┌ @ x.c:1 within `a`\n"+
			"\tnop\n"+
			"# │┌ @ y.h:2 within `b`\n"+
			"\tnop\n"+
			"# └└\n",
		out)
}

func TestDebugInfoNone(t *testing.T) {
	tbl := debuginfo.NewTable()
	tbl.Add(0x2000, fA, fB)

	out, err := String(make([]byte, 12), Region{Base: 0x2000, Size: 12}, fixedArch(threeNops(0x2000)),
		Options{Provider: tbl, DebugInfo: "none"})
	require.NoError(t, err)
	require.Equal(t, "\tnop\n\tnop\n\tnop\n", out)
}

func TestErrors(t *testing.T) {
	_, err := String(nil, Region{Size: 4}, nil, Options{})
	require.True(t, errors.Is(err, ErrMissingTarget))

	_, err = String([]byte{1, 2, 3, 4}, Region{Size: 4}, &disasm.Arch{Name: "nodecoder", MinStep: 4}, Options{})
	require.True(t, errors.Is(err, ErrMissingTarget))

	_, err = String([]byte{1, 2}, Region{Size: 4}, fixedArch(&scripted{}), Options{})
	require.Error(t, err)

	out, err := String(nil, Region{Base: 0x10}, fixedArch(&scripted{}), Options{})
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestRegionContains(t *testing.T) {
	r := Region{Base: 0x100, Size: 0x10}
	require.True(t, r.Contains(0x100))
	require.True(t, r.Contains(0x10f))
	require.False(t, r.Contains(0x110))
	require.False(t, r.Contains(0xff))
}

func TestAMD64CallAndLabel(t *testing.T) {
	// call next; ret
	mem := []byte{0xe8, 0x00, 0x00, 0x00, 0x00, 0xc3}
	out, err := String(mem, Region{Base: 0x1000, Size: uint64(len(mem))}, disasm.AMD64(), Options{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[0], "\tcall"), lines[0])
	require.True(t, strings.HasSuffix(lines[0], "\t# L5"), lines[0])
	require.Equal(t, "L5:", lines[1])
	require.True(t, strings.HasPrefix(lines[2], "\tret"), lines[2])
}

func TestAMD64UndecodableTail(t *testing.T) {
	// nop, then a call cut short after its opcode
	mem := []byte{0x90, 0xe8, 0x00}
	out, err := String(mem, Region{Base: 0x1000, Size: uint64(len(mem))}, disasm.AMD64(), Options{})
	require.NoError(t, err)
	require.Equal(t, "\tnop\n\t.byte\t0xe8\n\t.byte\t0x00\n", out)
}
