package disasm

import (
	"debug/elf"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTargetsLookup(t *testing.T) {
	targets := DefaultTargets()

	tests := []struct {
		name string
		want string
	}{
		{"amd64", "amd64"},
		{"x86_64", "amd64"},
		{"X86-64", "amd64"},
		{"i386", "386"},
		{"aarch64", "arm64"},
		{"arm64", "arm64"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := targets.Lookup(tt.name)
			require.NoError(t, err)
			require.Equal(t, tt.want, a.Name)
		})
	}

	_, err := targets.Lookup("vax")
	require.True(t, errors.Is(err, ErrUnknownArch))

	a, err := targets.ForMachine(elf.EM_AARCH64)
	require.NoError(t, err)
	require.Equal(t, "arm64", a.Name)

	_, err = targets.ForMachine(elf.EM_MIPS)
	require.ErrorIs(t, err, ErrUnknownArch)

	require.Equal(t, []string{"386", "amd64", "arm64"}, targets.Names())
}

func TestX86ControlFlow(t *testing.T) {
	dec := AMD64().NewDecoder()
	const pc = 0x1000

	tests := []struct {
		name       string
		code       []byte
		kind       ControlKind
		target     uint64
		hasTarget  bool
		wantLength int
	}{
		{"call rel32", []byte{0xe8, 0x00, 0x00, 0x00, 0x00}, ControlCall, pc + 5, true, 5},
		{"jmp self", []byte{0xeb, 0xfe}, ControlBranch, pc, true, 2},
		{"jne forward", []byte{0x75, 0x10}, ControlBranch, pc + 2 + 0x10, true, 2},
		{"ret", []byte{0xc3}, ControlReturn, 0, false, 1},
		{"call reg", []byte{0xff, 0xd0}, ControlCall, 0, false, 2},
		{"nop", []byte{0x90}, ControlNone, 0, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, st := dec.Decode(tt.code, pc)
			require.Equal(t, Success, st)
			require.Equal(t, tt.wantLength, inst.Len)
			require.Equal(t, tt.kind, inst.Control.Kind)
			require.Equal(t, tt.hasTarget, inst.Control.HasTarget)
			if tt.hasTarget {
				require.Equal(t, tt.target, inst.Control.Target)
			}
		})
	}
}

func TestX86RIPRelativeOperand(t *testing.T) {
	dec := AMD64().NewDecoder()
	// lea 0x10(%rip), %rax
	inst, st := dec.Decode([]byte{0x48, 0x8d, 0x05, 0x10, 0x00, 0x00, 0x00}, 0x2000)
	require.Equal(t, Success, st)
	require.Len(t, inst.Operands, 1)
	require.True(t, inst.Operands[0].PCRel)
	require.True(t, inst.Operands[0].Symbolic)
	require.Equal(t, uint64(0x2000+7+0x10), inst.Operands[0].Target)
	require.Contains(t, dec.Format(inst, SyntaxATT), "lea")
}

func TestX86Truncated(t *testing.T) {
	dec := AMD64().NewDecoder()
	for _, code := range [][]byte{{0x0f}, {0xe8, 0x00}, {0x00}, {0x66}} {
		_, st := dec.Decode(code, 0)
		require.Equal(t, Fail, st, "% x", code)
	}
}

func TestARM64ControlFlow(t *testing.T) {
	dec := ARM64().NewDecoder()
	const pc = 0x4000

	tests := []struct {
		name      string
		code      []byte
		kind      ControlKind
		target    uint64
		hasTarget bool
	}{
		{"bl self", []byte{0x00, 0x00, 0x00, 0x94}, ControlCall, pc, true},
		{"b +8", []byte{0x02, 0x00, 0x00, 0x14}, ControlBranch, pc + 8, true},
		{"ret", []byte{0xc0, 0x03, 0x5f, 0xd6}, ControlReturn, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, st := dec.Decode(tt.code, pc)
			require.Equal(t, Success, st)
			require.Equal(t, 4, inst.Len)
			require.Equal(t, tt.kind, inst.Control.Kind)
			require.Equal(t, tt.hasTarget, inst.Control.HasTarget)
			if tt.hasTarget {
				require.Equal(t, tt.target, inst.Control.Target)
			}
		})
	}

	_, st := dec.Decode([]byte{0x00, 0x00}, pc)
	require.Equal(t, Fail, st)
}

func TestDirective(t *testing.T) {
	arm := ARM64()
	text, n := arm.Directive([]byte{0x78, 0x56, 0x34, 0x12, 0xff})
	require.Equal(t, 4, n)
	require.Equal(t, "\t.long\t0x12345678", text)

	// Fewer bytes than a whole instruction.
	text, n = arm.Directive([]byte{0xaa, 0xbb})
	require.Equal(t, 2, n)
	require.Equal(t, "\t.byte\t0xaa\n\t.byte\t0xbb", text)

	text, n = AMD64().Directive([]byte{0x0f, 0x0b})
	require.Equal(t, 1, n)
	require.Equal(t, "\t.byte\t0x0f", text)
}

func TestRawComment(t *testing.T) {
	require.Equal(t, "; 2345: 0f 1f 00",
		AMD64().RawComment("; ", 0x12345, []byte{0x0f, 0x1f, 0x00}))
	require.Equal(t, "; 0010: d65f03c0",
		ARM64().RawComment("; ", 0x10, []byte{0xc0, 0x03, 0x5f, 0xd6}))
}

func TestParseSyntax(t *testing.T) {
	require.Equal(t, SyntaxIntel, ParseSyntax("intel"))
	require.Equal(t, SyntaxGo, ParseSyntax("plan9"))
	require.Equal(t, SyntaxATT, ParseSyntax("att"))
	require.Equal(t, SyntaxATT, ParseSyntax("bogus"))
}
