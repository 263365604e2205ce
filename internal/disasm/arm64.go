package disasm

import (
	"debug/elf"
	"encoding/binary"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"
)

// ARM64 describes AArch64. Instructions are always four bytes wide.
func ARM64() *Arch {
	return &Arch{
		Name:          "arm64",
		MinStep:       4,
		FixedWidth:    true,
		ByteOrder:     binary.LittleEndian,
		CommentMarker: "//",
		Machine:       elf.EM_AARCH64,
		NewDecoder:    func() Decoder { return arm64Decoder{} },
	}
}

type arm64Decoder struct{}

func (arm64Decoder) Decode(code []byte, pc uint64) (Inst, Status) {
	if len(code) < 4 {
		return Inst{Addr: pc}, Fail
	}
	ai, err := arm64asm.Decode(code[:4])
	if err != nil {
		return Inst{Addr: pc}, Fail
	}

	inst := Inst{
		Addr:   pc,
		Len:    4,
		Op:     strings.ToLower(ai.Op.String()),
		Native: ai,
	}
	switch ai.Op {
	case arm64asm.BL, arm64asm.BLR:
		inst.Control.Kind = ControlCall
	case arm64asm.RET:
		inst.Control.Kind = ControlReturn
	case arm64asm.B, arm64asm.BR, arm64asm.CBZ, arm64asm.CBNZ, arm64asm.TBZ, arm64asm.TBNZ:
		inst.Control.Kind = ControlBranch
	}

	for _, arg := range ai.Args {
		if arg == nil {
			break
		}
		rel, ok := arg.(arm64asm.PCRel)
		if !ok {
			continue
		}
		target := pc + uint64(int64(rel))
		if ai.Op == arm64asm.ADRP {
			// ADRP addresses a 4KB page
			target &^= 0xfff
		}
		inst.Operands = append(inst.Operands, Operand{Target: target, PCRel: true, Symbolic: true})
		if inst.Control.Kind == ControlBranch || inst.Control.Kind == ControlCall {
			inst.Control.Target = target
			inst.Control.HasTarget = true
		}
	}
	return inst, Success
}

func (arm64Decoder) Format(inst Inst, syntax Syntax) string {
	ai, ok := inst.Native.(arm64asm.Inst)
	if !ok {
		return inst.Op
	}
	if syntax == SyntaxGo {
		return arm64asm.GoSyntax(ai, inst.Addr, nil, nil)
	}
	return arm64asm.GNUSyntax(ai)
}
