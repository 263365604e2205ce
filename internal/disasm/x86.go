package disasm

import (
	"debug/elf"
	"encoding/binary"
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// AMD64 describes 64-bit x86.
func AMD64() *Arch {
	return &Arch{
		Name:          "amd64",
		MinStep:       1,
		ByteOrder:     binary.LittleEndian,
		CommentMarker: "#",
		Machine:       elf.EM_X86_64,
		NewDecoder:    func() Decoder { return &x86Decoder{mode: 64} },
	}
}

// I386 describes 32-bit x86.
func I386() *Arch {
	return &Arch{
		Name:          "386",
		MinStep:       1,
		ByteOrder:     binary.LittleEndian,
		CommentMarker: "#",
		Machine:       elf.EM_386,
		NewDecoder:    func() Decoder { return &x86Decoder{mode: 32} },
	}
}

type x86Decoder struct {
	mode int
}

func (d *x86Decoder) Decode(code []byte, pc uint64) (Inst, Status) {
	xi, err := x86asm.Decode(code, d.mode)
	if err != nil || xi.Len == 0 || xi.Op == 0 {
		return Inst{Addr: pc}, Fail
	}

	inst := Inst{
		Addr:   pc,
		Len:    xi.Len,
		Op:     strings.ToLower(xi.Op.String()),
		Native: xi,
	}
	inst.Control.Kind = x86Control(xi.Op)

	next := pc + uint64(xi.Len)
	for _, arg := range xi.Args {
		if arg == nil {
			break
		}
		switch a := arg.(type) {
		case x86asm.Rel:
			target := next + uint64(int64(a))
			inst.Operands = append(inst.Operands, Operand{Target: target, PCRel: true, Symbolic: true})
			if inst.Control.Kind == ControlBranch || inst.Control.Kind == ControlCall {
				inst.Control.Target = target
				inst.Control.HasTarget = true
			}
		case x86asm.Mem:
			switch {
			case a.Base == x86asm.RIP:
				inst.Operands = append(inst.Operands, Operand{Target: next + uint64(a.Disp), PCRel: true, Symbolic: true})
			case a.Base == 0 && a.Index == 0 && a.Disp != 0:
				inst.Operands = append(inst.Operands, Operand{Target: d.truncate(uint64(a.Disp)), Symbolic: true})
			}
		case x86asm.Imm:
			inst.Operands = append(inst.Operands, Operand{Target: d.truncate(uint64(a)), Symbolic: a != 0})
		}
	}
	return inst, Success
}

func (d *x86Decoder) truncate(v uint64) uint64 {
	if d.mode == 32 {
		return uint64(uint32(v))
	}
	return v
}

func (d *x86Decoder) Format(inst Inst, syntax Syntax) string {
	xi, ok := inst.Native.(x86asm.Inst)
	if !ok {
		return inst.Op
	}
	switch syntax {
	case SyntaxIntel:
		return x86asm.IntelSyntax(xi, inst.Addr, nil)
	case SyntaxGo:
		return x86asm.GoSyntax(xi, inst.Addr, nil)
	default:
		return x86asm.GNUSyntax(xi, inst.Addr, nil)
	}
}

func x86Control(op x86asm.Op) ControlKind {
	switch op {
	case x86asm.CALL, x86asm.LCALL:
		return ControlCall
	case x86asm.RET, x86asm.LRET, x86asm.IRET, x86asm.IRETD, x86asm.IRETQ:
		return ControlReturn
	case x86asm.LOOP, x86asm.LOOPE, x86asm.LOOPNE, x86asm.LJMP:
		return ControlBranch
	}
	// Conditional and unconditional jumps all spell J*.
	if strings.HasPrefix(op.String(), "J") {
		return ControlBranch
	}
	return ControlNone
}
