// Package disasm defines a common instruction representation used
// across architecture-specific disassemblers.
package disasm

// Status is the outcome of decoding a single instruction.
type Status int

const (
	// Fail means the bytes do not form an instruction.
	Fail Status = iota
	// SoftFail means the bytes decode, but the encoding is not guaranteed
	// to be defined on every implementation of the architecture.
	SoftFail
	// Success means the instruction decoded cleanly.
	Success
)

func (s Status) String() string {
	switch s {
	case Fail:
		return "fail"
	case SoftFail:
		return "softfail"
	case Success:
		return "success"
	}
	return "unknown"
}

// ControlKind classifies the control-flow effect of an instruction.
type ControlKind int

const (
	ControlNone ControlKind = iota
	ControlBranch
	ControlCall
	ControlReturn
)

// Control describes how an instruction transfers control. Target is only
// meaningful when HasTarget is set, i.e. when the destination is encoded
// in the instruction itself and not held in a register.
type Control struct {
	Kind      ControlKind
	Target    uint64
	HasTarget bool
}

// Operand is an instruction operand that may denote an address.
type Operand struct {
	Target   uint64 // absolute value, PC-relative operands already rebased
	PCRel    bool
	Symbolic bool // worth looking up in the symbol table
}

// Inst is a decoded instruction. It is a transient value: decoders may
// reuse the storage behind Native on the next call to Decode.
type Inst struct {
	Addr     uint64 // virtual address of instruction
	Len      int    // encoded length in bytes
	Op       string // mnemonic in lowercase
	Control  Control
	Operands []Operand
	Native   any // decoder-specific representation, consumed by Format
}

// Decoder decodes and formats instructions of one architecture.
type Decoder interface {
	// Decode decodes the instruction at the start of code, which lives at
	// address pc.
	Decode(code []byte, pc uint64) (Inst, Status)
	// Format renders inst in the requested assembler dialect.
	Format(inst Inst, syntax Syntax) string
}

// Syntax is an assembler dialect.
type Syntax string

const (
	SyntaxATT   Syntax = "att"
	SyntaxIntel Syntax = "intel"
	SyntaxGo    Syntax = "go"
)

// ParseSyntax maps a dialect name to a Syntax. Anything it does not know
// selects AT&T, the GNU default.
func ParseSyntax(s string) Syntax {
	switch s {
	case "intel":
		return SyntaxIntel
	case "go", "plan9":
		return SyntaxGo
	}
	return SyntaxATT
}
