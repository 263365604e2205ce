package disasm

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Directive renders bytes that failed to decode as assembler data
// directives and reports how many bytes it consumed. Fixed-width targets
// print one word when a whole instruction is left, everything else gets a
// byte directive.
func (a *Arch) Directive(code []byte) (string, int) {
	n := a.Step()
	if n > len(code) {
		n = len(code)
	}
	if a.FixedWidth && n == 4 {
		return fmt.Sprintf("\t.long\t0x%08x", a.order().Uint32(code[:4])), n
	}
	lines := make([]string, 0, n)
	for _, b := range code[:n] {
		lines = append(lines, fmt.Sprintf("\t.byte\t0x%02x", b))
	}
	return strings.Join(lines, "\n"), n
}

// RawComment renders the encoding of one instruction as a comment line:
// the low 16 bits of its address, then its bytes. Fixed-width encodings
// print as a single word in memory order reversed for little-endian
// targets, variable-width ones byte by byte.
func (a *Arch) RawComment(lineStart string, addr uint64, code []byte) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%04x:", lineStart, addr&0xffff)
	if a.FixedWidth {
		b.WriteByte(' ')
		if a.order() == binary.ByteOrder(binary.LittleEndian) {
			for i := len(code) - 1; i >= 0; i-- {
				fmt.Fprintf(&b, "%02x", code[i])
			}
		} else {
			for _, c := range code {
				fmt.Fprintf(&b, "%02x", c)
			}
		}
		return b.String()
	}
	for _, c := range code {
		fmt.Fprintf(&b, " %02x", c)
	}
	return b.String()
}

func (a *Arch) order() binary.ByteOrder {
	if a.ByteOrder == nil {
		return binary.LittleEndian
	}
	return a.ByteOrder
}
