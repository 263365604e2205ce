package elfx

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

// PLTStub is one lazy-binding stub and the import it jumps to.
type PLTStub struct {
	Addr    uint64
	GOTAddr uint64
	SymName string
}

// parsePLT finds every PLT stub, reads the GOT slot it jumps through and
// names it after the jump-slot relocation of that slot.
func (im *Image) parsePLT() {
	var stubs []PLTStub
	switch im.File.Machine {
	case elf.EM_AARCH64:
		stubs = im.scanStubs(im.PLT, 16, 1, im.parseARM64Stub)
	case elf.EM_X86_64, elf.EM_386:
		// With IBT the lazy stubs in .plt only push the index, the jumps
		// through the GOT live in .plt.sec.
		if im.PLTSec.Size != 0 {
			stubs = im.scanStubs(im.PLTSec, 16, 0, im.parseX86Stub)
		} else {
			stubs = im.scanStubs(im.PLT, 16, 1, im.parseX86Stub)
		}
	}
	if len(stubs) == 0 {
		return
	}

	slots := im.jumpSlots()
	for i := range stubs {
		stubs[i].SymName = slots[stubs[i].GOTAddr]
	}
	im.PLTStubs = stubs
}

// scanStubs walks sec in stubSize steps, skipping the first skip entries
// (the resolver stub).
func (im *Image) scanStubs(sec Section, stubSize, skip uint64, parse func(uint64) (uint64, bool)) []PLTStub {
	var stubs []PLTStub
	for i := skip; (i+1)*stubSize <= sec.Size; i++ {
		addr := sec.VA + i*stubSize
		if got, ok := parse(addr); ok {
			stubs = append(stubs, PLTStub{Addr: addr, GOTAddr: got})
		}
	}
	return stubs
}

// parseARM64Stub parses an ARM64 PLT stub to extract the GOT address.
// Standard ARM64 PLT stub format:
//
//	adrp x16, <page>     ; Load page address
//	ldr  x17, [x16, #offset] ; Load GOT entry
//	add  x16, x16, #offset   ; Prepare GOT entry address
//	br   x17             ; Branch to target
func (im *Image) parseARM64Stub(pltAddr uint64) (uint64, bool) {
	stubData, ok := im.SliceVA(pltAddr, 16)
	if !ok || len(stubData) < 16 {
		return 0, false
	}

	adrpInsn := binary.LittleEndian.Uint32(stubData[0:4])
	if (adrpInsn & 0x9f00001f) != 0x90000010 { // adrp x16 pattern
		return 0, false
	}

	immLo := (adrpInsn >> 29) & 3
	immHi := (adrpInsn >> 5) & 0x7ffff
	pageOffset := int64((immHi << 2) | immLo)
	if pageOffset&(1<<20) != 0 { // Sign extend
		pageOffset |= ^((1 << 21) - 1)
	}
	pageOffset <<= 12 // adrp works on 4KB pages

	pageBase := int64(pltAddr&^0xfff) + pageOffset

	ldrInsn := binary.LittleEndian.Uint32(stubData[4:8])
	if (ldrInsn & 0xffc003ff) != 0xf9400211 { // ldr x17, [x16, #imm] pattern
		return 0, false
	}

	offset := (ldrInsn >> 10) & 0xfff
	offset <<= 3 // Scale by 8 for 64-bit load

	return uint64(pageBase) + uint64(offset), true
}

// parseX86Stub extracts the GOT slot from the indirect jump of an x86
// PLT stub:
//
//	[endbr64; bnd] jmp *disp32(%rip)   ; x86-64
//	jmp *abs32                         ; i386, non-PIC
func (im *Image) parseX86Stub(pltAddr uint64) (uint64, bool) {
	stubData, ok := im.SliceVA(pltAddr, 16)
	if !ok {
		return 0, false
	}
	i := bytes.Index(stubData[:10], []byte{0xff, 0x25})
	if i < 0 || i+6 > len(stubData) {
		return 0, false
	}
	disp := int32(binary.LittleEndian.Uint32(stubData[i+2 : i+6]))
	if im.File.Machine == elf.EM_386 {
		return uint64(uint32(disp)), true
	}
	return pltAddr + uint64(i) + 6 + uint64(int64(disp)), true
}

// jumpSlots maps GOT slots to the symbols their PLT relocations bind.
func (im *Image) jumpSlots() map[uint64]string {
	slots := make(map[uint64]string)
	dynsyms, err := im.File.DynamicSymbols()
	if err != nil {
		return slots
	}
	name := func(idx uint32) string {
		// DynamicSymbols drops the null symbol at index 0.
		if idx == 0 || int(idx) > len(dynsyms) {
			return ""
		}
		return dynsyms[idx-1].Name
	}

	order := im.File.ByteOrder
	is64 := im.File.Class == elf.ELFCLASS64
	for _, secName := range []string{".rela.plt", ".rel.plt"} {
		sec := im.File.Section(secName)
		if sec == nil {
			continue
		}
		data, err := sec.Data()
		if err != nil {
			continue
		}
		rela := secName == ".rela.plt"

		var entSize int
		switch {
		case is64 && rela:
			entSize = 24 // r_offset, r_info, r_addend
		case is64:
			entSize = 16
		case rela:
			entSize = 12
		default:
			entSize = 8
		}
		for off := 0; off+entSize <= len(data); off += entSize {
			ent := data[off : off+entSize]
			if is64 {
				slots[order.Uint64(ent[0:8])] = name(elf.R_SYM64(order.Uint64(ent[8:16])))
			} else {
				slots[uint64(order.Uint32(ent[0:4]))] = name(elf.R_SYM32(order.Uint32(ent[4:8])))
			}
		}
	}
	return slots
}
